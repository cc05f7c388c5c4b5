// Package testutil holds in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/session-service/internal/domain"
)

// RefreshStore is an in-memory repository.RefreshTokenRepository.
type RefreshStore struct {
	mu     sync.Mutex
	tokens map[string]string

	// SaveErr and DeleteErr, when set, are returned instead of touching state.
	SaveErr   error
	DeleteErr error
	// Down makes reads report absent, like an unreachable Redis.
	Down bool

	Saves int
}

// NewRefreshStore returns an empty store.
func NewRefreshStore() *RefreshStore {
	return &RefreshStore{tokens: make(map[string]string)}
}

func (s *RefreshStore) Save(_ context.Context, subject, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if !expiresAt.After(time.Now()) {
		return domain.ErrStoreWriteFailed
	}
	s.tokens[subject] = token
	s.Saves++
	return nil
}

func (s *RefreshStore) Get(_ context.Context, subject string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Down {
		return "", false
	}
	token, ok := s.tokens[subject]
	return token, ok
}

func (s *RefreshStore) Delete(_ context.Context, subject string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return false, s.DeleteErr
	}
	if _, ok := s.tokens[subject]; !ok {
		return false, nil
	}
	delete(s.tokens, subject)
	return true, nil
}

func (s *RefreshStore) Validate(ctx context.Context, subject, candidate string) bool {
	stored, ok := s.Get(ctx, subject)
	return ok && candidate != "" && stored == candidate
}

// Put seeds a token directly.
func (s *RefreshStore) Put(subject, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[subject] = token
}

// Peek returns the stored token without going through Get.
func (s *RefreshStore) Peek(subject string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[subject]
	return token, ok
}

// UserStore is an in-memory repository.UserRepository keyed by username.
type UserStore struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int64

	// FindErr is returned by FindBySubject when set.
	FindErr error
	// DeleteMisses makes DeleteBySubject report zero affected rows.
	DeleteMisses bool
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.User)}
}

// Add seeds a user and returns the stored copy.
func (s *UserStore) Add(user domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user.ID = s.nextID
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	s.users[user.Username] = &user
	cp := user
	return &cp
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user.ID = s.nextID
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	s.users[user.Username] = &cp
	return nil
}

func (s *UserStore) FindBySubject(_ context.Context, subject string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	user, ok := s.users[subject]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *user
	return &cp, nil
}

func (s *UserStore) ExistsBySubject(_ context.Context, subject string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[subject]
	return ok, nil
}

func (s *UserStore) ExistsByNickname(_ context.Context, nickname string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Nickname == nickname {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserStore) DeleteBySubject(_ context.Context, subject string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteMisses {
		return 0, nil
	}
	if _, ok := s.users[subject]; !ok {
		return 0, nil
	}
	delete(s.users, subject)
	return 1, nil
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, subject, hash string) error {
	return s.mutate(subject, func(u *domain.User) { u.PasswordHash = hash })
}

func (s *UserStore) UpdateNickname(_ context.Context, subject, nickname string) error {
	return s.mutate(subject, func(u *domain.User) { u.Nickname = nickname })
}

func (s *UserStore) UpdateRole(_ context.Context, subject string, role domain.Role) error {
	return s.mutate(subject, func(u *domain.User) { u.Role = role })
}

func (s *UserStore) mutate(subject string, fn func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[subject]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(user)
	user.UpdatedAt = time.Now()
	return nil
}

// Has reports whether subject is stored.
func (s *UserStore) Has(subject string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[subject]
	return ok
}
