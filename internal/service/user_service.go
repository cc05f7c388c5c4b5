package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/auth"
	"github.com/spec-kit/session-service/internal/domain"
	"github.com/spec-kit/session-service/internal/repository"
)

const pgUniqueViolation = "23505"

// SignupInput carries validated signup fields.
type SignupInput struct {
	Username string
	Password string
	Nickname string
}

// ProfileUpdate carries optional profile changes.
type ProfileUpdate struct {
	Nickname *string
	Password *string
}

// UserService manages account records around the auth core.
type UserService struct {
	users  repository.UserRepository
	store  repository.RefreshTokenRepository
	hasher auth.PasswordHasher
	logger *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, store repository.RefreshTokenRepository, hasher auth.PasswordHasher, logger *zap.Logger) *UserService {
	return &UserService{users: users, store: store, hasher: hasher, logger: logger.Named("users")}
}

// Signup creates a USER account.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if taken, err := s.users.ExistsBySubject(ctx, in.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, domain.ErrDuplicateUsername
	}
	if taken, err := s.users.ExistsByNickname(ctx, in.Nickname); err != nil {
		return nil, err
	} else if taken {
		return nil, domain.ErrDuplicateNickname
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     in.Username,
		PasswordHash: hash,
		Nickname:     in.Nickname,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUniqueViolation(err)
	}
	s.logger.Info("account created", zap.String("subject", user.Username))
	return user, nil
}

// CheckUsername reports whether username is still free.
func (s *UserService) CheckUsername(ctx context.Context, username string) (bool, error) {
	taken, err := s.users.ExistsBySubject(ctx, username)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// GetProfile returns the caller's account.
func (s *UserService) GetProfile(ctx context.Context, subject string) (*domain.User, error) {
	user, err := s.users.FindBySubject(ctx, subject)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return user, nil
}

// UpdateProfile applies nickname and password changes.
func (s *UserService) UpdateProfile(ctx context.Context, subject string, upd ProfileUpdate) (*domain.User, error) {
	if upd.Nickname != nil {
		current, err := s.users.FindBySubject(ctx, subject)
		if err != nil {
			return nil, mapNotFound(err)
		}
		if *upd.Nickname != current.Nickname {
			taken, err := s.users.ExistsByNickname(ctx, *upd.Nickname)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, domain.ErrDuplicateNickname
			}
			if err := s.users.UpdateNickname(ctx, subject, *upd.Nickname); err != nil {
				return nil, mapUniqueViolation(mapNotFound(err))
			}
		}
	}

	if upd.Password != nil {
		hash, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.users.UpdatePasswordHash(ctx, subject, hash); err != nil {
			return nil, mapNotFound(err)
		}
		s.logger.Info("password changed", zap.String("subject", subject))
	}

	return s.GetProfile(ctx, subject)
}

// UpdateRole changes target's role and ends its session so the next login
// carries the new role.
func (s *UserService) UpdateRole(ctx context.Context, target string, role domain.Role) (*domain.User, error) {
	if err := s.users.UpdateRole(ctx, target, role); err != nil {
		return nil, mapNotFound(err)
	}
	if _, err := s.store.Delete(ctx, target); err != nil {
		s.logger.Warn("role changed but session not revoked", zap.String("subject", target), zap.Error(err))
	}
	s.logger.Info("role changed", zap.String("subject", target), zap.String("role", string(role)))
	return s.GetProfile(ctx, target)
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	return err
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "nickname") {
		return domain.ErrDuplicateNickname.WithCause(err)
	}
	return domain.ErrDuplicateUsername.WithCause(err)
}
