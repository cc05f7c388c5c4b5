package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/domain"
)

func newUserService(t *testing.T) (*UserService, *sessionFixture) {
	t.Helper()
	f := newSessionFixture(t)
	return NewUserService(f.users, f.store, f.hasher, zap.NewNop()), f
}

func TestUserService_Signup(t *testing.T) {
	svc, f := newUserService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Username: "bob", Password: "hunter22", Nickname: "Bobby"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.True(t, f.hasher.Matches("hunter22", user.PasswordHash))

	_, err = svc.Signup(ctx, SignupInput{Username: "bob", Password: "hunter22", Nickname: "Other"})
	assert.True(t, errors.Is(err, domain.ErrDuplicateUsername))

	_, err = svc.Signup(ctx, SignupInput{Username: "carol", Password: "hunter22", Nickname: "Bobby"})
	assert.True(t, errors.Is(err, domain.ErrDuplicateNickname))
}

func TestUserService_CheckUsername(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	free, err := svc.CheckUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, free)

	free, err = svc.CheckUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, free)
}

func TestUserService_UpdateProfile(t *testing.T) {
	svc, f := newUserService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, SignupInput{Username: "bob", Password: "hunter22", Nickname: "Bobby"})
	require.NoError(t, err)

	nick := "Al"
	_, err = svc.UpdateProfile(ctx, "bob", ProfileUpdate{Nickname: &nick})
	assert.True(t, errors.Is(err, domain.ErrDuplicateNickname))

	nick, pass := "Robert", "new-secret"
	user, err := svc.UpdateProfile(ctx, "bob", ProfileUpdate{Nickname: &nick, Password: &pass})
	require.NoError(t, err)
	assert.Equal(t, "Robert", user.Nickname)
	assert.True(t, f.hasher.Matches("new-secret", user.PasswordHash))

	same := "Robert"
	_, err = svc.UpdateProfile(ctx, "bob", ProfileUpdate{Nickname: &same})
	require.NoError(t, err, "keeping the current nickname is not a duplicate")

	_, err = svc.GetProfile(ctx, "ghost")
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

func TestUserService_UpdateRoleRevokesSession(t *testing.T) {
	svc, f := newUserService(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "alice", "p4ssword!")
	require.NoError(t, err)

	user, err := svc.UpdateRole(ctx, "alice", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	_, ok := f.store.Peek("alice")
	assert.False(t, ok)

	_, err = svc.UpdateRole(ctx, "ghost", domain.RoleManager)
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

func TestMapUniqueViolation(t *testing.T) {
	err := mapUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "users_nickname_key"})
	assert.True(t, errors.Is(err, domain.ErrDuplicateNickname))

	err = mapUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	assert.True(t, errors.Is(err, domain.ErrDuplicateUsername))

	other := errors.New("boom")
	assert.Same(t, other, mapUniqueViolation(other))
}
