package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/domain"
	"github.com/spec-kit/session-service/internal/repository"
)

// CredentialVerifier checks a subject/password pair against the user store.
type CredentialVerifier struct {
	users     repository.UserRepository
	hasher    PasswordHasher
	timeout   time.Duration
	logger    *zap.Logger
	dummyHash string
}

// NewCredentialVerifier builds a verifier. The dummy hash it prepares is
// compared against on unknown subjects so lookups take the same time.
func NewCredentialVerifier(users repository.UserRepository, hasher PasswordHasher, timeout time.Duration, logger *zap.Logger) (*CredentialVerifier, error) {
	dummy, err := hasher.Hash("no-such-account-placeholder")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &CredentialVerifier{
		users:     users,
		hasher:    hasher,
		timeout:   timeout,
		logger:    logger.Named("verifier"),
		dummyHash: dummy,
	}, nil
}

// Verify returns the account when password matches its stored hash.
func (v *CredentialVerifier) Verify(ctx context.Context, subject, password string) (*domain.User, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	user, err := v.users.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			v.hasher.Matches(password, v.dummyHash)
			v.logger.Info("login for unknown subject", zap.String("subject", subject))
			return nil, domain.ErrBadCredentials
		}
		return nil, fmt.Errorf("lookup %q: %w", subject, err)
	}

	if !v.hasher.Matches(password, user.PasswordHash) {
		v.logger.Info("password mismatch", zap.String("subject", subject))
		return nil, domain.ErrBadCredentials
	}
	return user, nil
}
