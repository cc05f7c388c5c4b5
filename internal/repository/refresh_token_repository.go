package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/domain"
)

const refreshTokenPrefix = "RT:"

// RefreshTokenRepository keeps at most one live refresh token per subject.
type RefreshTokenRepository interface {
	// Save upserts the subject's token with a TTL matching its remaining
	// lifetime and confirms the write with a follow-up read.
	Save(ctx context.Context, subject, token string, expiresAt time.Time) error
	// Get returns the stored token. Backing-store failures are reported as
	// absent so callers fall back to re-authentication.
	Get(ctx context.Context, subject string) (string, bool)
	// Delete removes the entry and reports whether one existed.
	Delete(ctx context.Context, subject string) (bool, error)
	// Validate reports whether candidate is exactly the stored token.
	Validate(ctx context.Context, subject, candidate string) bool
}

type refreshTokenRepository struct {
	client  redis.Cmdable
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewRefreshTokenRepository returns a Redis-backed store. Every round trip
// is bounded by timeout.
func NewRefreshTokenRepository(client redis.Cmdable, timeout time.Duration, logger *zap.Logger) RefreshTokenRepository {
	return &refreshTokenRepository{
		client:  client,
		timeout: timeout,
		logger:  logger.Named("refresh_store"),
		now:     time.Now,
	}
}

func refreshKey(subject string) string {
	return refreshTokenPrefix + subject
}

func (r *refreshTokenRepository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *refreshTokenRepository) Save(ctx context.Context, subject, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return domain.ErrStoreWriteFailed.WithCause(fmt.Errorf("refresh token for %q already expired", subject))
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	key := refreshKey(subject)
	if err := r.client.Set(ctx, key, token, ttl).Err(); err != nil {
		r.logger.Error("refresh token write failed", zap.String("subject", subject), zap.Error(err))
		return domain.ErrStoreWriteFailed.WithCause(err)
	}

	// Presence, not equality: a concurrent rotation by the same subject may
	// legitimately win the race between our SET and GET.
	if err := r.client.Get(ctx, key).Err(); err != nil {
		r.logger.Error("refresh token write not confirmed", zap.String("subject", subject), zap.Error(err))
		return domain.ErrStoreWriteFailed.WithCause(err)
	}

	r.logger.Debug("refresh token saved", zap.String("subject", subject), zap.Duration("ttl", ttl))
	return nil
}

func (r *refreshTokenRepository) Get(ctx context.Context, subject string) (string, bool) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	token, err := r.client.Get(ctx, refreshKey(subject)).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("refresh token not found", zap.String("subject", subject))
		return "", false
	}
	if err != nil {
		r.logger.Warn("refresh token read failed; treating session as absent",
			zap.String("subject", subject), zap.Error(err))
		return "", false
	}
	return token, true
}

func (r *refreshTokenRepository) Delete(ctx context.Context, subject string) (bool, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	n, err := r.client.Del(ctx, refreshKey(subject)).Result()
	if err != nil {
		r.logger.Error("refresh token delete failed", zap.String("subject", subject), zap.Error(err))
		return false, domain.ErrStoreUnavailable.WithCause(err)
	}
	if n == 0 {
		r.logger.Debug("no refresh token to delete", zap.String("subject", subject))
		return false, nil
	}
	r.logger.Debug("refresh token deleted", zap.String("subject", subject))
	return true, nil
}

func (r *refreshTokenRepository) Validate(ctx context.Context, subject, candidate string) bool {
	stored, ok := r.Get(ctx, subject)
	if !ok || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
