package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/config"
	"github.com/spec-kit/session-service/internal/domain"
	"github.com/spec-kit/session-service/internal/events"
	"github.com/spec-kit/session-service/internal/observability"
	"github.com/spec-kit/session-service/internal/repository"
	apperrors "github.com/spec-kit/session-service/pkg/util/errorutil"
)

// DecisionState is the terminal state of one authentication pass.
type DecisionState string

const (
	StatePublicPath                DecisionState = "PUBLIC_PATH"
	StateNoToken                   DecisionState = "NO_TOKEN"
	StateAccessValid               DecisionState = "ACCESS_VALID"
	StateAccessExpiredRefreshValid DecisionState = "ACCESS_EXPIRED_REFRESH_VALID"
	StateInvalid                   DecisionState = "INVALID"
)

// Decision is the outcome of Gate.Decide. Err is set for NO_TOKEN and
// INVALID; Principal for the two accepting states.
type Decision struct {
	State         DecisionState
	Subject       string
	Principal     *domain.Principal
	ReissuedToken string
	Rotated       bool
	Err           error
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	switch d.State {
	case StatePublicPath, StateAccessValid, StateAccessExpiredRefreshValid:
		return true
	}
	return false
}

// Gate authenticates every non-public request and silently reissues
// expired access tokens backed by a live refresh token.
type Gate struct {
	codec      *TokenCodec
	store      repository.RefreshTokenRepository
	cfg        config.AuthConfig
	public     pathMatcher
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewGate wires the gate. dispatcher and metrics may be nil.
func NewGate(
	codec *TokenCodec,
	store repository.RefreshTokenRepository,
	cfg config.AuthConfig,
	dispatcher events.Dispatcher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Gate {
	return &Gate{
		codec:      codec,
		store:      store,
		cfg:        cfg,
		public:     newPathMatcher(cfg.PublicPaths),
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger.Named("gate"),
	}
}

// Decide runs the authentication state machine without touching the
// response.
func (g *Gate) Decide(ctx context.Context, path, authorization string) Decision {
	if g.public.match(path) {
		return Decision{State: StatePublicPath}
	}

	token, ok := bearerToken(authorization)
	if !ok {
		return Decision{State: StateNoToken, Err: domain.ErrMissingToken}
	}

	access, err := g.codec.Decode(token)
	expired := errors.Is(err, domain.ErrExpiredToken)
	if err != nil && !expired {
		return Decision{State: StateInvalid, Err: err}
	}
	if access.Kind != domain.TokenKindAccess {
		return Decision{State: StateInvalid, Subject: access.Subject, Err: domain.ErrMalformedToken}
	}
	subject := access.Subject

	var (
		stored string
		loaded bool
	)
	if g.cfg.ImmediateRevocation() {
		if stored, loaded = g.store.Get(ctx, subject); !loaded {
			return Decision{State: StateInvalid, Subject: subject, Err: domain.ErrNoActiveSession}
		}
	}

	if !expired {
		return Decision{
			State:     StateAccessValid,
			Subject:   subject,
			Principal: domain.NewPrincipal(subject, access.Role),
		}
	}

	if !loaded {
		if stored, loaded = g.store.Get(ctx, subject); !loaded {
			return Decision{State: StateInvalid, Subject: subject, Err: domain.ErrNoActiveSession}
		}
	}

	refresh, err := g.codec.Decode(stored)
	if err != nil || refresh.Kind != domain.TokenKindRefresh || refresh.Subject != subject {
		return Decision{State: StateInvalid, Subject: subject, Err: domain.ErrInvalidRefreshToken}
	}

	reissued, _, err := g.codec.Mint(domain.TokenKindAccess, subject, refresh.Role, g.cfg.AccessTokenTTL)
	if err != nil {
		return Decision{State: StateInvalid, Subject: subject, Err: apperrors.NewInternalError(err)}
	}

	if g.cfg.RotateRefreshToken {
		rotated, expiresAt, err := g.codec.Mint(domain.TokenKindRefresh, subject, refresh.Role, g.cfg.RefreshTokenTTL)
		if err != nil {
			return Decision{State: StateInvalid, Subject: subject, Err: apperrors.NewInternalError(err)}
		}
		if err := g.store.Save(ctx, subject, rotated, expiresAt); err != nil {
			return Decision{State: StateInvalid, Subject: subject, Err: err}
		}
	}

	return Decision{
		State:         StateAccessExpiredRefreshValid,
		Subject:       subject,
		Principal:     domain.NewPrincipal(subject, refresh.Role),
		ReissuedToken: reissued,
		Rotated:       g.cfg.RotateRefreshToken,
	}
}

// Handle is the fiber middleware form of Decide.
func (g *Gate) Handle(c *fiber.Ctx) error {
	d := g.Decide(c.UserContext(), c.Path(), c.Get(fiber.HeaderAuthorization))
	g.metrics.RecordDecision(string(d.State))

	if !d.Allowed() {
		ClearPrincipal(c)
		g.logRejection(c.Path(), d)
		return d.Err
	}

	if d.Principal != nil {
		WithPrincipal(c, d.Principal)
	}
	if d.State == StateAccessExpiredRefreshValid {
		c.Set(g.cfg.ReissueHeader, "Bearer "+d.ReissuedToken)
		g.logger.Info("access token reissued",
			zap.String("subject", d.Subject),
			zap.String("path", c.Path()),
			zap.Bool("rotated", d.Rotated))
		g.publish(c.UserContext(), events.NewEvent(events.EventSessionReissue, d.Subject,
			events.ReissuePayload{Source: "gate", Rotated: d.Rotated}))
	}
	return c.Next()
}

func (g *Gate) logRejection(path string, d Decision) {
	fields := []zap.Field{
		zap.String("path", path),
		zap.String("state", string(d.State)),
		zap.Error(d.Err),
	}
	if d.Subject != "" {
		fields = append(fields, zap.String("subject", d.Subject))
	}
	if apperrors.ToDomainError(d.Err).HTTPStatus >= http.StatusInternalServerError {
		g.logger.Error("authentication failed", fields...)
		return
	}
	g.logger.Info("request rejected", fields...)
}

func (g *Gate) publish(ctx context.Context, event events.Event) {
	if g.dispatcher == nil {
		return
	}
	if err := g.dispatcher.Publish(ctx, event); err != nil {
		g.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// pathMatcher implements the public allow-list: plain entries match
// exactly, entries ending in '*' match by prefix.
type pathMatcher struct {
	exact    map[string]struct{}
	prefixes []string
}

func newPathMatcher(paths []string) pathMatcher {
	m := pathMatcher{exact: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			m.prefixes = append(m.prefixes, prefix)
			continue
		}
		m.exact[p] = struct{}{}
	}
	return m
}

func (m pathMatcher) match(path string) bool {
	if _, ok := m.exact[path]; ok {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
