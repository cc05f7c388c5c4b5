package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/config"
	"github.com/spec-kit/session-service/internal/domain"
	"github.com/spec-kit/session-service/internal/events"
	"github.com/spec-kit/session-service/internal/observability"
	"github.com/spec-kit/session-service/internal/testutil"
	apperrors "github.com/spec-kit/session-service/pkg/util/errorutil"
)

type gateFixture struct {
	app     *fiber.App
	gate    *Gate
	codec   *TokenCodec
	store   *testutil.RefreshStore
	metrics *observability.Metrics
	events  []events.Event
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenTTL:     30 * time.Minute,
		RefreshTokenTTL:    14 * 24 * time.Hour,
		RevocationPolicy:   config.RevocationImmediate,
		RotateRefreshToken: true,
		ReissueHeader:      "Authorization",
		PublicPaths:        []string{"/users", "/users/login", "/health/*"},
	}
}

func newGateFixture(t *testing.T, mutate func(*config.AuthConfig)) *gateFixture {
	t.Helper()
	cfg := testAuthConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	f := &gateFixture{
		codec:   newTestCodec(t),
		store:   testutil.NewRefreshStore(),
		metrics: observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventSessionReissue, func(_ context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	})
	f.gate = NewGate(f.codec, f.store, cfg, dispatcher, f.metrics, zap.NewNop())

	f.app = fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
		},
	})
	f.app.Use(f.gate.Handle)
	f.app.Get("/users/me", func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrTeapot
		}
		if fromCtx, ok := PrincipalFrom(c.UserContext()); !ok || fromCtx != p {
			return fiber.ErrTeapot
		}
		return c.JSON(fiber.Map{"subject": p.Subject, "role": p.Role})
	})
	f.app.Get("/users/login", func(c *fiber.Ctx) error {
		_, ok := PrincipalFromContext(c)
		return c.JSON(fiber.Map{"authenticated": ok})
	})
	f.app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	f.app.Get("/admin", RequireRole(domain.RoleManager), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	return f
}

func (f *gateFixture) mintExpiredAccess(t *testing.T, subject string, role domain.Role) string {
	t.Helper()
	f.codec.now = func() time.Time { return time.Now().Add(-time.Hour) }
	defer func() { f.codec.now = time.Now }()
	token, _, err := f.codec.Mint(domain.TokenKindAccess, subject, role, 30*time.Minute)
	require.NoError(t, err)
	return token
}

func (f *gateFixture) mint(t *testing.T, kind domain.TokenKind, subject string, role domain.Role) string {
	t.Helper()
	token, _, err := f.codec.Mint(kind, subject, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *gateFixture) do(t *testing.T, path, authorization string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload map[string]any
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(body, &payload))
	}
	return resp, payload
}

func TestGate_PublicPathsSkipAuthentication(t *testing.T) {
	f := newGateFixture(t, nil)

	resp, body := f.do(t, "/users/login", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["authenticated"])

	resp, _ = f.do(t, "/health/live", "Bearer garbage")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, int64(2), f.metrics.Snapshot().Decisions[string(StatePublicPath)])
}

func TestGate_MissingOrMalformedHeader(t *testing.T) {
	f := newGateFixture(t, nil)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer    "} {
		resp, body := f.do(t, "/users/me", header)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q", header)
		assert.Equal(t, "MISSING_TOKEN", body["code"])
	}
}

func TestGate_AccessValid(t *testing.T) {
	f := newGateFixture(t, nil)
	f.store.Put("alice", f.mint(t, domain.TokenKindRefresh, "alice", domain.RoleUser))

	resp, body := f.do(t, "/users/me", "Bearer "+f.mint(t, domain.TokenKindAccess, "alice", domain.RoleUser))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["subject"])
	assert.Empty(t, resp.Header.Get("Authorization"), "no reissue for a live token")
	assert.Equal(t, int64(1), f.metrics.Snapshot().Decisions[string(StateAccessValid)])
}

func TestGate_ValidAccessWithoutSessionIsRejected(t *testing.T) {
	f := newGateFixture(t, nil)

	resp, body := f.do(t, "/users/me", "Bearer "+f.mint(t, domain.TokenKindAccess, "alice", domain.RoleUser))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "NO_ACTIVE_SESSION", body["code"])
}

func TestGate_EventualPolicyHonorsLiveAccessToken(t *testing.T) {
	f := newGateFixture(t, func(c *config.AuthConfig) { c.RevocationPolicy = config.RevocationEventual })

	resp, body := f.do(t, "/users/me", "Bearer "+f.mint(t, domain.TokenKindAccess, "alice", domain.RoleUser))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["subject"])

	resp, body = f.do(t, "/users/me", "Bearer "+f.mintExpiredAccess(t, "alice", domain.RoleUser))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "NO_ACTIVE_SESSION", body["code"])
}

func TestGate_SilentReissue(t *testing.T) {
	f := newGateFixture(t, nil)
	original := f.mint(t, domain.TokenKindRefresh, "alice", domain.RoleManager)
	f.store.Put("alice", original)
	expired := f.mintExpiredAccess(t, "alice", domain.RoleManager)

	resp, body := f.do(t, "/users/me", "Bearer "+expired)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["subject"])
	assert.Equal(t, string(domain.RoleManager), body["role"])

	header := resp.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(header, "Bearer "))
	reissued, err := f.codec.Decode(strings.TrimPrefix(header, "Bearer "))
	require.NoError(t, err)
	assert.Equal(t, "alice", reissued.Subject)
	assert.Equal(t, domain.TokenKindAccess, reissued.Kind)
	assert.True(t, reissued.ExpiresAt.After(time.Now()))

	rotated, ok := f.store.Peek("alice")
	require.True(t, ok)
	assert.NotEqual(t, original, rotated, "refresh token must rotate on reissue")
	assert.False(t, f.store.Validate(context.Background(), "alice", original))

	require.Len(t, f.events, 1)
	assert.Equal(t, "alice", f.events[0].Subject)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Decisions[string(StateAccessExpiredRefreshValid)])
}

func TestGate_ReissueWithoutRotation(t *testing.T) {
	f := newGateFixture(t, func(c *config.AuthConfig) { c.RotateRefreshToken = false })
	original := f.mint(t, domain.TokenKindRefresh, "alice", domain.RoleUser)
	f.store.Put("alice", original)

	resp, _ := f.do(t, "/users/me", "Bearer "+f.mintExpiredAccess(t, "alice", domain.RoleUser))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Authorization"))

	stored, _ := f.store.Peek("alice")
	assert.Equal(t, original, stored)
	assert.Zero(t, f.store.Saves)
}

func TestGate_ReissueRejectsBadStoredToken(t *testing.T) {
	tests := []struct {
		name   string
		stored func(f *gateFixture) string
	}{
		{name: "belongs to another subject", stored: func(f *gateFixture) string {
			return f.mint(t, domain.TokenKindRefresh, "bob", domain.RoleUser)
		}},
		{name: "is an access token", stored: func(f *gateFixture) string {
			return f.mint(t, domain.TokenKindAccess, "alice", domain.RoleUser)
		}},
		{name: "is garbage", stored: func(*gateFixture) string { return "garbage" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture(t, nil)
			f.store.Put("alice", tt.stored(f))

			resp, body := f.do(t, "/users/me", "Bearer "+f.mintExpiredAccess(t, "alice", domain.RoleUser))
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "INVALID_REFRESH_TOKEN", body["code"])
			assert.Empty(t, resp.Header.Get("Authorization"))
		})
	}
}

func TestGate_ReissueStoreWriteFailure(t *testing.T) {
	f := newGateFixture(t, nil)
	f.store.Put("alice", f.mint(t, domain.TokenKindRefresh, "alice", domain.RoleUser))
	f.store.SaveErr = domain.ErrStoreWriteFailed

	resp, body := f.do(t, "/users/me", "Bearer "+f.mintExpiredAccess(t, "alice", domain.RoleUser))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "STORE_WRITE_FAILED", body["code"])
	assert.Empty(t, resp.Header.Get("Authorization"))
}

func TestGate_StoreOutageForcesReauthentication(t *testing.T) {
	f := newGateFixture(t, nil)
	f.store.Put("alice", f.mint(t, domain.TokenKindRefresh, "alice", domain.RoleUser))
	f.store.Down = true

	resp, body := f.do(t, "/users/me", "Bearer "+f.mint(t, domain.TokenKindAccess, "alice", domain.RoleUser))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "NO_ACTIVE_SESSION", body["code"])
}

func TestGate_RejectsWrongTokenKind(t *testing.T) {
	f := newGateFixture(t, nil)
	refresh := f.mint(t, domain.TokenKindRefresh, "alice", domain.RoleUser)
	f.store.Put("alice", refresh)

	resp, body := f.do(t, "/users/me", "Bearer "+refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MALFORMED_TOKEN", body["code"])
}

func TestGate_RejectsForgedToken(t *testing.T) {
	f := newGateFixture(t, nil)

	resp, body := f.do(t, "/users/me", "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MALFORMED_TOKEN", body["code"])
	assert.Equal(t, int64(1), f.metrics.Snapshot().Decisions[string(StateInvalid)])
}

func TestRequireRole(t *testing.T) {
	f := newGateFixture(t, nil)
	f.store.Put("alice", f.mint(t, domain.TokenKindRefresh, "alice", domain.RoleUser))
	f.store.Put("boss", f.mint(t, domain.TokenKindRefresh, "boss", domain.RoleManager))

	resp, body := f.do(t, "/admin", "Bearer "+f.mint(t, domain.TokenKindAccess, "alice", domain.RoleUser))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["code"])

	resp, _ = f.do(t, "/admin", "Bearer "+f.mint(t, domain.TokenKindAccess, "boss", domain.RoleManager))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestPathMatcher(t *testing.T) {
	m := newPathMatcher([]string{"/users", " /docs/* ", ""})
	assert.True(t, m.match("/users"))
	assert.False(t, m.match("/users/me"))
	assert.True(t, m.match("/docs/index.html"))
	assert.False(t, m.match("/doc"))
}
