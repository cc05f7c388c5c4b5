package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-service/internal/domain"
)

const principalKey = "auth_principal"

type principalCtxKey struct{}

// WithPrincipal publishes p for the rest of the request, both in fiber
// locals and in the user context handed to services.
func WithPrincipal(c *fiber.Ctx, p *domain.Principal) {
	c.Locals(principalKey, p)
	c.SetUserContext(context.WithValue(c.UserContext(), principalCtxKey{}, p))
}

// ClearPrincipal drops any principal attached to the request.
func ClearPrincipal(c *fiber.Ctx) {
	c.Locals(principalKey, nil)
	c.SetUserContext(context.WithValue(c.UserContext(), principalCtxKey{}, (*domain.Principal)(nil)))
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}

// PrincipalFrom reads the caller from a context.Context derived from the
// request's user context.
func PrincipalFrom(ctx context.Context) (*domain.Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey{}).(*domain.Principal)
	return principal, ok && principal != nil
}
