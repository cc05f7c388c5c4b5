package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-service/internal/domain"
	apperrors "github.com/spec-kit/session-service/pkg/util/errorutil"
)

// RequireAuthenticated rejects requests that reached the route without a
// principal, e.g. on a path listed as public.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return domain.ErrMissingToken
		}
		return c.Next()
	}
}

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return domain.ErrMissingToken
		}
		for _, role := range allowed {
			if principal.HasRole(role) {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient role")
	}
}
