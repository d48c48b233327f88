package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/profile-service/pkg/util"
)

// RequireScope ensures the caller's token carries every listed scope.
func RequireScope(scopes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return apperrors.NewUnauthenticated("authentication required")
		}
		for _, scope := range scopes {
			if !identity.Claims.HasScope(scope) {
				return apperrors.NewForbidden("token lacks required scope")
			}
		}
		return c.Next()
	}
}
