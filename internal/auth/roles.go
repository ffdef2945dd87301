package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/table-reservation/internal/domain"
	apperrors "github.com/spec-kit/table-reservation/pkg/util/errorutil"
)

// RequireRole ensures the verified identity has one of the allowed roles.
// The reservation service applies its own access checks; this only rejects
// obviously misrouted callers early.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewVerificationFailed("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[identity.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
