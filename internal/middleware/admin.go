package middleware

import (
	"crypto/subtle"

	"github.com/elliottgriff/SafeVoice/internal/config"
	"github.com/elliottgriff/SafeVoice/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired guards the status-feed injection endpoints. There are no
// user accounts to carry a role, so access is a shared token in the
// X-Admin-Token header.
func AdminRequired(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Admin-Token")
		if cfg.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminToken)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access required",
			})
		}
		return c.Next()
	}
}
