package handlers

import (
	"github.com/elliottgriff/SafeVoice/internal/dto"
	"github.com/elliottgriff/SafeVoice/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	deviceAuth *services.DeviceAuthService
}

func NewAuthHandler(deviceAuth *services.DeviceAuthService) *AuthHandler {
	return &AuthHandler{deviceAuth: deviceAuth}
}

// DeviceToken issues an anonymous device-session token. The body may carry
// an existing device_id to renew a session; otherwise a new id is minted.
func (h *AuthHandler) DeviceToken(c *fiber.Ctx) error {
	var req dto.DeviceTokenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid request body",
			})
		}
	}

	token, deviceID, err := h.deviceAuth.IssueDeviceToken(req.DeviceID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to issue device token",
		})
	}

	return c.JSON(dto.DeviceTokenResponse{Token: token, DeviceID: deviceID})
}
