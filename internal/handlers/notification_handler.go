package handlers

import (
	"errors"

	"github.com/elliottgriff/SafeVoice/internal/dto"
	"github.com/elliottgriff/SafeVoice/internal/services"
	"github.com/gofiber/fiber/v2"
)

type NotificationHandler struct {
	center *services.NotificationCenter
}

func NewNotificationHandler(center *services.NotificationCenter) *NotificationHandler {
	return &NotificationHandler{center: center}
}

func (h *NotificationHandler) ListPending(c *fiber.Ctx) error {
	return c.JSON(h.center.Pending())
}

func (h *NotificationHandler) ListRead(c *fiber.Ctx) error {
	return c.JSON(h.center.Read())
}

func (h *NotificationHandler) Badge(c *fiber.Ctx) error {
	return c.JSON(dto.BadgeResponse{Badge: h.center.Badge()})
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	if err := h.center.MarkAsRead(c.Params("id")); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to mark notification as read",
		})
	}
	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

func (h *NotificationHandler) ClearAll(c *fiber.Ctx) error {
	h.center.ClearAll()
	return c.JSON(fiber.Map{"message": "Notifications cleared"})
}
