package handlers

import (
	"errors"

	"github.com/elliottgriff/SafeVoice/internal/config"
	"github.com/elliottgriff/SafeVoice/internal/dto"
	"github.com/elliottgriff/SafeVoice/internal/models"
	"github.com/elliottgriff/SafeVoice/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	store  *services.ReportStore
	center *services.NotificationCenter
	cfg    *config.Config
}

func NewReportHandler(store *services.ReportStore, center *services.NotificationCenter, cfg *config.Config) *ReportHandler {
	return &ReportHandler{store: store, center: center, cfg: cfg}
}

func (h *ReportHandler) CreateDraft(c *fiber.Ctx) error {
	var req dto.CreateDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	report, err := h.store.CreateDraft(req.Category, req.Content, req.IsAnonymous)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	h.center.ScheduleDraftReminder(report.ID, h.cfg.DraftReminderAfter)
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *ReportHandler) SaveDraft(c *fiber.Ctx) error {
	var req dto.SaveDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	report, err := h.store.SaveDraft(models.Report{
		ID:          c.Params("id"),
		Category:    req.Category,
		Content:     req.Content,
		IsAnonymous: req.IsAnonymous,
		Contact:     req.Contact,
		Attachments: req.Attachments,
		Location:    req.Location,
	})
	if err != nil {
		if errors.Is(err, services.ErrDraftResubmit) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	return c.JSON(report)
}

func (h *ReportHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	report, err := h.store.Submit(c.Context(), models.Report{
		ID:          req.ID,
		Category:    req.Category,
		Content:     req.Content,
		IsAnonymous: req.IsAnonymous,
		Contact:     req.Contact,
		Attachments: req.Attachments,
		Location:    req.Location,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyContent), errors.Is(err, services.ErrInvalidCategory):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrAlreadySubmitted):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrReportNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			// Submission failed upstream; the report was not mutated and
			// the client may retry.
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: true, Message: "Submission failed, please try again",
			})
		}
	}

	// The draft made it out the door, so its reminder is obsolete.
	h.center.CancelScheduled(report.ID)
	h.center.ScheduleCheckIn(report.ID, h.cfg.CheckInAfter)
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *ReportHandler) Get(c *fiber.Ctx) error {
	report, ok := h.store.GetReport(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Report not found",
		})
	}
	return c.JSON(report)
}

func (h *ReportHandler) ListActive(c *fiber.Ctx) error {
	return c.JSON(h.store.ListActive())
}

func (h *ReportHandler) ListDrafts(c *fiber.Ctx) error {
	return c.JSON(h.store.ListDrafts())
}

func (h *ReportHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	h.store.DeleteReport(id)
	h.center.CancelScheduled(id)
	// Deleting an unknown id is a success by design.
	return c.JSON(fiber.Map{"message": "Report deleted"})
}

// AddStatusUpdate is the admin status-feed injection endpoint, used when a
// case manager pushes a transition instead of the poll loop pulling it.
func (h *ReportHandler) AddStatusUpdate(c *fiber.Ctx) error {
	var req dto.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	report, err := h.store.AddStatusUpdate(c.Params("id"), models.StatusUpdate{
		NewStatus:      req.NewStatus,
		Message:        req.Message,
		ActionRequired: req.ActionRequired,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReportNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrInvalidTransition):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to apply status update",
			})
		}
	}

	return c.JSON(report)
}
