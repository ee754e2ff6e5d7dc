package dto

import "github.com/elliottgriff/SafeVoice/internal/models"

type CreateDraftRequest struct {
	Category    models.ReportCategory `json:"category"`
	Content     string                `json:"content"`
	IsAnonymous bool                  `json:"is_anonymous"`
}

type SaveDraftRequest struct {
	Category    models.ReportCategory `json:"category"`
	Content     string                `json:"content"`
	IsAnonymous bool                  `json:"is_anonymous"`
	Contact     *models.ContactInfo   `json:"contact,omitempty"`
	Attachments []models.Attachment   `json:"attachments,omitempty"`
	Location    *models.Location      `json:"location,omitempty"`
}

type SubmitReportRequest struct {
	ID          string                `json:"id,omitempty"`
	Category    models.ReportCategory `json:"category"`
	Content     string                `json:"content"`
	IsAnonymous bool                  `json:"is_anonymous"`
	Contact     *models.ContactInfo   `json:"contact,omitempty"`
	Attachments []models.Attachment   `json:"attachments,omitempty"`
	Location    *models.Location      `json:"location,omitempty"`
}

type StatusUpdateRequest struct {
	NewStatus      models.ReportStatus `json:"new_status"`
	Message        string              `json:"message"`
	ActionRequired bool                `json:"action_required"`
}
