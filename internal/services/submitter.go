package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elliottgriff/SafeVoice/internal/models"
	"github.com/google/uuid"
)

// SubmitResult is what the remote intake endpoint reports back for an
// accepted submission. TrackingCode may be empty; the store generates one
// locally in that case.
type SubmitResult struct {
	RemoteID     string `json:"id"`
	TrackingCode string `json:"tracking_code"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

// ReportSubmitter is the outbound transport boundary. Implementations only
// signal acceptance or failure; the store owns all state changes.
type ReportSubmitter interface {
	Submit(ctx context.Context, report models.Report) (*SubmitResult, error)
}

// HTTPSubmitter posts the report as JSON to the configured intake URL.
type HTTPSubmitter struct {
	url    string
	client *http.Client
}

func NewHTTPSubmitter(url string, timeout time.Duration) *HTTPSubmitter {
	return &HTTPSubmitter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, report models.Report) (*SubmitResult, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("submit endpoint returned status %d", resp.StatusCode)
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}
	return &result, nil
}

// AcceptAllSubmitter accepts every submission without a network hop. Used
// when SUBMIT_URL is unset (local development); a deployment points
// SUBMIT_URL at the real intake service instead.
type AcceptAllSubmitter struct{}

func (AcceptAllSubmitter) Submit(_ context.Context, report models.Report) (*SubmitResult, error) {
	slog.Warn("no submit endpoint configured, accepting report locally", "report_id", report.ID)
	return &SubmitResult{
		RemoteID: uuid.NewString(),
		Status:   string(models.StatusSubmitted),
		Message:  "accepted",
	}, nil
}
