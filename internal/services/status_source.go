package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elliottgriff/SafeVoice/internal/models"
)

// StatusSource is the remote polling boundary the reconciler consults.
// A nil update with a nil error means the remote side has nothing newer.
type StatusSource interface {
	FetchLatestStatus(ctx context.Context, reportID string) (*models.StatusUpdate, error)
}

// HTTPStatusSource polls a case-management feed:
// GET {base}/{reportID} returning a StatusUpdate JSON body, or 204/404
// when no update exists for the report.
type HTTPStatusSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStatusSource(baseURL string, timeout time.Duration) *HTTPStatusSource {
	return &HTTPStatusSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStatusSource) FetchLatestStatus(ctx context.Context, reportID string) (*models.StatusUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+reportID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status fetch failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status feed returned status %d", resp.StatusCode)
	}

	var update models.StatusUpdate
	if err := json.NewDecoder(resp.Body).Decode(&update); err != nil {
		return nil, fmt.Errorf("failed to decode status update: %w", err)
	}
	return &update, nil
}
