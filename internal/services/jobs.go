// Jobs API client for the vidmark backend
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/vidmark/internal/models"
	"github.com/desertthunder/vidmark/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultHistoryRateLimit bounds history requests per second during
// gap-recovery fan-out.
const DefaultHistoryRateLimit = 5.0

// JobsService queries the backend's job endpoints.
//
// Implements the realtime client's History interface.
type JobsService struct {
	baseURL    string
	httpClient *http.Client
	credential func() (string, error)
	limiter    *rate.Limiter
}

// NewJobsService creates a jobs client.
//
// The credential func supplies the bearer token per request; rateLimit is in
// requests per second and defaults to [DefaultHistoryRateLimit] when <= 0.
func NewJobsService(baseURL string, client *http.Client, credential func() (string, error), rateLimit float64) *JobsService {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}
	if client == nil {
		client = http.DefaultClient
	}
	if credential == nil {
		credential = func() (string, error) { return "", shared.ErrMissingCredentials }
	}
	if rateLimit <= 0 {
		rateLimit = DefaultHistoryRateLimit
	}

	return &JobsService{
		baseURL:    baseURL,
		httpClient: client,
		credential: credential,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// ProgressHistory returns the progress events recorded for a job since the
// given time. A zero since requests the full history.
//
// A non-2xx response is a recoverable per-job failure wrapping
// [shared.ErrAPIRequest]; callers decide whether to surface or skip it.
func (s *JobsService) ProgressHistory(ctx context.Context, jobID string, since time.Time) ([]models.ProgressEvent, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id required", shared.ErrInvalidArgument)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	sinceMS := int64(0)
	if !since.IsZero() {
		sinceMS = since.UnixMilli()
	}

	endpoint := fmt.Sprintf("%s/jobs/%s/progress-history?since=%s",
		s.baseURL, url.PathEscape(jobID), strconv.FormatInt(sinceMS, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	cred, err := s.credential()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cred)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: history request for %s returned %d", shared.ErrAPIRequest, jobID, resp.StatusCode)
	}

	var events []models.ProgressEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to parse history response: %w", err)
	}

	return events, nil
}
