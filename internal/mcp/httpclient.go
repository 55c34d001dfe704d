package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
	"github.com/claude/freecoach/internal/workout"
)

// HTTPClient implements DataSource by calling the FreeCoach REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The remote
// server identifies the caller itself, so userID arguments are ignored.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// statusError is a non-200 answer from the remote API.
type statusError struct {
	path   string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("httpclient: %s returned %d: %s", e.path, e.status, e.body)
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &statusError{path: path, status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) ListPlans(ctx context.Context, _ int) ([]models.TrainingPlan, error) {
	var plans []models.TrainingPlan
	if err := c.get(ctx, "/api/v1/plans", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetUserPlan maps a remote 404 onto workout.ErrNotFound.
func (c *HTTPClient) GetUserPlan(ctx context.Context, _ int, planID uuid.UUID) (*models.TrainingPlan, error) {
	var plan models.TrainingPlan
	err := c.get(ctx, "/api/v1/plans/"+planID.String(), nil, &plan)
	if se := (*statusError)(nil); errors.As(err, &se) && se.status == http.StatusNotFound {
		return nil, fmt.Errorf("plan %s: %w", planID, workout.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *HTTPClient) QueryWorkoutLogs(ctx context.Context, start, end time.Time, _ int) ([]models.WorkoutLogRow, error) {
	var logs []models.WorkoutLogRow
	if err := c.get(ctx, "/api/v1/logs", timeParams(start, end), &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *HTTPClient) GetProgress(ctx context.Context, _ int) (*storage.ProgressSummary, error) {
	var p storage.ProgressSummary
	if err := c.get(ctx, "/api/v1/progress", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) ActiveWorkout(ctx context.Context, _ int) (*workout.Progress, error) {
	var p workout.Progress
	if err := c.get(ctx, "/api/v1/workout", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
