package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Result mirrors the server's answer to a plan upload.
type Result struct {
	Upserted int `json:"upserted"`
	Plans    []struct {
		ID         uuid.UUID `json:"id"`
		Name       string    `json:"name"`
		AssignedTo string    `json:"assigned_to"`
		UserID     int       `json:"user_id"`
	} `json:"plans"`
}

// Client sends plan files to the FreeCoach server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	backoff    time.Duration
	httpClient *http.Client
}

// NewClient creates a new HTTP client for the FreeCoach server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		backoff:   time.Second,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SendPlans POSTs a plan file to the server's plan endpoint.
// Retries up to 3 times with exponential backoff on network errors and 5xx
// answers; a rejected file (4xx) is returned at once.
func (c *Client) SendPlans(ctx context.Context, data []byte) (*Result, error) {
	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/plans", bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/yaml")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			var result Result
			if err := json.Unmarshal(body, &result); err != nil {
				return nil, fmt.Errorf("decoding upload result: %w", err)
			}
			return &result, nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, fmt.Errorf("plan upload rejected (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		lastErr = fmt.Errorf("plan upload failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}
