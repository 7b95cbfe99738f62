package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/runnerr0/domaintime/internal/tracker"
)

const daemonTimeout = 1 * time.Second

// daemonClient talks to a running `domaintime serve`.
type daemonClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newDaemonClient(baseURL, token string) *daemonClient {
	return &daemonClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: daemonTimeout},
	}
}

// running reports whether the daemon answers its health endpoint.
func (c *daemonClient) running(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// currentTracking asks the daemon for the live session.
func (c *daemonClient) currentTracking(ctx context.Context) (*tracker.Status, error) {
	body, err := json.Marshal(map[string]string{"type": "getCurrentTracking"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query daemon: unexpected status %s", resp.Status)
	}

	var st tracker.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode daemon response: %w", err)
	}
	return &st, nil
}
