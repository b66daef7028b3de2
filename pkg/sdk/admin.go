package sdk

import (
	"context"
	"fmt"
	"net/http"
)

// UsageEntry is one logged chat turn.
type UsageEntry struct {
	Timestamp    int64  `json:"ts"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
}

// UsageLog returns up to limit recent usage entries, newest first.
// limit <= 0 uses the server default.
func (c *Client) UsageLog(ctx context.Context, limit int) ([]UsageEntry, error) {
	path := "/api/v1/usage/log"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	req, err := c.newAdminRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []UsageEntry `json:"items"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// IndexStatus summarizes a completed rebuild.
type IndexStatus struct {
	Documents int   `json:"documents"`
	BuiltAt   int64 `json:"built_at"`
}

// RebuildIndex forces a content index rebuild and returns its summary.
func (c *Client) RebuildIndex(ctx context.Context) (IndexStatus, error) {
	req, err := c.newAdminRequest(ctx, http.MethodPost, "/api/v1/index/rebuild")
	if err != nil {
		return IndexStatus{}, err
	}

	var status IndexStatus
	if err := c.doJSON(req, &status); err != nil {
		return IndexStatus{}, err
	}
	return status, nil
}

// InvalidateIndex drops the cached index; the next turn rebuilds it.
func (c *Client) InvalidateIndex(ctx context.Context) error {
	req, err := c.newAdminRequest(ctx, http.MethodPost, "/api/v1/index/invalidate")
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

// Health reports service and backing-store status.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck queries the health endpoint. A degraded service surfaces as
// an APIError with status 503.
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return Health{}, err
	}

	var health Health
	if err := c.doJSON(req, &health); err != nil {
		return Health{}, err
	}
	return health, nil
}
