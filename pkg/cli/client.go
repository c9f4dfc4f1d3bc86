package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crewsync/internal/domain"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	HTTPStatus int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.HTTPStatus, e.Message)
}

// Client is a thin HTTP client for the reconciliation service API.
type Client struct {
	baseURL       string
	token         string
	triggerSecret string
	httpClient    *http.Client
}

// NewClient creates a client for the given server. token authenticates the
// dashboard routes; triggerSecret authenticates the trigger routes.
func NewClient(baseURL, token, triggerSecret string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		triggerSecret: triggerSecret,
		httpClient:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.triggerSecret != "" {
		req.Header.Set("X-Trigger-Secret", c.triggerSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return &APIError{HTTPStatus: resp.StatusCode, Message: apiErr.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Reconcile triggers one reconciliation cycle. A nil at uses the server's
// current time as the trigger.
func (c *Client) Reconcile(ctx context.Context, at *time.Time) (*domain.ReconciliationReport, error) {
	query := url.Values{}
	if at != nil {
		query.Set("trigger_time", at.UTC().Format(time.RFC3339))
	}
	var report domain.ReconciliationReport
	if err := c.do(ctx, http.MethodPost, "/v1/reconcile", query, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Teardown deletes every tracked group and its record.
func (c *Client) Teardown(ctx context.Context) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/teardown", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// ListGroups fetches all tracking records.
func (c *Client) ListGroups(ctx context.Context) ([]domain.TrackedGroup, error) {
	var resp struct {
		TrackedGroups []domain.TrackedGroup `json:"tracked_groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/tracked-groups", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.TrackedGroups, nil
}

// GetGroup fetches one tracking record by group id.
func (c *Client) GetGroup(ctx context.Context, groupID string) (*domain.TrackedGroup, error) {
	var g domain.TrackedGroup
	if err := c.do(ctx, http.MethodGet, "/v1/tracked-groups/"+url.PathEscape(groupID), nil, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetTrip fetches one trip by id.
func (c *Client) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	var t domain.Trip
	if err := c.do(ctx, http.MethodGet, "/v1/trips/"+url.PathEscape(tripID), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SeedTrip upserts a trip on a dev server.
func (c *Client) SeedTrip(ctx context.Context, trip *domain.Trip) error {
	return c.do(ctx, http.MethodPost, "/v1/trips", nil, trip, nil)
}
