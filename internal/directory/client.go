// Package directory is a typed wrapper over the remote group-management API:
// a Graph-style JSON-over-HTTPS REST surface with eventually-consistent
// propagation between dependent resources.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"crewsync/internal/domain"
)

// Compile-time check that Client implements the engine's Directory port.
var _ domain.Directory = (*Client)(nil)

// Conversion retry policy: the group → managed-group conversion races
// directory propagation, so not-found and server errors are retried with a
// fixed delay before giving up.
const (
	defaultConvertAttempts = 5
	defaultConvertDelay    = 10 * time.Second
)

// Client talks to the directory API. All operations obtain a bearer token
// from the injected TokenSource first; the source decides how (and whether)
// to refresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger

	convertAttempts int
	convertDelay    time.Duration
}

// Options tunes client behaviour. Zero values select defaults.
type Options struct {
	HTTPClient      *http.Client
	ConvertAttempts int           // managed-group conversion attempts (default 5)
	ConvertDelay    time.Duration // delay between conversion attempts (default 10s)
}

// NewClient creates a directory client for the given API base URL.
func NewClient(baseURL string, tokens TokenSource, logger *slog.Logger, opts ...Options) *Client {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.ConvertAttempts <= 0 {
		o.ConvertAttempts = defaultConvertAttempts
	}
	if o.ConvertDelay <= 0 {
		o.ConvertDelay = defaultConvertDelay
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      o.HTTPClient,
		tokens:          tokens,
		logger:          logger,
		convertAttempts: o.ConvertAttempts,
		convertDelay:    o.ConvertDelay,
	}
}

// graphError is the wire shape of a directory error response.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do issues one authenticated request. out may be nil for operations whose
// response body is irrelevant.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(raw) > 0 {
		var ge graphError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
			apiErr.Code = ge.Error.Code
			apiErr.Message = ge.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
