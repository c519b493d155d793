// Package waitlist writes landing-page signups into a Notion database.
//
// The client is a thin REST wrapper over the Notion pages API with outbound
// pacing (Notion allows roughly 3 requests per second per integration),
// retry with backoff for transient failures, and a typed error taxonomy the
// HTTP handler maps onto response codes.
package waitlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	notionPagesURL = "https://api.notion.com/v1/pages"
	notionVersion  = "2022-06-28"

	// Notion's published integration limit is an average of 3 req/s.
	notionRequestsPerSecond = 3.0
	notionBurst             = 3
)

// NotionConfig contains configuration for the Notion waitlist client.
type NotionConfig struct {
	// APIKey is the internal integration secret.
	APIKey string

	// DatabaseID identifies the waitlist database the integration writes to.
	DatabaseID string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// Configured reports whether both credentials are present.
func (c NotionConfig) Configured() bool {
	return c.APIKey != "" && c.DatabaseID != ""
}

// NotionClient appends waitlist signups to a Notion database.
type NotionClient struct {
	config     NotionConfig
	httpClient *http.Client
	pacer      *rate.Limiter
	pagesURL   string
	now        func() time.Time
}

// NewNotionClient creates a NotionClient. A zero Timeout defaults to 10s.
func NewNotionClient(config NotionConfig) *NotionClient {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &NotionClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		pacer:      rate.NewLimiter(rate.Limit(notionRequestsPerSecond), notionBurst),
		pagesURL:   notionPagesURL,
		now:        time.Now,
	}
}

// notionErrorResponse is the error body shape from the Notion API.
type notionErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AddSignup validates the signup and creates a page in the waitlist database.
// The page uses email for the title column, with Source fixed to "website"
// and Status to "New" so the CRM views pick it up unsorted.
func (c *NotionClient) AddSignup(ctx context.Context, signup Signup) error {
	if !c.config.Configured() {
		return ErrNotConfigured
	}
	if err := signup.Validate(); err != nil {
		return err
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("outbound pacing: %w", err)
	}

	return c.createPageWithRetry(ctx, signup)
}

// buildPagePayload assembles the Notion page-create body for one signup.
func (c *NotionClient) buildPagePayload(signup Signup) map[string]any {
	now := c.now().UTC().Format(time.RFC3339)

	return map[string]any{
		"parent": map[string]any{"database_id": c.config.DatabaseID},
		"properties": map[string]any{
			"Name": map[string]any{
				"title": []map[string]any{
					{"text": map[string]any{"content": signup.Email}},
				},
			},
			"Email": map[string]any{"email": signup.Email},
			"Role": map[string]any{
				"select": map[string]any{"name": RoleDisplayName(signup.Role)},
			},
			"Source": map[string]any{
				"rich_text": []map[string]any{
					{"text": map[string]any{"content": "website"}},
				},
			},
			"Status": map[string]any{
				"select": map[string]any{"name": "New"},
			},
			"Signup Date": map[string]any{
				"date": map[string]any{"start": now},
			},
			"Created At": map[string]any{
				"date": map[string]any{"start": now},
			},
		},
	}
}

// createPage performs one page-create request and classifies the response.
func (c *NotionClient) createPage(ctx context.Context, signup Signup) error {
	body, err := json.Marshal(c.buildPagePayload(signup))
	if err != nil {
		return fmt.Errorf("marshal page payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pagesURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr notionErrorResponse
	_ = json.Unmarshal(respBody, &apiErr)

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    "Notion rate limit exceeded",
			RetryAfter: retryAfterFrom(resp),
		}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
		}
	}
	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.Message,
		}
	}

	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
}

// createPageWithRetry retries transient failures once with a short backoff.
// 429 waits for the server-provided retry_after; client errors fail
// immediately since resubmitting the same payload cannot help.
func (c *NotionClient) createPageWithRetry(ctx context.Context, signup Signup) error {
	const (
		maxAttempts   = 2
		baseDelay     = 500 * time.Millisecond
		maxRetryAfter = 3 * time.Second
	)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.createPage(ctx, signup)
		if err == nil {
			slog.Info("waitlist signup stored",
				slog.String("role", RoleDisplayName(signup.Role)),
				slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := baseDelay * time.Duration(attempt)
		if rateLimitErr, ok := is429Error(err); ok {
			delay = rateLimitErr.RetryAfter
			if delay <= 0 || delay > maxRetryAfter {
				// The caller is a waiting HTTP request; bubble the 429
				// up instead of holding the connection open.
				return err
			}
		} else if !isRetryableError(err) {
			return err
		}

		slog.Warn("notion page create failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// retryAfterFrom parses the Retry-After header, if present.
func retryAfterFrom(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
