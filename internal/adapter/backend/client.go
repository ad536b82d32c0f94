// Package backend is the HTTP client for the dashboard backend API: paged
// map data, ground-water sample listings, and year-batch index calculation.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
	"github.com/DEMONNN69/hmpi-map-engine/internal/observability"
)

// CredentialProvider supplies the bearer token attached to every request.
// Injecting it keeps the engine testable without ambient token storage.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a CredentialProvider backed by a fixed string.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// StatusError reports a non-success HTTP status from the backend. These are
// retryable by re-issuing the same request; authentication failures are
// mapped to domain.ErrAuthRequired instead.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend API error: status %d: %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client talks to the dashboard backend over HTTP.
type Client struct {
	creds      CredentialProvider
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a backend API client. requestsPerSec caps the page
// request rate so a full scan does not hammer the backend; pass 0 to disable
// limiting.
func NewClient(baseURL string, creds CredentialProvider, timeout time.Duration, requestsPerSec float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if requestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), 1)
	}
	return &Client{
		creds: creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchMapPage retrieves one page of classified map data for the given
// filter via GET /map-data/.
func (c *Client) FetchMapPage(ctx context.Context, filter domain.MapFilter, page int) (domain.MapPage, error) {
	params := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(filter.PageSize)},
	}
	if filter.Fields != "" {
		params.Set("fields", filter.Fields)
	}
	if filter.Year != nil {
		params.Set("year", strconv.Itoa(*filter.Year))
	}

	start := time.Now()
	var result domain.MapPage
	err := c.getJSON(ctx, "/map-data/", params, &result)
	if err != nil {
		return domain.MapPage{}, fmt.Errorf("fetch map page %d: %w", page, err)
	}
	c.metrics.PageFetchDuration.Observe(time.Since(start).Seconds())

	return result, nil
}

// ListSamples retrieves one page of raw ground-water samples via
// GET /ground-water-samples/, the standard count/next/previous/results
// envelope used by the table view.
func (c *Client) ListSamples(ctx context.Context, q domain.SampleQuery) (domain.SampleList, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Year != nil {
		params.Set("year", strconv.Itoa(*q.Year))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}

	var result domain.SampleList
	if err := c.getJSON(ctx, "/ground-water-samples/", params, &result); err != nil {
		return domain.SampleList{}, fmt.Errorf("list samples: %w", err)
	}
	return result, nil
}

// CalculateByYear triggers a year-batch index calculation via
// POST /computed-indices/calculate_by_year/ and returns the backend's result
// verbatim, including the itemized failure lists the dashboard reports from.
func (c *Client) CalculateByYear(ctx context.Context, req domain.YearCalculationRequest) (domain.YearCalculationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.YearCalculationResult{}, fmt.Errorf("calculate by year: encode request: %w", err)
	}

	var result domain.YearCalculationResult
	if err := c.do(ctx, http.MethodPost, "/computed-indices/calculate_by_year/", nil, bytes.NewReader(body), &result); err != nil {
		return domain.YearCalculationResult{}, fmt.Errorf("calculate by year %d: %w", req.Year, err)
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.PageFetchErrors.Inc()
		return fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.metrics.AuthFailures.Inc()
		return fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrAuthRequired)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.PageFetchErrors.Inc()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, URL: path, Body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// token resolves the bearer credential. A nil provider or empty token is an
// authentication precondition failure, reported before any request is made.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", domain.ErrAuthRequired
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve credential: %w: %w", domain.ErrAuthRequired, err)
	}
	if token == "" {
		return "", domain.ErrAuthRequired
	}
	return token, nil
}
