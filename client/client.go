// Package client talks to a remote collection endpoint.
//
// A collection answers three requests:
//
//	GET <base>?page&pageSize&...filters&sort&search -> {data, totalPages, totalRecords}
//	GET <base>/<id>                                 -> single row
//	GET <base>?export=true                          -> CSV payload
//
// Every non-2xx response is normalized to *grid.APIError. The message comes
// from the body's "message" field when present, otherwise from the
// transport.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/gridview/grid"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client  // overrides Timeout when set
	Timeout    time.Duration // per-request timeout, DefaultTimeout when zero
	RateLimit  rate.Limit    // requests per second, unlimited when zero
	Burst      int           // limiter burst, 1 when zero
	Logger     *slog.Logger
}

// Client fetches pages, records and exports from one collection.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New returns a client for the collection at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    20,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 20 * time.Second,
			},
		}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{base: base, http: httpClient, limiter: limiter, logger: logger}, nil
}

// FetchPage implements grid.Source.
func (c *Client) FetchPage(ctx context.Context, view grid.ViewState) (grid.ResultPage, error) {
	u := *c.base
	u.RawQuery = grid.EncodeParams(view).Encode()

	resp, err := c.get(ctx, u.String())
	if err != nil {
		return grid.ResultPage{}, err
	}
	defer resp.Body.Close()

	var page grid.ResultPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return grid.ResultPage{}, grid.AsAPIError(fmt.Errorf("decode page: %w", err))
	}
	if page.Rows == nil {
		page.Rows = []grid.Row{}
	}
	return page, nil
}

// FetchRecord returns the single row identified by id.
func (c *Client) FetchRecord(ctx context.Context, id string) (grid.Row, error) {
	u := c.base.JoinPath(id)

	resp, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var row grid.Row
	if err := json.NewDecoder(resp.Body).Decode(&row); err != nil {
		return nil, grid.AsAPIError(fmt.Errorf("decode record: %w", err))
	}
	return row, nil
}

// Export implements grid.ExportSource. No view parameters are sent.
func (c *Client) Export(ctx context.Context) (io.ReadCloser, error) {
	u := *c.base
	u.RawQuery = url.Values{"export": {"true"}}.Encode()

	resp, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// get performs a GET and returns the response only for 2xx statuses.
func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, grid.AsAPIError(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, grid.AsAPIError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("collection request failed", "url", target, "error", err)
		return nil, grid.AsAPIError(err)
	}

	c.logger.Debug("collection request",
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, normalizeError(resp)
	}
	return resp, nil
}

// normalizeError builds an APIError from a failed response.
func normalizeError(resp *http.Response) *grid.APIError {
	apiErr := &grid.APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		apiErr.Message = payload.Message
	}
	return apiErr
}
