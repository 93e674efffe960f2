// Package watttime implements the carbon.Fetcher contract against the
// WattTime v1 marginal endpoint.
package watttime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"watttime-api/pkg/carbon"
)

const (
	// DefaultBaseURL is the v1 marginal endpoint.
	DefaultBaseURL = "https://api.watttime.org/api/v1/marginal/"

	defaultHTTPTimeout = 30 * time.Second
)

// Client fetches marginal carbon records from the WattTime API. Requests
// carry token authentication; pagination follows the next link until the
// source reports no further pages. The client never retries: transport and
// status failures surface to the caller as-is, bounded only by the HTTP
// client's timeout and the request context.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	observer   carbon.Observer
	pageLimit  int
}

// Option configures a new Client.
type Option func(*Client)

// WithBaseURL overrides the marginal endpoint URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithObserver reports page retrievals to the given observer.
func WithObserver(o carbon.Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithPageLimit caps how many pages a single fetch may follow. Zero means no
// cap; exceeding a configured cap is an error rather than a truncated
// result.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.pageLimit = n
		}
	}
}

// NewClient constructs a WattTime API client. The token is required.
func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, carbon.ErrMissingToken
	}
	client := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		observer:   carbon.NopObserver{},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if client.observer == nil {
		client.observer = carbon.NopObserver{}
	}
	return client, nil
}

// SetObserver swaps the page observer after construction, so a caller can
// share one observer between this client and the carbon.Client on top.
func (c *Client) SetObserver(o carbon.Observer) {
	if o != nil {
		c.observer = o
	}
}

// FetchRaw implements carbon.Fetcher. It issues one GET for the query window
// and then follows next links until exhausted, concatenating page results in
// arrival order.
func (c *Client) FetchRaw(ctx context.Context, start, end time.Time, region, market string, extra map[string]string) ([]carbon.Record, error) {
	query := url.Values{}
	query.Set("ba", region)
	query.Set("market", market)
	query.Set("start_at", start.UTC().Format(time.RFC3339))
	query.Set("end_at", end.UTC().Format(time.RFC3339))
	for k, v := range extra {
		query.Set(k, v)
	}
	next := c.baseURL + "?" + query.Encode()

	var records []carbon.Record
	for pageNum := 1; next != ""; pageNum++ {
		if c.pageLimit > 0 && pageNum > c.pageLimit {
			return nil, fmt.Errorf("watttime: pagination exceeded %d pages for %s/%s", c.pageLimit, region, market)
		}
		p, err := c.getPage(ctx, next)
		if err != nil {
			return nil, err
		}
		c.observer.FetchPage(region, market, pageNum, len(p.Results))
		records = append(records, p.Results...)
		next = p.Next
	}
	return records, nil
}

// getPage performs a single GET against the given URL, which is either the
// initial query or a next link reported by the API.
func (c *Client) getPage(ctx context.Context, rawURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("watttime: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watttime: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("watttime: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("watttime: http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("watttime: decode response: %w", err)
	}
	return &p, nil
}
