// Package datagov reads MGNREGA district figures from the data.gov.in open
// data API.
package datagov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mgnrega/internal/cache"
	"mgnrega/internal/log"
)

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 500

// ErrRateLimited is returned for HTTP 429. Requests are not retried.
var ErrRateLimited = errors.New("data.gov.in rate limit exceeded")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("data.gov.in returned %d: %s", e.Code, e.Body)
}

// Query selects one page of records.
type Query struct {
	StateName string
	FinYear   string
	Offset    int
	Limit     int
}

func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("format", "json")
	v.Set("offset", strconv.Itoa(q.Offset))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.StateName != "" {
		v.Set("filters[state_name]", strings.ToUpper(q.StateName))
	}
	if q.FinYear != "" {
		v.Set("filters[fin_year]", q.FinYear)
	}
	return v
}

// Page is one API response.
type Page struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Count   int      `json:"count"`
	Offset  int      `json:"-"`
}

type Config struct {
	BaseURL    string
	ResourceID string
	APIKey     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	CacheSize  int
}

type Client struct {
	baseURL    string
	resourceID string
	apiKey     string
	httpClient *http.Client
	pages      *cache.LRUCache[Page]
	logger     *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		resourceID: cfg.ResourceID,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pages:      cache.NewLRUCache[Page](cfg.CacheSize, cfg.CacheTTL),
		logger:     logger.WithComponent(log.ComponentDataGov),
	}
}

// Cache exposes the response cache so it can be registered for cleanup.
func (c *Client) Cache() *cache.LRUCache[Page] { return c.pages }

// FetchPage returns one page of records, from cache when a fresh copy exists.
func (c *Client) FetchPage(ctx context.Context, q Query) (Page, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	params := q.values()
	key := params.Encode()

	if p, ok := c.pages.Get(key); ok {
		c.logger.DebugContext(ctx, "Cache hit", "query", key)
		return p, nil
	}

	p, err := c.get(ctx, params)
	if err != nil {
		return Page{}, err
	}
	p.Offset = q.Offset
	c.pages.Set(key, p)
	return p, nil
}

// FetchAll follows pages until total records have been read or a page comes
// back empty.
func (c *Client) FetchAll(ctx context.Context, q Query) ([]Record, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	var all []Record
	for {
		p, err := c.FetchPage(ctx, q)
		if err != nil {
			return all, err
		}
		all = append(all, p.Records...)
		if len(p.Records) == 0 || len(all) >= p.Total {
			return all, nil
		}
		q.Offset += len(p.Records)
	}
}

func (c *Client) get(ctx context.Context, params url.Values) (Page, error) {
	// The key goes on the wire but never into the cache key or logs.
	withKey := url.Values{}
	for k, v := range params {
		withKey[k] = v
	}
	withKey.Set("api-key", c.apiKey)
	endpoint := c.baseURL + "/" + url.PathEscape(c.resourceID) + "?" + withKey.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to reach data.gov.in: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Page{}, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.InfoContext(ctx, "Fetched records page",
		"status", resp.StatusCode,
		"offset", params.Get("offset"),
		log.FieldDuration, time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Page{}, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Page{}, &StatusError{Code: resp.StatusCode, Body: truncateBody(body)}
	}

	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return Page{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return p, nil
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
