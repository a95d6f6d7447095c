// Package ndr implements a client for the national digital resource
// platform: the versioned catalog listing, paginated catalog parts, and the
// per-record detail endpoint that carries source storage locations.
package ndr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://s-file-1.ykt.cbern.com.cn"

	versionPath = "/zxx/ndrs/resources/tch_material/version/data_version.json"
	detailPath  = "/zxx/ndrv2/resources/tch_material/details/%s.json"
)

// Sentinel errors for platform API responses.
var (
	// ErrService indicates a well-formed response signalling server-side
	// failure (non-2xx status).
	ErrService = errors.New("service error")

	// ErrMalformed indicates a 2xx response whose payload could not be
	// decoded into the expected shape.
	ErrMalformed = errors.New("malformed payload")

	// ErrNoSource indicates the detail endpoint returned no usable source
	// storage location (record withdrawn or restricted).
	ErrNoSource = errors.New("no source file for record")
)

// The public endpoints reject requests without browser-like headers.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
	"Referer":         "https://basic.smartedu.cn/",
	"Origin":          "https://basic.smartedu.cn",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
}

// DefaultHeaders returns a copy of the standard request header set so
// callers can extend it without mutating the defaults.
func DefaultHeaders() map[string]string {
	h := make(map[string]string, len(defaultHeaders))
	for k, v := range defaultHeaders {
		h[k] = v
	}
	return h
}

// Client is a read-only client for the platform catalog APIs.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	log        *slog.Logger

	// Catalog part list, fetched once and cached (thread-safe).
	mu    sync.RWMutex
	parts []string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log.With("component", "ndr")
	}
}

// WithHeaders overrides the request headers sent to the platform.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		c.headers = h
	}
}

// New creates a new platform client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		headers: defaultHeaders,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET with the required headers against an absolute URL.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// Parts returns the ordered catalog part URLs from the version endpoint.
// The result is cached for the lifetime of the client.
func (c *Client) Parts(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	cached := c.parts
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	start := time.Now()

	resp, err := c.get(ctx, c.baseURL+versionPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: version endpoint returned %s", ErrService, resp.Status)
	}

	var version versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return nil, fmt.Errorf("%w: decode version response: %v", ErrMalformed, err)
	}
	if version.URLs == "" {
		return nil, fmt.Errorf("%w: version response missing urls", ErrMalformed)
	}

	parts := strings.Split(version.URLs, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	c.mu.Lock()
	c.parts = parts
	c.mu.Unlock()

	if c.log != nil {
		c.log.Debug("fetched catalog parts", "count", len(parts), "duration_ms", time.Since(start).Milliseconds())
	}

	return parts, nil
}

// FetchPage retrieves one page of a catalog. An empty pageToken requests the
// catalog's first page; a non-empty token is the opaque cursor returned by
// the previous page. The returned next token is empty on the final page.
// No retry happens at this layer.
func (c *Client) FetchPage(ctx context.Context, catalogIndex int, pageToken string) ([]RawRecord, string, error) {
	parts, err := c.Parts(ctx)
	if err != nil {
		return nil, "", err
	}
	if catalogIndex < 0 || catalogIndex >= len(parts) {
		return nil, "", fmt.Errorf("catalog index %d out of range [0,%d)", catalogIndex, len(parts))
	}

	pageURL := parts[catalogIndex]
	if pageToken != "" {
		pageURL = pageToken
	}

	start := time.Now()

	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: catalog %d page returned %s", ErrService, catalogIndex, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read catalog page: %w", err)
	}

	records, next, err := decodePage(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: catalog %d: %v", ErrMalformed, catalogIndex, err)
	}

	if c.log != nil {
		c.log.Debug("fetched catalog page", "catalog", catalogIndex, "records", len(records), "has_next", next != "", "duration_ms", time.Since(start).Milliseconds())
	}

	return records, next, nil
}

// decodePage accepts both page shapes: an object with items and a next
// cursor, or a bare array holding a whole catalog in one page.
func decodePage(body []byte) ([]RawRecord, string, error) {
	trimmed := strings.TrimLeftFunc(string(body), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		var records []RawRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, "", fmt.Errorf("decode page array: %v", err)
		}
		return records, "", nil
	}

	var page pagedResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("decode page object: %v", err)
	}
	if page.Items == nil {
		return nil, "", fmt.Errorf("page object missing items")
	}
	return page.Items, page.Next, nil
}

// Resolve looks up a record's current source file location. The storage URLs
// in the detail payload point at private mirror hosts; the returned fragment
// is the mirror-relative path, valid against any of the public mirrors.
func (c *Client) Resolve(ctx context.Context, recordID string) (*ResolvedSource, error) {
	start := time.Now()

	resp, err := c.get(ctx, c.baseURL+fmt.Sprintf(detailPath, url.PathEscape(recordID)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("record %s: %w", recordID, ErrNoSource)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: detail endpoint returned %s", ErrService, resp.Status)
	}

	var detail detailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("%w: decode detail response: %v", ErrMalformed, err)
	}

	fragment := sourceFragment(detail)
	if fragment == "" {
		return nil, fmt.Errorf("record %s: %w", recordID, ErrNoSource)
	}

	if c.log != nil {
		c.log.Debug("resolved record", "id", recordID, "fragment", fragment, "duration_ms", time.Since(start).Milliseconds())
	}

	return &ResolvedSource{ID: recordID, Fragment: fragment, Title: detail.Title}, nil
}

// sourceFragment extracts the mirror-relative path of the first source
// storage entry, or "" if none exists.
func sourceFragment(detail detailResponse) string {
	for _, item := range detail.TiItems {
		if item.TiFileFlag != "source" || len(item.TiStorages) == 0 {
			continue
		}
		for _, storage := range item.TiStorages {
			u, err := url.Parse(storage)
			if err != nil || u.Path == "" {
				continue
			}
			fragment := u.Path
			if u.RawQuery != "" {
				fragment += "?" + u.RawQuery
			}
			return fragment
		}
	}
	return ""
}
