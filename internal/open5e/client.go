// Package open5e fetches SRD records from the Open5e REST API and converts
// them into store entries.
package open5e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// Defaults for a Client.
const (
	DefaultBaseURL    = "https://api.open5e.com/v1"
	DefaultAPIVersion = "v1"
	DefaultPageSize   = 100
	DefaultMaxPages   = 50
	DefaultDelay      = 100 * time.Millisecond
	DefaultTimeout    = 30 * time.Second
)

// endpoints maps entry types to Open5e collection paths.
var endpoints = map[types.EntryType]string{
	types.Monsters:    "monsters",
	types.Races:       "races",
	types.Classes:     "classes",
	types.Spells:      "spells",
	types.Items:       "magicitems",
	types.Backgrounds: "backgrounds",
}

// Endpoint returns the Open5e collection path for t.
func Endpoint(t types.EntryType) (string, error) {
	ep, ok := endpoints[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidEntryType, t)
	}
	return ep, nil
}

// page is one response of a paginated collection.
type page struct {
	Count   int               `json:"count"`
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

// Client talks to the Open5e API.
type Client struct {
	client     *resty.Client
	baseURL    string
	apiVersion string
	pageSize   int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	apiVersion string
	pageSize   int
	delay      time.Duration
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// WithBaseURL sets the API root, e.g. https://api.open5e.com/v1.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		if url != "" {
			o.baseURL = url
		}
	}
}

// WithAPIVersion sets the version recorded in the sync metadata.
func WithAPIVersion(v string) Option {
	return func(o *clientOptions) {
		if v != "" {
			o.apiVersion = v
		}
	}
}

// WithPageSize sets the limit query parameter of the first request.
func WithPageSize(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithDelay sets the minimum gap between two requests. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		if d >= 0 {
			o.delay = d
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	o := clientOptions{
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
		pageSize:   DefaultPageSize,
		delay:      DefaultDelay,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var r *resty.Client
	if o.httpClient != nil {
		r = resty.NewWithClient(o.httpClient)
	} else {
		r = resty.New()
	}
	r.SetTimeout(o.timeout).
		SetHeader("Accept", "application/json").
		SetLogger(o.logger.Sugar())

	limit := rate.Inf
	if o.delay > 0 {
		limit = rate.Every(o.delay)
	}

	return &Client{
		client:     r,
		baseURL:    strings.TrimRight(o.baseURL, "/"),
		apiVersion: o.apiVersion,
		pageSize:   o.pageSize,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     o.logger,
	}
}

// BaseURL returns the API root the client fetches from.
func (c *Client) BaseURL() string { return c.baseURL }

// APIVersion returns the API version the client targets.
func (c *Client) APIVersion() string { return c.apiVersion }

// FetchPaginated fetches endpoint and follows the next links until the
// last page or maxPages pages (DefaultMaxPages when maxPages <= 0). On a
// failed page it stops and returns the results gathered so far together with
// the error.
func (c *Client) FetchPaginated(ctx context.Context, endpoint string, maxPages int) ([]json.RawMessage, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	url := c.baseURL + "/" + strings.Trim(endpoint, "/") + "/?limit=" + strconv.Itoa(c.pageSize)
	var results []json.RawMessage

	for n := 1; n <= maxPages; n++ {
		p, err := c.getPage(ctx, url)
		if err != nil {
			c.logger.Warn("stopping pagination",
				zap.String("endpoint", endpoint), zap.Int("page", n), zap.Error(err))
			return results, fmt.Errorf("fetching %s page %d: %w", endpoint, n, err)
		}
		results = append(results, p.Results...)
		c.logger.Debug("fetched page",
			zap.String("endpoint", endpoint), zap.Int("page", n),
			zap.Int("results", len(p.Results)), zap.Int("count", p.Count))

		if p.Next == nil || *p.Next == "" {
			return results, nil
		}
		url = *p.Next
	}

	c.logger.Info("page cap reached",
		zap.String("endpoint", endpoint), zap.Int("max_pages", maxPages), zap.Int("results", len(results)))
	return results, nil
}

// getPage waits for the limiter and fetches one page.
func (c *Client) getPage(ctx context.Context, url string) (*page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, errors.Join(ErrUpstream, err)
	}
	if resp.IsError() {
		_, err := toErrorFromResponse(resp)
		return nil, err
	}

	var p page
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return nil, errors.Join(ErrUpstream, fmt.Errorf("decoding page: %w", err))
	}
	return &p, nil
}

// FetchType fetches every record of type t and converts it. Records that do
// not convert are logged and skipped. On a fetch error the entries converted
// so far are returned with the error.
func (c *Client) FetchType(ctx context.Context, t types.EntryType, maxPages int) ([]types.Entry, error) {
	endpoint, err := Endpoint(t)
	if err != nil {
		return nil, err
	}

	raws, fetchErr := c.FetchPaginated(ctx, endpoint, maxPages)

	entries := make([]types.Entry, 0, len(raws))
	skipped := 0
	for i, raw := range raws {
		e, err := Convert(t, raw)
		if err != nil {
			skipped++
			c.logger.Warn("skipping open5e record",
				zap.String("type", string(t)), zap.Int("index", i), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}

	c.logger.Info("fetched type",
		zap.String("type", string(t)), zap.Int("entries", len(entries)), zap.Int("skipped", skipped))
	return entries, fetchErr
}
