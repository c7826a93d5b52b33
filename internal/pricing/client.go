package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the host serving the public AWS Price List documents.
	DefaultBaseURL = "https://pricing.us-east-1.amazonaws.com"

	// OffersPath is the path of the global offers index.
	OffersPath = "/offers/v1.0/aws/index.json"

	// DefaultTimeout bounds a single document download. Regional EC2
	// documents are several hundred megabytes.
	DefaultTimeout = 10 * time.Minute

	slowFetchThreshold = 30 * time.Second
)

// Document kinds, used in logs and metrics.
const (
	KindOffers      = "offers"
	KindRegionNames = "region_names"
	KindRegionIndex = "region_index"
	KindDocument    = "pricing_document"
)

// Fetcher loads the four data sets a lookup depends on.
type Fetcher interface {
	// Offers returns the global offers index.
	Offers(ctx context.Context) (*OffersIndex, error)

	// RegionNames returns the region code -> human name table.
	RegionNames(ctx context.Context) (RegionNames, error)

	// RegionIndex returns the region index at path (as found in an Offer).
	RegionIndex(ctx context.Context, path string) (*RegionIndex, error)

	// Document returns the pricing document at path (as found in a RegionIndex).
	Document(ctx context.Context, path string) (*Document, error)
}

// Observer is notified after every fetch. metrics.Recorder implements it.
type Observer interface {
	ObserveFetch(kind string, elapsed time.Duration, err error)
}

// StatusError is returned when the pricing host answers with a non-200 status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: bad status: %s", e.URL, e.Status)
}

// Client implements Fetcher against the public Price List HTTP endpoints.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	regionNames []byte
	logger      zerolog.Logger
	observer    Observer
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL. A file:// URL serves documents from
// a local mirror directory.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the HTTP client used for downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each download. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRegionNames replaces the embedded region-name table.
func WithRegionNames(raw []byte) Option {
	return func(c *Client) {
		c.regionNames = raw
	}
}

// WithObserver registers a fetch observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a Client for the public pricing endpoints.
// The provided logger receives fetch diagnostics and slow-download warnings.
// It returns an error if the base URL cannot be parsed.
func NewClient(logger zerolog.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     DefaultBaseURL,
		timeout:     DefaultTimeout,
		regionNames: defaultRegionNames,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
	case "file":
		// Serve a local mirror: file:///srv/mirror + /offers/... -> /srv/mirror/offers/...
		transport := &http.Transport{}
		transport.RegisterProtocol("file", http.NewFileTransport(http.Dir(u.Path)))
		c.httpClient = &http.Client{Transport: transport}
		c.baseURL = "file://"
	default:
		return nil, fmt.Errorf("invalid base URL %q: unsupported scheme %q", c.baseURL, u.Scheme)
	}
	return c, nil
}

// BaseURL returns the effective base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Offers returns the global offers index.
func (c *Client) Offers(ctx context.Context) (*OffersIndex, error) {
	var idx OffersIndex
	if err := c.getJSON(ctx, KindOffers, OffersPath, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// RegionNames parses the configured region-name table. No network is used.
func (c *Client) RegionNames(ctx context.Context) (RegionNames, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := ParseRegionNames(c.regionNames)
	c.observe(KindRegionNames, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// RegionIndex returns the region index at path.
func (c *Client) RegionIndex(ctx context.Context, path string) (*RegionIndex, error) {
	var idx RegionIndex
	if err := c.getJSON(ctx, KindRegionIndex, path, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// Document returns the pricing document at path.
func (c *Client) Document(ctx context.Context, path string) (*Document, error) {
	var doc Document
	if err := c.getJSON(ctx, KindDocument, path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Raw downloads path and returns the body verbatim.
func (c *Client) Raw(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := c.get(ctx, "raw", path, func(r io.Reader) error {
		var err error
		body, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// ResolveURL turns a document path into an absolute URL.
func (c *Client) ResolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) getJSON(ctx context.Context, kind, path string, v any) error {
	return c.get(ctx, kind, path, func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(v); err != nil {
			return fmt.Errorf("invalid JSON response: %w", err)
		}
		return nil
	})
}

func (c *Client) get(ctx context.Context, kind, path string, read func(io.Reader) error) (err error) {
	target := c.ResolveURL(path)
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		c.observe(kind, elapsed, err)
		if elapsed > slowFetchThreshold {
			c.logger.Warn().
				Str("kind", kind).
				Str("url", target).
				Dur("elapsed", elapsed).
				Msg("pricing download took too long")
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("kind", kind).Str("url", target).Msg("fetching pricing data")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Str("url", target).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if err := read(resp.Body); err != nil {
		return fmt.Errorf("%s %s: %w", kind, target, err)
	}
	return nil
}

func (c *Client) observe(kind string, elapsed time.Duration, err error) {
	if c.observer != nil {
		c.observer.ObserveFetch(kind, elapsed, err)
	}
}
