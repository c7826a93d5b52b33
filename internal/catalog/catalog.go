// Package catalog answers one-shot questions (which services, which
// regions, what is this rate code) for the CLI, HTTP and gRPC front-ends.
// Unlike lookup.Controller it keeps no selection state; every call walks
// the offers -> region index -> pricing document chain through the
// fetcher, which is expected to cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/aws-ratecode-checker/internal/picker"
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
)

var (
	ErrUnknownService = errors.New("unknown service")
	ErrUnknownRegion  = errors.New("unknown region")
)

// SKUSource resolves a single SKU without downloading a regional
// document. pricing.QueryClient implements it.
type SKUSource interface {
	SKUDocument(ctx context.Context, service, region, sku string) (*pricing.Document, error)
}

// Metrics receives lookup outcomes.
type Metrics interface {
	ObserveLookup(outcome string, elapsed time.Duration)
}

// Catalog is safe for concurrent use.
type Catalog struct {
	fetcher pricing.Fetcher
	skus    SKUSource
	metrics Metrics
	logger  zerolog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithSKUSource resolves lookups through src instead of the regional
// pricing documents.
func WithSKUSource(src SKUSource) Option {
	return func(c *Catalog) {
		c.skus = src
	}
}

// WithMetrics registers a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

// New returns a Catalog reading through fetcher.
func New(fetcher pricing.Fetcher, logger zerolog.Logger, opts ...Option) *Catalog {
	c := &Catalog{fetcher: fetcher, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Services lists the service keys containing query.
func (c *Catalog) Services(ctx context.Context, query string) ([]picker.Option, error) {
	offers, err := c.fetcher.Offers(ctx)
	if err != nil {
		return nil, err
	}
	return picker.ServiceOptions(offers, query), nil
}

// Regions lists the regions of service whose code or name contains query.
func (c *Catalog) Regions(ctx context.Context, service, query string) ([]picker.Option, error) {
	regions, err := c.regions(ctx, service)
	if err != nil {
		return nil, err
	}
	return picker.RegionOptions(regions, query), nil
}

// Lookup resolves code in service/region. The code is checked before any
// download happens.
func (c *Catalog) Lookup(ctx context.Context, service, region, code string) (res *ratecode.Result, err error) {
	start := time.Now()
	defer func() {
		outcome := ratecode.Outcome(err)
		if errors.Is(err, ErrUnknownService) || errors.Is(err, ErrUnknownRegion) {
			outcome = "unknown_selection"
		}
		if c.metrics != nil {
			c.metrics.ObserveLookup(outcome, time.Since(start))
		}
		c.logger.Debug().
			Str("service", service).
			Str("region", region).
			Str("rate_code", code).
			Str("outcome", outcome).
			Dur("elapsed", time.Since(start)).
			Msg("rate code lookup")
	}()

	code = ratecode.Normalize(code)
	parsed, err := ratecode.Parse(code)
	if err != nil {
		return nil, err
	}

	doc, err := c.document(ctx, service, region, parsed.SKU)
	if err != nil {
		return nil, err
	}
	return ratecode.ResolveCode(doc, parsed)
}

func (c *Catalog) document(ctx context.Context, service, region, sku string) (*pricing.Document, error) {
	if c.skus != nil {
		doc, err := c.skus.SKUDocument(ctx, service, region, sku)
		if errors.Is(err, pricing.ErrQueryRejected) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnknownService, service, err)
		}
		return doc, err
	}

	regions, err := c.regions(ctx, service)
	if err != nil {
		return nil, err
	}
	r, ok := regions[region]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no region %s", ErrUnknownRegion, service, region)
	}
	return c.fetcher.Document(ctx, r.URL)
}

// regions loads the offers index and the name table concurrently, then
// the service's region index.
func (c *Catalog) regions(ctx context.Context, service string) (pricing.Regions, error) {
	var (
		offers *pricing.OffersIndex
		names  pricing.RegionNames
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		offers, err = c.fetcher.Offers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		names, err = c.fetcher.RegionNames(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	offer, ok := offers.Offers[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	idx, err := c.fetcher.RegionIndex(ctx, offer.CurrentRegionIndexURL)
	if err != nil {
		return nil, err
	}
	return pricing.JoinRegions(idx, names), nil
}
