// Package lookup drives the interactive lookup cycle: pick a service, pick
// a region, type a rate code, resolve it.
package lookup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
)

var (
	ErrCatalogNotLoaded = errors.New("service catalog not loaded yet")
	ErrUnknownService   = errors.New("unknown service")
	ErrNoService        = errors.New("no service selected")
	ErrRegionsNotLoaded = errors.New("regions not loaded yet")
	ErrUnknownRegion    = errors.New("unknown region")
)

// Metrics receives lookup outcomes and discarded responses.
// metrics.Recorder implements it.
type Metrics interface {
	ObserveLookup(outcome string, elapsed time.Duration)
	ObserveStaleResponse(kind string)
}

// fetch slots; each holds at most one request in flight.
type slotID int

const (
	slotOffers slotID = iota
	slotNames
	slotRegions
	slotPricing
	numSlots
)

var slotKinds = [numSlots]string{
	slotOffers:  pricing.KindOffers,
	slotNames:   pricing.KindRegionNames,
	slotRegions: pricing.KindRegionIndex,
	slotPricing: pricing.KindDocument,
}

type slot struct {
	gen    uint64
	cancel context.CancelFunc
}

// Controller owns the selection state. All methods are safe for concurrent
// use. Downloads run in the background; a response that arrives after its
// selection was changed is discarded.
type Controller struct {
	fetcher pricing.Fetcher
	logger  zerolog.Logger
	metrics Metrics
	session string

	wg sync.WaitGroup

	mu        sync.Mutex
	base      context.Context
	state     State
	slots     [numSlots]slot
	listeners []func(State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics registers a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithSession overrides the generated session ID.
func WithSession(id string) Option {
	return func(c *Controller) {
		c.session = id
	}
}

// New creates an idle Controller. Call Start to begin loading.
func New(fetcher pricing.Fetcher, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		fetcher: fetcher,
		session: uuid.NewString(),
		base:    context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.With().Str("session", c.session).Logger()
	c.state.Session = c.session
	return c
}

// Subscribe registers fn to be called with a fresh snapshot after every
// state change. fn runs on the goroutine that made the change and may be
// called concurrently; consumers that need ordering should re-read
// Snapshot.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start loads the offers catalog and the region-name table concurrently.
// ctx bounds every download the controller makes from now on.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.base = ctx
	launch(c, slotOffers, c.fetcher.Offers, func(s *State, v *pricing.OffersIndex) {
		s.Offers = v
	})
	launch(c, slotNames, c.fetcher.RegionNames, func(s *State, v pricing.RegionNames) {
		s.RegionNames = v
	})
	c.mu.Unlock()
	c.logger.Debug().Msg("lookup session started")
}

// SelectService selects key, clearing the region and everything derived
// from it. Selecting the current service again does nothing; "" clears the
// selection.
func (c *Controller) SelectService(key string) error {
	c.mu.Lock()
	if key == c.state.Service {
		c.mu.Unlock()
		return nil
	}
	if key != "" {
		if c.state.Offers == nil {
			c.mu.Unlock()
			return ErrCatalogNotLoaded
		}
		if _, ok := c.state.Offers.Offers[key]; !ok {
			c.mu.Unlock()
			return ErrUnknownService
		}
	}

	c.dropLocked(slotRegions)
	c.dropLocked(slotPricing)
	c.state.Service = key
	c.state.Regions = nil
	c.state.Region = ""
	c.clearPricingLocked()
	c.state.FetchErr = nil
	c.fetchRegionsLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug().Str("service", key).Msg("service selected")
	c.notify(snap)
	return nil
}

// SelectRegion selects code, clearing the rate code and any result, and
// starts downloading its pricing document. Selecting the current region
// again does nothing; "" clears the selection.
func (c *Controller) SelectRegion(code string) error {
	c.mu.Lock()
	if code == c.state.Region {
		c.mu.Unlock()
		return nil
	}
	var region pricing.Region
	if code != "" {
		if c.state.Service == "" {
			c.mu.Unlock()
			return ErrNoService
		}
		if c.state.Regions == nil {
			c.mu.Unlock()
			return ErrRegionsNotLoaded
		}
		var ok bool
		if region, ok = c.state.Regions[code]; !ok {
			c.mu.Unlock()
			return ErrUnknownRegion
		}
	}

	c.dropLocked(slotPricing)
	c.state.Region = code
	c.clearPricingLocked()
	c.state.FetchErr = nil
	if code != "" {
		launch(c, slotPricing, func(ctx context.Context) (*pricing.Document, error) {
			return c.fetcher.Document(ctx, region.URL)
		}, func(s *State, v *pricing.Document) {
			s.Document = v
		})
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug().Str("service", snap.Service).Str("region", code).Msg("region selected")
	c.notify(snap)
	return nil
}

// SetInput records the rate code being typed. Any shown result is
// cleared; a format error is only reported once the input is long enough
// to be complete.
func (c *Controller) SetInput(text string) {
	text = strings.ToUpper(text)

	c.mu.Lock()
	if text == c.state.Input {
		c.mu.Unlock()
		return
	}
	c.state.Input = text
	c.state.Result = nil
	c.state.InputErr = ratecode.CheckFormat(text)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// Confirm resolves the current input against the loaded pricing document.
// Any failure clears the previous result.
func (c *Controller) Confirm() (*ratecode.Result, error) {
	start := time.Now()

	c.mu.Lock()
	res, err := ratecode.Resolve(c.state.Document, c.state.Input)
	c.state.Result = res
	c.state.InputErr = err
	snap := c.snapshotLocked()
	c.mu.Unlock()

	outcome := ratecode.Outcome(err)
	if c.metrics != nil {
		c.metrics.ObserveLookup(outcome, time.Since(start))
	}
	c.logger.Debug().
		Str("service", snap.Service).
		Str("region", snap.Region).
		Str("rate_code", snap.Input).
		Str("outcome", outcome).
		Msg("rate code lookup")
	c.notify(snap)
	return res, err
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until no download is in flight.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels every download in flight and waits for them to return.
func (c *Controller) Close() {
	c.mu.Lock()
	for s := range numSlots {
		c.dropLocked(s)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) snapshotLocked() State {
	return c.state
}

func (c *Controller) clearPricingLocked() {
	c.state.Document = nil
	c.state.Input = ""
	c.state.InputErr = nil
	c.state.Result = nil
}

// fetchRegionsLocked starts the region index download once a service is
// selected and both the catalog and the name table are present.
func (c *Controller) fetchRegionsLocked() {
	st := c.state
	if st.Service == "" || st.Offers == nil || st.RegionNames == nil || st.Regions != nil {
		return
	}
	if c.slots[slotRegions].cancel != nil {
		return
	}
	offer, ok := st.Offers.Offers[st.Service]
	if !ok {
		return
	}
	names := st.RegionNames
	launch(c, slotRegions, func(ctx context.Context) (*pricing.RegionIndex, error) {
		return c.fetcher.RegionIndex(ctx, offer.CurrentRegionIndexURL)
	}, func(s *State, v *pricing.RegionIndex) {
		s.Regions = pricing.JoinRegions(v, names)
		if s.Regions == nil {
			s.Regions = pricing.Regions{}
		}
	})
}

// dropLocked cancels the request in slot s and invalidates its response.
func (c *Controller) dropLocked(s slotID) {
	sl := &c.slots[s]
	if sl.cancel != nil {
		sl.cancel()
		sl.cancel = nil
	}
	sl.gen++
}

// launch starts fetch in the background under slot s, replacing whatever
// the slot was doing. On success apply runs under the lock, unless the slot
// has moved on in the meantime. c.mu must be held.
func launch[T any](c *Controller, s slotID, fetch func(context.Context) (T, error), apply func(*State, T)) {
	c.dropLocked(s)
	sl := &c.slots[s]
	gen := sl.gen
	ctx, cancel := context.WithCancel(c.base)
	sl.cancel = cancel
	kind := slotKinds[s]

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		start := time.Now()
		v, err := fetch(ctx)

		c.mu.Lock()
		if c.slots[s].gen != gen {
			c.mu.Unlock()
			c.logger.Debug().Str("kind", kind).Msg("discarding stale response")
			if c.metrics != nil {
				c.metrics.ObserveStaleResponse(kind)
			}
			return
		}
		c.slots[s].cancel = nil
		if err != nil {
			c.state.FetchErr = err
		} else {
			apply(&c.state, v)
			// The catalog or the name table may complete a pending region fetch.
			c.fetchRegionsLocked()
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.logger.Debug().Str("kind", kind).Msg("download canceled")
			} else {
				c.logger.Error().Err(err).Str("kind", kind).Dur("elapsed", time.Since(start)).Msg("failed to load pricing data")
			}
		} else {
			c.logger.Debug().Str("kind", kind).Dur("elapsed", time.Since(start)).Msg("pricing data loaded")
		}
		c.notify(snap)
	}()
}

func (c *Controller) notify(snap State) {
	c.mu.Lock()
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
