// Package mirror copies a subset of the public price list into a local
// directory laid out like the upstream host, so that a file:// base URL
// can serve later lookups offline.
//
// A mirror run fails fast: any download error aborts it. Documents are
// written before the region indexes that point at them, and the offers
// index is written last, so an aborted run never leaves an index that
// references a missing file.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/aws-ratecode-checker/internal/pricing"
)

// DefaultConcurrency bounds parallel document downloads.
const DefaultConcurrency = 4

var ErrNoServices = errors.New("no services selected")

// Source returns raw response bodies. *pricing.Client implements it.
type Source interface {
	Raw(ctx context.Context, path string) ([]byte, error)
}

// Mirror writes price list files under a root directory of fs.
type Mirror struct {
	src         Source
	fs          afero.Fs
	root        string
	concurrency int
	logger      zerolog.Logger
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithConcurrency sets the number of parallel document downloads.
func WithConcurrency(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// New returns a Mirror writing to root on fs.
func New(src Source, fs afero.Fs, root string, logger zerolog.Logger, opts ...Option) *Mirror {
	m := &Mirror{
		src:         src,
		fs:          fs,
		root:        root,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Report summarizes a finished run.
type Report struct {
	Services  []string
	Documents int
	Bytes     int64
}

// Run mirrors the given services. An empty regions list mirrors every
// region the service publishes; otherwise regions a service does not
// publish are skipped with a warning.
func (m *Mirror) Run(ctx context.Context, services, regions []string) (*Report, error) {
	services = clean(services)
	if len(services) == 0 {
		return nil, ErrNoServices
	}
	wantRegion := make(map[string]bool, len(regions))
	for _, r := range clean(regions) {
		wantRegion[r] = true
	}

	raw, err := m.src.Raw(ctx, pricing.OffersPath)
	if err != nil {
		return nil, fmt.Errorf("offers index: %w", err)
	}
	var offers pricing.OffersIndex
	if err := json.Unmarshal(raw, &offers); err != nil {
		return nil, fmt.Errorf("offers index: invalid JSON: %w", err)
	}

	kept := make(map[string]pricing.Offer, len(services))
	indexes := make(map[string]*pricing.RegionIndex, len(services))
	for _, svc := range services {
		offer, ok := offers.Offers[svc]
		if !ok {
			return nil, fmt.Errorf("unknown service code: %s", svc)
		}
		idx, err := m.regionIndex(ctx, offer.CurrentRegionIndexURL)
		if err != nil {
			return nil, fmt.Errorf("%s region index: %w", svc, err)
		}
		if len(wantRegion) > 0 {
			for code := range idx.Regions {
				if !wantRegion[code] {
					delete(idx.Regions, code)
				}
			}
			if len(idx.Regions) == 0 {
				m.logger.Warn().Str("service", svc).Msg("service has none of the requested regions")
			}
		}
		kept[svc] = offer
		indexes[offer.CurrentRegionIndexURL] = idx
	}

	report := &Report{Services: services}
	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, idx := range indexes {
		for code, entry := range idx.Regions {
			g.Go(func() error {
				body, err := m.src.Raw(gctx, entry.CurrentVersionURL)
				if err != nil {
					return fmt.Errorf("%s document: %w", code, err)
				}
				if err := m.write(entry.CurrentVersionURL, body); err != nil {
					return err
				}
				written.Add(int64(len(body)))
				m.logger.Info().
					Str("region", code).
					Str("path", entry.CurrentVersionURL).
					Int("bytes", len(body)).
					Msg("mirrored pricing document")
				return nil
			})
			report.Documents++
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.Bytes = written.Load()

	for p, idx := range indexes {
		if err := m.writeJSON(p, idx); err != nil {
			return nil, err
		}
	}
	offers.Offers = kept
	if err := m.writeJSON(pricing.OffersPath, &offers); err != nil {
		return nil, err
	}
	return report, nil
}

// BaseURL is the file:// URL that serves the mirror.
func (m *Mirror) BaseURL() (string, error) {
	abs, err := filepath.Abs(m.root)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func (m *Mirror) regionIndex(ctx context.Context, p string) (*pricing.RegionIndex, error) {
	raw, err := m.src.Raw(ctx, p)
	if err != nil {
		return nil, err
	}
	var idx pricing.RegionIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &idx, nil
}

func (m *Mirror) writeJSON(p string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return m.write(p, body)
}

// write stores data at the local path for the upstream path p, through a
// temp file and rename so readers never see a partial file.
func (m *Mirror) write(p string, data []byte) error {
	target, err := m.localPath(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(m.fs, dir, ".pricing-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = m.fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := m.fs.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", target, err)
	}
	success = true
	return nil
}

// localPath maps an upstream path or absolute URL under root. Paths that
// would escape root are rejected.
func (m *Mirror) localPath(p string) (string, error) {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		u, err := url.Parse(p)
		if err != nil {
			return "", fmt.Errorf("invalid document URL %q: %w", p, err)
		}
		p = u.Path
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" || strings.Contains(p, "..") {
		return "", fmt.Errorf("refusing to mirror path %q", p)
	}
	return filepath.Join(m.root, filepath.FromSlash(cleaned)), nil
}

func clean(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
