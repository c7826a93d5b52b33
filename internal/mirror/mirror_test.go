package mirror

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/aws-ratecode-checker/internal/catalog"
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/pricingtest"
)

func upstream(t *testing.T) (*pricing.Client, *pricingtest.Server) {
	t.Helper()
	srv := pricingtest.NewServer(t)
	client, err := pricing.NewClient(zerolog.Nop(), pricing.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return client, srv
}

func readJSON(t *testing.T, fs afero.Fs, name string, v any) {
	t.Helper()
	b, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

func TestRun_SelectedServiceAndRegion(t *testing.T) {
	client, _ := upstream(t)
	fs := afero.NewMemMapFs()
	m := New(client, fs, "/mirror", zerolog.Nop())

	report, err := m.Run(context.Background(), []string{"AmazonEC2", " AmazonEC2 "}, []string{"us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AmazonEC2"}, report.Services)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, int64(len(pricingtest.EC2USEast1JSON)), report.Bytes)

	doc, err := afero.ReadFile(fs, filepath.Join("/mirror", pricingtest.EC2USEast1Path))
	require.NoError(t, err)
	assert.Equal(t, pricingtest.EC2USEast1JSON, string(doc), "documents are copied verbatim")

	exists, err := afero.Exists(fs, filepath.Join("/mirror", pricingtest.EC2USWest2Path))
	require.NoError(t, err)
	assert.False(t, exists)

	var offers pricing.OffersIndex
	readJSON(t, fs, filepath.Join("/mirror", pricing.OffersPath), &offers)
	assert.Len(t, offers.Offers, 1)
	assert.Contains(t, offers.Offers, "AmazonEC2")

	var idx pricing.RegionIndex
	readJSON(t, fs, filepath.Join("/mirror", pricingtest.EC2RegionIndexPath), &idx)
	assert.Len(t, idx.Regions, 1)
	assert.Contains(t, idx.Regions, "us-east-1")
}

func TestRun_AllRegions(t *testing.T) {
	client, srv := upstream(t)
	srv.Set("/offers/v1.0/aws/AmazonEC2/20240101000000/xx-test-9/index.json", `{"products":{}}`)
	fs := afero.NewMemMapFs()

	report, err := New(client, fs, "/m", zerolog.Nop(), WithConcurrency(2)).
		Run(context.Background(), []string{"AmazonEC2", "AmazonS3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AmazonEC2", "AmazonS3"}, report.Services)
	assert.Equal(t, 4, report.Documents)
	assert.Equal(t, 1, srv.Hits(pricingtest.S3USEast1Path))
	assert.Equal(t, 1, srv.Hits(pricingtest.EC2USWest2Path))
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		services []string
		setup    func(*pricingtest.Server)
		wantErr  string
	}{
		{name: "no services", services: []string{" ", ""}, wantErr: "no services selected"},
		{name: "unknown service", services: []string{"AmazonRDS"}, wantErr: "unknown service code: AmazonRDS"},
		{
			name:     "offers unavailable",
			services: []string{"AmazonEC2"},
			setup:    func(s *pricingtest.Server) { s.Fail(pricing.OffersPath, http.StatusServiceUnavailable) },
			wantErr:  "offers index",
		},
		{
			name:     "document unavailable",
			services: []string{"AmazonEC2"},
			setup:    func(s *pricingtest.Server) { s.Fail(pricingtest.EC2USWest2Path, http.StatusNotFound) },
			wantErr:  "document: ",
		},
		{
			name:     "invalid region index",
			services: []string{"AmazonS3"},
			setup:    func(s *pricingtest.Server) { s.Set(pricingtest.S3RegionIndexPath, "{") },
			wantErr:  "AmazonS3 region index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := upstream(t)
			if tt.setup != nil {
				tt.setup(srv)
			}
			fs := afero.NewMemMapFs()

			_, err := New(client, fs, "/m", zerolog.Nop()).Run(context.Background(), tt.services, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			exists, _ := afero.Exists(fs, filepath.Join("/m", pricing.OffersPath))
			assert.False(t, exists, "failed runs never publish an offers index")
		})
	}
}

func TestRun_NoTempFilesLeft(t *testing.T) {
	client, _ := upstream(t)
	fs := afero.NewMemMapFs()

	_, err := New(client, fs, "/m", zerolog.Nop()).Run(context.Background(), []string{"AmazonS3"}, nil)
	require.NoError(t, err)

	err = afero.Walk(fs, "/m", func(p string, _ os.FileInfo, err error) error {
		require.NoError(t, err)
		assert.False(t, strings.HasSuffix(p, ".tmp"), p)
		return nil
	})
	require.NoError(t, err)
}

func TestLocalPath(t *testing.T) {
	m := New(nil, afero.NewMemMapFs(), "/root", zerolog.Nop())

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "/offers/v1.0/aws/index.json", want: "/root/offers/v1.0/aws/index.json"},
		{in: "offers/x.json", want: "/root/offers/x.json"},
		{in: "https://pricing.us-east-1.amazonaws.com/offers/x.json", want: "/root/offers/x.json"},
		{in: "/offers/../../etc/passwd", wantErr: true},
		{in: "/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := m.localPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

// TestMirrorServesLookups reads a mirror back through a file:// client.
func TestMirrorServesLookups(t *testing.T) {
	client, _ := upstream(t)
	dir := t.TempDir()
	m := New(client, afero.NewOsFs(), dir, zerolog.Nop())

	_, err := m.Run(context.Background(), []string{"AmazonEC2"}, []string{"us-east-1"})
	require.NoError(t, err)

	base, err := m.BaseURL()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(base, "file://"))

	local, err := pricing.NewClient(zerolog.Nop(),
		pricing.WithBaseURL(base),
		pricing.WithRegionNames([]byte(pricingtest.RegionNamesJSON)))
	require.NoError(t, err)
	cat := catalog.New(pricing.NewCachedFetcher(local, time.Hour, 1, zerolog.Nop()), zerolog.Nop())

	res, err := cat.Lookup(context.Background(), "AmazonEC2", "us-east-1", pricingtest.OnDemandRateCode)
	require.NoError(t, err)
	assert.Equal(t, "per hour", res.Dimension.Description)

	_, err = cat.Lookup(context.Background(), "AmazonEC2", "us-west-2", pricingtest.WestRateCode)
	assert.ErrorIs(t, err, catalog.ErrUnknownRegion)
}
