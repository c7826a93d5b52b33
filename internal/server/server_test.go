package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/aws-ratecode-checker/internal/catalog"
	"github.com/rshade/aws-ratecode-checker/internal/config"
	"github.com/rshade/aws-ratecode-checker/internal/metrics"
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/pricingtest"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
	"github.com/rshade/aws-ratecode-checker/internal/render"
)

func newTestServer(t *testing.T, opts Options) (*echo.Echo, *pricingtest.Server) {
	t.Helper()
	srv := pricingtest.NewServer(t)
	client, err := pricing.NewClient(zerolog.Nop(),
		pricing.WithBaseURL(srv.URL),
		pricing.WithRegionNames([]byte(pricingtest.RegionNamesJSON)))
	require.NoError(t, err)
	cache := pricing.NewCachedFetcher(client, time.Hour, 2, zerolog.Nop())
	return New(catalog.New(cache, zerolog.Nop()), opts, zerolog.Nop()), srv
}

func get(t *testing.T, e *echo.Echo, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, Options{Version: "1.2.3"})

	rec := get(t, e, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestListServices(t *testing.T) {
	e, _ := newTestServer(t, Options{})

	rec := get(t, e, "/api/v1/services")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[ServicesResponse](t, rec)
	require.Len(t, body.Services, 3)
	assert.Equal(t, "AmazonEC2", body.Services[0].Value)

	rec = get(t, e, "/api/v1/services/?q=s3")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[ServicesResponse](t, rec)
	require.Len(t, body.Services, 1)
	assert.Equal(t, "AmazonS3", body.Services[0].Value)
}

func TestListRegions(t *testing.T) {
	e, _ := newTestServer(t, Options{})

	rec := get(t, e, "/api/v1/services/AmazonEC2/regions?q=virginia")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[RegionsResponse](t, rec)
	assert.Equal(t, "AmazonEC2", body.Service)
	require.Len(t, body.Regions, 1)
	assert.Equal(t, "us-east-1", body.Regions[0].Value)

	rec = get(t, e, "/api/v1/services/AmazonRDS/regions")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLookup(t *testing.T) {
	e, _ := newTestServer(t, Options{})

	rec := get(t, e, "/api/v1/services/AmazonEC2/regions/us-east-1/ratecodes/"+pricingtest.OnDemandRateCode+"?quantity=3")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[render.View](t, rec)
	assert.Equal(t, "AmazonEC2", view.Service)
	assert.Equal(t, "us-east-1", view.Region)
	assert.Equal(t, pricingtest.OnDemandRateCode, view.RateCode)
	assert.Equal(t, "OnDemand", view.TermType)
	assert.Equal(t, "per hour", view.Dimension.Description)
	require.Len(t, view.Dimension.Prices, 1)
	assert.Equal(t, "0.1", view.Dimension.Prices[0].Amount)
	assert.Equal(t, "0.3", view.Dimension.Prices[0].Total)
	assert.Equal(t, "3", view.Quantity)
}

func TestLookup_Errors(t *testing.T) {
	e, srv := newTestServer(t, Options{})
	srv.Fail(pricingtest.S3USEast1Path, http.StatusInternalServerError)

	const base = "/api/v1/services/"
	tests := []struct {
		name     string
		target   string
		wantCode int
		wantMsg  string
	}{
		{name: "invalid code", target: base + "AmazonEC2/regions/us-east-1/ratecodes/nope", wantCode: http.StatusBadRequest, wantMsg: "rate code not valid"},
		{name: "bad quantity", target: base + "AmazonEC2/regions/us-east-1/ratecodes/" + pricingtest.OnDemandRateCode + "?quantity=abc", wantCode: http.StatusBadRequest, wantMsg: "invalid quantity"},
		{name: "unknown sku", target: base + "AmazonEC2/regions/us-east-1/ratecodes/" + pricingtest.UnknownSKURateCode, wantCode: http.StatusNotFound, wantMsg: "SKU not found"},
		{name: "unknown dimension", target: base + "AmazonEC2/regions/us-east-1/ratecodes/" + pricingtest.MissingDimensionRateCode, wantCode: http.StatusNotFound, wantMsg: "rate code not found"},
		{name: "unknown service", target: base + "AmazonRDS/regions/us-east-1/ratecodes/" + pricingtest.OnDemandRateCode, wantCode: http.StatusNotFound},
		{name: "unknown region", target: base + "AmazonEC2/regions/eu-west-1/ratecodes/" + pricingtest.OnDemandRateCode, wantCode: http.StatusNotFound},
		{name: "upstream failure", target: base + "AmazonS3/regions/us-east-1/ratecodes/" + pricingtest.OnDemandRateCode, wantCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, e, tt.target)
			assert.Equal(t, tt.wantCode, rec.Code)
			body := decode[ErrorResponse](t, rec)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Message)
			}
			assert.NotEmpty(t, body.RequestID)

			raw := decode[map[string]any](t, rec)
			assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), raw["request_id"])
			assert.NotContains(t, raw, "requestId")
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: ratecode.ErrInvalid, want: http.StatusBadRequest},
		{err: ratecode.ErrFormat, want: http.StatusBadRequest},
		{err: fmt.Errorf("x: %w", catalog.ErrUnknownService), want: http.StatusNotFound},
		{err: catalog.ErrUnknownRegion, want: http.StatusNotFound},
		{err: ratecode.ErrSKUNotFound, want: http.StatusNotFound},
		{err: ratecode.ErrNotFound, want: http.StatusNotFound},
		{err: fmt.Errorf("get: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{err: echo.NewHTTPError(http.StatusTeapot), want: http.StatusTeapot},
		{err: errors.New("boom"), want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestCORS(t *testing.T) {
	e, _ := newTestServer(t, Options{CORS: config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		MaxAge:         600,
	}})

	rec := get(t, e, "/healthz", echo.HeaderOrigin, "https://app.example.com")
	assert.Equal(t, "https://app.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = get(t, e, "/healthz", echo.HeaderOrigin, "https://evil.example.com")
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/services", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	pre := httptest.NewRecorder()
	e.ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "600", pre.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORS_DisabledWithoutOrigins(t *testing.T) {
	e, _ := newTestServer(t, Options{})

	rec := get(t, e, "/healthz", echo.HeaderOrigin, "https://app.example.com")
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestMetricsEndpoint(t *testing.T) {
	rec := metrics.New()
	e, _ := newTestServer(t, Options{Metrics: rec.Handler()})
	rec.ObserveLookup("resolved", time.Millisecond)

	res := get(t, e, "/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, strings.Contains(res.Body.String(), `ratecode_lookup_lookups_total{outcome="resolved"} 1`), res.Body.String())
}

func TestMetricsEndpoint_NotMountedByDefault(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	assert.Equal(t, http.StatusNotFound, get(t, e, "/metrics").Code)
}
