// Package server is the HTTP JSON API over catalog.Catalog.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rshade/aws-ratecode-checker/internal/catalog"
	"github.com/rshade/aws-ratecode-checker/internal/config"
	"github.com/rshade/aws-ratecode-checker/internal/picker"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
	"github.com/rshade/aws-ratecode-checker/internal/render"
)

// Catalog is the lookup backend. *catalog.Catalog implements it.
type Catalog interface {
	Services(ctx context.Context, query string) ([]picker.Option, error)
	Regions(ctx context.Context, service, query string) ([]picker.Option, error)
	Lookup(ctx context.Context, service, region, code string) (*ratecode.Result, error)
}

// Options configures New.
type Options struct {
	CORS config.CORSConfig
	// Metrics, if set, is served at /metrics.
	Metrics http.Handler
	Version string
}

// ServicesResponse is the body of GET /api/v1/services.
type ServicesResponse struct {
	Services []picker.Option `json:"services"`
}

// RegionsResponse is the body of GET /api/v1/services/:service/regions.
type RegionsResponse struct {
	Service string          `json:"service"`
	Regions []picker.Option `json:"regions"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type handler struct {
	catalog Catalog
	version string
	logger  zerolog.Logger
}

// New builds the echo instance with every route registered.
func New(cat Catalog, opts Options, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.HTTPErrorHandler = errorHandler(logger)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(accessLog(logger))
	if len(opts.CORS.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     opts.CORS.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodOptions},
			AllowCredentials: opts.CORS.AllowCredentials,
			MaxAge:           opts.CORS.MaxAge,
		}))
	}

	h := &handler{catalog: cat, version: opts.Version, logger: logger}
	h.Register(e)
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}
	return e
}

// Register mounts the API routes on e.
func (h *handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	v1 := e.Group("/api/v1")
	v1.GET("/services", h.ListServices)
	v1.GET("/services/:service/regions", h.ListRegions)
	v1.GET("/services/:service/regions/:region/ratecodes/:code", h.Lookup)
}

// Health godoc
//
//	@Summary	Liveness probe
//	@Router		/healthz [get]
func (h *handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

// ListServices godoc
//
//	@Summary	List AWS services with published pricing
//	@Param		q	query	string	false	"substring filter"
//	@Success	200	{object}	ServicesResponse
//	@Router		/api/v1/services [get]
func (h *handler) ListServices(c echo.Context) error {
	opts, err := h.catalog.Services(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ServicesResponse{Services: opts})
}

// ListRegions godoc
//
//	@Summary	List the regions of a service
//	@Param		service	path	string	true	"service key, e.g. AmazonEC2"
//	@Param		q		query	string	false	"filter on region code or name"
//	@Success	200		{object}	RegionsResponse
//	@Router		/api/v1/services/{service}/regions [get]
func (h *handler) ListRegions(c echo.Context) error {
	service := c.Param("service")
	opts, err := h.catalog.Regions(c.Request().Context(), service, c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RegionsResponse{Service: service, Regions: opts})
}

// Lookup godoc
//
//	@Summary	Resolve a rate code
//	@Param		service		path	string	true	"service key"
//	@Param		region		path	string	true	"region code"
//	@Param		code		path	string	true	"SKU.OfferTerm.PriceDimension"
//	@Param		quantity	query	string	false	"multiply unit prices"
//	@Success	200			{object}	render.View
//	@Router		/api/v1/services/{service}/regions/{region}/ratecodes/{code} [get]
func (h *handler) Lookup(c echo.Context) error {
	var qty *decimal.Decimal
	if raw := c.QueryParam("quantity"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid quantity").SetInternal(err)
		}
		qty = &d
	}

	service, region := c.Param("service"), c.Param("region")
	res, err := h.catalog.Lookup(c.Request().Context(), service, region, c.Param("code"))
	if err != nil {
		return err
	}
	view, err := render.NewView(service, region, res, qty)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// StatusCode maps a lookup error to an HTTP status.
func StatusCode(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, ratecode.ErrInvalid), errors.Is(err, ratecode.ErrFormat):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrUnknownService),
		errors.Is(err, catalog.ErrUnknownRegion),
		errors.Is(err, ratecode.ErrSKUNotFound),
		errors.Is(err, ratecode.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := StatusCode(err)
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(he.Code)
			}
		}
		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Path()).Msg("upstream failure")
		}

		body := ErrorResponse{
			Message:   msg,
			RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}
