package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rshade/aws-ratecode-checker/internal/catalog"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
	"github.com/rshade/aws-ratecode-checker/internal/render"
)

// TraceIDHeader is the metadata key carrying the caller's trace ID.
const TraceIDHeader = "x-request-id"

const errorDomain = "ratecode.v1"

// Server implements RateCodeServiceServer over a Catalog.
type Server struct {
	catalog Catalog
	logger  zerolog.Logger
}

// NewServer returns a Server backed by cat.
func NewServer(cat Catalog, logger zerolog.Logger) *Server {
	return &Server{catalog: cat, logger: logger}
}

// Register adds the service and a health service reporting SERVING to s.
func Register(s *grpc.Server, srv *Server) *health.Server {
	s.RegisterService(&ServiceDesc, srv)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

// NewGRPCServer builds a grpc.Server with the logging interceptor and the
// service registered.
func NewGRPCServer(cat Catalog, logger zerolog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryInterceptor(logger))}, opts...)
	s := grpc.NewServer(opts...)
	hs := Register(s, NewServer(cat, logger))
	return s, hs
}

func (s *Server) ListServices(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListServicesRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, s.newError(ctx, codes.InvalidArgument, "invalid request", "INVALID_REQUEST")
	}
	opts, err := s.catalog.Services(ctx, req.Query)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(ListServicesResponse{Services: opts})
}

func (s *Server) ListRegions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListRegionsRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, s.newError(ctx, codes.InvalidArgument, "invalid request", "INVALID_REQUEST")
	}
	if req.Service == "" {
		return nil, s.newError(ctx, codes.InvalidArgument, "service is required", "INVALID_REQUEST")
	}
	opts, err := s.catalog.Regions(ctx, req.Service, req.Query)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(ListRegionsResponse{Service: req.Service, Regions: opts})
}

func (s *Server) Lookup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LookupRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, s.newError(ctx, codes.InvalidArgument, "invalid request", "INVALID_REQUEST")
	}
	switch {
	case req.Service == "":
		return nil, s.newError(ctx, codes.InvalidArgument, "service is required", "INVALID_REQUEST")
	case req.Region == "":
		return nil, s.newError(ctx, codes.InvalidArgument, "region is required", "INVALID_REQUEST")
	}

	var qty *decimal.Decimal
	if req.Quantity != "" {
		d, err := decimal.NewFromString(req.Quantity)
		if err != nil {
			return nil, s.newError(ctx, codes.InvalidArgument, "invalid quantity", "INVALID_REQUEST")
		}
		qty = &d
	}

	res, err := s.catalog.Lookup(ctx, req.Service, req.Region, req.RateCode)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	view, err := render.NewView(req.Service, req.Region, res, qty)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(view)
}

// Code maps a lookup error to a gRPC code.
func Code(err error) codes.Code {
	switch {
	case errors.Is(err, ratecode.ErrInvalid), errors.Is(err, ratecode.ErrFormat):
		return codes.InvalidArgument
	case errors.Is(err, catalog.ErrUnknownService),
		errors.Is(err, catalog.ErrUnknownRegion),
		errors.Is(err, ratecode.ErrSKUNotFound),
		errors.Is(err, ratecode.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ratecode.ErrPricingNotLoaded):
		return codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Unavailable
	}
}

func (s *Server) toStatus(ctx context.Context, err error) error {
	reason := strings.ToUpper(ratecode.Outcome(err))
	switch {
	case errors.Is(err, catalog.ErrUnknownService):
		reason = "UNKNOWN_SERVICE"
	case errors.Is(err, catalog.ErrUnknownRegion):
		reason = "UNKNOWN_REGION"
	}
	return s.newError(ctx, Code(err), err.Error(), reason)
}

// newError builds a status carrying an ErrorInfo detail with the trace ID.
func (s *Server) newError(ctx context.Context, code codes.Code, msg, reason string) error {
	traceID := TraceID(ctx)
	st := status.New(code, msg)
	withDetails, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   errorDomain,
		Metadata: map[string]string{"trace_id": traceID},
	})
	if err != nil {
		s.logger.Warn().
			Str("trace_id", traceID).
			Str("grpc_code", code.String()).
			Err(err).
			Msg("failed to attach error details to gRPC status")
		return st.Err()
	}
	return withDetails.Err()
}

// TraceID returns the caller's x-request-id, or a fresh UUID.
func TraceID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(TraceIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

// UnaryInterceptor logs each call and turns handler panics into Internal
// errors.
func UnaryInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		traceID := TraceID(ctx)
		if md, ok := metadata.FromIncomingContext(ctx); !ok || len(md.Get(TraceIDHeader)) == 0 {
			md = metadata.Join(md, metadata.Pairs(TraceIDHeader, traceID))
			ctx = metadata.NewIncomingContext(ctx, md)
		}
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Str("trace_id", traceID).Str("method", info.FullMethod).
					Interface("panic", r).Msg("panic in handler")
				err = status.Error(codes.Internal, fmt.Sprintf("internal error (trace_id %s)", traceID))
			}
			code := status.Code(err)
			var event *zerolog.Event
			switch code {
			case codes.OK:
				event = logger.Info()
			case codes.InvalidArgument, codes.NotFound, codes.Canceled:
				event = logger.Warn().Err(err)
			default:
				event = logger.Error().Err(err)
			}
			event.
				Str("trace_id", traceID).
				Str("method", info.FullMethod).
				Str("code", code.String()).
				Dur("latency", time.Since(start)).
				Msg("rpc handled")
		}()
		return handler(ctx, req)
	}
}
