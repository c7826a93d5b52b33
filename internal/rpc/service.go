// Package rpc exposes catalog lookups as the ratecode.v1.RateCodeService
// gRPC service. Messages are google.protobuf.Struct values carrying the
// same JSON documents the HTTP API returns, so no generated stubs are
// needed on either side.
package rpc

import (
	"context"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rshade/aws-ratecode-checker/internal/picker"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
)

const (
	ServiceName = "ratecode.v1.RateCodeService"

	MethodListServices = "/" + ServiceName + "/ListServices"
	MethodListRegions  = "/" + ServiceName + "/ListRegions"
	MethodLookup       = "/" + ServiceName + "/Lookup"
)

// Catalog is the lookup backend served over gRPC.
type Catalog interface {
	Services(ctx context.Context, query string) ([]picker.Option, error)
	Regions(ctx context.Context, service, query string) ([]picker.Option, error)
	Lookup(ctx context.Context, service, region, code string) (*ratecode.Result, error)
}

// ListServicesRequest filters the service list.
type ListServicesRequest struct {
	Query string `json:"query,omitempty"`
}

// ListServicesResponse lists matching services.
type ListServicesResponse struct {
	Services []picker.Option `json:"services"`
}

// ListRegionsRequest filters the regions of one service.
type ListRegionsRequest struct {
	Service string `json:"service"`
	Query   string `json:"query,omitempty"`
}

// ListRegionsResponse lists matching regions.
type ListRegionsResponse struct {
	Service string          `json:"service"`
	Regions []picker.Option `json:"regions"`
}

// LookupRequest names a rate code. Quantity is an optional decimal.
type LookupRequest struct {
	Service  string `json:"service"`
	Region   string `json:"region"`
	RateCode string `json:"rateCode"`
	Quantity string `json:"quantity,omitempty"`
}

// RateCodeServiceServer is implemented by Server.
type RateCodeServiceServer interface {
	ListServices(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListRegions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Lookup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes ratecode.v1.RateCodeService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RateCodeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListServices", Handler: unaryHandler(MethodListServices, RateCodeServiceServer.ListServices)},
		{MethodName: "ListRegions", Handler: unaryHandler(MethodListRegions, RateCodeServiceServer.ListRegions)},
		{MethodName: "Lookup", Handler: unaryHandler(MethodLookup, RateCodeServiceServer.Lookup)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ratecode/v1/ratecode.proto",
}

type unaryMethod func(RateCodeServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RateCodeServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RateCodeServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = new(structpb.Struct)
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
