package rpc

import (
	"context"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rshade/aws-ratecode-checker/internal/catalog"
	"github.com/rshade/aws-ratecode-checker/internal/ratecode"
	"github.com/rshade/aws-ratecode-checker/internal/render"
)

// Client calls a remote RateCodeService.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial opens a plaintext connection to target. The caller closes the
// returned connection.
func Dial(target string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return NewClient(conn), conn, nil
}

func (c *Client) ListServices(ctx context.Context, req ListServicesRequest) (*ListServicesResponse, error) {
	var out ListServicesResponse
	if err := c.invoke(ctx, MethodListServices, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListRegions(ctx context.Context, req ListRegionsRequest) (*ListRegionsResponse, error) {
	var out ListRegionsResponse
	if err := c.invoke(ctx, MethodListRegions, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Lookup(ctx context.Context, req LookupRequest) (*render.View, error) {
	var out render.View
	if err := c.invoke(ctx, MethodLookup, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, resp); err != nil {
		return remoteError(err)
	}
	return fromStruct(resp, out)
}

var reasonErrors = map[string]error{
	"INVALID":         ratecode.ErrInvalid,
	"SKU_NOT_FOUND":   ratecode.ErrSKUNotFound,
	"NOT_FOUND":       ratecode.ErrNotFound,
	"NOT_LOADED":      ratecode.ErrPricingNotLoaded,
	"UNKNOWN_SERVICE": catalog.ErrUnknownService,
	"UNKNOWN_REGION":  catalog.ErrUnknownRegion,
}

// remoteError wraps the sentinel named by the status ErrorInfo reason, so
// callers can use errors.Is on remote failures.
func remoteError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		if sentinel, ok := reasonErrors[info.GetReason()]; ok {
			return &RemoteError{Message: st.Message(), TraceID: info.GetMetadata()["trace_id"], err: sentinel}
		}
	}
	return err
}

// RemoteError is a server-side lookup failure. It unwraps to the matching
// ratecode or catalog sentinel.
type RemoteError struct {
	Message string
	TraceID string
	err     error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.err }
