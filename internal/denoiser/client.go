package denoiser

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/terrain.diffusion/internal/diffusion"
	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

// Remote is a Denoiser backed by a terrain.v1.Denoiser gRPC service.
type Remote struct {
	conn        *grpc.ClientConn
	ownsConn    bool
	model       string
	timeout     time.Duration
	dialOptions []grpc.DialOption
}

var _ diffusion.Denoiser = (*Remote)(nil)

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithModel names the model sent in request metadata.
func WithModel(name string) RemoteOption {
	return func(r *Remote) { r.model = name }
}

// WithTimeout bounds each Denoise call. Zero disables the bound.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) { r.timeout = d }
}

// WithDialOptions appends gRPC dial options used by Dial.
func WithDialOptions(opts ...grpc.DialOption) RemoteOption {
	return func(r *Remote) { r.dialOptions = append(r.dialOptions, opts...) }
}

// Dial connects to a denoiser service. The returned Remote owns the
// connection and must be closed.
func Dial(target string, opts ...RemoteOption) (*Remote, error) {
	r := &Remote{ownsConn: true}
	for _, opt := range opts {
		opt(r)
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}, r.dialOptions...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial denoiser %s: %w", target, err)
	}
	r.conn = conn
	return r, nil
}

// NewRemote wraps an existing connection. Close leaves conn open.
func NewRemote(conn *grpc.ClientConn, opts ...RemoteOption) *Remote {
	r := &Remote{conn: conn}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the model name sent with each request.
func (r *Remote) Model() string { return r.model }

func (r *Remote) Denoise(noisy, noiseRatesSquared *grid.Grid) (*grid.Grid, error) {
	return r.DenoiseContext(context.Background(), noisy, noiseRatesSquared)
}

// DenoiseContext is Denoise bounded by ctx as well as the configured timeout.
func (r *Remote) DenoiseContext(ctx context.Context, noisy, noiseRatesSquared *grid.Grid) (*grid.Grid, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if r.model != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, ModelMetadataKey, r.model)
	}

	req := wrapperspb.Bytes(EncodeGrids(noisy, noiseRatesSquared))
	resp := new(wrapperspb.BytesValue)
	if err := r.conn.Invoke(ctx, DenoiseMethod, req, resp); err != nil {
		return nil, fmt.Errorf("remote denoise: %w", err)
	}

	grids, err := DecodeGrids(resp.GetValue(), 1)
	if err != nil {
		return nil, fmt.Errorf("remote denoise response: %w", err)
	}
	if grids[0].Shape() != noisy.Shape() {
		return nil, fmt.Errorf("remote denoise: %w",
			&grid.ShapeError{Op: "remote denoise", Want: noisy.Len(), Got: grids[0].Len()})
	}
	return grids[0], nil
}

// Close releases the connection if this Remote opened it.
func (r *Remote) Close() error {
	if !r.ownsConn || r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
