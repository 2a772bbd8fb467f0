package denoiser

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/terrain.diffusion/internal/diffusion"
	"github.com/banshee-data/terrain.diffusion/internal/grid"
)

const (
	ServiceName   = "terrain.v1.Denoiser"
	DenoiseMethod = "/terrain.v1.Denoiser/Denoise"

	// ModelMetadataKey names the model a request is meant for. A server
	// configured with a model name rejects requests for any other model.
	ModelMetadataKey = "x-terrain-model"
)

// DenoiserServer is the server API for the terrain.v1.Denoiser service.
type DenoiserServer interface {
	Denoise(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// ServiceDesc describes the terrain.v1.Denoiser service. It is written by
// hand since the request and response are well-known wrapper types.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DenoiserServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Denoise", Handler: denoiseHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "terrain/v1/denoiser.proto",
}

// RegisterService registers srv on any gRPC service registrar.
func RegisterService(s grpc.ServiceRegistrar, srv DenoiserServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func denoiseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DenoiserServer).Denoise(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DenoiseMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DenoiserServer).Denoise(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Handler serves a local Denoiser over the wire protocol.
type Handler struct {
	Denoiser diffusion.Denoiser
	// Model, when set, must match the model named in request metadata.
	Model string
}

var _ DenoiserServer = (*Handler)(nil)

func (h *Handler) Denoise(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	if h.Model != "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if names := md.Get(ModelMetadataKey); len(names) > 0 && names[0] != h.Model {
				return nil, status.Errorf(codes.NotFound, "model %q not served here (have %q)", names[0], h.Model)
			}
		}
	}

	grids, err := DecodeGrids(req.GetValue(), 2)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	noisy, rates := grids[0], grids[1]
	if rates.Len() != noisy.Batch() {
		return nil, status.Errorf(codes.InvalidArgument, "%d noise rates for batch of %d", rates.Len(), noisy.Batch())
	}

	out, err := h.Denoiser.Denoise(noisy, rates)
	if err != nil {
		if errors.Is(err, grid.ErrShapeMismatch) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "denoise: %v", err)
	}
	if out.Shape() != noisy.Shape() {
		return nil, status.Errorf(codes.Internal, "denoiser returned shape %s for input %s", out.Shape(), noisy.Shape())
	}
	return wrapperspb.Bytes(EncodeGrids(out)), nil
}
