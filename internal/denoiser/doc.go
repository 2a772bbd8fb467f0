// Package denoiser provides Denoiser implementations for the diffusion
// sampler.
//
// Remote forwards calls over gRPC to a model server; Server exposes any local
// Denoiser under the same protocol. Reference is an analytic oracle that
// reproduces a known target exactly and is used for deterministic tests and
// dry runs. Counter wraps another Denoiser and counts calls.
//
// The gRPC service has a single unary method, /terrain.v1.Denoiser/Denoise,
// whose request and response are google.protobuf.BytesValue messages carrying
// grids in the frame format described in wire.go.
package denoiser
