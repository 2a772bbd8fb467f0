// Package pipeline turns seeds into terrain tiles. A Pipeline draws initial
// noise, runs the reverse-diffusion sampler against a denoiser session,
// upsamples and optionally smooths the result, and blends finished tiles into
// their lattice neighbors. Runs can be recorded to a ledger.
package pipeline
