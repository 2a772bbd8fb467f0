// Package diffusion runs the reverse-diffusion recurrence that turns a noisy
// grid into a height field.
//
// Schedule maps a normalized time to (noise rate, signal rate) on a cosine
// arc. Sampler drives a State one step at a time: each step asks an external
// Denoiser for the noise in the current grid, reconstructs the clean estimate
// and re-noises it toward the next, slightly cleaner time. The loop is a pure
// function of its inputs; nothing random happens inside it.
//
// Key types: Schedule, Denoiser, Sampler, State.
package diffusion
