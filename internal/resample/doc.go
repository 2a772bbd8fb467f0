// Package resample changes the resolution of height fields.
//
// Bicubic upsamples in two separable passes (width, then height), DownSample
// decimates by stride, and GaussianSmoother applies an optional separable
// blur after upsampling. All three walk a grid as a set of 1-D lines so the
// same code serves both axes.
package resample
