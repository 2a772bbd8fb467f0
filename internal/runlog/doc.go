// Package runlog keeps a sqlite ledger of pipeline runs.
//
// Each Run records what was generated (kind, seed, size, step range and the
// config that produced it), how long it took, how many denoiser calls it made
// and summary statistics of the result. The height field itself can be kept
// alongside as a zstd-compressed blob. The schema is managed with embedded
// golang-migrate migrations.
package runlog
