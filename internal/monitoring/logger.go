package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// is muted or redirected with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// now is swapped in tests.
var now = time.Now

// Timed logs "<label> took <duration>" when the returned func is called:
//
//	defer monitoring.Timed("[pipeline] generate seed=%d", seed)()
func Timed(format string, v ...interface{}) func() time.Duration {
	start := now()
	return func() time.Duration {
		elapsed := now().Sub(start)
		args := append(append([]interface{}{}, v...), elapsed.Round(time.Millisecond))
		Logf(format+" took %s", args...)
		return elapsed
	}
}

// StepLogger returns a progress callback that logs every step with the given
// prefix. It matches the shape of diffusion.Sampler.Progress.
func StepLogger(prefix string) func(step, total int) {
	return func(step, total int) {
		Logf("%s step %d/%d", prefix, step, total)
	}
}
