package monitoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)

	Logf("hello %d", 1)
	assert.Equal(t, []string{"hello 1"}, *lines)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted") })
	assert.Len(t, *lines, 1, "no-op logger should not reach the previous logger")
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
}

func TestTimed(t *testing.T) {
	lines := captureLogs(t)

	originalNow := now
	t.Cleanup(func() { now = originalNow })
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 1500 * time.Millisecond)
	}

	done := Timed("[pipeline] seed=%d", 7)
	elapsed := done()

	assert.Equal(t, 1500*time.Millisecond, elapsed)
	assert.Equal(t, []string{"[pipeline] seed=7 took 1.5s"}, *lines)
}

func TestStepLogger(t *testing.T) {
	lines := captureLogs(t)

	progress := StepLogger("[diffusion]")
	progress(1, 3)
	progress(3, 3)

	assert.Equal(t, []string{"[diffusion] step 1/3", "[diffusion] step 3/3"}, *lines)
}
