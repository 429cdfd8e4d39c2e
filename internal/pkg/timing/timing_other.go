//go:build !windows

package timing

import "time"

var processStart = time.Now()

// Now returns nanoseconds since process start, from the runtime's
// monotonic clock.
func Now() Tick { return Tick(time.Since(processStart)) }

// Frequency returns the tick rate of Now: nanoseconds.
func Frequency() int64 { return int64(time.Second) }

// Timer granularity is a Windows concern; elsewhere the raise/lower
// reference counting still runs but touches nothing.
func setResolution(bool) {}

func coarseSleep(d time.Duration) { time.Sleep(d) }
