//go:build windows

package timing

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")
	winmm    = windows.NewLazySystemDLL("winmm.dll")

	procQueryPerformanceCounter   = kernel32.NewProc("QueryPerformanceCounter")
	procQueryPerformanceFrequency = kernel32.NewProc("QueryPerformanceFrequency")
	procTimeBeginPeriod           = winmm.NewProc("timeBeginPeriod")
	procTimeEndPeriod             = winmm.NewProc("timeEndPeriod")
)

var perfFreq = func() int64 {
	var f int64
	_, _, _ = procQueryPerformanceFrequency.Call(uintptr(unsafe.Pointer(&f)))
	if f <= 0 {
		// QPC is guaranteed on XP and later; keep the arithmetic sane anyway.
		f = int64(time.Second)
	}
	return f
}()

// Now returns the current QueryPerformanceCounter value.
func Now() Tick {
	var counter int64
	_, _, _ = procQueryPerformanceCounter.Call(uintptr(unsafe.Pointer(&counter)))
	return Tick(counter)
}

// Frequency returns the performance counter frequency in ticks per second.
func Frequency() int64 { return perfFreq }

func setResolution(raise bool) {
	if raise {
		_, _, _ = procTimeBeginPeriod.Call(1)
		return
	}
	_, _, _ = procTimeEndPeriod.Call(1)
}

func coarseSleep(d time.Duration) { time.Sleep(d) }
