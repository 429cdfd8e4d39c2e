//go:build windows

package delay

import "golang.org/x/sys/windows"

var (
	kernel32              = windows.NewLazySystemDLL("kernel32.dll")
	procGetCurrentThread  = kernel32.NewProc("GetCurrentThread")
	procSetThreadPriority = kernel32.NewProc("SetThreadPriority")
)

// THREAD_PRIORITY_HIGHEST
const threadPriorityHighest = 2

// raiseThreadPriority moves the calling OS thread to the highest
// process-relative priority to limit preemption-induced jitter. The caller
// must have locked the goroutine to its thread.
func raiseThreadPriority() error {
	thread, _, _ := procGetCurrentThread.Call()
	ret, _, err := procSetThreadPriority.Call(thread, uintptr(threadPriorityHighest))
	if ret == 0 {
		return err
	}
	return nil
}
