package delay

import (
	"fmt"
	"runtime"

	"github.com/huttala/ping-delayer/internal/pkg/divert"
	"github.com/huttala/ping-delayer/internal/pkg/logger"
)

// captureLoop is the capture worker: it blocks on the diversion handle,
// stamps each packet with its release tick, and hands it to the buffer.
// The handle's shutdown error is the expected way out of the blocking
// receive.
func (e *Engine) captureLoop(handle divert.Handle, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			// Late completion callbacks inside the diversion library can
			// fault during the shutdown window; those stay a debug trace.
			logger.Debug("Recovered from panic in capture worker", "panic", r)
			if e.running.Load() {
				e.emitError(fmt.Sprintf("Capture thread fatal: %v", r))
			}
		}
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := raiseThreadPriority(); err != nil {
		logger.Debug("Could not raise capture thread priority", "error", err)
	}

	buf := divert.GetBuffer()
	defer func() {
		if buf != nil {
			divert.PutBuffer(buf)
		}
	}()

	var addr divert.Address
	for e.running.Load() {
		n, err := handle.Recv(buf, &addr)
		if err != nil {
			if e.running.Load() {
				logger.Error("Capture receive failed", "error", err)
				e.emitError(fmt.Sprintf("Capture error: %v", err))
			}
			return
		}
		if n == 0 {
			continue
		}

		e.stats.PacketsCaptured.Add(1)
		if logger.IsDebugEnabled() {
			logger.Debug("Captured packet", "bytes", n, "packet", describePacket(buf[:n]))
		}

		delayMs := e.delayMs.Load()
		if delayMs <= 0 {
			// Fast path: straight back out, no queueing. A send error here
			// means the handle is shutting down; the packet is dropped.
			if _, err := handle.Send(buf[:n], &addr); err != nil {
				logger.Debug("Fast-path send dropped", "error", err)
				continue
			}
			e.stats.PacketsSent.Add(1)
			continue
		}

		releaseAt := e.clock.Now() + e.clock.MsToTicks(float64(delayMs))
		e.buffer.Enqueue(newPacket(buf, n, addr, releaseAt))
		e.stats.PacketsDelayed.Add(1)
		buf = divert.GetBuffer()
	}
}
