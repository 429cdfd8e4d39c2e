package delay

import (
	"fmt"
	"runtime"
	"time"

	"github.com/huttala/ping-delayer/internal/pkg/constants"
	"github.com/huttala/ping-delayer/internal/pkg/divert"
	"github.com/huttala/ping-delayer/internal/pkg/logger"
)

// pacingQuantumMs bounds a single pacing sleep. The worker naps at most
// this long before re-peeking the queue, so a freshly captured packet with
// an earlier deadline (delay was lowered mid-run) still goes out on time.
// The final approach to a deadline always uses the precise sleep.
const pacingQuantumMs = 2.0

// releaseLoop is the release worker: it paces itself against the earliest
// queued deadline and re-injects packets whose release tick has passed.
func (e *Engine) releaseLoop(handle divert.Handle, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("Recovered from panic in release worker", "panic", r)
			if e.running.Load() {
				e.emitError(fmt.Sprintf("Release thread fatal: %v", r))
			}
		}
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := raiseThreadPriority(); err != nil {
		logger.Debug("Could not raise release thread priority", "error", err)
	}

	consecutiveErrors := 0
	for e.running.Load() {
		releaseAt, ok := e.buffer.TryPeek()
		if !ok {
			time.Sleep(constants.IdleLoopDelay)
			continue
		}

		delta := releaseAt - e.clock.Now()
		if delta > 0 {
			deltaMs := e.clock.TicksToMs(delta)
			if deltaMs > pacingQuantumMs {
				time.Sleep(constants.IdleLoopDelay)
			} else {
				e.clock.PreciseSleep(deltaMs)
			}
			continue
		}

		pkt, ok := e.buffer.Dequeue()
		if !ok {
			continue
		}

		if _, err := handle.Send(pkt.Data, &pkt.Addr); err != nil {
			e.stats.SendErrors.Add(1)
			consecutiveErrors++
			// Report the first few after a success, then go quiet until a
			// send lands. The worker keeps trying either way; terminating
			// is the controller's call.
			if consecutiveErrors <= e.sendErrorReportLimit && e.running.Load() {
				logger.Error("Packet re-injection failed", "error", err, "consecutive", consecutiveErrors)
				e.emitError(fmt.Sprintf("Send error: %v", err))
			}
		} else {
			consecutiveErrors = 0
			e.stats.PacketsSent.Add(1)
		}
		pkt.release()
	}
}
