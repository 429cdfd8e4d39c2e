// Package delay implements the packet delay core: a capture worker and a
// release worker cooperating over a time-ordered buffer, driven by a
// controller that owns the diversion handle and the engine lifecycle.
package delay

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huttala/ping-delayer/internal/pkg/constants"
	"github.com/huttala/ping-delayer/internal/pkg/divert"
	"github.com/huttala/ping-delayer/internal/pkg/logger"
	"github.com/huttala/ping-delayer/internal/pkg/timing"
)

// Config contains engine configuration. Zero values fall back to the
// production defaults; tests inject their own handle opener, clock, and
// shorter shutdown windows.
type Config struct {
	// Filter is the diversion filter expression. Default "true" (all traffic).
	Filter string

	// OnStatus and OnError receive lifecycle and error events. They are
	// invoked from worker and controller context; subscribers marshal to
	// their own thread. Delivery stops once Close has begun.
	OnStatus func(text string)
	OnError  func(text string)

	// OpenHandle opens the diversion handle. Default divert.Open.
	OpenHandle func(divert.Config) (divert.Handle, error)

	// Clock supplies timestamps and precise sleeps. Default timing.System().
	Clock timing.Clock

	// JoinTimeout is the first wait for a worker to exit on Stop;
	// InterruptTimeout is the retry after forcing the handle closed.
	JoinTimeout      time.Duration
	InterruptTimeout time.Duration

	// DrainWindow is slept between worker join and handle close so
	// residual overlapped-I/O completions inside the diversion library
	// settle before the handle goes away.
	DrainWindow time.Duration

	// SendErrorReportLimit caps how many consecutive send failures are
	// surfaced as error events. Default constants.SendErrorReportLimit.
	SendErrorReportLimit int
}

// Stats holds the engine's monotonic counters.
// All fields use atomic operations - no mutex required.
type Stats struct {
	PacketsCaptured atomic.Uint64
	PacketsDelayed  atomic.Uint64
	PacketsSent     atomic.Uint64
	SendErrors      atomic.Uint64
}

// Engine is the delay core controller. It transitions between Idle and
// Running; public methods may be called from any goroutine.
type Engine struct {
	cfg Config

	mu       sync.Mutex // serializes state transitions
	handle   divert.Handle
	running  atomic.Bool
	disposed atomic.Bool
	delayMs  atomic.Int64

	buffer *Buffer
	clock  timing.Clock
	open   func(divert.Config) (divert.Handle, error)

	captureDone chan struct{}
	releaseDone chan struct{}

	sendErrorReportLimit int
	stats                Stats
}

// New creates an engine in the Idle state.
func New(config Config) *Engine {
	if config.Filter == "" {
		config.Filter = "true"
	}
	if config.OpenHandle == nil {
		config.OpenHandle = divert.Open
	}
	if config.Clock == nil {
		config.Clock = timing.System()
	}
	if config.JoinTimeout == 0 {
		config.JoinTimeout = constants.CaptureJoinTimeout
	}
	if config.InterruptTimeout == 0 {
		config.InterruptTimeout = constants.WorkerInterruptTimeout
	}
	if config.DrainWindow == 0 {
		config.DrainWindow = constants.HandleDrainWindow
	}
	if config.SendErrorReportLimit == 0 {
		config.SendErrorReportLimit = constants.SendErrorReportLimit
	}

	return &Engine{
		cfg:                  config,
		buffer:               NewBuffer(),
		clock:                config.Clock,
		open:                 config.OpenHandle,
		sendErrorReportLimit: config.SendErrorReportLimit,
	}
}

// Start opens the diversion handle and spawns both workers. The engine
// must be Idle. delayMs is the per-packet hold time in milliseconds;
// clamping to [0, 1000] is the caller's responsibility.
func (e *Engine) Start(delayMs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed.Load() {
		return fmt.Errorf("engine is disposed")
	}
	if e.running.Load() {
		return fmt.Errorf("engine already running")
	}

	e.delayMs.Store(int64(delayMs))
	e.clock.RaiseResolution()

	handle, err := e.open(divert.Config{Filter: e.cfg.Filter, Priority: 0})
	if err != nil {
		e.clock.LowerResolution()
		logger.Error("Failed to open diversion handle", "error", err, "filter", e.cfg.Filter)
		e.emitError(fmt.Sprintf(
			"Could not open packet diversion handle: %v. "+
				"Make sure the program runs with administrator privileges "+
				"and no other process holds the driver.", err))
		return fmt.Errorf("open diversion handle: %w", err)
	}
	e.handle = handle

	e.running.Store(true)
	e.buffer.Clear()

	e.captureDone = make(chan struct{})
	e.releaseDone = make(chan struct{})
	go e.captureLoop(handle, e.captureDone)
	go e.releaseLoop(handle, e.releaseDone)

	logger.Info("Engine started", "delay_ms", delayMs, "filter", e.cfg.Filter)
	e.emitStatus(fmt.Sprintf("Engine started with %dms delay.", delayMs))
	return nil
}

// Stop shuts the handle down, joins both workers, drains residual I/O
// completions, closes the handle, and empties the buffer. Idempotent:
// stopping an Idle engine is a silent no-op. Stop returns only when the
// engine is fully torn down.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if !e.running.Load() {
		return
	}
	e.running.Store(false)

	// Shutting the handle down is what unblocks the capture worker's
	// receive; shutdown errors carry no information here.
	if err := e.handle.Shutdown(); err != nil {
		logger.Debug("Handle shutdown error ignored", "error", err)
	}

	handleClosed := false
	if !waitDone(e.captureDone, e.cfg.JoinTimeout) {
		logger.Warn("Capture worker missed join deadline, forcing handle closed")
		_ = e.handle.Close()
		handleClosed = true
		if !waitDone(e.captureDone, e.cfg.InterruptTimeout) {
			logger.Error("Capture worker did not exit after interrupt")
		}
	}
	if !waitDone(e.releaseDone, e.cfg.JoinTimeout) {
		logger.Warn("Release worker missed join deadline, forcing handle closed")
		if !handleClosed {
			_ = e.handle.Close()
			handleClosed = true
		}
		if !waitDone(e.releaseDone, e.cfg.InterruptTimeout) {
			logger.Error("Release worker did not exit after interrupt")
		}
	}

	// Drain window: overlapped-I/O completions inside the diversion
	// library can still fire after both workers are joined. Let them
	// settle before the handle goes away.
	time.Sleep(e.cfg.DrainWindow)
	runtime.Gosched()

	if !handleClosed {
		_ = e.handle.Close()
	}
	e.handle = nil

	dropped := e.buffer.Clear()
	e.clock.LowerResolution()

	logger.Info("Engine stopped", "packets_dropped", dropped)
	e.emitStatus("Engine stopped.")
}

// UpdateDelay changes the hold time for packets captured from now on.
// Packets already queued keep their original deadlines. No restart.
func (e *Engine) UpdateDelay(delayMs int) {
	if e.disposed.Load() {
		return
	}
	e.delayMs.Store(int64(delayMs))
	logger.Info("Delay updated", "delay_ms", delayMs)
	e.emitStatus(fmt.Sprintf("Delay updated to %dms.", delayMs))
}

// Close stops the engine and suppresses all further event delivery.
// Subsequent calls to any method are no-ops or errors.
func (e *Engine) Close() {
	e.disposed.Store(true)
	e.Stop()
}

// IsRunning reports whether the engine is in the Running state.
func (e *Engine) IsRunning() bool { return e.running.Load() }

// CurrentDelay returns the hold time applied to newly captured packets.
func (e *Engine) CurrentDelay() int { return int(e.delayMs.Load()) }

// QueuedPacketCount returns the number of packets waiting for release.
func (e *Engine) QueuedPacketCount() int { return e.buffer.Len() }

// StatsValues returns a snapshot of the engine's counters.
func (e *Engine) StatsValues() (captured, delayed, sent, sendErrors uint64) {
	return e.stats.PacketsCaptured.Load(),
		e.stats.PacketsDelayed.Load(),
		e.stats.PacketsSent.Load(),
		e.stats.SendErrors.Load()
}

func (e *Engine) emitStatus(text string) {
	if e.disposed.Load() {
		return
	}
	if cb := e.cfg.OnStatus; cb != nil {
		cb(text)
	}
}

func (e *Engine) emitError(text string) {
	if e.disposed.Load() {
		return
	}
	if cb := e.cfg.OnError; cb != nil {
		cb(text)
	}
}

func waitDone(ch <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}
