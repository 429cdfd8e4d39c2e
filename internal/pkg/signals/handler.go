package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/huttala/ping-delayer/internal/pkg/logger"
)

// SetupHandlerWithCallback sets up a signal handler that calls the provided callback on signal receipt
// Returns a cleanup function that should be called when the signal handler is no longer needed
func SetupHandlerWithCallback(ctx context.Context, onSignal func()) (cleanup func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, invoking callback", "signal", sig.String())
			onSignal()
		case <-ctx.Done():
			// Context cancelled, no callback needed
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(sigCh)
		<-done // Wait for goroutine to exit
	}
}

// WaitForSignal blocks until SIGINT or SIGTERM is received
func WaitForSignal() os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("Received signal", "signal", sig.String())
	return sig
}
