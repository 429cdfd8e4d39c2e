package run

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/huttala/ping-delayer/internal/pkg/constants"
	"github.com/huttala/ping-delayer/internal/pkg/delay"
	"github.com/huttala/ping-delayer/internal/pkg/logger"
	"github.com/huttala/ping-delayer/internal/pkg/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the delay engine",
	Long: `Start the delay engine. All IP traffic is held for the configured
duration and re-injected in order until the process is interrupted.`,
	Run: runEngine,
}

var (
	delayMs int
	filter  string
)

// queueSampleInterval matches the ~10 Hz cadence a control panel polls
// queue depth at.
const queueSampleInterval = 100 * time.Millisecond

func runEngine(cmd *cobra.Command, args []string) {
	engine := delay.New(delay.Config{
		Filter: viper.GetString("filter"),
		OnStatus: func(text string) {
			logger.Info(text)
		},
		OnError: func(text string) {
			logger.Error(text)
		},
	})

	if err := engine.Start(clampDelay(viper.GetInt("delay"))); err != nil {
		logger.Error("Engine start failed", "error", err)
		os.Exit(1)
	}

	// Editing the config file while running updates the delay in place;
	// already-queued packets keep their deadlines.
	viper.OnConfigChange(func(fsnotify.Event) {
		d := clampDelay(viper.GetInt("delay"))
		if d != engine.CurrentDelay() {
			engine.UpdateDelay(d)
		}
	})
	viper.WatchConfig()

	ctx, cancel := context.WithCancel(context.Background())
	cleanup := signals.SetupHandlerWithCallback(ctx, cancel)
	defer cleanup()

	ticker := time.NewTicker(queueSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			engine.Stop()
			captured, delayed, sent, sendErrors := engine.StatsValues()
			logger.Info("Final statistics",
				"packets_captured", captured,
				"packets_delayed", delayed,
				"packets_sent", sent,
				"send_errors", sendErrors)
			return
		case <-ticker.C:
			if logger.IsDebugEnabled() {
				logger.Debug("Queue depth", "queued", engine.QueuedPacketCount())
			}
		}
	}
}

// clampDelay keeps the configured hold time inside the range the engine
// supports. The engine itself trusts its caller.
func clampDelay(d int) int {
	if d < 0 {
		return 0
	}
	if d > constants.MaxDelayMs {
		return constants.MaxDelayMs
	}
	return d
}

func init() {
	RunCmd.Flags().IntVarP(&delayMs, "delay", "d", 100, "per-packet hold time in milliseconds (0-1000)")
	RunCmd.Flags().StringVarP(&filter, "filter", "f", "true", "diversion filter expression")
	_ = viper.BindPFlag("delay", RunCmd.Flags().Lookup("delay"))
	_ = viper.BindPFlag("filter", RunCmd.Flags().Lookup("filter"))
}
