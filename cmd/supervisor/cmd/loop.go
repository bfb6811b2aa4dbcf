package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskswarm/supervisor/internal/config"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/scheduler"
)

var loopOnce bool

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run Scheduler ticks on scheduler.poll_interval until interrupted",
	Long: `loop runs the same single Tick "tick" does, but repeatedly on
scheduler.poll_interval, until SIGINT/SIGTERM. Each tick's outcome is
logged and, when history.enabled, recorded to the tick-history ledger.`,
	RunE: runLoop,
}

func init() {
	loopCmd.Flags().BoolVar(&loopOnce, "once", false, "run a single tick and exit, equivalent to \"tick\"")
	rootCmd.AddCommand(loopCmd)
}

func runLoop(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	pollInterval := 30 * time.Second
	if cfg.Scheduler.PollInterval != "" {
		d, err := time.ParseDuration(cfg.Scheduler.PollInterval)
		if err != nil {
			return fmt.Errorf("parsing scheduler.poll_interval: %w", err)
		}
		pollInterval = d
	}

	sched, opts, err := wireScheduler(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("loop: signal received, finishing current tick then stopping")
		cancel()
	}()

	for {
		runOneTick(ctx, cfg, log, sched, opts)
		if loopOnce || ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pollInterval):
		}
	}
}

func runOneTick(ctx context.Context, cfg *config.Config, log *logging.Logger, sched *scheduler.Scheduler, opts scheduler.Options) {
	startedAt := time.Now()
	result, tickErr := sched.Tick(ctx, opts)

	if tickErr != nil {
		log.Error("loop: tick failed", "error", tickErr)
	} else {
		log.Info("loop: tick complete",
			"done", len(result.Done), "claimed", len(result.Claimed), "ready", len(result.Ready),
			"selected", len(result.Selected), "started", len(result.Started), "repairs", len(result.Repairs))
	}

	if cfg.History.Enabled {
		if recErr := recordTickHistory(ctx, cfg.History.Path, startedAt, result, tickErr); recErr != nil {
			log.Warn("loop: failed to record history", "error", recErr)
		}
	}
}
