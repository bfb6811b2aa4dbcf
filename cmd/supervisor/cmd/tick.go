package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskswarm/supervisor/internal/history"
	"github.com/taskswarm/supervisor/internal/logging"
)

var (
	tickCapacity int
	tickDryRun   bool
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single plan-and-dispatch cycle",
	Long: `tick runs exactly one Scheduler tick: reconcile the supervisor's
own checkout, compute which backlog tasks are ready, select and
dispatch a batch, and repair any stalled pull requests. It exits after
the tick completes; use "loop" to run ticks on an interval.`,
	RunE: runTick,
}

func init() {
	tickCmd.Flags().IntVar(&tickCapacity, "capacity", 0, "max tasks to select this tick (0 uses scheduler.max_workers)")
	tickCmd.Flags().BoolVar(&tickDryRun, "dry-run", false, "compute the tick but do not dispatch any task")
	rootCmd.AddCommand(tickCmd)
}

func runTick(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	sched, opts, err := wireScheduler(cfg, log)
	if err != nil {
		return err
	}
	if tickCapacity > 0 {
		opts.Capacity = tickCapacity
	}
	opts.DryRun = tickDryRun

	ctx := context.Background()
	startedAt := time.Now()
	result, tickErr := sched.Tick(ctx, opts)

	if cfg.History.Enabled {
		if recErr := recordTickHistory(ctx, cfg.History.Path, startedAt, result, tickErr); recErr != nil {
			log.Warn("tick: failed to record history", "error", recErr)
		}
	}

	if tickErr != nil {
		return fmt.Errorf("tick failed: %w", tickErr)
	}

	fmt.Printf("done=%d claimed=%d ready=%d selected=%d started=%d repairs=%d\n",
		len(result.Done), len(result.Claimed), len(result.Ready),
		len(result.Selected), len(result.Started), len(result.Repairs))
	for _, s := range result.Started {
		fmt.Printf("  started %s on %s (%s)\n", s.TaskID, s.Branch, s.Worktree)
	}
	for _, r := range result.Repairs {
		fmt.Printf("  repaired %s PR#%d on %s\n", r.TaskID, r.PRNumber, r.Branch)
	}
	return nil
}
