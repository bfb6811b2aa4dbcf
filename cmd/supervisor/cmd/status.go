package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/taskswarm/supervisor/internal/adapters/git"
	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/history"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/planner"
	"github.com/taskswarm/supervisor/internal/taskstore"
	"github.com/taskswarm/supervisor/internal/vcs"
)

var (
	statusShowHistory bool
	statusHistoryN    int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current done/claimed/ready task snapshot",
	Long: `status reads the task store and the claim tracker once, the
same inputs a tick would use to decide what to pick up next, and prints
them without starting any task. Pass --history to also print the most
recent ticks recorded in the tick ledger, if it is enabled.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowHistory, "history", false, "also print recent tick history")
	statusCmd.Flags().IntVar(&statusHistoryN, "history-limit", 20, "number of recent ticks to print with --history")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	store := taskstore.New(cfg.Repo.ControlDir)
	all, err := store.List()
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	doneIDs := map[core.TaskID]bool{}
	var backlog []*core.Task
	for _, t := range all {
		if t.State == core.StateDone {
			doneIDs[t.ID] = true
		}
		if t.State == core.StateBacklog {
			backlog = append(backlog, t)
		}
	}

	gitClient, err := git.NewClient(".")
	if err != nil {
		return fmt.Errorf("opening git repository: %w", err)
	}
	claims := vcs.New(gitClient, openGitHubClient(log), cfg.GitHub.Remote, log)

	claimedIDs, err := claims.ClaimedTaskIDs(ctx)
	if err != nil {
		return fmt.Errorf("computing claimed task ids: %w", err)
	}

	ready := planner.ComputeReady(backlog, doneIDs, claimedIDs)

	printTaskIDs("Done", sortedTaskIDs(doneIDs))
	printTaskIDs("Claimed", sortedTaskIDs(claimedIDs))
	printTaskIDs("Ready", taskIDsOf(ready))

	if statusShowHistory {
		if !cfg.History.Enabled {
			fmt.Println("\nHistory: disabled")
			return nil
		}
		histStore, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("opening tick history: %w", err)
		}
		defer histStore.Close()

		recs, err := histStore.RecentTicks(ctx, statusHistoryN)
		if err != nil {
			return fmt.Errorf("reading tick history: %w", err)
		}
		fmt.Printf("\nHistory (%d ticks):\n", len(recs))
		for _, r := range recs {
			fmt.Println(formatHistoryLine(r))
		}
	}

	return nil
}

// formatHistoryLine renders one tick-history row the way the CLI prints
// it, factored out so the formatting can be checked without a live
// ledger or terminal.
func formatHistoryLine(r history.Record) string {
	line := fmt.Sprintf("  #%d  %s  done=%d claimed=%d ready=%d started=%d repairs=%d",
		r.ID, r.Age(), r.DoneCount, r.ClaimedCount, r.ReadyCount, len(r.Started), len(r.Repairs))
	if r.Err != "" {
		line += fmt.Sprintf("  error=%q", r.Err)
	}
	return line
}

func printTaskIDs(label string, ids []string) {
	fmt.Printf("%s (%d):\n", label, len(ids))
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
}

func sortedTaskIDs(ids map[core.TaskID]bool) []string {
	out := make([]string, 0, len(ids))
	for id, present := range ids {
		if present {
			out = append(out, string(id))
		}
	}
	sort.Strings(out)
	return out
}

func taskIDsOf(tasks []*core.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = string(t.ID)
	}
	return out
}
