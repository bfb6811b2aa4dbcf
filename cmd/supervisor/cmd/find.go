package cmd

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/taskswarm/supervisor/internal/config"
	"github.com/taskswarm/supervisor/internal/taskstore"
)

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Fuzzy-search tasks by id or title",
	Long: `find searches every task descriptor's id and title for the
closest fuzzy match to query, the same ranking sahilm/fuzzy gives
command-history search elsewhere in this stack, and prints the
matching tasks best-match first.`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)
}

func runFind(_ *cobra.Command, args []string) error {
	query := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := taskstore.New(cfg.Repo.ControlDir)
	tasks, err := store.List()
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	haystack := make([]string, len(tasks))
	for i, t := range tasks {
		haystack[i] = strings.ToLower(string(t.ID) + " " + t.Title)
	}

	matches := fuzzy.Find(strings.ToLower(query), haystack)
	if len(matches) == 0 {
		fmt.Println("no matching tasks")
		return nil
	}

	for _, m := range matches {
		t := tasks[m.Index]
		fmt.Printf("%s  [%s]  %s\n", t.ID, t.State, t.Title)
	}
	return nil
}

// loadConfig resolves the supervisor config the same way the root
// command's PersistentPreRunE does, for subcommands that need typed
// access to it rather than raw viper lookups.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	return loader.Load()
}
