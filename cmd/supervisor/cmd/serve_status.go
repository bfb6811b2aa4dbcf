package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskswarm/supervisor/internal/adapters/git"
	"github.com/taskswarm/supervisor/internal/history"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/statusserver"
	"github.com/taskswarm/supervisor/internal/taskstore"
	"github.com/taskswarm/supervisor/internal/vcs"
)

var serveStatusAddr string

var serveStatusCmd = &cobra.Command{
	Use:   "serve-status",
	Short: "Serve the read-only HTTP status endpoint until interrupted",
	Long: `serve-status starts the status HTTP server (health, status, and
tick-history endpoints) and blocks until SIGINT/SIGTERM, the same
foreground-until-signalled shape the tick loop itself uses.`,
	RunE: runServeStatus,
}

func init() {
	serveStatusCmd.Flags().StringVar(&serveStatusAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveStatusCmd)
}

func runServeStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if !cfg.StatusHTTP.Enabled && serveStatusAddr == "" {
		return fmt.Errorf("status_http is disabled in config; pass --addr to force it on")
	}

	gitClient, err := git.NewClient(".")
	if err != nil {
		return fmt.Errorf("opening git repository: %w", err)
	}
	claims := vcs.New(gitClient, openGitHubClient(log), cfg.GitHub.Remote, log)

	deps := statusserver.Deps{
		Tasks:  taskstore.New(cfg.Repo.ControlDir),
		Claims: claims,
		Logger: log,
	}
	if cfg.History.Enabled {
		histStore, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("opening tick history: %w", err)
		}
		defer histStore.Close()
		deps.History = histStore
	}

	srvCfg := statusserver.DefaultConfig()
	if cfg.StatusHTTP.Addr != "" {
		srvCfg.Addr = cfg.StatusHTTP.Addr
	}
	if serveStatusAddr != "" {
		srvCfg.Addr = serveStatusAddr
	}

	srv := statusserver.New(srvCfg, deps)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("serve-status: shutting down")
	return srv.Shutdown(context.Background())
}
