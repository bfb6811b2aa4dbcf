package cmd

import (
	"time"

	"github.com/taskswarm/supervisor/internal/adapters/github"
	"github.com/taskswarm/supervisor/internal/config"
	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/workeragent"
)

// buildAgent resolves a configured agent CLI into a core.Agent, or nil
// when no executable path is configured (the heuristic fallback each
// caller uses in that case: no Planner agent means the built-in
// ready-order Planner, no Judge agent means a plain declared-gates
// check with no best-effort review).
func buildAgent(name string, cfg config.AgentConfig, log *logging.Logger) core.Agent {
	if cfg.Path == "" {
		return nil
	}
	timeout := 10 * time.Minute
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil {
			timeout = d
		}
	}
	return workeragent.New(name, cfg.Path, cfg.Args, cfg.Model, timeout, cfg.Sandbox, log)
}

// openGitHubClient detects the GitHub repository via the gh CLI, per
// internal/vcs.New's own doc comment: github may be nil if the
// repository has no configured GitHub remote (PR-based claims and PR
// creation are simply skipped, rather than the whole command failing
// because gh isn't installed or authenticated).
func openGitHubClient(log *logging.Logger) core.GitHubClient {
	client, err := github.NewClientFromRepo()
	if err != nil {
		log.Warn("github: repository detection failed, PR-based signals disabled", "error", err)
		return nil
	}
	return github.NewPortAdapter(client)
}
