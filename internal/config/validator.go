package config

import (
	"fmt"
	"time"
)

// Validate checks configuration consistency and returns an error
// describing the first problem found.
func Validate(cfg *Config) error {
	if cfg.Scheduler.MaxWorkers < 0 {
		return fmt.Errorf("scheduler.max_workers must be >= 0")
	}
	if _, err := time.ParseDuration(cfg.Scheduler.PollInterval); err != nil {
		return fmt.Errorf("scheduler.poll_interval: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Scheduler.RepairInterval); err != nil {
		return fmt.Errorf("scheduler.repair_interval: %w", err)
	}

	if cfg.Agents.Planner.Path == "" {
		return fmt.Errorf("agents.planner.path is required")
	}
	if cfg.Agents.Worker.Path == "" {
		return fmt.Errorf("agents.worker.path is required")
	}
	if err := validateAgentTimeout("agents.planner.timeout", cfg.Agents.Planner.Timeout); err != nil {
		return err
	}
	if err := validateAgentTimeout("agents.worker.timeout", cfg.Agents.Worker.Timeout); err != nil {
		return err
	}
	if cfg.Agents.Judge.Path != "" {
		if err := validateAgentTimeout("agents.judge.timeout", cfg.Agents.Judge.Timeout); err != nil {
			return err
		}
	}

	switch cfg.GitHub.MergeStrategy {
	case "merge", "squash", "rebase":
	default:
		return fmt.Errorf("github.merge_strategy must be one of merge, squash, rebase, got %q", cfg.GitHub.MergeStrategy)
	}
	if _, err := time.ParseDuration(cfg.GitHub.ChecksTimeout); err != nil {
		return fmt.Errorf("github.checks_timeout: %w", err)
	}

	if len(cfg.Gates.Skip) > 0 && len(cfg.Gates.Only) > 0 {
		return fmt.Errorf("gates.skip and gates.only are mutually exclusive")
	}

	if cfg.History.Enabled && cfg.History.Path == "" {
		return fmt.Errorf("history.path is required when history.enabled is true")
	}

	if cfg.StatusHTTP.Enabled && cfg.StatusHTTP.Addr == "" {
		return fmt.Errorf("status_http.addr is required when status_http.enabled is true")
	}

	return nil
}

func validateAgentTimeout(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}
