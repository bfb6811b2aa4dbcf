package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from flags, environment, config
// file, and built-in defaults.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
	mu         sync.Mutex
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "SWARM",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance,
// so CLI flag bindings made on the root command are honored.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v, envPrefix: "SWARM"}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load resolves configuration from, in increasing precedence: built-in
// defaults, .swarm/config.yaml (or $HOME/.config/supervisor/config.yaml),
// SWARM_* environment variables, and CLI flags bound via viper.BindPFlag.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".swarm")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "supervisor"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// ConfigFile returns the config file path actually used, if any.
func (l *Loader) ConfigFile() string {
	if l.configFile != "" {
		return l.configFile
	}
	return l.v.ConfigFileUsed()
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("repo.control_dir", ".orchestrator")

	l.v.SetDefault("scheduler.max_workers", 2)
	l.v.SetDefault("scheduler.poll_interval", "30s")
	l.v.SetDefault("scheduler.repair_interval", "5m")
	l.v.SetDefault("scheduler.task_branch_glob", "T[0-9][0-9][0-9]_*")
	l.v.SetDefault("scheduler.locked_workstreams", []string{})
	l.v.SetDefault("scheduler.parallel_only_workstreams", []string{})
	l.v.SetDefault("scheduler.repair_after_seconds", 14400)
	l.v.SetDefault("scheduler.max_repairs_per_tick", 1)
	l.v.SetDefault("scheduler.worktree_parent", "")

	l.v.SetDefault("runner.max_worker_seconds", 2700)
	l.v.SetDefault("runner.final_state", "ready_for_review")
	l.v.SetDefault("runner.network_workstreams", []string{"W1", "W2"})

	l.v.SetDefault("agents.planner.path", "claude")
	l.v.SetDefault("agents.planner.timeout", "10m")
	l.v.SetDefault("agents.worker.path", "codex")
	l.v.SetDefault("agents.worker.timeout", "45m")
	l.v.SetDefault("agents.worker.sandbox", true)
	l.v.SetDefault("agents.judge.path", "claude")
	l.v.SetDefault("agents.judge.timeout", "10m")

	l.v.SetDefault("git.worktree_dir", ".worktrees")
	l.v.SetDefault("git.auto_clean", true)
	l.v.SetDefault("git.branch_prefix", "")
	l.v.SetDefault("git.base_branch", "")

	l.v.SetDefault("github.remote", "origin")
	l.v.SetDefault("github.auto_pr", true)
	l.v.SetDefault("github.auto_merge", true)
	l.v.SetDefault("github.merge_strategy", "squash")
	l.v.SetDefault("github.checks_timeout", "20m")

	l.v.SetDefault("gates.skip", []string{})
	l.v.SetDefault("gates.only", []string{})
	l.v.SetDefault("gates.project_contract_path", "contracts/project.yaml")
	l.v.SetDefault("gates.protocol_doc_path", "docs/protocol.md")
	l.v.SetDefault("gates.workstreams_table_path", "docs/workstreams.md")
	l.v.SetDefault("gates.model_spec_candidates", []string{"docs/model_spec.md", "model/spec.md", "model/spec.yaml"})
	l.v.SetDefault("gates.contracts_dir", "contracts")
	l.v.SetDefault("gates.contracts_decisions_path", "contracts/decisions.md")
	l.v.SetDefault("gates.contracts_changelog_path", "contracts/CHANGELOG.md")
	l.v.SetDefault("gates.registry_dir", "registry")
	l.v.SetDefault("gates.registry_changelog_path", "registry/CHANGELOG.md")
	l.v.SetDefault("gates.raw_manifest_dir", "data/raw_manifest")
	l.v.SetDefault("gates.panel_schema_path", "schemas/panel_schema_str_v1.yaml")
	l.v.SetDefault("gates.sample_panel_path", "data/sample_panel.csv")
	l.v.SetDefault("gates.base_ref_env_var", "GATE_BASE_REF")

	l.v.SetDefault("proc_window.session", "supervisor")
	l.v.SetDefault("proc_window.log_dir", "data/tmp/swarm_logs")

	l.v.SetDefault("history.enabled", true)
	l.v.SetDefault("history.path", ".swarm/history.db")

	l.v.SetDefault("status_http.enabled", false)
	l.v.SetDefault("status_http.addr", "127.0.0.1:8787")

	l.v.SetDefault("board.refresh_interval", "2s")
}
