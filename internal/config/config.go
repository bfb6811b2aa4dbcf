package config

// Config holds all supervisor configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Repo        RepoConfig        `mapstructure:"repo"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Runner      RunnerConfig      `mapstructure:"runner"`
	Agents      AgentsConfig      `mapstructure:"agents"`
	Git         GitConfig         `mapstructure:"git"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	Gates       GatesConfig       `mapstructure:"gates"`
	ProcWindow  ProcWindowConfig  `mapstructure:"proc_window"`
	History     HistoryConfig     `mapstructure:"history"`
	StatusHTTP  StatusHTTPConfig  `mapstructure:"status_http"`
	Board       BoardConfig       `mapstructure:"board"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RepoConfig locates the control plane within the repository.
type RepoConfig struct {
	// ControlDir is the path to the control-plane directory, relative to
	// the repository root. Default ".orchestrator".
	ControlDir string `mapstructure:"control_dir"`
}

// SchedulerConfig configures the tick loop.
type SchedulerConfig struct {
	MaxWorkers      int      `mapstructure:"max_workers"`
	PollInterval    string   `mapstructure:"poll_interval"`
	RepairInterval  string   `mapstructure:"repair_interval"`
	TaskBranchGlob  string   `mapstructure:"task_branch_glob"`
	LockedWorkstreams    []string `mapstructure:"locked_workstreams"`
	ParallelOnlyStreams  []string `mapstructure:"parallel_only_workstreams"`
	// RepairAfterSeconds is how stale (by updatedAt) a failing/CONFLICTING
	// PR check rollup must be before the repair pass picks it up.
	RepairAfterSeconds int `mapstructure:"repair_after_seconds"`
	// MaxRepairsPerTick caps how many repair candidates one tick re-runs.
	MaxRepairsPerTick int `mapstructure:"max_repairs_per_tick"`
	// WorktreeParent is the directory under which task worktrees are
	// materialized; defaults to the repo's parent directory.
	WorktreeParent string `mapstructure:"worktree_parent"`
}

// RunnerConfig configures the per-task Runner's worker invocation and
// terminal state.
type RunnerConfig struct {
	// MaxWorkerSeconds bounds how long the Worker subprocess may run
	// before it is killed and the task is left active with a timeout note.
	MaxWorkerSeconds int `mapstructure:"max_worker_seconds"`
	// FinalState is the lifecycle state a task advances to when gates and
	// ownership both pass (ready_for_review, or done for fully-autonomous
	// pipelines that skip human review).
	FinalState string `mapstructure:"final_state"`
	// NetworkWorkstreams lists the workstreams for which the Worker is
	// invoked with network access enabled (e.g. ETL/data-fetch tasks).
	NetworkWorkstreams []string `mapstructure:"network_workstreams"`
}

// AgentsConfig configures the external Planner and Worker agent CLIs.
type AgentsConfig struct {
	Planner AgentConfig `mapstructure:"planner"`
	Worker  AgentConfig `mapstructure:"worker"`
	Judge   AgentConfig `mapstructure:"judge"`
}

// AgentConfig configures a single agent CLI invocation.
type AgentConfig struct {
	// Path is the executable to invoke (e.g. "claude", "codex").
	Path string `mapstructure:"path"`
	// Args is the argument template; "{prompt}" and "{workdir}" are
	// substituted at invocation time.
	Args    []string `mapstructure:"args"`
	Model   string   `mapstructure:"model"`
	Timeout string   `mapstructure:"timeout"`
	Sandbox bool     `mapstructure:"sandbox"`
}

// GitConfig configures git worktree and branch behavior.
type GitConfig struct {
	WorktreeDir  string `mapstructure:"worktree_dir"`
	AutoClean    bool   `mapstructure:"auto_clean"`
	BranchPrefix string `mapstructure:"branch_prefix"`
	BaseBranch   string `mapstructure:"base_branch"`
}

// GitHubConfig configures PR creation via the gh CLI.
type GitHubConfig struct {
	Remote        string `mapstructure:"remote"`
	AutoPR        bool   `mapstructure:"auto_pr"`
	AutoMerge     bool   `mapstructure:"auto_merge"`
	MergeStrategy string `mapstructure:"merge_strategy"`
	ChecksTimeout string `mapstructure:"checks_timeout"`
}

// GatesConfig configures the gate battery: which gates to skip/run, and
// where each gate looks for the repository artifacts it validates.
type GatesConfig struct {
	Skip []string `mapstructure:"skip"`
	Only []string `mapstructure:"only"`

	// ProjectContractPath is the single top-level configuration file
	// declaring `mode` (§3 Project Contract).
	ProjectContractPath string `mapstructure:"project_contract_path"`
	// ProtocolDocPath is the Markdown doc checked by protocol_complete.
	ProtocolDocPath string `mapstructure:"protocol_doc_path"`
	// WorkstreamsTablePath is the Markdown file holding the `|Wn|...|`
	// workstreams table checked by workstreams_complete.
	WorkstreamsTablePath string `mapstructure:"workstreams_table_path"`
	// ModelSpecCandidates are tried in order by model_spec_complete;
	// the first that exists is validated.
	ModelSpecCandidates []string `mapstructure:"model_spec_candidates"`
	// ContractsDir and its two discipline-tracking files.
	ContractsDir            string `mapstructure:"contracts_dir"`
	ContractsDecisionsPath  string `mapstructure:"contracts_decisions_path"`
	ContractsChangelogPath  string `mapstructure:"contracts_changelog_path"`
	// RegistryDir and its changelog, mirroring the contracts pair.
	RegistryDir           string `mapstructure:"registry_dir"`
	RegistryChangelogPath string `mapstructure:"registry_changelog_path"`
	// RawManifestDir holds the JSON manifests validated by
	// raw_manifest_validity and written by internal/manifest.
	RawManifestDir string `mapstructure:"raw_manifest_dir"`
	// PanelSchemaPath is the schema file checked by
	// panel_schema_nonempty (spec.md §9 decision (c): the newer of two
	// historical names, panel_schema_str_v1.yaml).
	PanelSchemaPath string `mapstructure:"panel_schema_path"`
	// SamplePanelPath is the CSV checked by sample_panel_integrity, when
	// present; its absence makes that gate a no-op, not a failure.
	SamplePanelPath string `mapstructure:"sample_panel_path"`
	// BaseRefEnvVar names the environment variable (GATE_BASE_REF) that
	// overrides the git ref diff-based gates compare against.
	BaseRefEnvVar string `mapstructure:"base_ref_env_var"`
}

// ProcWindowConfig configures the tmux-backed process-window service.
type ProcWindowConfig struct {
	Session string `mapstructure:"session"`
	LogDir  string `mapstructure:"log_dir"`
}

// HistoryConfig configures the non-authoritative tick-history ledger.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// StatusHTTPConfig configures the optional read-only status server.
type StatusHTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// BoardConfig configures the terminal board viewer.
type BoardConfig struct {
	RefreshInterval string `mapstructure:"refresh_interval"`
}
