package config

// DefaultConfigYAML contains the default configuration shipped by
// `supervisor init` and used whenever no .swarm/config.yaml exists.
const DefaultConfigYAML = `# supervisor configuration
# Values not specified here use the built-in defaults.

log:
  level: info
  format: auto

repo:
  control_dir: .orchestrator

scheduler:
  max_workers: 2
  poll_interval: 30s
  repair_interval: 5m
  task_branch_glob: "T[0-9][0-9][0-9]_*"
  locked_workstreams: []
  parallel_only_workstreams: []

agents:
  planner:
    path: claude
    args: ["-p", "{prompt}", "--output-format", "json", "--permission-mode", "bypassPermissions"]
    timeout: 10m
  worker:
    path: codex
    args: ["exec", "--sandbox", "workspace-write", "-c", "sandbox_workspace_write.network_access=true"]
    timeout: 45m
    sandbox: true
  judge:
    path: claude
    args: ["-p", "{prompt}", "--output-format", "json", "--permission-mode", "bypassPermissions"]
    timeout: 10m

git:
  worktree_dir: .worktrees
  auto_clean: true
  branch_prefix: ""
  base_branch: ""

github:
  remote: origin
  auto_pr: true
  auto_merge: true
  merge_strategy: squash
  checks_timeout: 20m

gates:
  skip: []
  only: []
  project_contract_path: contracts/project.yaml
  protocol_doc_path: docs/protocol.md
  workstreams_table_path: docs/workstreams.md
  model_spec_candidates:
    - docs/model_spec.md
    - model/spec.md
    - model/spec.yaml
  contracts_dir: contracts
  contracts_decisions_path: contracts/decisions.md
  contracts_changelog_path: contracts/CHANGELOG.md
  registry_dir: registry
  registry_changelog_path: registry/CHANGELOG.md
  raw_manifest_dir: data/raw_manifest
  panel_schema_path: schemas/panel_schema_str_v1.yaml
  sample_panel_path: data/sample_panel.csv
  base_ref_env_var: GATE_BASE_REF

proc_window:
  session: supervisor
  log_dir: data/tmp/swarm_logs

history:
  enabled: true
  path: .swarm/history.db

status_http:
  enabled: false
  addr: 127.0.0.1:8787

board:
  refresh_interval: 2s
`
