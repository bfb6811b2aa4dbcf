// Package workeragent invokes the external Planner/Worker/Judge CLI
// agents as black-box subprocesses: build an argument list from a
// configured template, run it with a hard timeout, capture stdout, and
// make sure a runaway child (and anything it spawned) is actually gone
// when the caller gives up on it.
package workeragent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/logging"
)

// gracePeriod is how long GracefulKill waits after SIGTERM before
// escalating to SIGKILL.
const gracePeriod = 10 * time.Second

// Adapter invokes one configured CLI agent (Planner, Worker, or Judge)
// as a subprocess. It implements core.Agent so it can be registered in
// a core.AgentRegistry and passed to internal/planner.SelectViaAgent
// without either package knowing it shells out.
type Adapter struct {
	name    string
	path    string
	argTmpl []string
	model   string
	timeout time.Duration
	sandbox bool
	logger  *logging.Logger

	mu        sync.Mutex
	activeCmd *exec.Cmd
}

var _ core.Agent = (*Adapter)(nil)

// New builds an Adapter from a resolved agent CLI configuration. argTmpl
// entries containing "{prompt}" or "{workdir}" are substituted at
// Execute time; entries containing "{model}" are substituted when model
// is non-empty, else dropped.
func New(name, path string, argTmpl []string, model string, timeout time.Duration, sandbox bool, logger *logging.Logger) *Adapter {
	return &Adapter{
		name:    name,
		path:    path,
		argTmpl: argTmpl,
		model:   model,
		timeout: timeout,
		sandbox: sandbox,
		logger:  logger,
	}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() core.Capabilities {
	return core.Capabilities{
		SupportsJSON: true,
		DefaultModel: a.model,
	}
}

// Ping verifies the configured executable resolves on PATH or as an
// absolute/relative path, without running it.
func (a *Adapter) Ping(_ context.Context) error {
	if a.path == "" {
		return core.ErrValidation("AGENT_PATH_EMPTY", fmt.Sprintf("agent %q has no configured path", a.name))
	}
	if _, err := exec.LookPath(a.path); err != nil {
		if _, statErr := os.Stat(a.path); statErr != nil {
			return core.ErrExecution("AGENT_NOT_FOUND", fmt.Sprintf("agent %q CLI %q not found: %v", a.name, a.path, err))
		}
	}
	return nil
}

// Execute renders the argument template, runs the CLI in its own
// process group with a hard timeout, and returns its captured stdout.
// A non-zero exit is reported as an error carrying the captured stderr.
func (a *Adapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	if a.path == "" {
		return nil, core.ErrValidation("AGENT_PATH_EMPTY", fmt.Sprintf("agent %q has no configured path", a.name))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = a.timeout
	}
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := opts.Model
	if model == "" {
		model = a.model
	}
	args := a.renderArgs(opts.Prompt, opts.WorkDir, model)

	cmd := exec.CommandContext(runCtx, a.path, args...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	configureProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "TASKSWARM_AGENT="+a.name)

	a.logger.Info("workeragent: executing",
		"agent", a.name, "path", a.path, "args", args, "timeout", timeout)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, core.ErrExecution("AGENT_START_FAILED", err.Error())
	}
	a.setActiveProcess(cmd)
	defer a.clearActiveProcess()

	waitErr := cmd.Wait()
	duration := time.Since(start)

	if waitErr != nil {
		return nil, core.ErrExecution("AGENT_EXIT_NONZERO",
			fmt.Sprintf("agent %q exited with error: %v; stderr: %s", a.name, waitErr, truncate(stderr.String(), 2000)))
	}

	return &core.ExecuteResult{
		Output:   stdout.String(),
		Duration: duration,
		Model:    model,
	}, nil
}

// renderArgs substitutes {prompt}, {workdir}, and {model} placeholders
// into the configured argument template, dropping a {model} entry
// outright when no model is set.
func (a *Adapter) renderArgs(prompt, workdir, model string) []string {
	out := make([]string, 0, len(a.argTmpl))
	for _, tmpl := range a.argTmpl {
		if strings.Contains(tmpl, "{model}") && model == "" {
			continue
		}
		rendered := strings.NewReplacer(
			"{prompt}", prompt,
			"{workdir}", workdir,
			"{model}", model,
		).Replace(tmpl)
		out = append(out, rendered)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}
