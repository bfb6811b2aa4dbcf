// Package procwindow implements core.ProcessWindowService over the tmux
// CLI, the terminal multiplexer the original supervisor script drove
// the same way: one named session per supervisor instance, one window
// per task the Scheduler fans out to a subprocess rather than running
// inline.
package procwindow

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/taskswarm/supervisor/internal/core"
)

// Compile-time interface conformance check.
var _ core.ProcessWindowService = (*Client)(nil)

// Client wraps the tmux CLI.
type Client struct {
	tmuxPath string
	timeout  time.Duration
}

// NewClient locates the tmux binary on PATH. It returns an error rather
// than deferring the failure to first use, since a supervisor
// configured for windowed dispatch with no tmux installed should fail
// at startup, not mid-tick.
func NewClient() (*Client, error) {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return nil, fmt.Errorf("tmux not found on PATH: %w", err)
	}
	return &Client{tmuxPath: path, timeout: 10 * time.Second}, nil
}

// WithTimeout sets the per-command timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

func (c *Client) run(ctx context.Context, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.tmuxPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out, errOut := strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return out, errOut, core.ErrTimeout("tmux command timed out")
		}
		return out, errOut, fmt.Errorf("tmux %s: %s: %w", strings.Join(args, " "), errOut, err)
	}
	return out, errOut, nil
}

// EnsureSession creates session if it does not already exist
// (implements core.ProcessWindowService).
func (c *Client) EnsureSession(ctx context.Context, session string) error {
	if _, _, err := c.run(ctx, "has-session", "-t", session); err == nil {
		return nil
	}
	_, _, err := c.run(ctx, "new-session", "-d", "-s", session)
	return err
}

// SpawnWindow creates a window within session running command through a
// login shell, the same "bash -lc" wrapping the original used so PATH
// and environment behave the way an interactive terminal's would. It
// returns the window's tmux target ("session:window").
func (c *Client) SpawnWindow(ctx context.Context, session, window, command string) (string, error) {
	_, _, err := c.run(ctx, "new-window", "-t", session, "-n", window, "bash", "-lc", command)
	if err != nil {
		return "", err
	}
	return session + ":" + window, nil
}

// ListWindows returns the window names currently open in session
// (implements core.ProcessWindowService).
func (c *Client) ListWindows(ctx context.Context, session string) ([]string, error) {
	out, _, err := c.run(ctx, "list-windows", "-t", session, "-F", "#{window_name}")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// KillWindow terminates a single window without affecting the rest of
// the session (implements core.ProcessWindowService).
func (c *Client) KillWindow(ctx context.Context, session, window string) error {
	_, _, err := c.run(ctx, "kill-window", "-t", session+":"+window)
	return err
}
