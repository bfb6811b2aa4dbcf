//go:build !windows

package workeragent

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// configureProcAttr isolates the child into its own process group so the
// whole subtree it spawns can be signaled together.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (a *Adapter) setActiveProcess(cmd *exec.Cmd) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeCmd = cmd
}

func (a *Adapter) clearActiveProcess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeCmd = nil
}

// GracefulKill sends SIGTERM to the process group, waits for gracePeriod,
// then escalates to SIGKILL if the process hasn't exited. It does not
// call cmd.Wait(); that is the caller's job via the normal Execute flow.
func (a *Adapter) GracefulKill() error {
	a.mu.Lock()
	cmd := a.activeCmd
	a.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return fmt.Errorf("getpgid(%d): %w", pid, err)
	}

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		return fmt.Errorf("sigterm pgid %d: %w", pgid, err)
	}

	deadline := time.After(gracePeriod)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
			return nil
		case <-ticker.C:
			if err := syscall.Kill(pid, 0); err != nil {
				return nil
			}
		}
	}
}
