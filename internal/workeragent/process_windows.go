//go:build windows

package workeragent

import "os/exec"

// configureProcAttr is a no-op on Windows (Setpgid not supported).
func configureProcAttr(_ *exec.Cmd) {}

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

// GracefulKill on Windows falls back to Process.Kill().
func (a *Adapter) GracefulKill() error {
	a.mu.Lock()
	cmd := a.activeCmd
	a.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
