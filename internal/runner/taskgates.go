package runner

import (
	"bytes"
	"context"
	"os/exec"
)

// gateOutputTailBytes is how much of a declared gate's combined output
// the Judge step keeps, per spec.md's "capture the last 2KB of output".
const gateOutputTailBytes = 2000

// runDeclaredGates runs each of a task's own declared gate commands (not
// the repository-structure gate battery in internal/gates) as a shell
// command in workdir, capturing combined stdout+stderr. It passes only
// if every command exits zero.
func runDeclaredGates(ctx context.Context, workdir string, gateCmds []string) ([]GateOutput, bool) {
	outputs := make([]GateOutput, 0, len(gateCmds))
	allOK := true
	for _, gate := range gateCmds {
		out, code := runShell(ctx, workdir, gate)
		outputs = append(outputs, GateOutput{
			Command:  gate,
			ExitCode: code,
			Output:   tailBytes(out, gateOutputTailBytes),
		})
		if code != 0 {
			allOK = false
		}
	}
	return outputs, allOK
}

func runShell(ctx context.Context, workdir, command string) (string, int) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = workdir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if err == nil {
		return buf.String(), 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return buf.String(), exitErr.ExitCode()
	}
	return buf.String() + "\n" + err.Error(), -1
}

func tailBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
