package runner

import (
	"fmt"
	"strings"

	"github.com/taskswarm/supervisor/internal/core"
)

// buildWorkerPrompt assembles the Worker's instructions: exactly one
// task, the path-ownership contract it must respect, and the
// requirement that it run its own declared gates before finishing.
func buildWorkerPrompt(task *core.Task, allowNetwork bool) string {
	lines := []string{
		fmt.Sprintf("Role: Worker. Task: %s", task.Path),
		"Follow AGENTS.md and any nested AGENTS.md files.",
		"Execute exactly ONE task (this task).",
		"Respect the allowed/disallowed paths declared in the task frontmatter.",
		"Edit ONLY the task file's `## Status` and `## Notes / Decisions` sections.",
		"Run the task's declared gates/commands before declaring success.",
	}
	if allowNetwork {
		lines = append(lines, "This task's workstream permits network access for data fetches.")
	} else {
		lines = append(lines, "No network access is available for this task.")
	}
	return strings.Join(lines, "\n")
}

// buildReviewPrompt assembles the Judge's best-effort review instructions.
func buildReviewPrompt(baseBranch string) string {
	return strings.Join([]string{
		"Role: Judge.",
		fmt.Sprintf("Review ONLY the uncommitted changes relative to %s.", baseBranch),
		"Check alignment with the task's success criteria and any obvious contract violations.",
		"Return a short, actionable bullet list. Do not propose scope creep.",
	}, "\n")
}

// buildPRBody assembles a pull request description summarizing the
// gates that ran and the task's resulting state.
func buildPRBody(task *core.Task, gateOutputs []GateOutput, newState core.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: `%s`\n", task.Path)
	fmt.Fprintf(&b, "State: `%s`\n\n", newState)
	b.WriteString("Gates run:\n")
	for _, g := range gateOutputs {
		fmt.Fprintf(&b, "- `%s` (exit=%d)\n", g.Command, g.ExitCode)
	}
	b.WriteString("\nNotes:\n")
	b.WriteString("- This PR was generated by the supervisor.\n")
	b.WriteString("- See the task file's Notes / Decisions for context.\n")
	return b.String()
}
