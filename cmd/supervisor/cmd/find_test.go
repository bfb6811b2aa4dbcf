package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const findTaskTemplate = `---
task_id: %s
title: "%s"
workstream: W1
role: Worker
priority: medium
dependencies: []
parallel_ok: true
allowed_paths:
  - src/
disallowed_paths: []
outputs: []
gates:
  - make test
stop_conditions: []
---

# %s

## Objective
x

## Acceptance Criteria
x

## Approach
x

## Status
- State: backlog
- Last updated: 2026-07-01

## Notes / Decisions

## Context
none
`

func writeFindTestTask(t *testing.T, controlDir, id, title string) {
	t.Helper()
	dir := filepath.Join(controlDir, "backlog")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := fmt.Sprintf(findTaskTemplate, id, title, id)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".md"), []byte(content), 0o644))
}

// withDefaultControlDir chdirs into a fresh temp directory containing an
// ".orchestrator" folder, the same default loadConfig's viper defaults
// resolve to when no config file is present, so runFind can be exercised
// without standing up a real config file.
func withDefaultControlDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".orchestrator"), 0o755))
	t.Chdir(dir)
	prevCfgFile := cfgFile
	cfgFile = ""
	t.Cleanup(func() { cfgFile = prevCfgFile })
	return filepath.Join(dir, ".orchestrator")
}

func captureFindStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := fn()

	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), runErr
}

func TestRunFind_MatchesByTitleBestFirst(t *testing.T) {
	controlDir := withDefaultControlDir(t)
	writeFindTestTask(t, controlDir, "T001", "Build the ETL loader")
	writeFindTestTask(t, controlDir, "T002", "Write integration tests")

	out, err := captureFindStdout(t, func() error {
		return runFind(findCmd, []string{"etl loader"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "T001")
	assert.NotContains(t, out, "T002")
}

func TestRunFind_NoMatchesPrintsMessage(t *testing.T) {
	controlDir := withDefaultControlDir(t)
	writeFindTestTask(t, controlDir, "T001", "Build the ETL loader")

	out, err := captureFindStdout(t, func() error {
		return runFind(findCmd, []string{"completely-unrelated-zzz-query"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "no matching tasks")
}

func TestRunFind_IncludesStateInOutput(t *testing.T) {
	controlDir := withDefaultControlDir(t)
	writeFindTestTask(t, controlDir, "T001", "Build the ETL loader")

	out, err := captureFindStdout(t, func() error {
		return runFind(findCmd, []string{"T001"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "backlog")
}

func TestFindCommandRegistered(t *testing.T) {
	var found bool
	for _, c := range rootCmd.Commands() {
		if c.Use == "find <query>" {
			found = true
			break
		}
	}
	assert.True(t, found, "find command should be registered with root command")
}

func TestFindCommandProperties(t *testing.T) {
	assert.NotNil(t, findCmd)
	assert.Equal(t, "find <query>", findCmd.Use)
	assert.NotNil(t, findCmd.RunE)
}
