package workeragent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/workeragent"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

func TestAdapter_Execute_CapturesStdout(t *testing.T) {
	a := workeragent.New("worker", "/bin/echo", []string{"{prompt}"}, "", 5*time.Second, false, testLogger())

	res, err := a.Execute(context.Background(), core.ExecuteOptions{Prompt: "hello task"})
	require.NoError(t, err)
	assert.Equal(t, "hello task\n", res.Output)
}

func TestAdapter_Execute_NonZeroExitIsError(t *testing.T) {
	a := workeragent.New("worker", "/bin/false", nil, "", 5*time.Second, false, testLogger())

	_, err := a.Execute(context.Background(), core.ExecuteOptions{Prompt: "x"})
	require.Error(t, err)
}

func TestAdapter_Execute_EmptyPathIsValidationError(t *testing.T) {
	a := workeragent.New("worker", "", nil, "", 0, false, testLogger())

	_, err := a.Execute(context.Background(), core.ExecuteOptions{Prompt: "x"})
	require.Error(t, err)
}

func TestAdapter_Ping_MissingExecutable(t *testing.T) {
	a := workeragent.New("worker", "/no/such/executable-xyz", nil, "", 0, false, testLogger())
	err := a.Ping(context.Background())
	require.Error(t, err)
}

func TestAdapter_Ping_ResolvesOnPath(t *testing.T) {
	a := workeragent.New("worker", "/bin/echo", nil, "", 0, false, testLogger())
	require.NoError(t, a.Ping(context.Background()))
}

func TestAdapter_Execute_ModelPlaceholderDroppedWhenEmpty(t *testing.T) {
	// "echo --model {model} {prompt}" with no model configured should drop
	// the {model} token entirely rather than emit a literal "--model".
	a := workeragent.New("worker", "/bin/echo", []string{"--model", "{model}", "{prompt}"}, "", 5*time.Second, false, testLogger())

	res, err := a.Execute(context.Background(), core.ExecuteOptions{Prompt: "x"})
	require.NoError(t, err)
	assert.False(t, strings.Contains(res.Output, "--model"))
}

func TestAdapter_Execute_ModelPlaceholderSubstituted(t *testing.T) {
	a := workeragent.New("worker", "/bin/echo", []string{"--model", "{model}", "{prompt}"}, "claude-x", 5*time.Second, false, testLogger())

	res, err := a.Execute(context.Background(), core.ExecuteOptions{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "--model claude-x x\n", res.Output)
}
