package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/tickmesh"
	"github.com/hupe1980/tickmesh/config"
	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockConfig = `version: 1
default_target: { provider: mock, model: echo }
tiers:
  CHEAP: { provider: mock, model: echo }
  MEDIUM: { provider: mock, model: echo }
  HQ: { provider: mock, model: echo }
  O3: { provider: mock, model: echo }
  O3-REASON: { provider: mock, model: echo }
agents:
  meta: [meta_planner]
  actors: [agent_media]
log:
  level: error
`

type harness struct {
	root   string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte(mockConfig), 0o644))
	return &harness{root: root, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	a := &app{
		stdout:  h.stdout,
		stderr:  h.stderr,
		newMesh: tickmesh.New,
		human: scheduler.HumanInputFunc(func(context.Context, scheduler.HumanRequest) (string, error) {
			return "", core.ErrAwaitingInput
		}),
	}
	return a.run(append(args, "--root", h.root))
}

func TestCLI_StepBeforeSetup(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, exitFatal, h.run("step", "-m", "hi"))
	assert.Contains(t, h.stderr.String(), "tickmesh setup")
}

func TestCLI_SetupStepStatus(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, exitOK, h.run("setup"))
	assert.Contains(t, h.stdout.String(), "bootstrapped")

	require.Equal(t, exitOK, h.run("setup"))
	assert.Contains(t, h.stdout.String(), "left untouched")

	require.Equal(t, exitOK, h.run("-m", "hello world"))
	assert.Contains(t, h.stdout.String(), "tick 1 (human-kickoff)")

	require.Equal(t, exitOK, h.run("step"))
	assert.Contains(t, h.stdout.String(), "tick 2 (meta-analysis): 1 agents processed, 0 failed")

	require.Equal(t, exitOK, h.run("status"))
	assert.Contains(t, h.stdout.String(), "human-plus-meta")
}

func TestCLI_BlockedExitCode(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, exitOK, h.run("setup"))

	assert.Equal(t, exitBlocked, h.run("step"))
	assert.Contains(t, h.stdout.String(), "awaiting human input")
	assert.Contains(t, h.stderr.String(), "--message")

	require.Equal(t, exitOK, h.run("status"))
	assert.Contains(t, h.stdout.String(), "awaiting_input")
}

func TestCLI_RejectsArgs(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, exitFatal, h.run("unexpected"))
}
