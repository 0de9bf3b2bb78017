package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/mailbox"
	"github.com/hupe1980/tickmesh/registry"
	"github.com/hupe1980/tickmesh/state"
	"github.com/stretchr/testify/require"
)

// Workspace is a temporary tickmesh root.
type Workspace struct {
	Root      string
	AgentsDir string
	Registry  *registry.Registry
	Store     *state.FileStore
	Router    *mailbox.Router
}

// WorkspaceOptions tunes NewWorkspace.
type WorkspaceOptions struct {
	// Meta and Actors replace the default roster when non-empty.
	Meta   []string
	Actors []string
	// Bootstrap writes the tick-0 state file.
	Bootstrap bool
	// CharLimit sets the router's size guard limit.
	CharLimit int
}

// NewWorkspace lays out a root under t.TempDir(). By default the roster is a
// single meta agent and a single actor and the state is bootstrapped.
func NewWorkspace(t testing.TB, optFns ...func(o *WorkspaceOptions)) *Workspace {
	t.Helper()
	opts := WorkspaceOptions{
		Meta:      []string{"meta_planner"},
		Actors:    []string{"agent_media"},
		Bootstrap: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	root := t.TempDir()
	reg, err := registry.FromLists(opts.Meta, opts.Actors)
	require.NoError(t, err)

	w := &Workspace{
		Root:      root,
		AgentsDir: filepath.Join(root, "agents"),
		Registry:  reg,
		Store:     state.NewFileStore(filepath.Join(root, "global_state.json")),
	}
	w.Router = mailbox.New(w.AgentsDir, reg, func(o *mailbox.Options) {
		if opts.CharLimit > 0 {
			o.Limit = opts.CharLimit
		}
	})
	_, err = w.Router.Scaffold(reg.IDs())
	require.NoError(t, err)
	if opts.Bootstrap {
		_, _, err = w.Store.Bootstrap()
		require.NoError(t, err)
	}
	return w
}

// SetTick overwrites the persisted tick, marking the state active.
func (w *Workspace) SetTick(t testing.TB, tick int) {
	t.Helper()
	st, err := w.Store.Load()
	require.NoError(t, err)
	st.Tick = tick
	st.Status = state.StatusActive
	st.PendingStage = core.StageIdle
	require.NoError(t, w.Store.Save(st))
}

// Tick returns the persisted tick.
func (w *Workspace) Tick(t testing.TB) int {
	t.Helper()
	st, err := w.Store.Load()
	require.NoError(t, err)
	return st.Tick
}

// Persona writes system_prompt.md for agent.
func (w *Workspace) Persona(t testing.TB, agent, text string) {
	t.Helper()
	w.writeFile(t, filepath.Join(w.AgentsDir, agent, "system_prompt.md"), text)
}

// Output writes an outbox file for agent at tick.
func (w *Workspace) Output(t testing.TB, agent string, tick int, filename, content string) {
	t.Helper()
	_, err := w.Router.WriteOutbox(agent, tick, filename, content)
	require.NoError(t, err)
}

// ReadFile returns the content of a path relative to the root.
func (w *Workspace) ReadFile(t testing.TB, rel ...string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(append([]string{w.Root}, rel...)...))
	require.NoError(t, err)
	return string(data)
}

// Exists reports whether a path relative to the root exists.
func (w *Workspace) Exists(rel ...string) bool {
	_, err := os.Stat(filepath.Join(append([]string{w.Root}, rel...)...))
	return err == nil
}

func (w *Workspace) writeFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
