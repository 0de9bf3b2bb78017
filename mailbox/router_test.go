package mailbox

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/registry"
	"github.com/hupe1980/tickmesh/sizeguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, optFns ...func(o *Options)) *Router {
	t.Helper()
	reg, err := registry.New(
		core.AgentIdentity{ID: "human", Role: core.RoleHuman},
		core.AgentIdentity{ID: "meta_b", Role: core.RoleMeta},
		core.AgentIdentity{ID: "meta_a", Role: core.RoleMeta},
		core.AgentIdentity{ID: "agent_x", Role: core.RoleActor},
	)
	require.NoError(t, err)
	return New(filepath.Join(t.TempDir(), "agents"), reg, optFns...)
}

func TestRouter_WriteOutboxLayout(t *testing.T) {
	r := newRouter(t)
	msg, err := r.WriteOutbox("meta_a", 2, core.ResponseFilename, "analysis")
	require.NoError(t, err)
	assert.Equal(t, core.Outbox, msg.Direction)

	data, err := os.ReadFile(filepath.Join(r.Dir(), "meta_a", "outbox", "tik2", "llm.txt"))
	require.NoError(t, err)
	assert.Equal(t, "analysis", string(data))
}

func TestRouter_WriteRejectsBadAddress(t *testing.T) {
	r := newRouter(t)
	_, err := r.WriteOutbox("../escape", 1, "a.txt", "x")
	assert.Error(t, err)
	_, err = r.WriteOutbox("meta_a", -1, "a.txt", "x")
	assert.Error(t, err)
	_, err = r.WriteInbox("meta_a", 1, "sub/a.txt", "x")
	assert.Error(t, err)
}

func TestRouter_WriteEnforcesSizeGuard(t *testing.T) {
	r := newRouter(t, func(o *Options) { o.Limit = 10 })
	_, err := r.WriteOutbox("meta_a", 1, "big.txt", strings.Repeat("x", 11))
	require.ErrorIs(t, err, core.ErrPayloadTooLarge)

	_, statErr := os.Stat(filepath.Join(r.Dir(), "meta_a", "outbox", "tik1", "big.txt"))
	assert.True(t, errors.Is(statErr, fs.ErrNotExist), "rejected payload must not be persisted")

	_, err = r.WriteOutbox("meta_a", 1, "big.md", strings.Repeat("x", 11), sizeguard.WithOverflow("text/markdown"))
	assert.NoError(t, err)
}

func TestRouter_GatherOrderAndFormat(t *testing.T) {
	r := newRouter(t)
	_, err := r.WriteOutbox("meta_b", 3, "llm.txt", "B")
	require.NoError(t, err)
	_, err = r.WriteOutbox("meta_a", 3, "z.md", "A2")
	require.NoError(t, err)
	_, err = r.WriteOutbox("meta_a", 3, "llm.txt", "A1")
	require.NoError(t, err)
	// ignored: other tick, non-text file, unregistered agent
	_, err = r.WriteOutbox("meta_a", 4, "llm.txt", "later")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(r.TickDir("meta_a", core.Outbox, 3), "blob.bin"), []byte("bin"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(r.Dir(), "stranger", "outbox", "tik3"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), "stranger", "outbox", "tik3", "llm.txt"), []byte("nope"), 0o644))

	out, err := r.GatherOutputs(3)
	require.NoError(t, err)
	assert.Equal(t, "# meta_a/llm.txt\nA1\n\n# meta_a/z.md\nA2\n\n# meta_b/llm.txt\nB", out)

	again, err := r.GatherOutputs(3)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestRouter_GatherMissing(t *testing.T) {
	r := newRouter(t)
	_, err := r.GatherOutputs(7)
	require.ErrorIs(t, err, core.ErrMissingArtifact)
}

func TestRouter_GatherObservesLaterWrites(t *testing.T) {
	r := newRouter(t)
	_, err := r.WriteOutbox("human", 1, core.KickoffFilename, "first")
	require.NoError(t, err)
	msgs, err := r.Gather(1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	_, err = r.WriteOutbox("meta_a", 1, "llm.txt", "second")
	require.NoError(t, err)
	msgs, err = r.Gather(1)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestRouter_Inbox(t *testing.T) {
	r := newRouter(t)
	_, err := r.WriteInbox("agent_x", 4, core.AssignmentFilename, "do it")
	require.NoError(t, err)

	msgs, err := r.ReadInbox("agent_x", 4)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "do it", msgs[0].Content)
	assert.Equal(t, core.Inbox, msgs[0].Direction)

	empty, err := r.ReadInbox("agent_x", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRouter_CycleRoundTripAndOverwrite(t *testing.T) {
	r := newRouter(t)
	require.NoError(t, r.WriteCycle(core.CycleRecord{Tick: 2, Agent: "meta_a", Combined: "first"}))
	require.NoError(t, r.WriteCycle(core.CycleRecord{Tick: 2, Agent: "meta_a", Combined: "second", Model: "gpt-4o"}))

	rec, err := r.ReadCycle("meta_a", 2)
	require.NoError(t, err)
	assert.Equal(t, "second", rec.Text())
	assert.Equal(t, "gpt-4o", rec.Model)

	raw, err := os.ReadFile(r.CyclePath("meta_a", 2))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"thought_action_result": "second"`)

	_, err = r.ReadCycle("meta_a", 3)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRouter_ScaffoldIdempotent(t *testing.T) {
	r := newRouter(t)
	created, err := r.Scaffold([]string{"meta_a", "human"})
	require.NoError(t, err)
	assert.Len(t, created, 8)

	mem := filepath.Join(r.Dir(), "meta_a", "memory.md")
	require.NoError(t, os.WriteFile(mem, []byte("remember"), 0o644))

	created, err = r.Scaffold([]string{"meta_a", "human"})
	require.NoError(t, err)
	assert.Empty(t, created)

	data, err := os.ReadFile(mem)
	require.NoError(t, err)
	assert.Equal(t, "remember", string(data))
}

func TestRouter_RemoveOutbox(t *testing.T) {
	r := newRouter(t)
	_, err := r.WriteOutbox("meta_a", 3, core.ResponseFilename, "stale reply")
	require.NoError(t, err)
	_, err = r.WriteOutbox("meta_a", 3, "notes.md", "kept")
	require.NoError(t, err)

	require.NoError(t, r.RemoveOutbox("meta_a", 3, core.ResponseFilename))
	msgs, err := r.ReadOutbox("meta_a", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "notes.md", msgs[0].Filename)

	assert.NoError(t, r.RemoveOutbox("meta_a", 3, core.ResponseFilename), "removing a missing message is a no-op")
	assert.NoError(t, r.RemoveOutbox("meta_b", 9, core.ResponseFilename))
	assert.Error(t, r.RemoveOutbox("meta_a", 3, "../escape.txt"))
	assert.Error(t, r.RemoveOutbox("meta_a", -1, core.ResponseFilename))
}

func TestRouter_Limit(t *testing.T) {
	assert.Equal(t, sizeguard.Limit, newRouter(t).Limit())
	assert.Equal(t, 10, newRouter(t, func(o *Options) { o.Limit = 10 }).Limit())
}
