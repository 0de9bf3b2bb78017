package memory

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*InMemoryStore)(nil)
)

func TestFileStore_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "meta_planner"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta_planner", PersonaFilename), []byte("**LLM Default:** HQ\nYou plan."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta_planner", MemoryFilename), []byte("last tick went well"), 0o644))

	s := NewFileStore(dir)
	p, err := s.Load("meta_planner")
	require.NoError(t, err)
	assert.Equal(t, "meta_planner", p.Agent)
	assert.Contains(t, p.SystemPrompt, "You plan.")
	assert.Equal(t, "last tick went well", p.Memory)
}

func TestFileStore_MissingFilesAreEmpty(t *testing.T) {
	s := NewFileStore(t.TempDir())
	p, err := s.Load("agent_un")
	require.NoError(t, err)
	assert.Empty(t, p.SystemPrompt)
	assert.Empty(t, p.Memory)
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	s := NewFileStore(t.TempDir())
	_, err := s.Load("../etc")
	assert.Error(t, err)
	_, err = s.Load("a/b")
	assert.Error(t, err)
}

func TestInMemoryStore_LoadAndConcurrency(t *testing.T) {
	s := NewInMemoryStore()
	p, err := s.Load("unknown")
	require.NoError(t, err)
	assert.Equal(t, Persona{Agent: "unknown"}, p)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Put("meta_a", "sys", "mem")
			_, _ = s.Load("meta_a")
		}()
	}
	wg.Wait()

	p, err = s.Load("meta_a")
	require.NoError(t, err)
	assert.Equal(t, "sys", p.SystemPrompt)
	assert.Equal(t, "mem", p.Memory)
}
