package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hupe1980/tickmesh/internal/util"
	"github.com/hupe1980/tickmesh/logging"
)

const (
	// PersonaFilename is the per-agent system prompt file.
	PersonaFilename = "system_prompt.md"
	// MemoryFilename is the per-agent memory notes file.
	MemoryFilename = "memory.md"
)

// Persona bundles what an agent brings to a call besides the routed input.
type Persona struct {
	Agent        string
	SystemPrompt string
	Memory       string
}

// Store resolves the persona of an agent. Missing files yield empty strings,
// not errors.
type Store interface {
	Load(agent string) (Persona, error)
}

// Options configures a FileStore.
type Options struct {
	// Logger receives load diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// FileStore reads personas from <dir>/<agent>/{system_prompt.md,memory.md}.
// Every Load reads from disk; there is no cache.
type FileStore struct {
	dir    string
	logger logging.Logger
}

// NewFileStore returns a store rooted at the agents directory.
func NewFileStore(dir string, optFns ...func(o *Options)) *FileStore {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &FileStore{dir: dir, logger: logging.Component(opts.Logger, "memory")}
}

// Load implements Store.
func (s *FileStore) Load(agent string) (Persona, error) {
	if !util.ValidName(agent) {
		return Persona{}, fmt.Errorf("memory: invalid agent id %q", agent)
	}
	sys, err := s.read(agent, PersonaFilename)
	if err != nil {
		return Persona{}, err
	}
	mem, err := s.read(agent, MemoryFilename)
	if err != nil {
		return Persona{}, err
	}
	if sys == "" {
		s.logger.Warn("persona missing or empty", "agent", agent)
	}
	return Persona{Agent: agent, SystemPrompt: sys, Memory: mem}, nil
}

func (s *FileStore) read(agent, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, agent, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("memory: read %s/%s: %w", agent, name, err)
	}
	return string(data), nil
}
