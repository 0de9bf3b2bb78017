package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/internal/util"
	"github.com/hupe1980/tickmesh/logging"
)

// Status describes the lifecycle phase recorded alongside the tick.
type Status string

const (
	// StatusBootstrap is written by Bootstrap before any stage has run.
	StatusBootstrap Status = "bootstrap"
	// StatusActive is written by every successful Advance.
	StatusActive Status = "active"
	// StatusAwaitingInput marks a human stage that was presented but not yet answered.
	StatusAwaitingInput Status = "awaiting_input"
)

// GlobalState is the persisted record. Tick, Status and ConfigHash form the
// stable wire contract; PendingStage and UpdatedAt are informational.
type GlobalState struct {
	Tick         int        `json:"tick"`
	Status       Status     `json:"status"`
	ConfigHash   string     `json:"configHash"`
	PendingStage core.Stage `json:"pendingStage,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt,omitzero"`
}

// NextStage is the stage the next advance will produce.
func (s GlobalState) NextStage() core.Stage { return core.StageFor(s.Tick + 1) }

// Awaiting reports whether a human stage is pending for the next tick.
func (s GlobalState) Awaiting() bool { return s.Status == StatusAwaitingInput }

// Options configures a FileStore.
type Options struct {
	// LockPath overrides the advisory lock file (default: <state>.lock).
	LockPath string
	// Now supplies timestamps; tests pin it for reproducible files.
	Now func() time.Time
	// Logger receives store diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// FileStore is the JSON file backed state store.
type FileStore struct {
	path     string
	lockPath string
	now      func() time.Time
	logger   logging.Logger
}

// NewFileStore returns a store rooted at path.
func NewFileStore(path string, optFns ...func(o *Options)) *FileStore {
	opts := Options{
		LockPath: path + ".lock",
		Now:      time.Now,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &FileStore{
		path:     path,
		lockPath: opts.LockPath,
		now:      opts.Now,
		logger:   logging.Component(opts.Logger, "state"),
	}
}

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the persisted state. A missing file yields core.ErrNotBootstrapped.
func (s *FileStore) Load() (GlobalState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return GlobalState{}, fmt.Errorf("%w: %s not found", core.ErrNotBootstrapped, s.path)
	}
	if err != nil {
		return GlobalState{}, fmt.Errorf("state: read %s: %w", s.path, err)
	}
	var st GlobalState
	if err := json.Unmarshal(data, &st); err != nil {
		return GlobalState{}, fmt.Errorf("state: parse %s: %w", s.path, err)
	}
	if !core.ValidTick(st.Tick) {
		return GlobalState{}, fmt.Errorf("state: %s holds negative tick %d", s.path, st.Tick)
	}
	if st.Status == "" {
		st.Status = StatusBootstrap
	}
	if st.Awaiting() && st.PendingStage != st.NextStage() {
		// The stage is derived from the tick; a stale echo is discarded.
		s.logger.Warn("pending stage does not match tick, ignoring",
			"pending", st.PendingStage.String(), "derived", st.NextStage().String())
		st.PendingStage = st.NextStage()
	}
	return st, nil
}

// Save atomically replaces the persisted state.
func (s *FileStore) Save(st GlobalState) error {
	if !core.ValidTick(st.Tick) {
		return fmt.Errorf("state: refusing to save negative tick %d", st.Tick)
	}
	data, err := encode(st)
	if err != nil {
		return err
	}
	if err := util.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("state: %w", err)
	}
	return nil
}

// Advance increments the tick by exactly one, marks the state active and
// returns the new tick.
func (s *FileStore) Advance() (int, error) {
	st, err := s.Load()
	if err != nil {
		return 0, err
	}
	prev := st.Tick
	st.Tick++
	st.Status = StatusActive
	st.PendingStage = core.StageIdle
	st.UpdatedAt = s.now().UTC()
	if err := s.Save(st); err != nil {
		return 0, err
	}
	s.logger.Info("tick advanced", "from", prev, "to", st.Tick, "stage", core.StageFor(st.Tick).String())
	return st.Tick, nil
}

// MarkAwaiting records that the human stage for the next tick was presented
// but not answered. The tick itself is untouched.
func (s *FileStore) MarkAwaiting(stage core.Stage) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	if want := st.NextStage(); stage != want {
		return fmt.Errorf("state: awaiting stage %s but tick %d leads to %s", stage, st.Tick+1, want)
	}
	if st.Awaiting() && st.PendingStage == stage {
		return nil
	}
	st.Status = StatusAwaitingInput
	st.PendingStage = stage
	st.UpdatedAt = s.now().UTC()
	return s.Save(st)
}

// Bootstrap writes the initial state when no state file exists. It never
// overwrites an existing file and reports whether one was created.
func (s *FileStore) Bootstrap() (GlobalState, bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		st, err := s.Load()
		return st, false, err
	} else if !errors.Is(err, fs.ErrNotExist) {
		return GlobalState{}, false, fmt.Errorf("state: stat %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return GlobalState{}, false, fmt.Errorf("state: ensure dir: %w", err)
	}
	st, err := InitialState()
	if err != nil {
		return GlobalState{}, false, err
	}
	if err := s.Save(st); err != nil {
		return GlobalState{}, false, err
	}
	s.logger.Info("state bootstrapped", "path", s.path, "config_hash", st.ConfigHash)
	return st, true, nil
}

// InitialState returns the tick-0 record including its content hash.
func InitialState() (GlobalState, error) {
	hash, err := ConfigHash(0, StatusBootstrap)
	if err != nil {
		return GlobalState{}, err
	}
	return GlobalState{Tick: 0, Status: StatusBootstrap, ConfigHash: hash}, nil
}

func encode(st GlobalState) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("state: encode: %w", err)
	}
	return append(data, '\n'), nil
}
