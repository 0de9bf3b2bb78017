// Package config loads tickmesh.yaml, the per-root configuration that maps
// tier tags to model targets, sizes the message guard and optionally overrides
// the agent roster. A missing file is not an error: defaults apply.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the configuration file looked up under the root.
	FileName = "tickmesh.yaml"

	// EnvRoot overrides the default root directory.
	EnvRoot = "TICKMESH_ROOT"
	// EnvConfig overrides the configuration file path.
	EnvConfig = "TICKMESH_CONFIG"

	defaultStateFile      = "global_state.json"
	defaultAgentsDir      = "agents"
	defaultProtocolsDir   = "protocols"
	defaultCharLimit      = 8000
	defaultOverflowHint   = "text/markdown"
	defaultTemperature    = 0.7
	defaultMaxTokens      = 4096
	defaultCallTimeout    = 60 * time.Second
	defaultPromptTemplate = "{{.Input}}\n\nMEMORY:\n{{.Memory}}"
)

const defaultConfigYAML = `# tickmesh configuration
version: 1

# Maximum characters per persisted message.
char_limit: 8000
# Allow oversized model replies to be persisted as overflow files.
allow_overflow: false

# Tier tag -> invocation target. Personas declare "tier: <TAG>".
tiers:
  CHEAP:     { provider: openai, model: gpt-4o-mini }
  MEDIUM:    { provider: openai, model: gpt-4o }
  HQ:        { provider: openai, model: gpt-4o }
  O3:        { provider: openai, model: gpt-4o }
  O3-REASON: { provider: openai, model: gpt-4o }
default_target: { provider: openai, model: gpt-4o-mini }

temperature: 0.7
call_timeout: 60s

log:
  level: info
  format: text
`

// Target names a provider and a model identifier understood by that provider.
type Target struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// String renders provider/model.
func (t Target) String() string { return t.Provider + "/" + t.Model }

// RosterConfig optionally replaces the built-in roster.
type RosterConfig struct {
	Meta   []string `yaml:"meta,omitempty"`
	Actors []string `yaml:"actors,omitempty"`
}

// LogConfig selects log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// File models tickmesh.yaml.
type File struct {
	Version        int               `yaml:"version"`
	StateFile      string            `yaml:"state_file,omitempty"`
	AgentsDir      string            `yaml:"agents_dir,omitempty"`
	ProtocolsDir   string            `yaml:"protocols_dir,omitempty"`
	CharLimit      int               `yaml:"char_limit"`
	AllowOverflow  bool              `yaml:"allow_overflow"`
	OverflowHint   string            `yaml:"overflow_hint,omitempty"`
	Tiers          map[string]Target `yaml:"tiers"`
	DefaultTarget  Target            `yaml:"default_target"`
	Temperature    float64           `yaml:"temperature"`
	MaxTokens      int64             `yaml:"max_tokens,omitempty"`
	CallTimeout    time.Duration     `yaml:"call_timeout"`
	PromptTemplate string            `yaml:"prompt_template,omitempty"`
	Agents         RosterConfig      `yaml:"agents,omitempty"`
	Log            LogConfig         `yaml:"log"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// Root is the directory holding the state file, agents tree and protocols.
	Root string
	// Path is the configuration file that was read (may not exist).
	Path string

	File
}

// Load reads the configuration for root. An empty path resolves to
// TICKMESH_CONFIG or <root>/tickmesh.yaml.
func Load(root, path string) (*Config, error) {
	if strings.TrimSpace(root) == "" {
		root = os.Getenv(EnvRoot)
	}
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("config: resolve root: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(EnvConfig)
	}
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(abs, FileName)
	}

	cfg := &Config{Root: abs, Path: path, File: Default()}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		// Decode over the defaults so partial files only override what they name.
		parsed := Default()
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.File = parsed
	}

	cfg.applyDefaults()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() File {
	var out File
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &out); err != nil {
		panic(fmt.Sprintf("config: built-in defaults: %v", err))
	}
	c := &Config{File: out}
	c.applyDefaults()
	return c.File
}

// EnsureFile writes the default configuration to path when it does not exist.
// Returns true when a file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("config: ensure dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, fmt.Errorf("config: write %s: %w", path, err)
	}
	return true, nil
}

// StatePath returns the absolute path of the global state file.
func (c *Config) StatePath() string { return c.resolve(c.StateFile) }

// AgentsPath returns the absolute path of the agents tree.
func (c *Config) AgentsPath() string { return c.resolve(c.AgentsDir) }

// ProtocolsPath returns the absolute path of the protocols directory.
func (c *Config) ProtocolsPath() string { return c.resolve(c.ProtocolsDir) }

// AssignmentsPath returns the path of the explicit assignment table.
func (c *Config) AssignmentsPath() string {
	return filepath.Join(c.ProtocolsPath(), "next_assignments.json")
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(c.Root, p))
}

func (c *Config) applyDefaults() {
	f := &c.File
	if f.Version == 0 {
		f.Version = 1
	}
	if f.StateFile == "" {
		f.StateFile = defaultStateFile
	}
	if f.AgentsDir == "" {
		f.AgentsDir = defaultAgentsDir
	}
	if f.ProtocolsDir == "" {
		f.ProtocolsDir = defaultProtocolsDir
	}
	if f.CharLimit == 0 {
		f.CharLimit = defaultCharLimit
	}
	if f.OverflowHint == "" {
		f.OverflowHint = defaultOverflowHint
	}
	if f.Tiers == nil {
		f.Tiers = map[string]Target{}
	}
	if f.DefaultTarget.Provider == "" && f.DefaultTarget.Model == "" {
		f.DefaultTarget = Target{Provider: "openai", Model: "gpt-4o-mini"}
	}
	if f.Temperature == 0 {
		f.Temperature = defaultTemperature
	}
	if f.MaxTokens == 0 {
		f.MaxTokens = defaultMaxTokens
	}
	if f.CallTimeout == 0 {
		f.CallTimeout = defaultCallTimeout
	}
	if f.PromptTemplate == "" {
		f.PromptTemplate = defaultPromptTemplate
	}
	if f.Log.Level == "" {
		f.Log.Level = "info"
	}
	if f.Log.Format == "" {
		f.Log.Format = "text"
	}
}

func (c *Config) normalize() {
	tiers := make(map[string]Target, len(c.Tiers))
	for tag, t := range c.Tiers {
		tiers[strings.ToUpper(strings.TrimSpace(tag))] = t.normalized()
	}
	c.Tiers = tiers
	c.DefaultTarget = c.DefaultTarget.normalized()
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Agents.Meta = trimAll(c.Agents.Meta)
	c.Agents.Actors = trimAll(c.Agents.Actors)
}

func (t Target) normalized() Target {
	return Target{
		Provider: strings.ToLower(strings.TrimSpace(t.Provider)),
		Model:    strings.TrimSpace(t.Model),
	}
}

func (c *Config) validate() error {
	if c.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if c.CharLimit < 0 {
		return fmt.Errorf("char_limit must be positive")
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must be positive")
	}
	if err := c.DefaultTarget.validate(); err != nil {
		return fmt.Errorf("default_target: %w", err)
	}
	for tag, t := range c.Tiers {
		if err := t.validate(); err != nil {
			return fmt.Errorf("tiers[%s]: %w", tag, err)
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

func (t Target) validate() error {
	if t.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if t.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
