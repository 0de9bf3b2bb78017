// Package tickmesh provides a high-level façade over the orchestration
// components (state store, roster, mailbox, tier selector, model providers,
// invoker and scheduler). Most applications interact with this package by:
//  1. Loading a config.Config for a root directory
//  2. Creating a Mesh via New()
//  3. Calling Setup once, then Step repeatedly; Status reports progress
//
// Credentials are only checked when an agent stage is about to run, so Setup
// and Status work without any provider keys.
package tickmesh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/tickmesh/config"
	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/invoker"
	"github.com/hupe1980/tickmesh/logging"
	"github.com/hupe1980/tickmesh/mailbox"
	"github.com/hupe1980/tickmesh/memory"
	"github.com/hupe1980/tickmesh/model"
	"github.com/hupe1980/tickmesh/model/anthropic"
	"github.com/hupe1980/tickmesh/model/openai"
	"github.com/hupe1980/tickmesh/registry"
	"github.com/hupe1980/tickmesh/scheduler"
	"github.com/hupe1980/tickmesh/state"
	"github.com/hupe1980/tickmesh/tier"
)

// MockProvider is a credential-free provider backed by model.MockModel.
const MockProvider = "mock"

// credentialEnv maps providers to the environment variable holding their key.
var credentialEnv = map[string]string{
	openai.ProviderName:    "OPENAI_API_KEY",
	anthropic.ProviderName: "ANTHROPIC_API_KEY",
}

// Options configures the Mesh instance.
type Options struct {
	// Providers replaces the adapters built from the configuration. When set,
	// no credential check is performed.
	Providers model.Providers
	// HumanInput answers human stages run without a message.
	HumanInput scheduler.HumanInput
	// AgentContext derives the per-agent call context (see scheduler.Options).
	AgentContext func(parent context.Context) (context.Context, context.CancelFunc)
	// Getenv resolves credentials. Defaults to os.Getenv.
	Getenv func(string) string
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	Now    func() time.Time
}

// Mesh aggregates the wired components for one root.
type Mesh struct {
	cfg       *config.Config
	opts      Options
	reg       *registry.Registry
	store     *state.FileStore
	router    *mailbox.Router
	selector  *tier.Selector
	providers model.Providers
	external  bool
	sched     *scheduler.Scheduler
	logger    logging.Logger
}

// New wires every component from cfg.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{
		Getenv: os.Getenv,
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	reg, err := registry.FromLists(cfg.Agents.Meta, cfg.Agents.Actors)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	store := state.NewFileStore(cfg.StatePath(), func(o *state.Options) {
		o.Logger = opts.Logger
		o.Now = opts.Now
	})
	router := mailbox.New(cfg.AgentsPath(), reg, func(o *mailbox.Options) {
		o.Limit = cfg.CharLimit
		o.Logger = opts.Logger
	})

	selector := Selector(cfg)
	providers := opts.Providers
	external := providers != nil
	if !external {
		providers, err = buildProviders(cfg, selector)
		if err != nil {
			return nil, err
		}
	}

	inv, err := invoker.New(
		memory.NewFileStore(cfg.AgentsPath(), func(o *memory.Options) { o.Logger = opts.Logger }),
		selector,
		providers,
		router,
		func(o *invoker.Options) {
			o.Timeout = cfg.CallTimeout
			o.PromptTemplate = cfg.PromptTemplate
			o.AllowOverflow = cfg.AllowOverflow
			o.OverflowHint = cfg.OverflowHint
			o.Logger = opts.Logger
			o.Now = opts.Now
		},
	)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(store, reg, router, inv, func(o *scheduler.Options) {
		o.HumanInput = opts.HumanInput
		o.AssignmentsPath = cfg.AssignmentsPath()
		o.OverflowHint = cfg.OverflowHint
		o.Logger = opts.Logger
		o.Now = opts.Now
		if opts.AgentContext != nil {
			o.AgentContext = opts.AgentContext
		}
	})

	return &Mesh{
		cfg:       cfg,
		opts:      opts,
		reg:       reg,
		store:     store,
		router:    router,
		selector:  selector,
		providers: providers,
		external:  external,
		sched:     sched,
		logger:    logging.Component(opts.Logger, "tickmesh"),
	}, nil
}

// Config returns the configuration the mesh was built from.
func (m *Mesh) Config() *config.Config { return m.cfg }

// Registry returns the resolved roster.
func (m *Mesh) Registry() *registry.Registry { return m.reg }

// SetupReport lists what Setup created.
type SetupReport struct {
	State        state.GlobalState
	Bootstrapped bool
	ConfigFile   bool
	Created      []string
}

// Setup writes the default configuration, bootstraps the state file and
// scaffolds the agent tree. Running it again changes nothing.
func (m *Mesh) Setup() (SetupReport, error) {
	var report SetupReport
	created, err := config.EnsureFile(m.cfg.Path)
	if err != nil {
		return report, err
	}
	report.ConfigFile = created

	report.State, report.Bootstrapped, err = m.store.Bootstrap()
	if err != nil {
		return report, err
	}

	report.Created, err = m.router.Scaffold(m.reg.IDs())
	if err != nil {
		return report, err
	}

	ok, err := ensureFile(m.cfg.AssignmentsPath(), "{}\n")
	if err != nil {
		return report, err
	}
	if ok {
		report.Created = append(report.Created, m.cfg.AssignmentsPath())
	}
	m.logger.Info("setup complete", "root", m.cfg.Root, "bootstrapped", report.Bootstrapped, "created", len(report.Created))
	return report, nil
}

// Status reports the next stage without running it.
func (m *Mesh) Status() (scheduler.Plan, error) { return m.sched.Peek() }

// Step advances one stage. Agent stages require provider credentials.
func (m *Mesh) Step(ctx context.Context, opts scheduler.StepOptions) (scheduler.Outcome, error) {
	plan, err := m.sched.Peek()
	if err != nil {
		return scheduler.Outcome{}, err
	}
	if !plan.Stage.IsHuman() {
		if err := m.CheckCredentials(); err != nil {
			return scheduler.Outcome{Tick: plan.Target, Stage: plan.Stage}, err
		}
	}
	return m.sched.Step(ctx, opts)
}

// CheckCredentials verifies that every provider the tier table can select has
// its API key.
func (m *Mesh) CheckCredentials() error {
	if m.external {
		return nil
	}
	for _, p := range m.selector.Providers() {
		env, ok := credentialEnv[p]
		if !ok {
			continue
		}
		if m.opts.Getenv(env) == "" {
			return &core.CredentialError{Provider: p, EnvVar: env}
		}
	}
	return nil
}

// BuildProviders creates one adapter per provider referenced by cfg.
func BuildProviders(cfg *config.Config) (model.Providers, error) {
	return buildProviders(cfg, Selector(cfg))
}

func buildProviders(cfg *config.Config, selector *tier.Selector) (model.Providers, error) {
	providers := model.Providers{}
	for _, p := range selector.Providers() {
		switch p {
		case openai.ProviderName:
			providers[p] = openai.NewModel(func(o *openai.Options) {
				o.Temperature = cfg.Temperature
				o.MaxCompletionTokens = cfg.MaxTokens
			})
		case anthropic.ProviderName:
			providers[p] = anthropic.NewModel(func(o *anthropic.Options) {
				o.Temperature = cfg.Temperature
				o.MaxTokens = cfg.MaxTokens
			})
		case MockProvider:
			providers[p] = model.NewMockModel("mock", MockProvider)
		default:
			return nil, fmt.Errorf("unsupported provider %q", p)
		}
	}
	return providers, nil
}

// Selector builds the tier selector from the configured tier table.
func Selector(cfg *config.Config) *tier.Selector {
	targets := make(map[tier.Tier]tier.Target, len(cfg.Tiers))
	for tag, t := range cfg.Tiers {
		targets[tier.Tier(tag)] = tier.Target{Provider: t.Provider, Model: t.Model}
	}
	return tier.NewSelector(targets, tier.Target{Provider: cfg.DefaultTarget.Provider, Model: cfg.DefaultTarget.Model})
}

func ensureFile(path, content string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("ensure %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ensure %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return false, fmt.Errorf("ensure %s: %w", path, err)
	}
	return true, nil
}
