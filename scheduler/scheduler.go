package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/invoker"
	"github.com/hupe1980/tickmesh/logging"
	"github.com/hupe1980/tickmesh/mailbox"
	"github.com/hupe1980/tickmesh/registry"
	"github.com/hupe1980/tickmesh/sizeguard"
	"github.com/hupe1980/tickmesh/state"
)

// StateStore is the subset of state.FileStore used by the scheduler.
type StateStore interface {
	Load() (state.GlobalState, error)
	Advance() (int, error)
	MarkAwaiting(stage core.Stage) error
	Lock() (state.Unlocker, error)
}

// Invoker runs a single agent for a tick.
type Invoker interface {
	Invoke(ctx context.Context, task invoker.Task) (invoker.Result, error)
}

// Options configures a Scheduler.
type Options struct {
	// HumanInput is asked for a prompt when a human stage runs without a
	// message. Nil means human stages block unless a message is supplied.
	HumanInput HumanInput
	// AssignmentsPath is the optional routing table consulted at the actor stage.
	AssignmentsPath string
	// AgentContext derives the context for one agent call. The CLI binds it
	// to SIGINT so an interrupt cancels only the call in flight.
	AgentContext func(parent context.Context) (context.Context, context.CancelFunc)
	// OverflowHint is the type hint for the meta analysis filed at stage 3.
	OverflowHint string
	Logger       logging.Logger
	Now          func() time.Time
}

// StepOptions carries per-invocation input.
type StepOptions struct {
	// Message answers a human stage. Ignored at agent stages.
	Message string
}

// Outcome reports what a Step did.
type Outcome struct {
	// Tick is the tick the step produced (or would have produced when blocked).
	Tick  int
	Stage core.Stage
	// Blocked is set when a human stage had no input; nothing advanced.
	Blocked bool
	// Input is the routed input the stage consumed.
	Input string
	// Artifact is the human message written at a human stage.
	Artifact *core.Message
	// Results holds one entry per invoked agent, in invocation order.
	Results []invoker.Result
}

// Failed returns the results whose invocation did not produce a reply.
func (o Outcome) Failed() []invoker.Result {
	var failed []invoker.Result
	for _, r := range o.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Plan describes the next Step without running it.
type Plan struct {
	Current state.GlobalState
	Target  int
	Stage   core.Stage
	Agents  []core.AgentIdentity
}

// Scheduler drives stages over the shared state, roster and mailbox.
type Scheduler struct {
	store   StateStore
	reg     *registry.Registry
	router  *mailbox.Router
	invoker Invoker
	opts    Options
	logger  logging.Logger
}

// New wires a scheduler.
func New(store StateStore, reg *registry.Registry, router *mailbox.Router, inv Invoker, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		AgentContext: func(parent context.Context) (context.Context, context.CancelFunc) {
			return context.WithCancel(parent)
		},
		OverflowHint: "text/markdown",
		Logger:       logging.NoOpLogger{},
		Now:          time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scheduler{
		store:   store,
		reg:     reg,
		router:  router,
		invoker: inv,
		opts:    opts,
		logger:  logging.Component(opts.Logger, "scheduler"),
	}
}

// Peek reports the next target tick, its stage and agent set without side effects.
func (s *Scheduler) Peek() (Plan, error) {
	st, err := s.store.Load()
	if err != nil {
		return Plan{}, err
	}
	stage := st.NextStage()
	return Plan{Current: st, Target: st.Tick + 1, Stage: stage, Agents: s.reg.ForStage(stage)}, nil
}

// Step runs the stage for the next tick. When a human stage has no input the
// returned Outcome is Blocked and the error wraps core.ErrAwaitingInput.
func (s *Scheduler) Step(ctx context.Context, opts StepOptions) (Outcome, error) {
	lock, err := s.store.Lock()
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("release state lock", "error", err)
		}
	}()

	st, err := s.store.Load()
	if err != nil {
		return Outcome{}, err
	}
	target := st.Tick + 1
	stage := core.StageFor(target)
	out := Outcome{Tick: target, Stage: stage}
	log := s.tickLogger(target)
	log.Info("stage starting", "stage", stage.String(), "from_tick", st.Tick)

	tl, timed := log.(*logging.TickLogger)
	var stop func() time.Duration
	if timed {
		stop = tl.StartTimer("step " + stage.String())
	}
	if stage.IsHuman() {
		out, err = s.runHuman(ctx, out, opts.Message, log)
	} else {
		out, err = s.runAgents(ctx, out, log)
	}
	if timed {
		if dur := stop(); !out.Blocked {
			tl.LogStage(stage.String(), len(out.Results), dur, err)
		}
	}
	return out, err
}

func (s *Scheduler) runHuman(ctx context.Context, out Outcome, message string, log logging.Logger) (Outcome, error) {
	var meta string
	if out.Stage == core.StageHumanPlusMeta {
		meta = s.gather(out.Tick-1, log)
		out.Input = meta
	}

	if strings.TrimSpace(message) == "" && s.opts.HumanInput != nil {
		var err error
		message, err = s.opts.HumanInput.Prompt(ctx, HumanRequest{Tick: out.Tick, Stage: out.Stage, Context: meta})
		if err != nil && !errors.Is(err, core.ErrAwaitingInput) {
			return out, fmt.Errorf("scheduler: human input: %w", err)
		}
	}
	if strings.TrimSpace(message) == "" {
		if err := s.store.MarkAwaiting(out.Stage); err != nil {
			return out, err
		}
		out.Blocked = true
		log.Info("human input required", "stage", out.Stage.String())
		return out, fmt.Errorf("scheduler: tick %d (%s): %w", out.Tick, out.Stage, core.ErrAwaitingInput)
	}

	msg, err := s.router.WriteOutbox(core.HumanID, out.Tick, core.KickoffFilename, Kickoff(out.Tick, s.opts.Now(), message))
	if err != nil {
		return out, fmt.Errorf("scheduler: human prompt: %w", err)
	}
	out.Artifact = &msg
	if meta != "" {
		if _, err := s.router.WriteOutbox(core.HumanID, out.Tick, core.MetaAnalysisFilename, meta, sizeguard.WithOverflow(s.opts.OverflowHint)); err != nil {
			return out, fmt.Errorf("scheduler: meta analysis: %w", err)
		}
	}
	if _, err := s.store.Advance(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Scheduler) runAgents(ctx context.Context, out Outcome, log logging.Logger) (Outcome, error) {
	out.Input = s.gather(out.Tick-1, log)
	agents := s.reg.ForStage(out.Stage)

	var routed map[string]string
	if out.Stage == core.StageActorAction && s.opts.AssignmentsPath != "" {
		assignments, err := LoadAssignments(s.opts.AssignmentsPath)
		if err != nil {
			return out, err
		}
		s.warnUnroutable(assignments, agents, log)
		if routed, err = s.deliverAssignments(out.Tick, assignments, agents); err != nil {
			return out, err
		}
	}

	log.Info("processing agents", "stage", out.Stage.String(), "agents", len(agents), "input_chars", len(out.Input))
	for i, agent := range agents {
		input := out.Input
		if extra, ok := routed[agent.ID]; ok {
			input = joinInput(input, extra)
		}

		res, err := s.invokeOne(ctx, invoker.Task{Agent: agent, Tick: out.Tick, Input: input})
		if err != nil {
			return out, err
		}
		out.Results = append(out.Results, res)
		if res.Err != nil {
			log.Warn("agent failed", "agent", agent.ID, "position", i+1, "of", len(agents), "error", res.Err)
			continue
		}
		log.Info("agent done", "agent", agent.ID, "position", i+1, "of", len(agents), "duration", res.Duration)
	}

	if _, err := s.store.Advance(); err != nil {
		return out, err
	}
	return out, nil
}

// deliverAssignments checks every assignment addressed to a resolved agent
// against the size guard before any of them is written, so a bad table fails
// the stage before the first model call. It returns the routed text per agent.
func (s *Scheduler) deliverAssignments(tick int, assignments map[string]string, agents []core.AgentIdentity) (map[string]string, error) {
	var pending []core.AgentIdentity
	for _, agent := range agents {
		text, ok := assignments[agent.ID]
		if !ok {
			continue
		}
		if err := sizeguard.Enforce(text, sizeguard.WithLimit(s.router.Limit())); err != nil {
			return nil, fmt.Errorf("scheduler: assignment for %s: %w", agent.ID, err)
		}
		pending = append(pending, agent)
	}
	routed := make(map[string]string, len(pending))
	for _, agent := range pending {
		msg, err := s.router.WriteInbox(agent.ID, tick, core.AssignmentFilename, assignments[agent.ID])
		if err != nil {
			return nil, fmt.Errorf("scheduler: assignment for %s: %w", agent.ID, err)
		}
		routed[agent.ID] = mailbox.Merge([]core.Message{msg})
	}
	return routed, nil
}

// invokeOne isolates a single call: an interrupt cancels only this agent's
// context, later agents start from a fresh one.
func (s *Scheduler) invokeOne(ctx context.Context, task invoker.Task) (invoker.Result, error) {
	parent := ctx
	if ctx.Err() != nil {
		parent = context.WithoutCancel(ctx)
	}
	callCtx, cancel := s.opts.AgentContext(parent)
	defer cancel()
	return s.invoker.Invoke(callCtx, task)
}

// gather returns the merged outputs of tick, or "" when nothing was produced.
func (s *Scheduler) gather(tick int, log logging.Logger) string {
	text, err := s.router.GatherOutputs(tick)
	if err != nil {
		log.Warn("no prior outputs", "tick", tick, "error", err)
		return ""
	}
	return text
}

func (s *Scheduler) warnUnroutable(assignments map[string]string, agents []core.AgentIdentity, log logging.Logger) {
	resolved := make(map[string]bool, len(agents))
	for _, a := range agents {
		resolved[a.ID] = true
	}
	for id := range assignments {
		if !resolved[id] {
			log.Warn("assignment ignored: agent not in stage set", "agent", id)
		}
	}
}

func (s *Scheduler) tickLogger(tick int) logging.Logger {
	if tl, ok := s.logger.(*logging.TickLogger); ok {
		return tl.WithTick(tick)
	}
	return s.logger
}

// Kickoff renders the human artifact for tick.
func Kickoff(tick int, ts time.Time, prompt string) string {
	return fmt.Sprintf("Tick: %d\nTimestamp: %s\nPrompt: %s\n", tick, ts.Format(time.RFC3339), prompt)
}

func joinInput(base, extra string) string {
	if base == "" {
		return extra
	}
	return base + "\n\n" + extra
}
