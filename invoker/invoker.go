// Package invoker runs one agent for one tick: it loads the persona and
// memory, selects the invocation target, calls the reasoning boundary and
// persists the reply and cycle record. Upstream failures are captured in the
// cycle record so that one agent can never abort its siblings.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/internal/util"
	"github.com/hupe1980/tickmesh/logging"
	"github.com/hupe1980/tickmesh/mailbox"
	"github.com/hupe1980/tickmesh/memory"
	"github.com/hupe1980/tickmesh/model"
	"github.com/hupe1980/tickmesh/sizeguard"
	"github.com/hupe1980/tickmesh/tier"
)

// DefaultPromptTemplate joins the routed input with the agent's memory.
const DefaultPromptTemplate = "{{.Input}}\n\nMEMORY:\n{{.Memory}}"

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 60 * time.Second

// Options configures an Invoker.
type Options struct {
	// Timeout bounds each model call.
	Timeout time.Duration
	// PromptTemplate renders the user content from PromptData.
	PromptTemplate string
	// AllowOverflow lets oversized replies through with OverflowHint as type hint.
	AllowOverflow bool
	OverflowHint  string
	Logger        logging.Logger
	Now           func() time.Time
	// NewRunID generates the per-call correlation id.
	NewRunID func() string
}

// PromptData is the template context for the user content.
type PromptData struct {
	Agent  string
	Role   core.Role
	Tick   int
	Input  string
	Memory string
}

// Task is one agent invocation.
type Task struct {
	Agent core.AgentIdentity
	Tick  int
	Input string
}

// Result reports the outcome of a Task. Err is nil on success and otherwise
// wraps core.ErrUpstreamCallFailed or a *sizeguard.Violation.
type Result struct {
	Agent     string
	Tick      int
	RunID     string
	Selection tier.Selection
	Record    core.CycleRecord
	Message   *core.Message
	Duration  time.Duration
	Err       error
}

// OK reports whether the agent produced an outbox message.
func (r Result) OK() bool { return r.Err == nil }

// Invoker drives single agent calls.
type Invoker struct {
	personas  memory.Store
	selector  *tier.Selector
	providers model.Providers
	router    *mailbox.Router
	prompt    *template.Template
	opts      Options
}

// New builds an Invoker. The prompt template is parsed eagerly so a broken
// template fails at wiring time.
func New(personas memory.Store, selector *tier.Selector, providers model.Providers, router *mailbox.Router, optFns ...func(o *Options)) (*Invoker, error) {
	opts := Options{
		Timeout:        DefaultTimeout,
		PromptTemplate: DefaultPromptTemplate,
		OverflowHint:   "text/markdown",
		Logger:         logging.NoOpLogger{},
		Now:            time.Now,
		NewRunID:       uuid.NewString,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	prompt, err := util.ParseTemplate(opts.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("invoker: prompt template: %w", err)
	}
	opts.Logger = logging.Component(opts.Logger, "invoker")
	return &Invoker{
		personas:  personas,
		selector:  selector,
		providers: providers,
		router:    router,
		prompt:    prompt,
		opts:      opts,
	}, nil
}

// Invoke runs task. The returned error is reserved for local persistence
// failures; upstream and size failures are reported in Result.Err and in the
// persisted cycle record. A failed run removes any reply an earlier run of
// the same tick left in the outbox.
func (inv *Invoker) Invoke(ctx context.Context, task Task) (Result, error) {
	agent := task.Agent.ID
	res := Result{Agent: agent, Tick: task.Tick, RunID: inv.opts.NewRunID()}
	log := inv.logger(task.Tick, agent, res.RunID)

	persona, err := inv.personas.Load(agent)
	if err != nil {
		return res, fmt.Errorf("invoker: %s: %w", agent, err)
	}
	res.Selection = inv.selector.Select(persona.SystemPrompt)
	if res.Selection.Fallback {
		log.Debug("tier fallback", "tag", string(res.Selection.Tier), "target", res.Selection.Target.String())
	}

	prompt, err := util.ExecuteTemplate(inv.prompt, PromptData{
		Agent:  agent,
		Role:   task.Agent.Role,
		Tick:   task.Tick,
		Input:  task.Input,
		Memory: persona.Memory,
	})
	if err != nil {
		return res, fmt.Errorf("invoker: %s: %w", agent, err)
	}

	rec := core.CycleRecord{
		Tick:  task.Tick,
		Agent: agent,
		Model: res.Selection.Target.String(),
		RunID: res.RunID,
	}

	start := inv.opts.Now()
	resp, callErr := inv.call(ctx, res.Selection.Target, model.Request{
		Model:        res.Selection.Target.Model,
		Instructions: persona.SystemPrompt,
		Input:        prompt,
	})
	res.Duration = inv.opts.Now().Sub(start)
	inv.logCall(log, res.Selection.Target.String(), resp, res.Duration, callErr)

	if callErr != nil {
		rec.Failure, rec.Combined = classify(ctx, callErr, inv.opts.Timeout)
		res.Err = fmt.Errorf("%w: %s: %w", core.ErrUpstreamCallFailed, agent, callErr)
		return inv.finish(res, rec)
	}
	if strings.TrimSpace(resp.Text) == "" {
		rec.Failure, rec.Combined = core.FailureUpstream, core.MarkerError+" empty response"
		res.Err = fmt.Errorf("%w: %s: empty response", core.ErrUpstreamCallFailed, agent)
		return inv.finish(res, rec)
	}

	var guard []sizeguard.Option
	if inv.opts.AllowOverflow {
		guard = append(guard, sizeguard.WithOverflow(inv.opts.OverflowHint))
	}
	msg, err := inv.router.WriteOutbox(agent, task.Tick, core.ResponseFilename, resp.Text, guard...)
	var violation *sizeguard.Violation
	switch {
	case errors.As(err, &violation):
		log.Warn("reply rejected by size guard", "chars", violation.Length, "limit", violation.Limit)
		rec.Failure = core.FailureRejected
		rec.Combined = core.MarkerRejected + " " + violation.Error()
		res.Err = violation
		return inv.finish(res, rec)
	case err != nil:
		return res, fmt.Errorf("invoker: %w", err)
	}
	res.Message = &msg
	rec.Combined = resp.Text
	return inv.finish(res, rec)
}

func (inv *Invoker) call(ctx context.Context, target tier.Target, req model.Request) (model.Response, error) {
	m, err := inv.providers.Get(target.Provider)
	if err != nil {
		return model.Response{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()
	resp, err := m.Generate(callCtx, req)
	if err == nil && callCtx.Err() != nil {
		// a reply that arrives after the deadline is discarded
		err = callCtx.Err()
	}
	return resp, err
}

func (inv *Invoker) finish(res Result, rec core.CycleRecord) (Result, error) {
	if rec.Failed() {
		if err := inv.router.RemoveOutbox(rec.Agent, rec.Tick, core.ResponseFilename); err != nil {
			return res, fmt.Errorf("invoker: %w", err)
		}
	}
	rec.Recorded = inv.opts.Now().UTC()
	if err := inv.router.WriteCycle(rec); err != nil {
		return res, fmt.Errorf("invoker: %w", err)
	}
	res.Record = rec
	return res, nil
}

// classify maps a call error onto a failure kind and its recorded text.
func classify(parent context.Context, err error, timeout time.Duration) (core.FailureKind, string) {
	switch {
	case parent.Err() != nil:
		return core.FailureInterrupted, core.MarkerInterrupted + " API call was interrupted by the user"
	case errors.Is(err, context.DeadlineExceeded):
		return core.FailureTimeout, fmt.Sprintf("%s upstream call timed out after %s", core.MarkerError, timeout)
	case errors.Is(err, context.Canceled):
		return core.FailureInterrupted, core.MarkerInterrupted + " API call was canceled"
	default:
		return core.FailureUpstream, core.MarkerError + " " + err.Error()
	}
}

func (inv *Invoker) logger(tick int, agent, runID string) logging.Logger {
	if tl, ok := inv.opts.Logger.(*logging.TickLogger); ok {
		return tl.WithTick(tick).WithAgent(agent, runID)
	}
	return inv.opts.Logger
}

func (inv *Invoker) logCall(log logging.Logger, target string, resp model.Response, dur time.Duration, err error) {
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if tl, ok := log.(*logging.TickLogger); ok {
		tl.LogLLMCall(target, tokens, dur, err == nil, err)
		return
	}
	if err != nil {
		log.Error("LLM call failed", "model", target, "duration", dur, "error", err)
		return
	}
	log.Info("LLM call completed", "model", target, "token_count", tokens, "duration", dur)
}
