package invoker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/mailbox"
	"github.com/hupe1980/tickmesh/memory"
	"github.com/hupe1980/tickmesh/model"
	"github.com/hupe1980/tickmesh/registry"
	"github.com/hupe1980/tickmesh/sizeguard"
	"github.com/hupe1980/tickmesh/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockModel struct{ mock.Mock }

func (m *mockModel) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Response), args.Error(1)
}

func (m *mockModel) Info() model.Info { return model.Info{Name: "mock", Provider: "openai"} }

type fixture struct {
	router   *mailbox.Router
	personas *memory.InMemoryStore
}

func newFixture(t *testing.T, limit int) fixture {
	t.Helper()
	reg, err := registry.New(
		core.AgentIdentity{ID: core.HumanID, Role: core.RoleHuman},
		core.AgentIdentity{ID: "meta_planner", Role: core.RoleMeta},
	)
	require.NoError(t, err)
	return fixture{
		router:   mailbox.New(filepath.Join(t.TempDir(), "agents"), reg, func(o *mailbox.Options) { o.Limit = limit }),
		personas: memory.NewInMemoryStore(),
	}
}

func (f fixture) invoker(t *testing.T, m model.Model, optFns ...func(o *Options)) *Invoker {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) { o.NewRunID = func() string { return "run-1" } }}, optFns...)
	inv, err := New(f.personas, tier.Default(), model.Providers{"openai": m}, f.router, fns...)
	require.NoError(t, err)
	return inv
}

var planner = core.AgentIdentity{ID: "meta_planner", Role: core.RoleMeta}

func TestInvoke_Success(t *testing.T) {
	f := newFixture(t, sizeguard.Limit)
	f.personas.Put("meta_planner", "tier: HQ\nYou plan.", "previous notes")

	m := &mockModel{}
	m.On("Generate", mock.Anything, model.Request{
		Model:        "gpt-4o",
		Instructions: "tier: HQ\nYou plan.",
		Input:        "kickoff text\n\nMEMORY:\nprevious notes",
	}).Return(model.Response{Text: "plan ready", Usage: &model.TokenUsage{TotalTokens: 7}}, nil).Once()

	res, err := f.invoker(t, m).Invoke(context.Background(), Task{Agent: planner, Tick: 2, Input: "kickoff text"})
	require.NoError(t, err)
	m.AssertExpectations(t)

	assert.True(t, res.OK())
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, tier.HQ, res.Selection.Tier)
	require.NotNil(t, res.Message)

	out, err := f.router.ReadOutbox("meta_planner", 2)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, core.ResponseFilename, out[0].Filename)
	assert.Equal(t, "plan ready", out[0].Content)

	rec, err := f.router.ReadCycle("meta_planner", 2)
	require.NoError(t, err)
	assert.Equal(t, "plan ready", rec.Combined)
	assert.False(t, rec.Failed())
	assert.Equal(t, "openai/gpt-4o", rec.Model)
	assert.Equal(t, "run-1", rec.RunID)
}

func TestInvoke_UpstreamError(t *testing.T) {
	f := newFixture(t, sizeguard.Limit)
	m := &mockModel{}
	m.On("Generate", mock.Anything, mock.Anything).Return(model.Response{}, errors.New("503 overloaded"))

	res, err := f.invoker(t, m).Invoke(context.Background(), Task{Agent: planner, Tick: 2, Input: "x"})
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, core.ErrUpstreamCallFailed)

	rec, err := f.router.ReadCycle("meta_planner", 2)
	require.NoError(t, err)
	assert.Equal(t, core.FailureUpstream, rec.Failure)
	assert.True(t, strings.HasPrefix(rec.Text(), core.MarkerError))
	assert.Contains(t, rec.Text(), "503 overloaded")

	out, err := f.router.ReadOutbox("meta_planner", 2)
	require.NoError(t, err)
	assert.Empty(t, out, "failed calls must not produce an outbox message")
}

func TestInvoke_Timeout(t *testing.T) {
	f := newFixture(t, sizeguard.Limit)
	m := model.NewMockModel("slow", "openai")
	m.SetHandler(func(ctx context.Context, _ model.Request) (model.Response, error) {
		<-ctx.Done()
		return model.Response{}, ctx.Err()
	})

	res, err := f.invoker(t, m, func(o *Options) { o.Timeout = 20 * time.Millisecond }).
		Invoke(context.Background(), Task{Agent: planner, Tick: 2, Input: "x"})
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, core.ErrUpstreamCallFailed)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, core.FailureTimeout, res.Record.Failure)
	assert.True(t, strings.HasPrefix(res.Record.Text(), core.MarkerError))
}

func TestInvoke_Interrupted(t *testing.T) {
	f := newFixture(t, sizeguard.Limit)
	ctx, cancel := context.WithCancel(context.Background())
	m := model.NewMockModel("m", "openai")
	m.SetHandler(func(callCtx context.Context, _ model.Request) (model.Response, error) {
		cancel()
		<-callCtx.Done()
		return model.Response{}, callCtx.Err()
	})

	res, err := f.invoker(t, m).Invoke(ctx, Task{Agent: planner, Tick: 2, Input: "x"})
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, core.ErrUpstreamCallFailed)
	assert.Equal(t, core.FailureInterrupted, res.Record.Failure)
	assert.True(t, strings.HasPrefix(res.Record.Text(), core.MarkerInterrupted))
}

func TestInvoke_RejectedReply(t *testing.T) {
	f := newFixture(t, 10)
	m := model.NewMockModel("m", "openai")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{Text: strings.Repeat("x", 11)}, nil
	})

	res, err := f.invoker(t, m).Invoke(context.Background(), Task{Agent: planner, Tick: 2})
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, core.ErrPayloadTooLarge)
	assert.Equal(t, core.FailureRejected, res.Record.Failure)
	assert.True(t, strings.HasPrefix(res.Record.Text(), core.MarkerRejected))

	out, err := f.router.ReadOutbox("meta_planner", 2)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInvoke_EmptyReply(t *testing.T) {
	f := newFixture(t, sizeguard.Limit)
	m := model.NewMockModel("m", "openai")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{Text: "  \n"}, nil
	})

	res, err := f.invoker(t, m).Invoke(context.Background(), Task{Agent: planner, Tick: 2})
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, core.ErrUpstreamCallFailed)
	assert.Equal(t, core.FailureUpstream, res.Record.Failure)
	assert.Equal(t, core.MarkerError+" empty response", res.Record.Text())

	out, err := f.router.ReadOutbox("meta_planner", 2)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInvoke_FailedRerunRemovesEarlierReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   model.Response
		callErr error
		failure core.FailureKind
	}{
		{name: "upstream error", callErr: errors.New("503 upstream"), failure: core.FailureUpstream},
		{name: "rejected", reply: model.Response{Text: strings.Repeat("x", 11)}, failure: core.FailureRejected},
		{name: "empty", reply: model.Response{Text: ""}, failure: core.FailureUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			m := model.NewMockModel("m", "openai")
			m.AddResponse("x\n\nMEMORY:\n", "first run")
			inv := f.invoker(t, m)

			res, err := inv.Invoke(context.Background(), Task{Agent: planner, Tick: 4, Input: "x"})
			require.NoError(t, err)
			require.True(t, res.OK())

			m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
				return tt.reply, tt.callErr
			})
			res, err = inv.Invoke(context.Background(), Task{Agent: planner, Tick: 4, Input: "x"})
			require.NoError(t, err)
			assert.False(t, res.OK())
			assert.Equal(t, tt.failure, res.Record.Failure)

			out, err := f.router.ReadOutbox("meta_planner", 4)
			require.NoError(t, err)
			assert.Empty(t, out, "the failed run must not leave the earlier reply behind")
		})
	}
}

func TestInvoke_OverflowAllowed(t *testing.T) {
	f := newFixture(t, 10)
	m := model.NewMockModel("m", "openai")
	m.SetHandler(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{Text: strings.Repeat("x", 11)}, nil
	})

	res, err := f.invoker(t, m, func(o *Options) { o.AllowOverflow = true }).
		Invoke(context.Background(), Task{Agent: planner, Tick: 2})
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestInvoke_UnknownProvider(t *testing.T) {
	f := newFixture(t, sizeguard.Limit)
	f.personas.Put("meta_planner", "tier: HQ", "")
	inv, err := New(f.personas, tier.NewSelector(map[tier.Tier]tier.Target{tier.HQ: {Provider: "local", Model: "x"}}, tier.DefaultFallback),
		model.Providers{"openai": model.NewMockModel("m", "openai")}, f.router)
	require.NoError(t, err)

	res, err := inv.Invoke(context.Background(), Task{Agent: planner, Tick: 2})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, core.ErrUpstreamCallFailed)
	assert.Equal(t, core.FailureUpstream, res.Record.Failure)
}

func TestNew_BadTemplate(t *testing.T) {
	f := newFixture(t, sizeguard.Limit)
	_, err := New(f.personas, tier.Default(), model.Providers{}, f.router, func(o *Options) { o.PromptTemplate = "{{.Input" })
	assert.Error(t, err)
}

func TestInvoke_CustomTemplate(t *testing.T) {
	f := newFixture(t, sizeguard.Limit)
	m := model.NewMockModel("m", "openai")
	inv := f.invoker(t, m, func(o *Options) { o.PromptTemplate = "[{{.Agent}}@{{.Tick}}] {{.Input}}" })

	_, err := inv.Invoke(context.Background(), Task{Agent: planner, Tick: 5, Input: "review"})
	require.NoError(t, err)
	require.Len(t, m.Calls(), 1)
	assert.Equal(t, "[meta_planner@5] review", m.Calls()[0].Input)
}
