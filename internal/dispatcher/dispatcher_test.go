package dispatcher

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ntrondle/pnp-gateway/internal/auth"
	"github.com/Ntrondle/pnp-gateway/internal/cache"
	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/controller"
	"github.com/Ntrondle/pnp-gateway/internal/motion"
	"github.com/Ntrondle/pnp-gateway/internal/safety"
	"github.com/Ntrondle/pnp-gateway/internal/tasks"
	"github.com/Ntrondle/pnp-gateway/internal/translate"
	"github.com/Ntrondle/pnp-gateway/internal/validate"
)

type harness struct {
	dispatcher *Dispatcher
	fake       *controller.Fake
	registry   *auth.Registry
	safetyMgr  *safety.Manager
	cache      *cache.Cache
	cred       *auth.Credential
}

func newHarness(t *testing.T, budget int) *harness {
	t.Helper()

	reg, err := auth.NewRegistry(nil)
	require.NoError(t, err)
	id, secret, err := reg.Create("tester", auth.NewCapabilitySet(auth.Read, auth.Write, auth.Admin), budget, "")
	require.NoError(t, err)
	cred := reg.Validate(secret)
	require.NotNil(t, cred)
	_ = id

	limits := safety.DefaultLimits()
	limits.RequireHomedBeforeMove = false
	safetyMgr := safety.NewManager(limits)

	fake := controller.NewFake()
	c := cache.New(cache.NewMetrics(prometheus.NewRegistry()))
	sup := tasks.New(nil)

	d := New(Config{
		MotionContext: motion.New(),
		Translator:    translate.New(validate.NewRegistry()),
		SafetyManager: safetyMgr,
		Registry:      reg,
		Cache:         c,
		Tasks:         sup,
		Controller:    fake,
	})

	return &harness{dispatcher: d, fake: fake, registry: reg, safetyMgr: safetyMgr, cache: c, cred: cred}
}

func TestDispatchMoveSuccess(t *testing.T) {
	h := newHarness(t, 100)
	resp, apiErr := h.dispatcher.Handle(context.Background(), h.cred, command.Request{
		Kind:       command.Move,
		Parameters: map[string]any{"x": 10.0, "y": 20.0, "z": 5.0, "feedrate": 1000.0},
	})
	require.Nil(t, apiErr)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, h.fake.CommandsSnapshot())
}

func TestDispatchMoveOutOfBoundsRejected(t *testing.T) {
	h := newHarness(t, 100)
	_, apiErr := h.dispatcher.Handle(context.Background(), h.cred, command.Request{
		Kind:       command.Move,
		Parameters: map[string]any{"x": 99999.0, "feedrate": 1000.0},
	})
	require.NotNil(t, apiErr)
	assert.Equal(t, "BOUNDS_VIOLATION", string(apiErr.Code))
}

func TestDispatchHomeMarksAxesHomed(t *testing.T) {
	h := newHarness(t, 100)
	resp, apiErr := h.dispatcher.Handle(context.Background(), h.cred, command.Request{Kind: command.Home})
	require.Nil(t, apiErr)
	assert.Equal(t, "success", resp.Status)
	assert.True(t, h.safetyMgr.IsHomed(motion.X))
	assert.True(t, h.safetyMgr.IsHomed(motion.Y))
	assert.True(t, h.safetyMgr.IsHomed(motion.Z))
}

func TestDispatchBudgetExceededReturnsRateLimited(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	_, apiErr := h.dispatcher.Handle(ctx, h.cred, command.Request{Kind: command.Status})
	require.Nil(t, apiErr)

	_, apiErr = h.dispatcher.Handle(ctx, h.cred, command.Request{Kind: command.Status})
	require.NotNil(t, apiErr)
	assert.Equal(t, "RATE_LIMITED", string(apiErr.Code))
	assert.Greater(t, apiErr.RetryAfterMs, int64(-1))
}

func TestDispatchQueryCachesAcrossCalls(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()

	_, apiErr := h.dispatcher.Handle(ctx, h.cred, command.Request{Kind: command.Status})
	require.Nil(t, apiErr)
	_, apiErr = h.dispatcher.Handle(ctx, h.cred, command.Request{Kind: command.Status})
	require.Nil(t, apiErr)

	assert.Equal(t, 1, h.fake.StatusCallCount())
}

func TestDispatchEmergencyStopClearsHomedAndCache(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()
	_, apiErr := h.dispatcher.Handle(ctx, h.cred, command.Request{Kind: command.Home})
	require.Nil(t, apiErr)
	require.True(t, h.safetyMgr.IsHomed(motion.X))

	resp, apiErr := h.dispatcher.Handle(ctx, h.cred, command.Request{Kind: command.EmergencyStop})
	require.Nil(t, apiErr)
	assert.Equal(t, "success", resp.Status)
	assert.False(t, h.safetyMgr.IsHomed(motion.X))
	assert.True(t, h.fake.StopCalled)
}

func TestDispatchInsufficientCapabilityRejected(t *testing.T) {
	h := newHarness(t, 100)
	readOnlyID, readOnlySecret, err := h.registry.Create("reader", auth.NewCapabilitySet(auth.Read), 100, "")
	require.NoError(t, err)
	_ = readOnlyID
	readOnlyCred := h.registry.Validate(readOnlySecret)
	require.NotNil(t, readOnlyCred)

	_, apiErr := h.dispatcher.Handle(context.Background(), readOnlyCred, command.Request{Kind: command.Move, Parameters: map[string]any{"x": 1.0}})
	require.NotNil(t, apiErr)
	assert.Equal(t, "PERMISSION_DENIED", string(apiErr.Code))
}

func TestDispatchBatchExecutePartialOnFailure(t *testing.T) {
	h := newHarness(t, 100)
	req := command.Request{
		Kind: command.BatchExecute,
		Parameters: map[string]any{
			"stop_on_error": false,
			"requests": []any{
				map[string]any{"kind": "move", "parameters": map[string]any{"x": 1.0, "feedrate": 1000.0}},
				map[string]any{"kind": "move", "parameters": map[string]any{"x": 99999.0, "feedrate": 1000.0}},
			},
		},
	}
	resp, apiErr := h.dispatcher.Handle(context.Background(), h.cred, req)
	require.Nil(t, apiErr)
	assert.Equal(t, "partial_success", resp.Status)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].Result.Success)
	assert.False(t, resp.Results[1].Result.Success)
}

func TestDispatchPWMRampSpawnsTask(t *testing.T) {
	h := newHarness(t, 100)
	req := command.Request{
		Kind: command.PWMRamp,
		Parameters: map[string]any{
			"pin": "P1", "start": 0.0, "end": 1.0, "duration_ms": 5.0, "steps": 2.0,
		},
	}
	resp, apiErr := h.dispatcher.Handle(context.Background(), h.cred, req)
	require.Nil(t, apiErr)
	assert.Equal(t, "success", resp.Status)
}
