package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
	"github.com/Ntrondle/pnp-gateway/internal/cache"
	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/tasks"
)

// batchSupervisorKey is the single Task Supervisor key every batch
// execution runs under. A batch has no pin-like identity of its own to
// key on (unlike a PWM ramp), so a new batch request preempts whatever
// batch is still running — "at most one task per key" (spec §4.H) applied
// at the coarsest grain that still makes the preemption meaningful.
const batchSupervisorKey = "batch"

// dispatchEmergencyStop runs the Safety Manager's dedicated emergency
// procedure (spec §4.E): cancel every task, dispatch the controller's
// emergency command, clear HomedAxes, invalidate every cache category.
// It always completes every step regardless of where it fails.
func (d *Dispatcher) dispatchEmergencyStop(req command.Request) (*Response, *errors.APIError) {
	if err := d.safetyMgr.EmergencyStop(d.tasks, d.estop, d.cache); err != nil {
		d.recordCommand(req.Kind, nil, false, err.Error())
		return nil, errors.ControllerError(err.Error())
	}
	d.recordCommand(req.Kind, nil, true, "")
	return d.success(req.Kind, map[string]any{"stopped": true}), nil
}

// dispatchQueueClear cancels every active task (ramps and any running
// batch) without touching HomedAxes or controller state — a lighter
// operation than emergency_stop, for clearing a stuck queue during normal
// operation.
func (d *Dispatcher) dispatchQueueClear(req command.Request) (*Response, *errors.APIError) {
	d.tasks.CancelAll()
	d.recordCommand(req.Kind, nil, true, "")
	return d.success(req.Kind, map[string]any{"cleared": true}), nil
}

// dispatchPWMRamp spawns a Task Supervisor ramp body (spec §4.H) keyed by
// pin, so a second ramp on the same pin preempts the first while ramps on
// distinct pins run independently. Each step is driven back through
// execute so it gets the same validation, controller dispatch, and cache
// invalidation as a one-off pwm_set.
func (d *Dispatcher) dispatchPWMRamp(req command.Request) (*Response, *errors.APIError) {
	pin, ok := req.String("pin")
	if !ok {
		return nil, errors.MissingParameter("pin")
	}
	start, ok := req.Float("start")
	if !ok {
		return nil, errors.MissingParameter("start")
	}
	end, ok := req.Float("end")
	if !ok {
		return nil, errors.MissingParameter("end")
	}
	durationMs, ok := req.Float("duration_ms")
	if !ok {
		return nil, errors.MissingParameter("duration_ms")
	}
	steps := 10
	if s, ok := req.Float("steps"); ok {
		steps = int(s)
	}

	params := tasks.RampParams{
		Pin:      pin,
		Start:    start,
		End:      end,
		Duration: time.Duration(durationMs) * time.Millisecond,
		Steps:    steps,
	}
	setter := func(ctx context.Context, p string, value float64) error {
		oc := d.execute(ctx, command.Request{
			Kind:       command.PWMSet,
			Parameters: map[string]any{"pin": p, "value": value},
		})
		if !oc.result.Success {
			return fmt.Errorf("%s", oc.result.Diagnostic)
		}
		return nil
	}

	d.tasks.Spawn(tasks.RampKey(pin), tasks.RampBody(params, setter, d.logger))
	d.recordCommand(req.Kind, nil, true, "")
	return d.success(req.Kind, map[string]any{"started": true, "pin": pin}), nil
}

// isBatchable reports whether a kind may appear inside a batch_execute
// request. Nested batches and ramps would entangle two independent Task
// Supervisor keys' preemption semantics; queue_clear and emergency_stop
// are deliberately global operations, not per-request ones — all four are
// excluded. Read-only query kinds are excluded too: command.Result (what
// a batch item reports) has no field for query response data, only
// Commands/Success/Diagnostic.
func isBatchable(kind command.Kind) bool {
	if !command.IsMutating(kind) {
		return false
	}
	switch kind {
	case command.BatchExecute, command.PWMRamp, command.QueueClear, command.EmergencyStop:
		return false
	}
	return true
}

// decodeBatchRequests converts the "requests" parameter (decoded JSON: a
// slice of objects each carrying "kind" and "parameters") into
// command.Requests.
func decodeBatchRequests(raw any) ([]command.Request, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("requests must be an array")
	}
	out := make([]command.Request, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("requests[%d] must be an object", i)
		}
		kind, ok := obj["kind"].(string)
		if !ok || kind == "" {
			return nil, fmt.Errorf("requests[%d] missing required parameter \"kind\"", i)
		}
		params, _ := obj["parameters"].(map[string]any)
		out = append(out, command.Request{Kind: command.Kind(kind), Parameters: params})
	}
	return out, nil
}

// dispatchBatch runs batch_execute synchronously: it spawns the batch body
// under the Task Supervisor (so it shares CancelAll's reach with every
// other task, e.g. during an emergency stop) but blocks the HTTP response
// until the body finishes or the inbound request's context is cancelled,
// matching the spec §6.1 envelope that carries the full results array
// inline rather than a task handle to poll later.
func (d *Dispatcher) dispatchBatch(ctx context.Context, req command.Request) (*Response, *errors.APIError) {
	rawRequests, ok := req.Param("requests")
	if !ok {
		return nil, errors.MissingParameter("requests")
	}
	requests, err := decodeBatchRequests(rawRequests)
	if err != nil {
		return nil, errors.InvalidRequest(err.Error())
	}
	stopOnError, _ := req.Param("stop_on_error")
	stop, _ := stopOnError.(bool)

	outcome := &tasks.BatchOutcome{}
	dispatchOne := func(ctx context.Context, r command.Request) command.Result {
		if !isBatchable(r.Kind) {
			return command.Fail(fmt.Sprintf("command kind %q is not permitted inside a batch", r.Kind))
		}
		return d.execute(ctx, r).result
	}

	done := make(chan struct{})
	body := tasks.BatchBody(tasks.BatchParams{Requests: requests, StopOnError: stop}, dispatchOne, outcome)
	d.tasks.Spawn(batchSupervisorKey, func(taskCtx context.Context) {
		defer close(done)
		body(taskCtx)
	})

	select {
	case <-done:
	case <-ctx.Done():
		d.tasks.Cancel(batchSupervisorKey)
		return nil, errors.Cancelled("batch execution cancelled")
	}

	results, _ := outcome.Snapshot()
	d.cache.InvalidateCategory(cache.CategoryPositions)
	d.cache.InvalidateCategory(cache.CategoryPWM)

	allOK := true
	for _, r := range results {
		if !r.Result.Success {
			allOK = false
			break
		}
	}
	d.recordCommand(req.Kind, nil, allOK, "")
	if allOK {
		return d.success(req.Kind, map[string]any{"results": results}), nil
	}
	return d.partial(req.Kind, results), nil
}
