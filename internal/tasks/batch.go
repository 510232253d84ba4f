package tasks

import (
	"context"
	"sync"

	"github.com/Ntrondle/pnp-gateway/internal/command"
)

// DispatchOne runs a single CommandRequest through the Dispatcher's
// normal pipeline, returning its Result. Defined here (rather than
// importing internal/dispatcher) to avoid a cycle — the Dispatcher is
// the one that constructs a Supervisor and hands it this callback.
type DispatchOne func(ctx context.Context, req command.Request) command.Result

// BatchResult is one request's outcome within a batch (spec §4.H: "per-
// request results").
type BatchResult struct {
	Request command.Request
	Result  command.Result
}

// BatchParams describes one batch execution.
type BatchParams struct {
	Requests    []command.Request
	StopOnError bool
}

// BatchOutcome accumulates a batch's per-request results so the caller
// (the handler that spawned the batch) can read it back while it runs and
// after it completes. Safe for concurrent read/write.
type BatchOutcome struct {
	mu       sync.Mutex
	results  []BatchResult
	complete bool
}

// Snapshot returns a copy of the results gathered so far and whether the
// batch ran to completion.
func (o *BatchOutcome) Snapshot() (results []BatchResult, complete bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]BatchResult, len(o.results))
	copy(out, o.results)
	return out, o.complete
}

func (o *BatchOutcome) append(r BatchResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

func (o *BatchOutcome) markComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.complete = true
}

// BatchBody returns a task Body that processes params.Requests one at a
// time through dispatch, accumulating results into outcome. If
// StopOnError is set and a request fails, processing stops and the
// partial results are reported (spec §4.H batch execution body).
func BatchBody(params BatchParams, dispatch DispatchOne, outcome *BatchOutcome) Body {
	return func(ctx context.Context) {
		for _, req := range params.Requests {
			select {
			case <-ctx.Done():
				return
			default:
			}

			result := dispatch(ctx, req)
			outcome.append(BatchResult{Request: req, Result: result})

			if params.StopOnError && !result.Success {
				return
			}
		}
		outcome.markComplete()
	}
}
