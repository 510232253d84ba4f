package tasks

import (
	"context"
	"testing"

	"github.com/Ntrondle/pnp-gateway/internal/command"
)

func TestBatchBodyAccumulatesResults(t *testing.T) {
	reqs := []command.Request{
		{Kind: command.Move},
		{Kind: command.Move},
		{Kind: command.Move},
	}
	dispatch := func(ctx context.Context, req command.Request) command.Result {
		return command.Ok("noop")
	}
	outcome := &BatchOutcome{}
	body := BatchBody(BatchParams{Requests: reqs}, dispatch, outcome)
	body(context.Background())

	results, complete := outcome.Snapshot()
	if !complete {
		t.Fatal("expected batch to complete")
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
}

func TestBatchBodyStopsOnError(t *testing.T) {
	reqs := []command.Request{
		{Kind: command.Move, Parameters: map[string]any{"tag": "first"}},
		{Kind: command.Move, Parameters: map[string]any{"tag": "second"}},
		{Kind: command.Move, Parameters: map[string]any{"tag": "third"}},
	}
	dispatch := func(ctx context.Context, req command.Request) command.Result {
		if req.Parameters["tag"] == "second" {
			return command.Fail("boom")
		}
		return command.Ok("noop")
	}
	outcome := &BatchOutcome{}
	body := BatchBody(BatchParams{Requests: reqs, StopOnError: true}, dispatch, outcome)
	body(context.Background())

	results, complete := outcome.Snapshot()
	if complete {
		t.Fatal("expected batch to stop early, not complete")
	}
	if len(results) != 2 {
		t.Fatalf("expected processing to stop after the failing request, got %d results", len(results))
	}
}

func TestBatchBodyContinuesWithoutStopOnError(t *testing.T) {
	reqs := []command.Request{
		{Kind: command.Move, Parameters: map[string]any{"tag": "first"}},
		{Kind: command.Move, Parameters: map[string]any{"tag": "second"}},
	}
	dispatch := func(ctx context.Context, req command.Request) command.Result {
		if req.Parameters["tag"] == "first" {
			return command.Fail("boom")
		}
		return command.Ok("noop")
	}
	outcome := &BatchOutcome{}
	body := BatchBody(BatchParams{Requests: reqs, StopOnError: false}, dispatch, outcome)
	body(context.Background())

	results, complete := outcome.Snapshot()
	if !complete {
		t.Fatal("expected batch to run to completion when stop_on_error is false")
	}
	if len(results) != 2 {
		t.Fatalf("expected both requests processed, got %d", len(results))
	}
}
