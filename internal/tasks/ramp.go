package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PWMSetter issues a single low-level PWM command for one ramp step,
// mirroring the Dispatcher's own translate-and-dispatch path so a ramp
// step is indistinguishable from a one-off pwm_set request to the
// controller and the cache.
type PWMSetter func(ctx context.Context, pin string, value float64) error

// RampParams describes one PWM ramp (spec §4.H: "given (pin, start, end,
// duration, steps)...").
type RampParams struct {
	Pin      string
	Start    float64
	End      float64
	Duration time.Duration
	Steps    int
}

// RampBody returns a task Body that emits Steps evenly spaced set-pin
// commands between Start and End over Duration, re-checking cancellation
// before every step. On cancellation the last-applied value is left in
// place — no reversion (spec §4.H edge case). A controller-call failure
// aborts the ramp; later steps are skipped.
func RampBody(params RampParams, setter PWMSetter, logger *slog.Logger) Body {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) {
		steps := params.Steps
		if steps < 2 {
			steps = 2
		}
		interval := params.Duration / time.Duration(steps-1)

		for i := 0; i < steps; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}

			frac := float64(i) / float64(steps-1)
			value := params.Start + frac*(params.End-params.Start)

			if err := setter(ctx, params.Pin, value); err != nil {
				logger.Error("pwm ramp step failed, aborting remaining steps",
					"pin", params.Pin, "step", i, "error", err)
				return
			}

			if i == steps-1 {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}
}

// RampKey builds the Task Supervisor key for a pin's ramp task, keeping
// the "at most one task per key" invariant scoped per physical pin.
func RampKey(pin string) string {
	return fmt.Sprintf("ramp:%s", pin)
}
