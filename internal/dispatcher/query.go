package dispatcher

import (
	"context"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
	"github.com/Ntrondle/pnp-gateway/internal/cache"
	"github.com/Ntrondle/pnp-gateway/internal/command"
)

// dispatchQuery runs steps 4 and 6 for a read-only kind: Safety Manager
// validation (a no-op for the family-query kinds, but still enforced for
// gpio_read/sensor_read's pin allow-list / known-sensor checks) followed
// by cache-read-through with a refiller that calls ControllerClient (spec
// §4.I step 6 "for query commands, consult State Cache with a refiller
// that calls ControllerClient").
func (d *Dispatcher) dispatchQuery(ctx context.Context, req command.Request) (*Response, *errors.APIError) {
	if violations := d.safetyMgr.Validate(req, d.motionCtx); len(violations) > 0 {
		return nil, errors.BoundsViolation(violationMessages(violations))
	}

	switch req.Kind {
	case command.QueueList:
		return d.success(req.Kind, map[string]any{"active_tasks": d.tasks.ActiveCount()}), nil

	case command.Status:
		return d.cachedQuery(ctx, req.Kind, "status", cache.CategorySystem, func(ctx context.Context) (any, error) {
			return d.controller.GetStatus(ctx)
		})

	case command.SystemInfo:
		return d.cachedQuery(ctx, req.Kind, "system_info", cache.CategorySystem, func(ctx context.Context) (any, error) {
			return d.controller.GetStatus(ctx)
		})

	case command.Version:
		return d.cachedQuery(ctx, req.Kind, "version", cache.CategorySystem, func(ctx context.Context) (any, error) {
			return d.controller.GetVersion(ctx)
		})

	case command.GPIORead:
		pin, ok := req.String("pin")
		if !ok {
			return nil, errors.MissingParameter("pin")
		}
		return d.cachedQuery(ctx, req.Kind, "gpio:"+pin, cache.CategoryGPIO, func(ctx context.Context) (any, error) {
			return d.controller.QueryObjects(ctx, map[string]any{pin: nil})
		})

	case command.SensorRead:
		name, ok := req.String("sensor")
		if !ok {
			return nil, errors.MissingParameter("sensor")
		}
		return d.cachedQuery(ctx, req.Kind, "sensor:"+name, cache.CategorySensors, func(ctx context.Context) (any, error) {
			return d.controller.QueryObjects(ctx, map[string]any{name: nil})
		})

	default:
		return nil, errors.UnknownCommand(string(req.Kind))
	}
}

// cachedQuery runs one State Cache lookup with the category's default TTL,
// mapping a refiller failure (transport or controller-side) to
// CONTROLLER_ERROR.
func (d *Dispatcher) cachedQuery(ctx context.Context, kind command.Kind, key string, category cache.Category, refiller cache.Refiller) (*Response, *errors.APIError) {
	value, err := d.cache.Get(ctx, key, category, cache.DefaultTTL(category), refiller)
	if err != nil {
		return nil, errors.ControllerError(err.Error())
	}
	return d.success(kind, value), nil
}
