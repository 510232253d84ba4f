// Package dispatcher implements the Request Dispatcher: the component
// that owns every other piece (Motion Context, Command Translator, Safety
// Manager, Credential Registry, State Cache, Task Supervisor,
// ControllerClient) and runs the eight-step pipeline of spec §4.I for
// every inbound command.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
	"github.com/Ntrondle/pnp-gateway/internal/auth"
	"github.com/Ntrondle/pnp-gateway/internal/cache"
	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/controller"
	"github.com/Ntrondle/pnp-gateway/internal/motion"
	"github.com/Ntrondle/pnp-gateway/internal/safety"
	"github.com/Ntrondle/pnp-gateway/internal/tasks"
	"github.com/Ntrondle/pnp-gateway/internal/translate"
)

// AuditLog is the subset of internal/audit.Log the Dispatcher writes
// through. Defined here rather than imported to keep internal/audit free
// to depend on the Dispatcher's types without a cycle; a nil AuditLog
// disables recording entirely.
type AuditLog interface {
	RecordCommand(kind command.Kind, commands []string, success bool, diagnostic string)
	RecordTaskEvent(key, event string)
}

// Response is the Dispatcher's success envelope, translated to the wire
// shape of spec §6.1 by the HTTP handler layer.
type Response struct {
	Status  string              `json:"status"`
	Command command.Kind        `json:"command"`
	Data    any                 `json:"data,omitempty"`
	Results []tasks.BatchResult `json:"results,omitempty"`
}

// Dispatcher wires together every other component, constructed once at
// startup and shared across all request handling (spec §9 "Dispatcher
// constructed once, carrying references to A-H").
type Dispatcher struct {
	// mu serializes the translate+mutate phase over motionCtx (spec §5:
	// "the entire translate+mutate phase runs under a context mutex").
	// Never held across a ControllerClient call.
	mu sync.Mutex

	motionCtx  *motion.Context
	translator *translate.Translator
	safetyMgr  *safety.Manager
	registry   *auth.Registry
	cache      *cache.Cache
	tasks      *tasks.Supervisor
	controller controller.Client
	estop      safety.ControllerEStop
	audit      AuditLog
	logger     *slog.Logger

	// controllerTimeout bounds adapter calls (e.g. emergency stop) that
	// synthesize their own context rather than receiving one from an
	// inbound request.
	controllerTimeout time.Duration
}

// Config groups the Dispatcher's dependencies for New.
type Config struct {
	MotionContext     *motion.Context
	Translator        *translate.Translator
	SafetyManager     *safety.Manager
	Registry          *auth.Registry
	Cache             *cache.Cache
	Tasks             *tasks.Supervisor
	Controller        controller.Client
	Audit             AuditLog
	Logger            *slog.Logger
	ControllerTimeout time.Duration
}

// New constructs a Dispatcher from cfg. ControllerTimeout defaults to 5s
// if unset; it's only used by adapters (emergency stop) that don't
// receive a request-scoped context.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ControllerTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		motionCtx:         cfg.MotionContext,
		translator:        cfg.Translator,
		safetyMgr:         cfg.SafetyManager,
		registry:          cfg.Registry,
		cache:             cfg.Cache,
		tasks:             cfg.Tasks,
		controller:        cfg.Controller,
		audit:             cfg.Audit,
		logger:            logger,
		controllerTimeout: timeout,
	}
	d.estop = controllerEStopAdapter{client: cfg.Controller, timeout: timeout}
	return d
}

// Handle runs the eight-step pipeline of spec §4.I for one request from an
// already-identified credential (Identify — step 1 — happens one layer up,
// in api/middleware.AuthMiddleware, which resolves the X-Api-Key header
// before the Dispatcher ever sees the request).
func (d *Dispatcher) Handle(ctx context.Context, cred *auth.Credential, req command.Request) (*Response, *errors.APIError) {
	// Step 2: Authorize.
	if apiErr := d.authorize(cred, req.Kind); apiErr != nil {
		return nil, apiErr
	}

	// Step 3: Budget.
	if !d.registry.ReserveOrReject(cred) {
		retryAfter := time.Until(d.registry.ResetAt(cred))
		if retryAfter < 0 {
			retryAfter = 0
		}
		return nil, errors.RateLimited(retryAfter)
	}

	switch req.Kind {
	case command.EmergencyStop:
		return d.dispatchEmergencyStop(req)
	case command.QueueClear:
		return d.dispatchQueueClear(req)
	case command.PWMRamp:
		return d.dispatchPWMRamp(req)
	case command.BatchExecute:
		return d.dispatchBatch(ctx, req)
	case command.Status, command.SystemInfo, command.Version, command.QueueList,
		command.GPIORead, command.SensorRead:
		return d.dispatchQuery(ctx, req)
	default:
		return d.dispatchStandard(ctx, req)
	}
}

// authorize implements step 2: read-only capability for queries, write
// for mutations. Credential management (auth/keys) is authorized
// separately by api/middleware.RequireCapability(auth.Admin) at the route
// level, since those operations never flow through command.Request.
func (d *Dispatcher) authorize(cred *auth.Credential, kind command.Kind) *errors.APIError {
	required := auth.Write
	if !command.IsMutating(kind) {
		required = auth.Read
	}
	if !d.registry.CheckCapability(cred, required) {
		return errors.PermissionDenied(string(required))
	}
	return nil
}

// dispatchStandard runs steps 4-8 for every kind registered in the
// Command Translator's table (move, home, pick/place/pick_and_place,
// vacuum_*, pwm_set, gpio_write, actuator_*, feeder_advance).
func (d *Dispatcher) dispatchStandard(ctx context.Context, req command.Request) (*Response, *errors.APIError) {
	oc := d.execute(ctx, req)

	if len(oc.violations) > 0 {
		return nil, errors.BoundsViolation(violationMessages(oc.violations))
	}
	if !oc.result.Success {
		if oc.controllerErr {
			return nil, errors.ControllerError(oc.result.Diagnostic)
		}
		return nil, errors.InvalidRequest(oc.result.Diagnostic)
	}
	return d.success(req.Kind, map[string]any{"commands": oc.result.Commands}), nil
}

// outcome is execute's internal result: enough detail for Handle to build
// a precisely-typed APIError, while still exposing a plain command.Result
// for batch reporting (where only Commands/Success/Diagnostic matter).
type outcome struct {
	result        command.Result
	violations    []safety.Violation
	controllerErr bool
}

// execute runs steps 4 (Validate), 5 (Translate), 6 (Dispatch), and 7
// (Post-conditions) for one request against a kind registered in the
// Translator's table. The Safety Manager check and the Translate call
// share the motion-context mutex (spec §5); the mutex is released before
// any ControllerClient call.
func (d *Dispatcher) execute(ctx context.Context, req command.Request) outcome {
	d.mu.Lock()
	violations := d.safetyMgr.Validate(req, d.motionCtx)
	if len(violations) > 0 {
		d.mu.Unlock()
		result := command.Fail(strings.Join(violationMessages(violations), "; "))
		d.recordCommand(req.Kind, nil, false, result.Diagnostic)
		return outcome{result: result, violations: violations}
	}
	result := d.translator.Translate(req, d.motionCtx)
	d.mu.Unlock()

	if !result.Success {
		d.recordCommand(req.Kind, nil, false, result.Diagnostic)
		return outcome{result: result}
	}

	for _, line := range result.Commands {
		if err := d.controller.RunCommand(ctx, line); err != nil {
			failed := command.Fail(fmt.Sprintf("controller rejected %q: %v", line, err))
			d.recordCommand(req.Kind, result.Commands, false, failed.Diagnostic)
			return outcome{result: failed, controllerErr: true}
		}
	}

	d.applyPostConditions(req)
	d.recordCommand(req.Kind, result.Commands, true, "")
	return outcome{result: result}
}

// applyPostConditions implements step 7: on mutation success, update
// HomedAxes (home only) and invalidate the cache categories the command
// family table (spec §4.G) assigns to this kind.
func (d *Dispatcher) applyPostConditions(req command.Request) {
	if req.Kind == command.Home {
		d.markHomedFromRequest(req)
	}
	for _, cat := range invalidationCategories(req.Kind) {
		d.cache.InvalidateCategory(cat)
	}
}

// markHomedFromRequest marks the axes named by the request's "axes"
// parameter as homed, or all three if the parameter is absent or "all"
// (spec §4.D edge case, mirrored by the Translator's own default_parameters
// for home).
func (d *Dispatcher) markHomedFromRequest(req command.Request) {
	axesParam, _ := req.String("axes")
	if axesParam == "" || axesParam == "all" {
		d.safetyMgr.MarkHomed(motion.X, motion.Y, motion.Z)
		return
	}
	var toMark []motion.Axis
	for _, tok := range strings.Split(axesParam, ",") {
		switch strings.TrimSpace(tok) {
		case "x":
			toMark = append(toMark, motion.X)
		case "y":
			toMark = append(toMark, motion.Y)
		case "z":
			toMark = append(toMark, motion.Z)
		}
	}
	d.safetyMgr.MarkHomed(toMark...)
}

// invalidationCategories implements spec §4.G's command-family
// invalidation table. Kinds absent from the table (feeder_advance, the
// read-only query kinds) invalidate nothing — the table is the sole
// authority here, not a derived guess.
func invalidationCategories(kind command.Kind) []cache.Category {
	switch kind {
	case command.Move, command.Home:
		return []cache.Category{cache.CategoryPositions}
	case command.VacuumOn, command.VacuumOff, command.VacuumSet:
		return []cache.Category{cache.CategoryFans}
	case command.PWMSet, command.PWMRamp, command.Pick, command.Place, command.PickAndPlace:
		return []cache.Category{cache.CategoryPWM, cache.CategoryPositions}
	case command.GPIOWrite, command.ActuatorActuate, command.ActuatorOn, command.ActuatorOff:
		return []cache.Category{cache.CategoryGPIO}
	default:
		return nil
	}
}

func violationMessages(violations []safety.Violation) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = fmt.Sprintf("%s: %s", v.Check, v.Message)
	}
	return out
}

func (d *Dispatcher) success(kind command.Kind, data any) *Response {
	return &Response{Status: "success", Command: kind, Data: data}
}

func (d *Dispatcher) partial(kind command.Kind, results []tasks.BatchResult) *Response {
	return &Response{Status: "partial_success", Command: kind, Results: results}
}

func (d *Dispatcher) recordCommand(kind command.Kind, commands []string, success bool, diagnostic string) {
	if d.audit == nil {
		return
	}
	d.audit.RecordCommand(kind, commands, success, diagnostic)
}

// controllerEStopAdapter satisfies safety.ControllerEStop, whose
// EmergencyStop() takes no context — the Safety Manager's emergency
// procedure must always be able to fire regardless of what (if any)
// request context triggered it. It binds its own bounded-timeout context
// per call instead.
type controllerEStopAdapter struct {
	client  controller.Client
	timeout time.Duration
}

func (a controllerEStopAdapter) EmergencyStop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return a.client.EmergencyStop(ctx)
}
