// Package api assembles the gateway's HTTP surface: the global
// middleware stack (request ID, logging, metrics, CORS, compression,
// security headers, path normalization) and the spec §6.1 route table,
// wired to the Request Dispatcher and the Credential Registry.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ntrondle/pnp-gateway/internal/api/handlers"
	"github.com/Ntrondle/pnp-gateway/internal/api/middleware"
	"github.com/Ntrondle/pnp-gateway/internal/audit"
	"github.com/Ntrondle/pnp-gateway/internal/auth"
	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/dispatcher"
	pkgmiddleware "github.com/Ntrondle/pnp-gateway/pkg/middleware"
)

// RouterConfig holds everything NewRouter needs to wire the full route
// table. Every dependency is constructed once at startup (cmd/server)
// and handed in here — the router itself holds no state.
type RouterConfig struct {
	Dispatcher *dispatcher.Dispatcher
	Registry   *auth.Registry
	AuthLog    *auth.AuthLog
	Audit      *audit.Log
	Logger     *slog.Logger

	// AuthFailureThreshold gates AuthMiddleware's brute-force guard
	// (spec §4.F supplemental).
	AuthFailureThreshold int

	// IPLimiter guards unauthenticated traffic (credential creation, the
	// authentication step itself) independent of the Credential
	// Registry's per-credential budget.
	IPLimiter *middleware.IPLimiter

	// DefaultKeyBudget seeds auth/keys creation when the caller omits an
	// explicit budget.
	DefaultKeyBudget int

	CORSConfig middleware.CORSConfig
}

// NewRouter builds the gateway's mux.Router. Middleware order: RequestID
// → Logging → PathNormalization → Metrics → CORS → Compression →
// SecurityHeaders (always). PathNormalization must run before Metrics: it
// sets the X-Normalized-Path header Metrics reads to label `/auth/keys/:id`
// instead of one label per credential ID. Every /api/v1 route then runs
// IP rate limit → Validation, and per-route Auth → Capability apply where
// the route requires them.
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(cfg.Logger))
	router.Use(pkgmiddleware.PathNormalizationMiddleware())
	router.Use(middleware.MetricsMiddleware)
	router.Use(middleware.CORSMiddleware(cfg.CORSConfig))
	router.Use(middleware.CompressionMiddleware)
	router.Use(pkgmiddleware.SecureHeaders())

	router.HandleFunc("/healthz", HealthCheckHandler(cfg.Logger)).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middleware.IPRateLimitMiddleware(cfg.IPLimiter))
	v1.Use(middleware.ValidationMiddleware)

	setupCommandRoutes(v1, cfg)
	setupAuthRoutes(v1, cfg)
	setupAuditRoutes(v1, cfg)

	return router
}

// authed wraps a command-kind handler with AuthMiddleware and the
// capability the kind requires (spec §4.I steps "Identify"/"Authorize"
// split across this layer and the Dispatcher itself — Dispatcher.Handle
// re-checks the capability of the request's own kind; batch_execute
// sub-requests run through the Dispatcher's execute path, which does not
// re-check capability).
func authed(cfg RouterConfig, capability auth.Capability, h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	handler = middleware.RequireCapability(cfg.Registry, capability)(handler)
	handler = middleware.AuthMiddleware(cfg.Registry, cfg.AuthLog, cfg.AuthFailureThreshold)(handler)
	return handler
}

// setupCommandRoutes wires every endpoint that flows through the
// Dispatcher (spec §6.1's verb/path/capability table).
func setupCommandRoutes(router *mux.Router, cfg RouterConfig) {
	d := cfg.Dispatcher

	post := func(path string, kind command.Kind, capability auth.Capability) {
		router.Handle(path, authed(cfg, capability, handlers.Command(d, kind))).Methods(http.MethodPost)
	}
	get := func(path string, kind command.Kind, capability auth.Capability) {
		router.Handle(path, authed(cfg, capability, handlers.Query(d, kind))).Methods(http.MethodGet)
	}

	post("/motion/move", command.Move, auth.Write)
	post("/motion/home", command.Home, auth.Write)

	post("/pnp/pick", command.Pick, auth.Write)
	post("/pnp/place", command.Place, auth.Write)
	post("/pnp/pick_and_place", command.PickAndPlace, auth.Write)

	post("/vacuum/on", command.VacuumOn, auth.Write)
	post("/vacuum/off", command.VacuumOff, auth.Write)
	post("/vacuum/set", command.VacuumSet, auth.Write)

	post("/pwm/set", command.PWMSet, auth.Write)
	post("/pwm/ramp", command.PWMRamp, auth.Write)

	post("/gpio/read", command.GPIORead, auth.Read)
	post("/gpio/write", command.GPIOWrite, auth.Write)

	post("/actuators/actuate", command.ActuatorActuate, auth.Write)
	post("/actuators/on", command.ActuatorOn, auth.Write)
	post("/actuators/off", command.ActuatorOff, auth.Write)

	post("/feeders/advance", command.FeederAdvance, auth.Write)

	post("/sensors/read", command.SensorRead, auth.Read)

	get("/status", command.Status, auth.Read)
	get("/system/info", command.SystemInfo, auth.Read)
	get("/version", command.Version, auth.Read)

	get("/queue", command.QueueList, auth.Read)
	post("/queue/clear", command.QueueClear, auth.Write)

	post("/batch/execute", command.BatchExecute, auth.Write)
}

// setupAuthRoutes wires credential management (spec §6.1: admin-only CRUD
// plus the self-service auth/status lookup). These never flow through a
// command.Request — they act on the Credential Registry directly.
func setupAuthRoutes(router *mux.Router, cfg RouterConfig) {
	keys := router.PathPrefix("/auth/keys").Subrouter()
	keys.Handle("", authed(cfg, auth.Admin, handlers.CreateKey(cfg.Registry, cfg.DefaultKeyBudget))).Methods(http.MethodPost)
	keys.Handle("", authed(cfg, auth.Admin, handlers.ListKeys(cfg.Registry))).Methods(http.MethodGet)
	keys.Handle("/{id}", authed(cfg, auth.Admin, handlers.GetKey(cfg.Registry))).Methods(http.MethodGet)
	keys.Handle("/{id}", authed(cfg, auth.Admin, handlers.UpdateKey(cfg.Registry))).Methods(http.MethodPut)
	keys.Handle("/{id}", authed(cfg, auth.Admin, handlers.DeleteKey(cfg.Registry))).Methods(http.MethodDelete)

	router.Handle("/auth/status", middleware.AuthMiddleware(cfg.Registry, cfg.AuthLog, cfg.AuthFailureThreshold)(
		handlers.AuthStatus(cfg.Registry),
	)).Methods(http.MethodGet)
}

// setupAuditRoutes wires the supplemental audit-trail read endpoint.
func setupAuditRoutes(router *mux.Router, cfg RouterConfig) {
	router.Handle("/audit/commands", authed(cfg, auth.Admin, handlers.ListAuditCommands(cfg.Audit))).Methods(http.MethodGet)
}

// HealthCheckHandler reports basic liveness — not part of spec §6.1, but
// every deployment needs an unauthenticated probe target.
func HealthCheckHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(middleware.APIVersionHeader, "1.0.0")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "healthy"}); err != nil {
			logger.Error("failed to encode health response", "error", err)
		}
	}
}
