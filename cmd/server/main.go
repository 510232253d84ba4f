// Package main is the entry point for the PnP gateway server: it wires
// every component (Motion Context, Command Translator, Safety Manager,
// Credential Registry, State Cache, Task Supervisor, ControllerClient,
// audit trail, Request Dispatcher) and serves the spec §6.1 REST surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ntrondle/pnp-gateway/internal/api"
	"github.com/Ntrondle/pnp-gateway/internal/api/middleware"
	"github.com/Ntrondle/pnp-gateway/internal/audit"
	"github.com/Ntrondle/pnp-gateway/internal/auth"
	"github.com/Ntrondle/pnp-gateway/internal/cache"
	"github.com/Ntrondle/pnp-gateway/internal/config"
	"github.com/Ntrondle/pnp-gateway/internal/controller"
	"github.com/Ntrondle/pnp-gateway/internal/dispatcher"
	"github.com/Ntrondle/pnp-gateway/internal/motion"
	"github.com/Ntrondle/pnp-gateway/internal/safety"
	"github.com/Ntrondle/pnp-gateway/internal/tasks"
	"github.com/Ntrondle/pnp-gateway/internal/translate"
	"github.com/Ntrondle/pnp-gateway/internal/validate"
	"github.com/Ntrondle/pnp-gateway/pkg/logger"
)

const (
	serviceName    = "pnp-gateway"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	log.Info("starting "+serviceName, "version", serviceVersion, "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credentialStore := &auth.JSONFileStore{Path: cfg.Auth.CredentialsPath}
	registry, err := auth.NewRegistry(credentialStore)
	if err != nil {
		log.Error("failed to load credential registry", "error", err)
		os.Exit(1)
	}
	authLog := auth.NewAuthLog(cfg.Auth.FailureWindow)

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(ctx, cfg.Audit.Path, logger.Component(log, "audit"))
		if err != nil {
			log.Error("failed to open audit trail", "error", err)
			os.Exit(1)
		}
		defer auditLog.Close()
	}

	motionCtx := motion.New()
	safetyLimits := cfg.Safety.ToLimits()
	translator := translate.New(validate.FromSafetyLimits(safetyLimits))
	safetyMgr := safety.NewManager(safetyLimits)
	stateCache := cache.New(cache.NewMetrics(nil))
	taskSupervisor := tasks.New(logger.Component(log, "tasks"))

	controllerClient := controller.NewHTTPClient(controller.Config{
		BaseURL:   cfg.Controller.BaseURL,
		APIKey:    cfg.Controller.APIKey,
		Timeout:   cfg.Controller.Timeout,
		RateLimit: cfg.Controller.RateLimit,
		Burst:     cfg.Controller.Burst,
	}, logger.Component(log, "controller"))
	defer controllerClient.Close()

	var auditSink dispatcher.AuditLog
	if auditLog != nil {
		auditSink = auditLog
	}

	d := dispatcher.New(dispatcher.Config{
		MotionContext:     motionCtx,
		Translator:        translator,
		SafetyManager:     safetyMgr,
		Registry:          registry,
		Cache:             stateCache,
		Tasks:             taskSupervisor,
		Controller:        controllerClient,
		Audit:             auditSink,
		Logger:            logger.Component(log, "dispatcher"),
		ControllerTimeout: cfg.Controller.Timeout,
	})

	router := api.NewRouter(api.RouterConfig{
		Dispatcher:           d,
		Registry:             registry,
		AuthLog:              authLog,
		Audit:                auditLog,
		Logger:               logger.Component(log, "http"),
		AuthFailureThreshold: cfg.Auth.FailureThreshold,
		IPLimiter:            middleware.NewIPLimiter(20, 40),
		DefaultKeyBudget:     cfg.RateLimit.DefaultBudget,
		CORSConfig:           middleware.DefaultCORSConfig(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()

	taskSupervisor.CancelAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
