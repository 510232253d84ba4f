// Package controller implements the ControllerClient abstraction the
// Dispatcher uses to talk to the upstream motion controller (spec §6.2):
// a Moonraker/Klipper-style HTTP+JSON-RPC endpoint that accepts G-code
// lines and answers structured object queries.
package controller

import (
	"context"
	"time"
)

// Client is the abstraction the Dispatcher depends on. The HTTP
// implementation lives in http_client.go; tests use a fake.
type Client interface {
	// RunCommand submits one low-level command line (a G-code line, in
	// this deployment) and waits for the controller to acknowledge it.
	RunCommand(ctx context.Context, line string) error

	// QueryObjects asks the controller for the named objects' current
	// state. A nil value for an object name requests all of its fields.
	QueryObjects(ctx context.Context, objects map[string]any) (map[string]any, error)

	// GetStatus returns the controller's overall status mapping (spec
	// §6.2), backing the /api/v1/status endpoint's cache refiller.
	GetStatus(ctx context.Context) (map[string]any, error)

	// EmergencyStop requests an immediate halt of all motion and output.
	EmergencyStop(ctx context.Context) error

	// GetVersion returns controller and firmware version information.
	GetVersion(ctx context.Context) (map[string]any, error)

	// Close releases any pooled transport resources.
	Close()
}

// Error distinguishes a transport-level failure (connection refused,
// timeout, malformed response) from a controller-side rejection (the
// controller understood the request and declined it). The Dispatcher
// maps both to CONTROLLER_ERROR (spec §7) but logs them differently.
type Error struct {
	Transport bool
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Config holds the dial/pacing parameters for the HTTP client.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout bounds a single controller call (spec §4 "every
	// ControllerClient call has a configured timeout").
	Timeout time.Duration

	// RateLimit and Burst pace outbound calls so a burst of gateway
	// traffic can't overrun the controller's own command queue,
	// independent of any per-credential budget enforced upstream.
	RateLimit float64
	Burst     int
}

// DefaultConfig returns the conservative defaults used when a deployment
// doesn't override them via internal/config.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		RateLimit: 50,
		Burst:     10,
	}
}
