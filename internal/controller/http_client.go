package controller

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// rpcRequest is a JSON-RPC 2.0 envelope, the wire format Moonraker-style
// controllers speak over a single HTTP endpoint.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HTTPClient is the production Client, talking JSON-RPC over HTTP to a
// Moonraker-style controller (grounded on the original source's
// MoonrakerClient(host, port, api_key) and klippy_apis.run_gcode /
// query_objects calls).
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	nextID     int64
}

// NewHTTPClient constructs a ControllerClient against cfg.BaseURL,
// pooling connections and pacing outbound calls via
// golang.org/x/time/rate (grounded on the teacher's webhook_client.go
// transport tuning, repurposed from inbound rate limiting middleware to
// outbound controller-protection pacing — see DESIGN.md).
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		logger:  logger,
	}
}

func (c *HTTPClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Transport: true, Message: "rate limiter wait interrupted", Cause: err}
	}

	c.nextID++
	reqBody := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Transport: true, Message: "failed to marshal controller request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Transport: true, Message: "failed to build controller request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.ErrorContext(ctx, "controller transport error",
			slog.String("method", method), slog.String("error", err.Error()))
		return nil, &Error{Transport: true, Message: "controller request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Transport: true, Message: "failed to read controller response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "controller returned non-2xx",
			slog.String("method", method), slog.Int("status_code", resp.StatusCode))
		return nil, &Error{
			Transport: false,
			Message:   fmt.Sprintf("controller HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, &Error{Transport: true, Message: "malformed controller response", Cause: err}
	}
	if rpcResp.Error != nil {
		return nil, &Error{
			Transport: false,
			Message:   fmt.Sprintf("controller rejected %s: %s", method, rpcResp.Error.Message),
		}
	}

	c.logger.DebugContext(ctx, "controller call succeeded",
		slog.String("method", method), slog.Duration("duration", time.Since(start)))
	return rpcResp.Result, nil
}

// RunCommand submits one G-code line via the "run_command" RPC method
// (spec §6.2).
func (c *HTTPClient) RunCommand(ctx context.Context, line string) error {
	_, err := c.call(ctx, "run_command", map[string]any{"text": line})
	return err
}

// QueryObjects asks for the named objects' current state via
// "query_objects", mirroring the original source's
// klippy_apis.query_objects({name: fields_or_null, ...}) shape.
func (c *HTTPClient) QueryObjects(ctx context.Context, objects map[string]any) (map[string]any, error) {
	raw, err := c.call(ctx, "query_objects", map[string]any{"objects": objects})
	if err != nil {
		return nil, err
	}
	return decodeMapping(raw)
}

// GetStatus returns the controller's overall status mapping.
func (c *HTTPClient) GetStatus(ctx context.Context) (map[string]any, error) {
	raw, err := c.call(ctx, "get_status", nil)
	if err != nil {
		return nil, err
	}
	return decodeMapping(raw)
}

// EmergencyStop requests an immediate halt of all motion and output.
func (c *HTTPClient) EmergencyStop(ctx context.Context) error {
	_, err := c.call(ctx, "emergency_stop", nil)
	return err
}

// GetVersion returns controller and firmware version information.
func (c *HTTPClient) GetVersion(ctx context.Context) (map[string]any, error) {
	raw, err := c.call(ctx, "get_version", nil)
	if err != nil {
		return nil, err
	}
	return decodeMapping(raw)
}

// Close releases pooled idle connections.
func (c *HTTPClient) Close() {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func decodeMapping(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &Error{Transport: true, Message: "controller result was not an object", Cause: err}
	}
	return m, nil
}
