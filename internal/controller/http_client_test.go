package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handle func(rpcRequest) rpcResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("server: failed to decode request: %v", err)
		}
		resp := handle(req)
		resp.JSONRPC = "2.0"
		resp.ID = req.ID
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testConfig(url string) Config {
	return Config{BaseURL: url, Timeout: 2 * time.Second, RateLimit: 1000, Burst: 100}
}

func TestRunCommandSendsTextParam(t *testing.T) {
	var gotMethod string
	var gotParams map[string]any
	srv := newTestServer(t, func(req rpcRequest) rpcResponse {
		gotMethod = req.Method
		b, _ := json.Marshal(req.Params)
		_ = json.Unmarshal(b, &gotParams)
		return rpcResponse{Result: json.RawMessage(`{}`)}
	})
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL), nil)
	defer c.Close()

	if err := c.RunCommand(context.Background(), "G28 all"); err != nil {
		t.Fatalf("RunCommand failed: %v", err)
	}
	if gotMethod != "run_command" {
		t.Fatalf("expected method run_command, got %q", gotMethod)
	}
	if gotParams["text"] != "G28 all" {
		t.Fatalf("expected text param G28 all, got %v", gotParams["text"])
	}
}

func TestQueryObjectsDecodesMapping(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{Result: json.RawMessage(`{"toolhead":{"position":[1,2,3]}}`)}
	})
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL), nil)
	defer c.Close()

	result, err := c.QueryObjects(context.Background(), map[string]any{"toolhead": nil})
	if err != nil {
		t.Fatalf("QueryObjects failed: %v", err)
	}
	if _, ok := result["toolhead"]; !ok {
		t.Fatalf("expected toolhead key in result, got %v", result)
	}
}

func TestControllerRPCErrorSurfaces(t *testing.T) {
	srv := newTestServer(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{Error: &rpcError{Code: 1, Message: "unknown pin"}}
	})
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL), nil)
	defer c.Close()

	err := c.RunCommand(context.Background(), "SET_PIN PIN=bogus VALUE=1")
	if err == nil {
		t.Fatal("expected an error from a controller-side rejection")
	}
	cErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *controller.Error, got %T", err)
	}
	if cErr.Transport {
		t.Fatal("a controller-side rejection is not a transport error")
	}
}

func TestEmergencyStopCallsExpectedMethod(t *testing.T) {
	var gotMethod string
	srv := newTestServer(t, func(req rpcRequest) rpcResponse {
		gotMethod = req.Method
		return rpcResponse{Result: json.RawMessage(`{}`)}
	})
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL), nil)
	defer c.Close()

	if err := c.EmergencyStop(context.Background()); err != nil {
		t.Fatalf("EmergencyStop failed: %v", err)
	}
	if gotMethod != "emergency_stop" {
		t.Fatalf("expected emergency_stop, got %q", gotMethod)
	}
}

func TestTransportFailureIsMarkedAsTransport(t *testing.T) {
	c := NewHTTPClient(testConfig("http://127.0.0.1:1"), nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := c.RunCommand(ctx, "G28 all")
	if err == nil {
		t.Fatal("expected an error connecting to a closed port")
	}
	cErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *controller.Error, got %T", err)
	}
	if !cErr.Transport {
		t.Fatal("expected a connection failure to be marked as transport")
	}
}
