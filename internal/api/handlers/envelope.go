// Package handlers implements the REST boundary of spec §6.1: decoding
// the command envelope, invoking the Request Dispatcher, and translating
// its Response/APIError pair into the wire envelope.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
	"github.com/Ntrondle/pnp-gateway/internal/api/middleware"
	"github.com/Ntrondle/pnp-gateway/internal/dispatcher"
)

// commandEnvelope is the inbound wire shape: a bare `parameters` object
// (spec §6.1 "Request bodies carry a parameters object").
type commandEnvelope struct {
	Parameters map[string]any `json:"parameters"`
}

// decodeParameters reads and decodes a request body's parameters object.
// A missing or empty body decodes to an empty parameter set — several
// command kinds (queue_clear, emergency_stop) take none.
func decodeParameters(r *http.Request) (map[string]any, *errors.APIError) {
	if r.Body == nil || r.ContentLength == 0 {
		return map[string]any{}, nil
	}
	var env commandEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return nil, errors.InvalidRequest("malformed JSON body: " + err.Error())
	}
	if env.Parameters == nil {
		env.Parameters = map[string]any{}
	}
	return env.Parameters, nil
}

// writeResponse translates a Dispatcher outcome into the wire envelope
// and writes it. Exactly one of resp/apiErr is non-nil.
func writeResponse(w http.ResponseWriter, r *http.Request, resp *dispatcher.Response, apiErr *errors.APIError) {
	if apiErr != nil {
		apiErr.WithRequestID(middleware.GetRequestID(r.Context()))
		errors.WriteError(w, apiErr)
		return
	}

	status := http.StatusOK
	if resp.Status == "partial_success" {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes an arbitrary success payload with the given status,
// for endpoints (auth/keys, auth/status, audit/commands) that don't flow
// through the Dispatcher.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, r *http.Request, err *errors.APIError) {
	err.WithRequestID(middleware.GetRequestID(r.Context()))
	errors.WriteError(w, err)
}
