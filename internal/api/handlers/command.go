package handlers

import (
	"net/http"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
	"github.com/Ntrondle/pnp-gateway/internal/api/middleware"
	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/dispatcher"
)

// Command returns a handler that decodes a JSON parameters object into a
// command.Request of the given kind and runs it through the Dispatcher.
// This is every mutating endpoint (batch/execute included) and the
// POST-form queries (gpio/read, sensors/read) — spec §6.1 gives every one
// of them the same envelope shape.
func Command(d *dispatcher.Dispatcher, kind command.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, apiErr := decodeParameters(r)
		if apiErr != nil {
			writeAPIError(w, r, apiErr)
			return
		}

		cred, ok := middleware.GetCredential(r.Context())
		if !ok {
			writeAPIError(w, r, errors.Unauthenticated())
			return
		}

		resp, apiErr := d.Handle(r.Context(), cred, command.Request{Kind: kind, Parameters: params})
		writeResponse(w, r, resp, apiErr)
	}
}

// Query returns a handler for GET-form query endpoints (status,
// system/info, version, queue) that carry no request body.
func Query(d *dispatcher.Dispatcher, kind command.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, ok := middleware.GetCredential(r.Context())
		if !ok {
			writeAPIError(w, r, errors.Unauthenticated())
			return
		}
		resp, apiErr := d.Handle(r.Context(), cred, command.Request{Kind: kind})
		writeResponse(w, r, resp, apiErr)
	}
}
