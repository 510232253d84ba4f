package handlers

import (
	"net/http"
	"strconv"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
	"github.com/Ntrondle/pnp-gateway/internal/audit"
	"github.com/Ntrondle/pnp-gateway/internal/command"
)

// ListAuditCommands handles the supplemental GET /api/v1/audit/commands
// (admin): a paginated, filterable view of the command audit trail.
func ListAuditCommands(log *audit.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if log == nil {
			writeAPIError(w, r, errors.ExecutionError("audit trail is disabled"))
			return
		}

		q := r.URL.Query()
		filter := audit.CommandFilter{Kind: command.Kind(q.Get("kind"))}
		if v := q.Get("success"); v != "" {
			success := v == "true"
			filter.Success = &success
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		entries, err := log.ListCommands(r.Context(), filter)
		if err != nil {
			writeAPIError(w, r, errors.ExecutionError(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commands": entries})
	}
}
