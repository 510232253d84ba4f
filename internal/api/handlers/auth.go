package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
	"github.com/Ntrondle/pnp-gateway/internal/api/middleware"
	"github.com/Ntrondle/pnp-gateway/internal/auth"
)

// credentialView is the wire shape of a credential — never includes the
// secret hash (spec §3: "the raw secret is never stored or retrievable
// again").
type credentialView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities"`
	Budget       int      `json:"budget"`
	Active       bool     `json:"active"`
	CreatedAt    string   `json:"created_at"`
	LastUsedAt   string   `json:"last_used_at,omitempty"`
}

func toView(c *auth.Credential) credentialView {
	caps := make([]string, 0, len(c.Capabilities))
	for _, cap := range c.Capabilities.List() {
		caps = append(caps, string(cap))
	}
	view := credentialView{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		Capabilities: caps,
		Budget:       c.Budget,
		Active:       c.Active,
		CreatedAt:    c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if !c.LastUsedAt.IsZero() {
		view.LastUsedAt = c.LastUsedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return view
}

type createKeyRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=128"`
	Description  string   `json:"description" validate:"max=512"`
	Capabilities []string `json:"capabilities" validate:"dive,oneof=read write admin"`
	Budget       int      `json:"budget" validate:"omitempty,min=1"`
}

type createKeyResponse struct {
	credentialView
	Secret string `json:"secret"`
}

// CreateKey handles POST /api/v1/auth/keys (admin). The raw secret is
// returned exactly once, in this response.
func CreateKey(reg *auth.Registry, defaultBudget int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, r, errors.InvalidRequest("malformed JSON body: "+err.Error()))
			return
		}
		if err := middleware.ValidateStruct(req); err != nil {
			writeAPIError(w, r, errors.InvalidRequest(err.Error()).WithDetails(middleware.FormatValidationErrors(err)))
			return
		}
		budget := req.Budget
		if budget <= 0 {
			budget = defaultBudget
		}
		caps := make([]auth.Capability, 0, len(req.Capabilities))
		for _, c := range req.Capabilities {
			caps = append(caps, auth.Capability(c))
		}
		if len(caps) == 0 {
			caps = []auth.Capability{auth.Read}
		}

		id, secret, err := reg.Create(req.Name, auth.NewCapabilitySet(caps...), budget, req.Description)
		if err != nil {
			writeAPIError(w, r, errors.ExecutionError(err.Error()))
			return
		}
		cred, _ := reg.Get(id)
		writeJSON(w, http.StatusCreated, createKeyResponse{credentialView: toView(cred), Secret: secret})
	}
}

// ListKeys handles GET /api/v1/auth/keys (admin).
func ListKeys(reg *auth.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds := reg.List()
		views := make([]credentialView, 0, len(creds))
		for _, c := range creds {
			views = append(views, toView(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"keys": views})
	}
}

// GetKey handles GET /api/v1/auth/keys/{id} (admin).
func GetKey(reg *auth.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		cred, ok := reg.Get(id)
		if !ok {
			writeAPIError(w, r, errors.KeyNotFound(id))
			return
		}
		writeJSON(w, http.StatusOK, toView(cred))
	}
}

type updateKeyRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Capabilities []string `json:"capabilities"`
	Budget       *int     `json:"budget"`
	Active       *bool    `json:"active"`
}

// UpdateKey handles PUT /api/v1/auth/keys/{id} (admin).
func UpdateKey(reg *auth.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var req updateKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, r, errors.InvalidRequest("malformed JSON body: "+err.Error()))
			return
		}

		fields := auth.UpdateFields{
			Name:        req.Name,
			Description: req.Description,
			Budget:      req.Budget,
			Active:      req.Active,
		}
		if req.Capabilities != nil {
			caps := make([]auth.Capability, 0, len(req.Capabilities))
			for _, c := range req.Capabilities {
				caps = append(caps, auth.Capability(c))
			}
			fields.Capabilities = auth.NewCapabilitySet(caps...)
		}

		cred, err := reg.Update(id, fields)
		if err != nil {
			writeAPIError(w, r, errors.KeyNotFound(id))
			return
		}
		writeJSON(w, http.StatusOK, toView(cred))
	}
}

// DeleteKey handles DELETE /api/v1/auth/keys/{id} (admin).
func DeleteKey(reg *auth.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := reg.Delete(id); err != nil {
			writeAPIError(w, r, errors.KeyNotFound(id))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AuthStatus handles GET /api/v1/auth/status: the calling credential's
// own identity, capabilities, and remaining budget in the current window.
func AuthStatus(reg *auth.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, ok := middleware.GetCredential(r.Context())
		if !ok {
			writeAPIError(w, r, errors.Unauthenticated())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"credential": toView(cred),
			"remaining":  reg.Remaining(cred),
		})
	}
}
