package middleware

import (
	"context"
	"net/http"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
	"github.com/Ntrondle/pnp-gateway/internal/auth"
)

// AuthMiddleware validates the X-Api-Key header against reg and, on
// success, stores the resolved *auth.Credential in the request context
// (spec §6.1 "Credential presentation", §4.I step "Identify"). A
// deactivated or unknown credential is rejected with UNAUTHENTICATED.
//
// Repeated authentication failures from the same presented key are
// tracked via authLog (spec §4.F's supplemental brute-force guard); once
// a key crosses failureThreshold within authLog's window, every
// subsequent attempt with that key is rejected without even reaching
// the registry scan.
func AuthMiddleware(reg *auth.Registry, authLog *auth.AuthLog, failureThreshold int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(APIKeyHeader)
			if presented == "" {
				writeUnauthenticated(w, r)
				return
			}

			if authLog.IsBlocked(presented, failureThreshold) {
				writeUnauthenticated(w, r)
				return
			}

			cred := reg.Validate(presented)
			if cred == nil {
				authLog.RecordFailure(presented)
				writeUnauthenticated(w, r)
				return
			}
			authLog.RecordSuccess(presented)

			ctx := context.WithValue(r.Context(), CredentialContextKey, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability returns middleware that rejects requests whose
// authenticated credential lacks the given capability (spec §4.I step
// "Authorize"). Must run after AuthMiddleware.
func RequireCapability(reg *auth.Registry, capability auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, ok := GetCredential(r.Context())
			if !ok || cred == nil {
				writeUnauthenticated(w, r)
				return
			}
			if !reg.CheckCapability(cred, capability) {
				writePermissionDenied(w, r, capability)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetCredential extracts the authenticated credential from context.
func GetCredential(ctx context.Context) (*auth.Credential, bool) {
	cred, ok := ctx.Value(CredentialContextKey).(*auth.Credential)
	return cred, ok
}

func writeUnauthenticated(w http.ResponseWriter, r *http.Request) {
	err := errors.Unauthenticated().WithRequestID(GetRequestID(r.Context()))
	errors.WriteError(w, err)
}

func writePermissionDenied(w http.ResponseWriter, r *http.Request, capability auth.Capability) {
	err := errors.PermissionDenied(string(capability)).WithRequestID(GetRequestID(r.Context()))
	errors.WriteError(w, err)
}
