package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/authz"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

type identityKey struct{}

func withIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(auth.Identity)
	return identity, ok
}

// RequireAuth accepts a bearer token, resolves it to an active account and
// stores the caller's identity in the request context.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeMessage(w, r, http.StatusUnauthorized, "No autorizado, token no proporcionado")
			return
		}

		claimed, err := h.tokens.Validate(token)
		if err != nil {
			h.loggerFromContext(r.Context()).Debug("rejected bearer token", "error", err)
			writeMessage(w, r, http.StatusUnauthorized, "No autorizado, token inválido")
			return
		}

		identity, err := h.authenticator.Authenticate(r.Context(), claimed)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				writeMessage(w, r, http.StatusUnauthorized, err.Error())
				return
			}
			h.writeError(w, r, err)
			return
		}

		ctx := withIdentity(r.Context(), identity)
		ctx = logging.With(ctx, h.logger, "user_id", identity.ID, "role", identity.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects callers whose role does not hold permission.
// It must run after RequireAuth.
func (h *Handlers) RequirePermission(permission authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFromContext(r.Context())
			if !ok {
				writeMessage(w, r, http.StatusUnauthorized, "No autorizado")
				return
			}
			allowed, err := h.authorizer.Allowed(identity.Role, permission)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			if !allowed {
				h.loggerFromContext(r.Context()).Warn("permission denied", "permission", permission.String())
				writeMessage(w, r, http.StatusForbidden, "No tienes permiso para realizar esta acción")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on an EventSource, so event streams may pass the token as ?token=.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			return strings.TrimSpace(r.URL.Query().Get("token"))
		}
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
