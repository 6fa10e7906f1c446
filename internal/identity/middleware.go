package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/covenant-cm/covenant/internal/platform/httpx"
	"github.com/covenant-cm/covenant/internal/shared"
)

// Authenticator resolves bearer tokens into subjects and places them in
// the request context.
type Authenticator struct {
	Service *Service
	Logger  *slog.Logger
}

// Middleware rejects requests without a valid bearer token. Handlers
// behind it can rely on shared.SubjectFromContext returning non-nil.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		sub, err := a.Service.Authenticate(r.Context(), raw)
		if err != nil {
			if a.Logger != nil && !errors.Is(err, shared.ErrInvalidToken) {
				a.Logger.Error("authenticate", slog.Any("error", err))
			}
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		ctx := shared.ContextWithSubject(r.Context(), sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const scheme = "Bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}
