package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RefFunc derives the target resource from the incoming request, e.g.
// from chi URL parameters.
type RefFunc func(r *http.Request) ResourceRef

// SubjectFunc resolves the authenticated subject for the request, nil
// when unauthenticated.
type SubjectFunc func(r *http.Request) *Subject

// Middleware wires authorization checks into HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Subject  SubjectFunc
	Logger   *slog.Logger
	// OnDenied is invoked for every rejected request, e.g. to feed a
	// metrics counter. Optional.
	OnDenied func(kind ResourceKind)
}

// Require rejects the request unless the subject may perform the action
// on the resource derived by ref. A nil ref targets the kind within the
// subject's own organization.
func (m Middleware) Require(kind ResourceKind, action Action, ref RefFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := m.subject(r)
			if sub == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			target := ResourceRef{Kind: kind, OrganizationID: sub.OrganizationID}
			if ref != nil {
				target = ref(r)
				target.Kind = kind
			}
			if !m.Resolver.Allowed(*sub, action, target) {
				if m.Logger != nil {
					m.Logger.Warn("authorization denied",
						slog.String("user_id", sub.UserID),
						slog.String("role", string(sub.Role)),
						slog.String("kind", string(kind)),
						slog.String("action", string(action)),
						slog.String("resource_id", target.ID),
					)
				}
				if m.OnDenied != nil {
					m.OnDenied(kind)
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) subject(r *http.Request) *Subject {
	if m.Subject == nil {
		return nil
	}
	return m.Subject(r)
}

// RefFromParam builds a RefFunc that reads the resource id from a chi
// URL parameter and scopes it to the subject's organization. Handlers
// that need cross-organization refs resolve ownership themselves.
func (m Middleware) RefFromParam(param string) RefFunc {
	return func(r *http.Request) ResourceRef {
		ref := ResourceRef{ID: chi.URLParam(r, param)}
		if sub := m.subject(r); sub != nil {
			ref.OrganizationID = sub.OrganizationID
		}
		return ref
	}
}
