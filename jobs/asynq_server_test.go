package jobs

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

func newTriggerRouter(client *Client) http.Handler {
	mw := authz.Middleware{
		Resolver: authz.NewResolver(),
		Subject: func(r *http.Request) *authz.Subject {
			return shared.SubjectFromContext(r.Context())
		},
	}
	h := NewHandler(nil, client, mw, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := chi.NewRouter()
	h.MountAdminRoutes(router)
	return router
}

func triggerAs(router http.Handler, sub authz.Subject) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/expiry-scan", nil)
	req = req.WithContext(shared.ContextWithSubject(req.Context(), &sub))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestTriggerExpiryScanRequiresContractManage(t *testing.T) {
	router := newTriggerRouter(nil)
	for _, role := range []authz.Role{authz.RoleManager, authz.RoleUser} {
		sub := authz.Subject{UserID: "u-1", Role: role, OrganizationID: "org-1"}
		rr := triggerAs(router, sub)
		require.Equal(t, http.StatusForbidden, rr.Code, string(role))
	}
}

func TestTriggerExpiryScanWithoutQueue(t *testing.T) {
	router := newTriggerRouter(nil)
	sub := authz.Subject{UserID: "admin", Role: authz.RoleOrgAdmin, OrganizationID: "org-1"}
	rr := triggerAs(router, sub)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
