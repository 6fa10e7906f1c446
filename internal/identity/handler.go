package identity

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/platform/httpx"
	"github.com/covenant-cm/covenant/internal/shared"
)

// Handler exposes identity endpoints: the current subject, user
// listing, token management and assignment administration.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	resolver *authz.Resolver
	authz    authz.Middleware
	tokenTTL time.Duration
	validate *validator.Validate
}

// NewHandler builds Handler instance. tokenTTL is the lifetime applied
// to issued tokens when the request does not name one.
func NewHandler(logger *slog.Logger, service *Service, resolver *authz.Resolver, mw authz.Middleware, tokenTTL time.Duration) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		resolver: resolver,
		authz:    mw,
		tokenTTL: tokenTTL,
		validate: validator.New(),
	}
}

// MountRoutes registers identity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/me/permissions", h.myPermissions)

	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.KindUsers, authz.ActionRead, h.authz.RefFromParam("userID")))
		r.Get("/users", h.listUsers)
		r.Get("/users/{userID}/assignments", h.getAssignments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.KindUsers, authz.ActionUpdate, h.authz.RefFromParam("userID")))
		r.Put("/users/{userID}/assignments", h.putAssignments)
		r.Post("/users/{userID}/tokens", h.issueToken)
		r.Delete("/tokens/{tokenID}", h.revokeToken)
	})
}

// targetUser loads the user addressed by the route and enforces
// organization containment against the acting subject. The capability
// middleware only checks the subject's own organization; the stored
// user may belong to another one.
func (h *Handler) targetUser(w http.ResponseWriter, r *http.Request, userID string) (User, bool) {
	user, err := h.service.User(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return User{}, false
	}
	if !h.containsUser(r, user) {
		httpx.RespondError(w, shared.ErrForbidden)
		return User{}, false
	}
	return user, true
}

func (h *Handler) containsUser(r *http.Request, user User) bool {
	sub := shared.SubjectFromContext(r.Context())
	return sub != nil && h.resolver.CanAccessOrganization(sub.Role, sub.OrganizationID, user.OrganizationID)
}

type meResponse struct {
	Subject     *authz.Subject `json:"subject"`
	RoleDisplay string         `json:"role_display"`
	RoleLevel   int            `json:"role_level"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if sub == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	resp := meResponse{Subject: sub, RoleDisplay: h.resolver.DisplayName(sub.Role)}
	if spec, ok := h.resolver.RoleByID(sub.Role); ok {
		resp.RoleLevel = spec.Level
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// myPermissions reports the fine action set the subject holds on one
// project or contract, the way UI callers distinguish read-only from
// editable access.
func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if sub == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	kind := authz.ResourceKind(r.URL.Query().Get("kind"))
	resourceID := r.URL.Query().Get("resource_id")
	if (kind != authz.KindProjects && kind != authz.KindContracts) || resourceID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "kind must be projects or contracts and resource_id is required")
		return
	}
	fine := authz.FinePermissions(sub.Assignments, kind, resourceID)
	if fine == nil {
		fine = []authz.FineAction{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"kind": kind, "resource_id": resourceID, "actions": fine})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	orgID := sub.OrganizationID
	// Super admins may inspect any organization.
	if q := r.URL.Query().Get("organization_id"); q != "" && sub.Role == authz.RoleSuperAdmin {
		orgID = q
	}
	users, err := h.service.ListUsers(r.Context(), orgID)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) getAssignments(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	assignments, err := h.service.Assignments(r.Context(), user.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if assignments == nil {
		assignments = []authz.Assignment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

type putAssignmentsRequest struct {
	Assignments []authz.Assignment `json:"assignments" validate:"dive"`
}

func (h *Handler) putAssignments(w http.ResponseWriter, r *http.Request) {
	var req putAssignmentsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	user, ok := h.targetUser(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	if err := h.service.SetAssignments(r.Context(), user.ID, req.Assignments); err != nil {
		h.logger.Error("set assignments", slog.String("user_id", user.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type issueTokenRequest struct {
	TTLHours int `json:"ttl_hours" validate:"gte=0,lte=8760"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, ok := h.targetUser(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	ttl := time.Duration(req.TTLHours) * time.Hour
	if ttl == 0 {
		ttl = h.tokenTTL
	}
	raw, err := h.service.IssueToken(r.Context(), user.ID, ttl)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"token": raw})
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")
	owner, err := h.service.TokenOwner(r.Context(), tokenID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !h.containsUser(r, owner) {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	if err := h.service.RevokeToken(r.Context(), tokenID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}
