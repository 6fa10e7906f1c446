package orgs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/covenant-cm/covenant/internal/platform/httpx"
	"github.com/covenant-cm/covenant/internal/shared"
)

// Handler manages organization endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{orgID}", h.get)
	r.Put("/{orgID}", h.update)
	r.Delete("/{orgID}", h.delete)
}

type organizationRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=200"`
	TaxID    string `json:"tax_id" validate:"max=50"`
	Industry string `json:"industry" validate:"max=100"`
	Country  string `json:"country" validate:"max=100"`
	Active   *bool  `json:"active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	page, perPage := shared.PageParams(r)
	items, pagination, err := h.service.List(r.Context(), *sub, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Organization{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"organizations": items, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	org, err := h.service.Get(r.Context(), *sub, chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	org, err := h.service.Create(r.Context(), *sub, req.toDomain(""))
	if err != nil {
		h.logger.Error("create organization", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, org)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	org, err := h.service.Update(r.Context(), *sub, req.toDomain(chi.URLParam(r, "orgID")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.Delete(r.Context(), *sub, chi.URLParam(r, "orgID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (organizationRequest, bool) {
	var req organizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return req, false
	}
	return req, true
}

func (req organizationRequest) toDomain(id string) Organization {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return Organization{
		ID:       id,
		Name:     req.Name,
		TaxID:    req.TaxID,
		Industry: req.Industry,
		Country:  req.Country,
		Active:   active,
	}
}
