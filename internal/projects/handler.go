package projects

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/covenant-cm/covenant/internal/platform/httpx"
	"github.com/covenant-cm/covenant/internal/shared"
)

// Handler manages project endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{projectID}", h.get)
	r.Put("/{projectID}", h.update)
	r.Delete("/{projectID}", h.delete)
}

type projectRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=200"`
	Description    string `json:"description" validate:"max=2000"`
	OrganizationID string `json:"organization_id"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	StartDate      string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate        string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	page, perPage := shared.PageParams(r)
	items, pagination, err := h.service.List(r.Context(), *sub,
		r.URL.Query().Get("organization_id"),
		Status(r.URL.Query().Get("status")),
		page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Project{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": items, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	p, err := h.service.Get(r.Context(), *sub, chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.Create(r.Context(), *sub, req.toDomain(""))
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.Update(r.Context(), *sub, req.toDomain(chi.URLParam(r, "projectID")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.Delete(r.Context(), *sub, chi.URLParam(r, "projectID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (projectRequest, bool) {
	var req projectRequest
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

func (req projectRequest) toDomain(id string) Project {
	p := Project{
		ID:             id,
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		Status:         Status(req.Status),
		Priority:       Priority(req.Priority),
	}
	if t, err := time.Parse("2006-01-02", req.StartDate); err == nil {
		p.StartDate = t
	}
	if t, err := time.Parse("2006-01-02", req.EndDate); err == nil {
		p.EndDate = t
	}
	return p
}
