package contracts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/covenant-cm/covenant/internal/platform/httpx"
	"github.com/covenant-cm/covenant/internal/shared"
)

// Handler manages contract endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers contract routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/export", h.export)
	r.Get("/{contractID}", h.get)
	r.Put("/{contractID}", h.update)
	r.Delete("/{contractID}", h.delete)
}

type contractRequest struct {
	Title          string `json:"title" validate:"required,min=2,max=200"`
	Description    string `json:"description" validate:"max=4000"`
	OrganizationID string `json:"organization_id"`
	ProjectID      string `json:"project_id"`
	CounterpartyID string `json:"counterparty_id" validate:"omitempty,uuid"`
	Status         string `json:"status"`
	Category       string `json:"category"`
	Type           string `json:"type"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
	StartDate      string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate        string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	page, perPage := shared.PageParams(r)
	f := ListFilters{
		OrganizationID: r.URL.Query().Get("organization_id"),
		ProjectID:      r.URL.Query().Get("project_id"),
		Status:         Status(r.URL.Query().Get("status")),
		Category:       Category(r.URL.Query().Get("category")),
	}
	items, pagination, err := h.service.List(r.Context(), *sub, f, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Contract{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contracts": items, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	c, err := h.service.Get(r.Context(), *sub, chi.URLParam(r, "contractID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	c, err := h.service.Create(r.Context(), *sub, req.toDomain(""))
	if err != nil {
		h.logger.Error("create contract", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	c, err := h.service.Update(r.Context(), *sub, req.toDomain(chi.URLParam(r, "contractID")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.Delete(r.Context(), *sub, chi.URLParam(r, "contractID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	f := ListFilters{
		OrganizationID: r.URL.Query().Get("organization_id"),
		Status:         Status(r.URL.Query().Get("status")),
	}
	items, _, err := h.service.List(r.Context(), *sub, f, 1, exportPageSize)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="contracts.csv"`)
	if err := WriteCSV(w, items, r.URL.Query().Get("locale")); err != nil {
		h.logger.Error("export contracts", slog.Any("error", err))
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (contractRequest, bool) {
	var req contractRequest
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

func (req contractRequest) toDomain(id string) Contract {
	c := Contract{
		ID:             id,
		OrganizationID: req.OrganizationID,
		ProjectID:      req.ProjectID,
		Title:          req.Title,
		Description:    req.Description,
		CounterpartyID: req.CounterpartyID,
		Status:         Status(req.Status),
		Category:       Category(req.Category),
		Type:           EconomicType(req.Type),
		Amount:         req.Amount,
		Currency:       req.Currency,
	}
	if t, err := time.Parse("2006-01-02", req.StartDate); err == nil {
		c.StartDate = t
	}
	if t, err := time.Parse("2006-01-02", req.EndDate); err == nil {
		c.EndDate = t
	}
	return c
}
