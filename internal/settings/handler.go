package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/covenant-cm/covenant/internal/platform/httpx"
	"github.com/covenant-cm/covenant/internal/shared"
)

// Handler manages settings endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
}

type settingsRequest struct {
	OrganizationID    string `json:"organization_id"`
	DefaultCurrency   string `json:"default_currency" validate:"omitempty,len=3"`
	Locale            string `json:"locale" validate:"omitempty,max=35"`
	ExpiryWarningDays int    `json:"expiry_warning_days" validate:"required,min=1,max=365"`
	NotifyOnExpiry    bool   `json:"notify_on_expiry"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	s, err := h.service.Get(r.Context(), *sub, r.URL.Query().Get("organization_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	var req settingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.service.Update(r.Context(), *sub, Settings{
		OrganizationID:    req.OrganizationID,
		DefaultCurrency:   req.DefaultCurrency,
		Locale:            req.Locale,
		ExpiryWarningDays: req.ExpiryWarningDays,
		NotifyOnExpiry:    req.NotifyOnExpiry,
	})
	if err != nil {
		h.logger.Error("update settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}
