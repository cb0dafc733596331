package http

import (
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/service"
	apperrors "github.com/utafrali/locagame/pkg/errors"
	"github.com/utafrali/locagame/pkg/httputil"
	"github.com/utafrali/locagame/pkg/validator"
)

// AvailabilityHandler serves the read-only availability endpoints. Storage
// failures never surface as 5xx here: the body carries the fail-closed result.
type AvailabilityHandler struct {
	service *service.AvailabilityService
	logger  *slog.Logger
}

// NewAvailabilityHandler creates a new availability HTTP handler.
func NewAvailabilityHandler(svc *service.AvailabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc, logger: logger}
}

// FilterUnavailableRequest is the JSON request body for the catalogue filter.
type FilterUnavailableRequest struct {
	ProductIDs  []string `json:"product_ids" validate:"required,max=500,dive,required"`
	StartDate   string   `json:"start_date" validate:"required,isodate"`
	EndDate     string   `json:"end_date" validate:"required,isodate"`
	MinQuantity int      `json:"min_quantity" validate:"gte=0"`
}

func queryDate(r *http.Request, name string) (civil.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return civil.Date{}, apperrors.InvalidInput(name + " is required")
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return civil.Date{}, apperrors.InvalidInput(name + " must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// CheckRange handles GET /api/v1/products/{productId}/availability
func (h *AvailabilityHandler) CheckRange(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	end, err := queryDate(r, "end")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	quantity, ok := httputil.QueryInt(w, r, "quantity", 1)
	if !ok {
		return
	}

	result, err := h.service.CheckRange(r.Context(), chi.URLParam(r, "productId"), start, end, quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Calendar handles GET /api/v1/products/{productId}/calendar. Year and month
// default to the current UTC month.
func (h *AvailabilityHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, ok := httputil.QueryInt(w, r, "year", now.Year())
	if !ok {
		return
	}
	month, ok := httputil.QueryInt(w, r, "month", int(now.Month()))
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productId")
	days, err := h.service.BuildCalendar(r.Context(), productID, year, time.Month(month))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"product_id": productID,
		"year":       year,
		"month":      month,
		"days":       days,
	}})
}

// FilterUnavailable handles POST /api/v1/availability/unavailable
func (h *AvailabilityHandler) FilterUnavailable(w http.ResponseWriter, r *http.Request) {
	var req FilterUnavailableRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	window, err := domain.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	ids, err := h.service.FilterUnavailable(r.Context(), req.ProductIDs, window.Start, window.End, req.MinQuantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"unavailable_product_ids": ids,
		"start_date":              window.Start,
		"end_date":                window.End,
	}})
}
