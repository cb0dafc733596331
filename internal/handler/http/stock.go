package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/service"
	apperrors "github.com/utafrali/locagame/pkg/errors"
	"github.com/utafrali/locagame/pkg/httputil"
	"github.com/utafrali/locagame/pkg/pagination"
	"github.com/utafrali/locagame/pkg/validator"
)

// StockHandler serves the stock write endpoints: product stock records,
// manual blocks and reservation holds.
type StockHandler struct {
	service *service.BookingService
	logger  *slog.Logger
}

// NewStockHandler creates a new stock HTTP handler.
func NewStockHandler(svc *service.BookingService, logger *slog.Logger) *StockHandler {
	return &StockHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// UpsertProductRequest is the JSON request body for PUT /products/{productId}.
type UpsertProductRequest struct {
	Name       string `json:"name" validate:"max=255"`
	TotalStock *int   `json:"total_stock" validate:"required,gte=0"`
	IsActive   *bool  `json:"is_active" validate:"required"`
}

// CreateBlockRequest is the JSON request body for a manual block.
type CreateBlockRequest struct {
	StartDate string `json:"start_date" validate:"required,isodate"`
	EndDate   string `json:"end_date" validate:"required,isodate"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	Status    string `json:"status" validate:"required,oneof=blocked maintenance"`
	Note      string `json:"note" validate:"max=500"`
}

// HoldItemRequest is one product line of a hold request.
type HoldItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// HoldReservationRequest is the JSON request body for holding stock.
type HoldReservationRequest struct {
	StartDate string            `json:"start_date" validate:"required,isodate"`
	EndDate   string            `json:"end_date" validate:"required,isodate"`
	Items     []HoldItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// --- Handlers ---

// GetProduct handles GET /api/v1/products/{productId}
func (h *StockHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// UpsertProduct handles PUT /api/v1/products/{productId}
func (h *StockHandler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req UpsertProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	product, err := h.service.UpsertProduct(r.Context(), &domain.Product{
		ID:         chi.URLParam(r, "productId"),
		Name:       req.Name,
		TotalStock: *req.TotalStock,
		IsActive:   *req.IsActive,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// ListIntervals handles GET /api/v1/products/{productId}/intervals
func (h *StockHandler) ListIntervals(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	intervals, total, err := h.service.ListIntervals(r.Context(), chi.URLParam(r, "productId"), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(intervals, total, params.Page, params.PerPage))
}

// CreateBlock handles POST /api/v1/products/{productId}/blocks
func (h *StockHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	window, err := domain.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	iv, err := h.service.CreateBlock(r.Context(), service.BlockRequest{
		ProductID: chi.URLParam(r, "productId"),
		StartDate: window.Start,
		EndDate:   window.End,
		Quantity:  req.Quantity,
		Status:    req.Status,
		Note:      req.Note,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: iv})
}

// DeleteBlock handles DELETE /api/v1/blocks/{intervalId}
func (h *StockHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "intervalId"))
	if !ok {
		return
	}

	if err := h.service.DeleteBlock(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HoldReservation handles POST /api/v1/reservations/{reservationId}/hold
func (h *StockHandler) HoldReservation(w http.ResponseWriter, r *http.Request) {
	var req HoldReservationRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	window, err := domain.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	items := make([]service.HoldItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.HoldItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	reservationID := chi.URLParam(r, "reservationId")
	held, err := h.service.HoldReservation(r.Context(), reservationID, window.Start, window.End, items)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: map[string]any{
		"reservation_id": reservationID,
		"intervals":      held,
	}})
}

// ReleaseReservation handles DELETE /api/v1/reservations/{reservationId}/hold
func (h *StockHandler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := chi.URLParam(r, "reservationId")
	released, err := h.service.ReleaseReservation(r.Context(), reservationID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"reservation_id":     reservationID,
		"released_intervals": released,
	}})
}
