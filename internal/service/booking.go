package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/repository"
	apperrors "github.com/utafrali/locagame/pkg/errors"
)

// Hold results recorded by Metrics.
const (
	holdResultHeld     = "held"
	holdResultConflict = "conflict"
	holdResultError    = "error"
)

// StockEvents publishes stock domain events after a write commits.
type StockEvents interface {
	PublishStockHeld(ctx context.Context, reservationID string, window domain.DateRange, intervals []domain.StockInterval) error
	PublishStockReleased(ctx context.Context, reservationID string, intervals []domain.StockInterval) error
	PublishStockBlocked(ctx context.Context, iv *domain.StockInterval) error
	PublishStockUnblocked(ctx context.Context, iv *domain.StockInterval) error
}

// HoldItem is one product line of a reservation.
type HoldItem struct {
	ProductID string
	Quantity  int
}

// BlockRequest describes a manual admin block.
type BlockRequest struct {
	ProductID string
	StartDate civil.Date
	EndDate   civil.Date
	Quantity  int
	Status    string
	Note      string
}

// BookingService owns every write to stock intervals. Writes that take
// stock re-check availability inside the same product lock as the insert.
type BookingService struct {
	store   repository.Store
	events  StockEvents
	metrics *Metrics
	logger  *slog.Logger
	cfg     AvailabilityConfig
}

// NewBookingService creates a new booking service. metrics may be nil.
func NewBookingService(store repository.Store, events StockEvents, metrics *Metrics, logger *slog.Logger, cfg AvailabilityConfig) *BookingService {
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = DefaultAvailabilityConfig().MaxRangeDays
	}
	return &BookingService{store: store, events: events, metrics: metrics, logger: logger, cfg: cfg}
}

func (s *BookingService) window(start, end civil.Date) (domain.DateRange, error) {
	window, err := domain.NewDateRange(start, end)
	if err != nil {
		return domain.DateRange{}, apperrors.InvalidInput(err.Error())
	}
	if window.Days() > s.cfg.MaxRangeDays {
		return domain.DateRange{}, apperrors.InvalidInput(
			fmt.Sprintf("date range spans %d days, the maximum is %d", window.Days(), s.cfg.MaxRangeDays))
	}
	return window, nil
}

// holdIntervalID derives the interval id from the reservation and product so
// a repeated hold for the same line collides instead of double-booking.
func holdIntervalID(reservationID, productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("hold:"+reservationID+":"+productID)).String()
}

// mergeItems sums quantities per product, keeping first-seen order.
func mergeItems(items []HoldItem) ([]HoldItem, error) {
	merged := make([]HoldItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return nil, apperrors.InvalidInput("product_id is required for every item")
		}
		if it.Quantity < 1 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("quantity for product %s must be at least 1", it.ProductID))
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

func formatDates(dates []civil.Date) string {
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, ",")
}

// conflictError describes why a hold or block cannot be satisfied. Details
// map each product id to its conflicting dates or fail-closed status.
func conflictError(results []domain.AvailabilityResult) *apperrors.AppError {
	ids := make([]string, 0, len(results))
	appErr := apperrors.Conflict("requested stock is not available for the selected dates")
	for _, res := range results {
		ids = append(ids, res.ProductID)
		detail := formatDates(res.ConflictingDates)
		if res.Status != domain.AvailabilityOK {
			detail = string(res.Status)
		}
		appErr.WithDetail(res.ProductID, detail)
	}
	appErr.Message = fmt.Sprintf("%s: %s", appErr.Message, strings.Join(ids, ", "))
	return appErr
}

// HoldReservation takes stock for every item of a reservation over the
// range. Either every item is held or none is.
func (s *BookingService) HoldReservation(ctx context.Context, reservationID string, start, end civil.Date, items []HoldItem) ([]domain.StockInterval, error) {
	if reservationID == "" {
		return nil, apperrors.InvalidInput("reservation_id is required")
	}
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}
	window, err := s.window(start, end)
	if err != nil {
		return nil, err
	}
	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	productIDs := make([]string, 0, len(merged))
	for _, it := range merged {
		productIDs = append(productIDs, it.ProductID)
	}

	now := time.Now().UTC()
	resID := reservationID
	var held []domain.StockInterval

	err = s.store.WithProductLocks(ctx, productIDs, func(tx repository.Store) error {
		var conflicts []domain.AvailabilityResult
		for _, it := range merged {
			res, storageErr := evaluate(ctx, tx, it.ProductID, window, it.Quantity)
			if storageErr != nil {
				return apperrors.Unavailable("stock store", storageErr)
			}
			if !res.Available {
				conflicts = append(conflicts, res)
			}
		}
		if len(conflicts) > 0 {
			return conflictError(conflicts)
		}

		intervals := make([]*domain.StockInterval, 0, len(merged))
		for _, it := range merged {
			intervals = append(intervals, &domain.StockInterval{
				ID:            holdIntervalID(reservationID, it.ProductID),
				ProductID:     it.ProductID,
				StartDate:     window.Start,
				EndDate:       window.End,
				Quantity:      it.Quantity,
				Status:        domain.StatusReserved,
				ReservationID: &resID,
				CreatedAt:     now,
			})
		}
		if err := tx.Intervals().Create(ctx, intervals...); err != nil {
			return fmt.Errorf("create hold intervals: %w", err)
		}
		for _, iv := range intervals {
			held = append(held, *iv)
		}
		return nil
	})
	if err != nil {
		result := holdResultError
		if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrAlreadyExists) {
			result = holdResultConflict
		}
		s.metrics.observeHold(result)
		return nil, err
	}
	s.metrics.observeHold(holdResultHeld)

	if err := s.events.PublishStockHeld(ctx, reservationID, window, held); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.held event",
			slog.String("reservation_id", reservationID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "reservation stock held",
		slog.String("reservation_id", reservationID),
		slog.String("range", window.String()),
		slog.Int("items", len(held)),
	)
	return held, nil
}

// ReleaseReservation deletes every interval held for a reservation and
// returns how many were removed. Releasing an unknown or already released
// reservation removes nothing and is not an error.
func (s *BookingService) ReleaseReservation(ctx context.Context, reservationID string) (int, error) {
	if reservationID == "" {
		return 0, apperrors.InvalidInput("reservation_id is required")
	}

	removed, err := s.store.Intervals().DeleteByReservation(ctx, reservationID)
	if err != nil {
		return 0, fmt.Errorf("release reservation: %w", err)
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := s.events.PublishStockReleased(ctx, reservationID, removed); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.released event",
			slog.String("reservation_id", reservationID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "reservation stock released",
		slog.String("reservation_id", reservationID),
		slog.Int("intervals", len(removed)),
	)
	return len(removed), nil
}

// CreateBlock records a manual block or maintenance window. A blocked
// interval must fit in the free stock; maintenance is recorded as is, even
// when it overbooks the product.
func (s *BookingService) CreateBlock(ctx context.Context, req BlockRequest) (*domain.StockInterval, error) {
	if req.ProductID == "" {
		return nil, apperrors.InvalidInput("product_id is required")
	}
	if !domain.IsBlockStatus(req.Status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("status must be %q or %q", domain.StatusBlocked, domain.StatusMaintenance))
	}
	window, err := s.window(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	iv := &domain.StockInterval{
		ID:        uuid.New().String(),
		ProductID: req.ProductID,
		StartDate: window.Start,
		EndDate:   window.End,
		Quantity:  req.Quantity,
		Status:    req.Status,
		CreatedAt: time.Now().UTC(),
	}
	if req.Note != "" {
		note := req.Note
		iv.Note = &note
	}
	if err := iv.Validate(); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	err = s.store.WithProductLocks(ctx, []string{req.ProductID}, func(tx repository.Store) error {
		if req.Status == domain.StatusBlocked {
			res, storageErr := evaluate(ctx, tx, req.ProductID, window, req.Quantity)
			if storageErr != nil {
				return apperrors.Unavailable("stock store", storageErr)
			}
			if res.Status == domain.AvailabilityNotFound {
				return apperrors.NotFound("product", req.ProductID)
			}
			if !res.Available {
				return conflictError([]domain.AvailabilityResult{res})
			}
		} else if _, err := tx.Products().GetByID(ctx, req.ProductID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFound("product", req.ProductID)
			}
			return fmt.Errorf("load product: %w", err)
		}
		return tx.Intervals().Create(ctx, iv)
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishStockBlocked(ctx, iv); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.blocked event",
			slog.String("interval_id", iv.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "stock block created",
		slog.String("interval_id", iv.ID),
		slog.String("product_id", iv.ProductID),
		slog.String("status", iv.Status),
		slog.Int("quantity", iv.Quantity),
	)
	return iv, nil
}

// DeleteBlock removes a manual block. Reservation intervals are released
// through ReleaseReservation instead.
func (s *BookingService) DeleteBlock(ctx context.Context, intervalID string) error {
	iv, err := s.store.Intervals().GetByID(ctx, intervalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("stock block", intervalID)
		}
		return fmt.Errorf("get stock block: %w", err)
	}
	if !iv.IsManualBlock() {
		return apperrors.Conflict("interval belongs to a reservation and is released with it")
	}

	if err := s.store.Intervals().Delete(ctx, intervalID); err != nil {
		return err
	}

	if err := s.events.PublishStockUnblocked(ctx, iv); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.unblocked event",
			slog.String("interval_id", iv.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "stock block deleted",
		slog.String("interval_id", iv.ID),
		slog.String("product_id", iv.ProductID),
	)
	return nil
}

// ListIntervals returns a page of a product's intervals, newest first.
func (s *BookingService) ListIntervals(ctx context.Context, productID string, page, perPage int) ([]domain.StockInterval, int, error) {
	if productID == "" {
		return nil, 0, apperrors.InvalidInput("product_id is required")
	}
	intervals, total, err := s.store.Intervals().ListByProduct(ctx, productID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list intervals: %w", err)
	}
	return intervals, total, nil
}

// GetProduct returns a product's stock record.
func (s *BookingService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := s.store.Products().GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", productID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// UpsertProduct creates a product or replaces its stock and active flag.
// Lowering total stock below what is already held is allowed; affected days
// simply report zero availability.
func (s *BookingService) UpsertProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := product.Validate(); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.store.Products().Upsert(ctx, product); err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	s.logger.InfoContext(ctx, "product stock updated",
		slog.String("product_id", product.ID),
		slog.Int("total_stock", product.TotalStock),
		slog.Bool("is_active", product.IsActive),
	)
	return product, nil
}
