package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/repository"
	apperrors "github.com/utafrali/locagame/pkg/errors"
)

// AvailabilityConfig bounds the work a single availability request may do.
type AvailabilityConfig struct {
	// MaxRangeDays caps the length of a range check.
	MaxRangeDays int
	// FilterConcurrency caps the per-product checks a filter runs at once.
	FilterConcurrency int
}

// DefaultAvailabilityConfig returns the limits used when none are configured.
func DefaultAvailabilityConfig() AvailabilityConfig {
	return AvailabilityConfig{MaxRangeDays: 366, FilterConcurrency: 8}
}

// AvailabilityService answers availability questions. Storage failures never
// surface as errors from its read operations: they become fail-closed
// results tagged domain.AvailabilityStorageUnavailable. Only invalid input
// is returned as an error.
type AvailabilityService struct {
	store   repository.Store
	metrics *Metrics
	logger  *slog.Logger
	cfg     AvailabilityConfig
}

// NewAvailabilityService creates a new availability service. metrics may be nil.
func NewAvailabilityService(store repository.Store, metrics *Metrics, logger *slog.Logger, cfg AvailabilityConfig) *AvailabilityService {
	def := DefaultAvailabilityConfig()
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = def.MaxRangeDays
	}
	if cfg.FilterConcurrency <= 0 {
		cfg.FilterConcurrency = def.FilterConcurrency
	}
	return &AvailabilityService{store: store, metrics: metrics, logger: logger, cfg: cfg}
}

func (s *AvailabilityService) validateRange(start, end civil.Date) (domain.DateRange, error) {
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

// evaluate runs a range check against st. The returned error is non-nil only
// when storage could not be read; the result is then already fail-closed.
func evaluate(ctx context.Context, st repository.Store, productID string, window domain.DateRange, quantity int) (domain.AvailabilityResult, error) {
	product, err := st.Products().GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NotFoundResult(productID, window, quantity), nil
		}
		return domain.StorageFailureResult(productID, window, quantity, err), fmt.Errorf("load product: %w", err)
	}
	if !product.IsActive {
		return domain.InactiveResult(productID, window, quantity), nil
	}

	intervals, err := st.Intervals().ListOverlapping(ctx, productID, window)
	if err != nil {
		return domain.StorageFailureResult(productID, window, quantity, err), fmt.Errorf("list intervals: %w", err)
	}
	return domain.EvaluateRange(product, window, quantity, intervals), nil
}

// CheckRange reports whether quantity units of a product are free on every
// day from start to end inclusive.
func (s *AvailabilityService) CheckRange(ctx context.Context, productID string, start, end civil.Date, quantity int) (domain.AvailabilityResult, error) {
	if productID == "" {
		return domain.AvailabilityResult{}, apperrors.InvalidInput("product_id is required")
	}
	if quantity < 0 {
		return domain.AvailabilityResult{}, apperrors.InvalidInput("quantity must be non-negative")
	}
	window, err := s.validateRange(start, end)
	if err != nil {
		return domain.AvailabilityResult{}, err
	}

	began := time.Now()
	res, storageErr := evaluate(ctx, s.store, productID, window, quantity)
	s.metrics.observeCheck(opCheckRange, res.Status, time.Since(began).Seconds())

	if storageErr != nil {
		s.logger.WarnContext(ctx, "availability check failed closed",
			slog.String("product_id", productID),
			slog.String("range", window.String()),
			slog.String("error", storageErr.Error()),
		)
	}
	return res, nil
}

// BuildCalendar returns one entry per day of the month. An unknown product
// has no calendar and yields an empty slice.
func (s *AvailabilityService) BuildCalendar(ctx context.Context, productID string, year int, month time.Month) ([]domain.CalendarDay, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product_id is required")
	}
	window, err := domain.MonthRange(year, month)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	began := time.Now()
	days, status := s.calendar(ctx, productID, window)
	s.metrics.observeCheck(opCalendar, status, time.Since(began).Seconds())
	return days, nil
}

func (s *AvailabilityService) calendar(ctx context.Context, productID string, window domain.DateRange) ([]domain.CalendarDay, domain.AvailabilityStatus) {
	product, err := s.store.Products().GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return []domain.CalendarDay{}, domain.AvailabilityNotFound
		}
		s.logCalendarFailure(ctx, productID, window, err)
		return domain.FailedCalendar(window, err), domain.AvailabilityStorageUnavailable
	}

	intervals, err := s.store.Intervals().ListOverlapping(ctx, productID, window)
	if err != nil {
		s.logCalendarFailure(ctx, productID, window, err)
		return domain.FailedCalendar(window, err), domain.AvailabilityStorageUnavailable
	}

	days := domain.BuildCalendar(product, window, intervals)
	if !product.IsActive {
		for i := range days {
			days[i].Available = false
			days[i].Error = "product is inactive"
		}
		return days, domain.AvailabilityInactive
	}
	return days, domain.AvailabilityOK
}

func (s *AvailabilityService) logCalendarFailure(ctx context.Context, productID string, window domain.DateRange, err error) {
	s.logger.WarnContext(ctx, "availability calendar failed closed",
		slog.String("product_id", productID),
		slog.String("range", window.String()),
		slog.String("error", err.Error()),
	)
}

// FilterUnavailable returns the ids, in input order and without duplicates,
// of products that cannot supply minQuantity units for the whole range.
// A product whose check fails is reported unavailable; the batch never
// aborts. minQuantity below 1 is treated as 1.
func (s *AvailabilityService) FilterUnavailable(ctx context.Context, productIDs []string, start, end civil.Date, minQuantity int) ([]string, error) {
	window, err := s.validateRange(start, end)
	if err != nil {
		return nil, err
	}
	if minQuantity < 1 {
		minQuantity = 1
	}

	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if id == "" {
			return nil, apperrors.InvalidInput("product ids must not be empty")
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	began := time.Now()
	unavailable := make([]bool, len(ids))
	failures := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(s.cfg.FilterConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, storageErr := evaluate(ctx, s.store, id, window, minQuantity)
			unavailable[i] = !res.Available
			failures[i] = storageErr
			return nil
		})
	}
	_ = g.Wait()

	out := []string{}
	failed := 0
	for i, id := range ids {
		if unavailable[i] {
			out = append(out, id)
		}
		if failures[i] != nil {
			failed++
			s.logger.WarnContext(ctx, "availability filter failed closed",
				slog.String("product_id", id),
				slog.String("error", failures[i].Error()),
			)
		}
	}

	status := domain.AvailabilityOK
	if failed > 0 {
		status = domain.AvailabilityStorageUnavailable
	}
	s.metrics.observeCheck(opFilter, status, time.Since(began).Seconds())
	s.metrics.observeFiltered(len(ids))
	return out, nil
}
