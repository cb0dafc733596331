package service

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/repository"
	"github.com/utafrali/locagame/internal/repository/memory"
	"github.com/utafrali/locagame/pkg/logger"
)

// ---------------------------------------------------------------------------
// Mock events
// ---------------------------------------------------------------------------

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishStockHeld(ctx context.Context, reservationID string, window domain.DateRange, intervals []domain.StockInterval) error {
	args := m.Called(ctx, reservationID, window, intervals)
	return args.Error(0)
}

func (m *mockEvents) PublishStockReleased(ctx context.Context, reservationID string, intervals []domain.StockInterval) error {
	args := m.Called(ctx, reservationID, intervals)
	return args.Error(0)
}

func (m *mockEvents) PublishStockBlocked(ctx context.Context, iv *domain.StockInterval) error {
	args := m.Called(ctx, iv)
	return args.Error(0)
}

func (m *mockEvents) PublishStockUnblocked(ctx context.Context, iv *domain.StockInterval) error {
	args := m.Called(ctx, iv)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Store with injectable read failures
// ---------------------------------------------------------------------------

type faultyStore struct {
	*memory.Store
	productErr  error
	intervalErr error
}

func (f *faultyStore) Products() repository.ProductRepository {
	return &faultyProducts{ProductRepository: f.Store.Products(), err: f.productErr}
}

func (f *faultyStore) Intervals() repository.IntervalRepository {
	return &faultyIntervals{IntervalRepository: f.Store.Intervals(), err: f.intervalErr}
}

func (f *faultyStore) WithProductLocks(ctx context.Context, ids []string, fn func(tx repository.Store) error) error {
	return f.Store.WithProductLocks(ctx, ids, func(repository.Store) error { return fn(f) })
}

type faultyProducts struct {
	repository.ProductRepository
	err error
}

func (f *faultyProducts) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ProductRepository.GetByID(ctx, id)
}

type faultyIntervals struct {
	repository.IntervalRepository
	err error
}

func (f *faultyIntervals) ListOverlapping(ctx context.Context, productID string, window domain.DateRange) ([]domain.StockInterval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.IntervalRepository.ListOverlapping(ctx, productID, window)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func d(t *testing.T, s string) civil.Date {
	t.Helper()
	out, err := civil.ParseDate(s)
	require.NoError(t, err)
	return out
}

func addProduct(t *testing.T, s repository.Store, id string, stock int, active bool) {
	t.Helper()
	require.NoError(t, s.Products().Upsert(context.Background(), &domain.Product{
		ID: id, Name: id, TotalStock: stock, IsActive: active,
	}))
}

func addInterval(t *testing.T, s repository.Store, id, product, start, end string, qty int, status string) {
	t.Helper()
	require.NoError(t, s.Intervals().Create(context.Background(), &domain.StockInterval{
		ID:        id,
		ProductID: product,
		StartDate: d(t, start),
		EndDate:   d(t, end),
		Quantity:  qty,
		Status:    status,
	}))
}

func newAvailability(s repository.Store) *AvailabilityService {
	return NewAvailabilityService(s, nil, logger.Discard(), AvailabilityConfig{})
}

func newBooking(s repository.Store, events StockEvents) *BookingService {
	return NewBookingService(s, events, nil, logger.Discard(), AvailabilityConfig{})
}
