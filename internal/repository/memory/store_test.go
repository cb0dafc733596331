package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/repository"
	apperrors "github.com/utafrali/locagame/pkg/errors"
)

func mustRange(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

func newInterval(t *testing.T, id, product, start, end string, qty int, status string, res *string) *domain.StockInterval {
	t.Helper()
	r := mustRange(t, start, end)
	return &domain.StockInterval{
		ID:            id,
		ProductID:     product,
		StartDate:     r.Start,
		EndDate:       r.End,
		Quantity:      qty,
		Status:        status,
		ReservationID: res,
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStore_ProductRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Products().GetByID(ctx, "p1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, s.Products().Upsert(ctx, &domain.Product{ID: "p1", TotalStock: 2, IsActive: true}))
	p, err := s.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalStock)

	p.TotalStock = 9
	again, _ := s.Products().GetByID(ctx, "p1")
	assert.Equal(t, 2, again.TotalStock, "returned product must be a copy")
}

func TestStore_ListOverlapping(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	res := "r1"

	require.NoError(t, s.Intervals().Create(ctx,
		newInterval(t, "a", "p1", "2024-01-10", "2024-01-15", 1, domain.StatusReserved, &res),
		newInterval(t, "b", "p1", "2024-01-01", "2024-01-09", 1, domain.StatusBlocked, nil),
		newInterval(t, "c", "p1", "2024-01-12", "2024-01-12", 1, domain.StatusCancelled, nil),
		newInterval(t, "d", "p2", "2024-01-10", "2024-01-15", 1, domain.StatusReserved, nil),
		newInterval(t, "e", "p1", "2024-01-15", "2024-01-20", 0, domain.StatusMaintenance, nil),
	))

	got, err := s.Intervals().ListOverlapping(ctx, "p1", mustRange(t, "2024-01-12", "2024-01-15"))
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, iv := range got {
		ids = append(ids, iv.ID)
	}
	assert.Equal(t, []string{"a", "e"}, ids)
}

func TestStore_CreateIsAllOrNothing(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Intervals().Create(ctx, newInterval(t, "a", "p1", "2024-01-10", "2024-01-10", 1, domain.StatusBlocked, nil)))

	err := s.Intervals().Create(ctx,
		newInterval(t, "b", "p1", "2024-01-10", "2024-01-10", 1, domain.StatusBlocked, nil),
		newInterval(t, "a", "p1", "2024-01-10", "2024-01-10", 1, domain.StatusBlocked, nil),
	)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	_, err = s.Intervals().GetByID(ctx, "b")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_DeleteByReservation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r1, r2 := "r1", "r2"

	require.NoError(t, s.Intervals().Create(ctx,
		newInterval(t, "a", "p1", "2024-01-10", "2024-01-11", 1, domain.StatusReserved, &r1),
		newInterval(t, "b", "p2", "2024-01-10", "2024-01-11", 1, domain.StatusReserved, &r1),
		newInterval(t, "c", "p1", "2024-01-10", "2024-01-11", 1, domain.StatusReserved, &r2),
	))

	removed, err := s.Intervals().DeleteByReservation(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	again, err := s.Intervals().DeleteByReservation(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, again)

	_, err = s.Intervals().GetByID(ctx, "c")
	assert.NoError(t, err)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Intervals().Create(ctx, newInterval(t, "a", "p1", "2024-01-10", "2024-01-10", 1, domain.StatusBlocked, nil)))

	require.NoError(t, s.Intervals().Delete(ctx, "a"))
	assert.ErrorIs(t, s.Intervals().Delete(ctx, "a"), apperrors.ErrNotFound)
}

func TestStore_ListByProductPaginates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		iv := newInterval(t, id, "p1", "2024-02-01", "2024-02-01", 1, domain.StatusBlocked, nil)
		iv.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Intervals().Create(ctx, iv))
	}

	page1, total, err := s.Intervals().ListByProduct(ctx, "p1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "c", page1[0].ID)

	page3, _, err := s.Intervals().ListByProduct(ctx, "p1", 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page3)
}

func TestStore_WithProductLocksSerializes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.WithProductLocks(ctx, []string{"p1"}, func(repository.Store) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	go func() {
		_ = s.WithProductLocks(ctx, []string{"p1"}, func(repository.Store) error { return nil })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second locked section ran while the first held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done
}

func TestStore_WithProductLocksPropagatesError(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")
	err := s.WithProductLocks(context.Background(), nil, func(repository.Store) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Products().GetByID(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Intervals().ListOverlapping(ctx, "p1", mustRange(t, "2024-01-01", "2024-01-01"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeed(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	products, err := Seed(context.Background(), s, DemoCatalogue, now)
	require.NoError(t, err)
	require.Len(t, products, len(DemoCatalogue))

	again := NewStore()
	second, err := Seed(context.Background(), again, DemoCatalogue, now)
	require.NoError(t, err)
	assert.Equal(t, products[0].ID, second[0].ID, "seed ids are deterministic")

	week := civil.Date{Year: 2024, Month: 3, Day: 8}
	got, err := s.Intervals().ListOverlapping(context.Background(), products[0].ID, domain.SingleDay(week))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StatusMaintenance, got[0].Status)
}
