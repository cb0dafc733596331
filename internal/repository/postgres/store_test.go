package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/repository"
	"github.com/utafrali/locagame/pkg/database"
	apperrors "github.com/utafrali/locagame/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var intervalCols = []string{
	"id", "product_id", "start_date", "end_date", "quantity",
	"status", "reservation_id", "note", "created_at",
}

func date(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func ptr(s string) *string { return &s }

var createdAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func sampleInterval(t *testing.T) domain.StockInterval {
	return domain.StockInterval{
		ID:            "iv-1",
		ProductID:     "prod-1",
		StartDate:     date(t, "2024-06-01"),
		EndDate:       date(t, "2024-06-03"),
		Quantity:      2,
		Status:        domain.StatusReserved,
		ReservationID: ptr("res-1"),
		CreatedAt:     createdAt,
	}
}

func intervalRow(iv domain.StockInterval) []any {
	return []any{
		iv.ID, iv.ProductID, iv.StartDate.In(time.UTC), iv.EndDate.In(time.UTC),
		iv.Quantity, iv.Status, iv.ReservationID, iv.Note, iv.CreatedAt,
	}
}

// ---------------------------------------------------------------------------
// WithProductLocks
// ---------------------------------------------------------------------------

func TestStore_WithProductLocks_SortedAndDeduped(t *testing.T) {
	mock := setupMock(t)
	store := NewStore(mock)

	database.ExpectLockedTx(mock, "a", "b")
	mock.ExpectExec("DELETE FROM stock_intervals").WithArgs("iv-9").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := store.WithProductLocks(context.Background(), []string{"b", "a", "b"}, func(tx repository.Store) error {
		return tx.Intervals().Delete(context.Background(), "iv-9")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithProductLocks_CallbackErrorRollsBack(t *testing.T) {
	mock := setupMock(t)
	store := NewStore(mock)

	database.ExpectLockedTx(mock, "a")
	mock.ExpectRollback()

	boom := apperrors.Conflict("not enough stock")
	err := store.WithProductLocks(context.Background(), []string{"a"}, func(repository.Store) error {
		return boom
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithProductLocks_LockError(t *testing.T) {
	mock := setupMock(t)
	store := NewStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs("a").
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	called := false
	err := store.WithProductLocks(context.Background(), []string{"a"}, func(repository.Store) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock product a")
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithProductLocks_BeginError(t *testing.T) {
	mock := setupMock(t)
	store := NewStore(mock)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := store.WithProductLocks(context.Background(), []string{"a"}, func(repository.Store) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// ProductRepository
// ---------------------------------------------------------------------------

func TestProductRepository_GetByID_Success(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE").
		WithArgs("prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "total_stock", "is_active", "updated_at"}).
			AddRow("prod-1", "Giant Jenga", 3, true, createdAt))

	p, err := repo.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "Giant Jenga", p.Name)
	assert.Equal(t, 3, p.TotalStock)
	assert.True(t, p.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products WHERE").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	p, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, p)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Upsert(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)

	p := &domain.Product{ID: "prod-1", Name: "Arcade", TotalStock: 2, IsActive: true, UpdatedAt: createdAt}
	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.Name, p.TotalStock, p.IsActive, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Upsert_Error(t *testing.T) {
	mock := setupMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectExec("INSERT INTO products").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), &domain.Product{ID: "prod-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert product")
	assert.NoError(t, mock.ExpectationsWereMet())
}
