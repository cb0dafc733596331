package repository

import (
	"context"

	"github.com/utafrali/locagame/internal/domain"
)

// ProductRepository defines the persistence operations on rentable products.
type ProductRepository interface {
	// GetByID retrieves a product. Returns apperrors.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// Upsert creates the product or replaces its name, stock and active flag.
	Upsert(ctx context.Context, product *domain.Product) error
}

// IntervalRepository defines the persistence operations on stock intervals.
type IntervalRepository interface {
	// ListOverlapping returns the stock-consuming intervals of a product that
	// touch any day of window (start_date <= window.End AND end_date >= window.Start).
	ListOverlapping(ctx context.Context, productID string, window domain.DateRange) ([]domain.StockInterval, error)

	// ListByProduct returns a page of a product's intervals, newest first,
	// together with the total count.
	ListByProduct(ctx context.Context, productID string, page, perPage int) ([]domain.StockInterval, int, error)

	// GetByID retrieves a single interval.
	GetByID(ctx context.Context, id string) (*domain.StockInterval, error)

	// Create inserts intervals. Either all are stored or none.
	Create(ctx context.Context, intervals ...*domain.StockInterval) error

	// Delete removes an interval by id.
	Delete(ctx context.Context, id string) error

	// DeleteByReservation removes every interval tied to a reservation and
	// returns what was removed.
	DeleteByReservation(ctx context.Context, reservationID string) ([]domain.StockInterval, error)
}

// Store groups the repositories and the product-scoped write lock.
type Store interface {
	Products() ProductRepository
	Intervals() IntervalRepository

	// WithProductLocks runs fn while holding an exclusive lock on every
	// product in productIDs. Reads and writes made through tx are committed
	// together when fn returns nil and discarded otherwise. Availability
	// re-checks that guard an insert must run inside fn.
	WithProductLocks(ctx context.Context, productIDs []string, fn func(tx Store) error) error
}
