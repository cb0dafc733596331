package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/utafrali/locagame/internal/repository"
	"github.com/utafrali/locagame/pkg/database"
)

// lockQuery takes a transaction-scoped advisory lock keyed on the product id.
// Two writers touching the same product serialize here until commit.
const lockQuery = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

// Store implements repository.Store on PostgreSQL.
type Store struct {
	db database.DBTX
}

// NewStore creates a PostgreSQL-backed store. db may be a pool or a transaction.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// Products returns the product repository bound to the store's connection.
func (s *Store) Products() repository.ProductRepository {
	return NewProductRepository(s.db)
}

// Intervals returns the interval repository bound to the store's connection.
func (s *Store) Intervals() repository.IntervalRepository {
	return NewIntervalRepository(s.db)
}

// WithProductLocks opens a transaction, takes an advisory lock per product in
// sorted order and runs fn against a store bound to that transaction.
// Sorting keeps concurrent multi-product holds from deadlocking.
func (s *Store) WithProductLocks(ctx context.Context, productIDs []string, fn func(tx repository.Store) error) (err error) {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	ctx, end := database.TraceQuery(ctx, "with_product_locks", lockQuery)
	defer func() { end(err) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, id := range ids {
		if _, err := tx.Exec(ctx, lockQuery, id); err != nil {
			return fmt.Errorf("lock product %s: %w", id, err)
		}
	}

	if err := fn(NewStore(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
