package breaker

import (
	"context"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/repository"
)

// Store routes every repository call of inner through a circuit breaker.
// A locked section counts as one call; the transactional store handed to
// fn is not wrapped again.
type Store struct {
	inner repository.Store
	b     *Breaker
}

// NewStore wraps inner with b.
func NewStore(inner repository.Store, b *Breaker) *Store {
	return &Store{inner: inner, b: b}
}

func (s *Store) Products() repository.ProductRepository {
	return &products{inner: s.inner.Products(), b: s.b}
}

func (s *Store) Intervals() repository.IntervalRepository {
	return &intervals{inner: s.inner.Intervals(), b: s.b}
}

func (s *Store) WithProductLocks(ctx context.Context, productIDs []string, fn func(tx repository.Store) error) error {
	return runErr(s.b, func() error {
		return s.inner.WithProductLocks(ctx, productIDs, fn)
	})
}

type products struct {
	inner repository.ProductRepository
	b     *Breaker
}

func (p *products) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return run(p.b, func() (*domain.Product, error) { return p.inner.GetByID(ctx, id) })
}

func (p *products) Upsert(ctx context.Context, product *domain.Product) error {
	return runErr(p.b, func() error { return p.inner.Upsert(ctx, product) })
}

type intervals struct {
	inner repository.IntervalRepository
	b     *Breaker
}

func (i *intervals) ListOverlapping(ctx context.Context, productID string, window domain.DateRange) ([]domain.StockInterval, error) {
	return run(i.b, func() ([]domain.StockInterval, error) {
		return i.inner.ListOverlapping(ctx, productID, window)
	})
}

type page struct {
	items []domain.StockInterval
	total int
}

func (i *intervals) ListByProduct(ctx context.Context, productID string, pageNum, perPage int) ([]domain.StockInterval, int, error) {
	res, err := run(i.b, func() (page, error) {
		items, total, err := i.inner.ListByProduct(ctx, productID, pageNum, perPage)
		return page{items: items, total: total}, err
	})
	return res.items, res.total, err
}

func (i *intervals) GetByID(ctx context.Context, id string) (*domain.StockInterval, error) {
	return run(i.b, func() (*domain.StockInterval, error) { return i.inner.GetByID(ctx, id) })
}

func (i *intervals) Create(ctx context.Context, ivs ...*domain.StockInterval) error {
	return runErr(i.b, func() error { return i.inner.Create(ctx, ivs...) })
}

func (i *intervals) Delete(ctx context.Context, id string) error {
	return runErr(i.b, func() error { return i.inner.Delete(ctx, id) })
}

func (i *intervals) DeleteByReservation(ctx context.Context, reservationID string) ([]domain.StockInterval, error) {
	return run(i.b, func() ([]domain.StockInterval, error) {
		return i.inner.DeleteByReservation(ctx, reservationID)
	})
}
