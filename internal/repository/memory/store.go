package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/repository"
	apperrors "github.com/utafrali/locagame/pkg/errors"
)

// Store is an in-process repository.Store used for local runs without
// Postgres and by service tests. WithProductLocks serializes every locked
// section store-wide; fn's writes are not rolled back on error, so callers
// must validate before writing.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	intervals map[string]domain.StockInterval

	writeMu sync.Mutex
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		intervals: make(map[string]domain.StockInterval),
	}
}

// Products returns the store's product repository.
func (s *Store) Products() repository.ProductRepository { return (*productRepo)(s) }

// Intervals returns the store's interval repository.
func (s *Store) Intervals() repository.IntervalRepository { return (*intervalRepo)(s) }

// WithProductLocks runs fn while holding the store-wide write lock.
func (s *Store) WithProductLocks(ctx context.Context, _ []string, fn func(tx repository.Store) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

type productRepo Store

func (r *productRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (r *productRepo) Upsert(ctx context.Context, product *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = *product
	return nil
}

type intervalRepo Store

func (r *intervalRepo) ListOverlapping(ctx context.Context, productID string, window domain.DateRange) ([]domain.StockInterval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.StockInterval{}
	for _, iv := range r.intervals {
		if iv.ProductID == productID && domain.IsConsumingStatus(iv.Status) && iv.Range().Overlaps(window) {
			out = append(out, iv)
		}
	}
	slices.SortFunc(out, func(a, b domain.StockInterval) int {
		if c := a.StartDate.DaysSince(b.StartDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *intervalRepo) ListByProduct(ctx context.Context, productID string, page, perPage int) ([]domain.StockInterval, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}

	r.mu.RLock()
	all := []domain.StockInterval{}
	for _, iv := range r.intervals {
		if iv.ProductID == productID {
			all = append(all, iv)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b domain.StockInterval) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	total := len(all)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	return all[start:end], total, nil
}

func (r *intervalRepo) GetByID(ctx context.Context, id string) (*domain.StockInterval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	iv, ok := r.intervals[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &iv, nil
}

func (r *intervalRepo) Create(ctx context.Context, intervals ...*domain.StockInterval) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, iv := range intervals {
		if _, exists := r.intervals[iv.ID]; exists {
			return apperrors.AlreadyExists("stock interval", "id", iv.ID)
		}
	}
	for _, iv := range intervals {
		r.intervals[iv.ID] = *iv
	}
	return nil
}

func (r *intervalRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intervals[id]; !ok {
		return apperrors.NotFound("stock interval", id)
	}
	delete(r.intervals, id)
	return nil
}

func (r *intervalRepo) DeleteByReservation(ctx context.Context, reservationID string) ([]domain.StockInterval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := []domain.StockInterval{}
	for id, iv := range r.intervals {
		if iv.ReservationID != nil && *iv.ReservationID == reservationID {
			removed = append(removed, iv)
			delete(r.intervals, id)
		}
	}
	slices.SortFunc(removed, func(a, b domain.StockInterval) int { return cmp.Compare(a.ID, b.ID) })
	return removed, nil
}
