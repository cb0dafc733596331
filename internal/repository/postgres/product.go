package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/pkg/database"
	apperrors "github.com/utafrali/locagame/pkg/errors"
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID retrieves a product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	query := `
		SELECT id, name, total_stock, is_active, updated_at
		FROM products
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "products.get_by_id", query)
	defer func() { end(err) }()

	var p domain.Product
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.TotalStock,
		&p.IsActive,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	return &p, nil
}

// Upsert creates the product or replaces its stock-relevant fields.
func (r *ProductRepository) Upsert(ctx context.Context, product *domain.Product) (err error) {
	query := `
		INSERT INTO products (id, name, total_stock, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			total_stock = EXCLUDED.total_stock,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	ctx, end := database.TraceQuery(ctx, "products.upsert", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		product.ID,
		product.Name,
		product.TotalStock,
		product.IsActive,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	return nil
}
