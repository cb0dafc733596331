package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/pkg/database"
	apperrors "github.com/utafrali/locagame/pkg/errors"
)

const uniqueViolation = "23505"

const intervalColumns = `id, product_id, start_date, end_date, quantity, status, reservation_id, note, created_at`

// IntervalRepository implements repository.IntervalRepository using PostgreSQL.
type IntervalRepository struct {
	pool database.DBTX
}

// NewIntervalRepository creates a new PostgreSQL-backed interval repository.
func NewIntervalRepository(pool database.DBTX) *IntervalRepository {
	return &IntervalRepository{pool: pool}
}

// dateArg converts a calendar day to the value bound to a DATE parameter.
func dateArg(d civil.Date) time.Time {
	return d.In(time.UTC)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInterval(row scanner, extra ...any) (domain.StockInterval, error) {
	var (
		iv         domain.StockInterval
		start, end time.Time
	)
	dest := append([]any{
		&iv.ID,
		&iv.ProductID,
		&start,
		&end,
		&iv.Quantity,
		&iv.Status,
		&iv.ReservationID,
		&iv.Note,
		&iv.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.StockInterval{}, err
	}
	iv.StartDate = civil.DateOf(start)
	iv.EndDate = civil.DateOf(end)
	return iv, nil
}

func collectIntervals(rows pgx.Rows, what string, extra ...any) ([]domain.StockInterval, error) {
	defer rows.Close()

	intervals := []domain.StockInterval{}
	for rows.Next() {
		iv, err := scanInterval(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", what, err)
		}
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", what, err)
	}
	return intervals, nil
}

// ListOverlapping returns the stock-consuming intervals of a product that
// touch window.
func (r *IntervalRepository) ListOverlapping(ctx context.Context, productID string, window domain.DateRange) (_ []domain.StockInterval, err error) {
	query := `
		SELECT ` + intervalColumns + `
		FROM stock_intervals
		WHERE product_id = $1
		  AND start_date <= $2
		  AND end_date >= $3
		  AND status = ANY($4)
		ORDER BY start_date ASC, id ASC`

	ctx, end := database.TraceQuery(ctx, "intervals.list_overlapping", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query,
		productID,
		dateArg(window.End),
		dateArg(window.Start),
		domain.ConsumingStatuses(),
	)
	if err != nil {
		return nil, fmt.Errorf("list overlapping intervals: %w", err)
	}

	return collectIntervals(rows, "overlapping interval")
}

// ListByProduct returns a page of a product's intervals, newest first.
func (r *IntervalRepository) ListByProduct(ctx context.Context, productID string, page, perPage int) (_ []domain.StockInterval, _ int, err error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	query := `
		SELECT ` + intervalColumns + `, count(*) OVER() AS total_count
		FROM stock_intervals
		WHERE product_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "intervals.list_by_product", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, productID, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list intervals by product: %w", err)
	}

	var total int
	intervals, err := collectIntervals(rows, "interval", &total)
	if err != nil {
		return nil, 0, err
	}
	return intervals, total, nil
}

// GetByID retrieves an interval by its identifier.
func (r *IntervalRepository) GetByID(ctx context.Context, id string) (_ *domain.StockInterval, err error) {
	query := `SELECT ` + intervalColumns + ` FROM stock_intervals WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "intervals.get_by_id", query)
	defer func() { end(err) }()

	iv, err := scanInterval(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get interval by id: %w", err)
	}
	return &iv, nil
}

// Create inserts all intervals with a single multi-row statement.
func (r *IntervalRepository) Create(ctx context.Context, intervals ...*domain.StockInterval) (err error) {
	if len(intervals) == 0 {
		return nil
	}

	const perRow = 9
	args := make([]any, 0, len(intervals)*perRow)
	values := make([]string, 0, len(intervals))
	for i, iv := range intervals {
		placeholders := make([]string, perRow)
		for j := range placeholders {
			placeholders[j] = "$" + strconv.Itoa(i*perRow+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			iv.ID,
			iv.ProductID,
			dateArg(iv.StartDate),
			dateArg(iv.EndDate),
			iv.Quantity,
			iv.Status,
			iv.ReservationID,
			iv.Note,
			iv.CreatedAt,
		)
	}

	query := `
		INSERT INTO stock_intervals (` + intervalColumns + `)
		VALUES ` + strings.Join(values, ", ")

	ctx, end := database.TraceQuery(ctx, "intervals.create", query)
	defer func() { end(err) }()

	if _, err = r.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.AlreadyExists("stock interval", "id", intervals[0].ID)
		}
		return fmt.Errorf("create intervals: %w", err)
	}
	return nil
}

// Delete removes an interval by id.
func (r *IntervalRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM stock_intervals WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "intervals.delete", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete interval: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("stock interval", id)
	}
	return nil
}

// DeleteByReservation removes every interval held for a reservation.
func (r *IntervalRepository) DeleteByReservation(ctx context.Context, reservationID string) (_ []domain.StockInterval, err error) {
	query := `
		DELETE FROM stock_intervals
		WHERE reservation_id = $1
		RETURNING ` + intervalColumns

	ctx, end := database.TraceQuery(ctx, "intervals.delete_by_reservation", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("delete intervals by reservation: %w", err)
	}
	return collectIntervals(rows, "released interval")
}
