package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// Stock interval statuses.
const (
	StatusReserved    = "reserved"
	StatusBlocked     = "blocked"
	StatusMaintenance = "maintenance"
	StatusCancelled   = "cancelled"
)

// ErrInvalidInterval is returned by StockInterval.Validate.
var ErrInvalidInterval = errors.New("invalid stock interval")

// ConsumingStatuses returns the statuses that take units out of stock.
func ConsumingStatuses() []string {
	return []string{StatusReserved, StatusBlocked, StatusMaintenance}
}

// IsConsumingStatus reports whether status takes units out of stock.
func IsConsumingStatus(status string) bool {
	return slices.Contains(ConsumingStatuses(), status)
}

// IsValidIntervalStatus checks whether status is a known interval status.
func IsValidIntervalStatus(status string) bool {
	return status == StatusCancelled || IsConsumingStatus(status)
}

// IsBlockStatus reports whether status may be set on a manual admin block.
func IsBlockStatus(status string) bool {
	return status == StatusBlocked || status == StatusMaintenance
}

// StockInterval records that Quantity units of a product are out of stock on
// every day from StartDate to EndDate inclusive. Intervals are created and
// deleted, never edited.
type StockInterval struct {
	ID            string     `json:"id"`
	ProductID     string     `json:"product_id"`
	StartDate     civil.Date `json:"start_date"`
	EndDate       civil.Date `json:"end_date"`
	Quantity      int        `json:"quantity"`
	Status        string     `json:"status"`
	ReservationID *string    `json:"reservation_id,omitempty"`
	Note          *string    `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Range returns the interval's span as a DateRange.
func (i *StockInterval) Range() DateRange {
	return DateRange{Start: i.StartDate, End: i.EndDate}
}

// Covers reports whether the interval includes day d.
func (i *StockInterval) Covers(d civil.Date) bool {
	return i.Range().Contains(d)
}

// IsManualBlock reports whether the interval was entered by an admin rather
// than created for a reservation.
func (i *StockInterval) IsManualBlock() bool {
	return i.ReservationID == nil && IsBlockStatus(i.Status)
}

// Validate checks the interval's invariants.
func (i *StockInterval) Validate() error {
	if i.ProductID == "" {
		return fmt.Errorf("%w: product_id is required", ErrInvalidInterval)
	}
	if _, err := NewDateRange(i.StartDate, i.EndDate); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInterval, err)
	}
	if i.Quantity < 0 {
		return fmt.Errorf("%w: quantity must be non-negative", ErrInvalidInterval)
	}
	if i.Quantity == 0 && i.Status != StatusMaintenance {
		return fmt.Errorf("%w: only maintenance intervals may have zero quantity", ErrInvalidInterval)
	}
	if !IsValidIntervalStatus(i.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInterval, i.Status)
	}
	return nil
}
