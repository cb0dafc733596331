package domain

import (
	"cloud.google.com/go/civil"
)

// AvailabilityStatus tags how an availability answer was reached. Anything
// other than AvailabilityOK is a fail-closed answer.
type AvailabilityStatus string

const (
	AvailabilityOK                 AvailabilityStatus = "ok"
	AvailabilityNotFound           AvailabilityStatus = "not_found"
	AvailabilityInactive           AvailabilityStatus = "inactive"
	AvailabilityStorageUnavailable AvailabilityStatus = "storage_unavailable"
)

// AvailabilityResult is the answer to a range check.
type AvailabilityResult struct {
	ProductID         string             `json:"product_id"`
	StartDate         civil.Date         `json:"start_date"`
	EndDate           civil.Date         `json:"end_date"`
	Requested         int                `json:"requested"`
	Available         bool               `json:"available"`
	AvailableQuantity int                `json:"available_quantity"`
	ConflictingDates  []civil.Date       `json:"conflicting_dates"`
	Status            AvailabilityStatus `json:"status"`
	Error             string             `json:"error,omitempty"`
}

// Verified reports whether the result was computed from storage data rather
// than produced by a failure path.
func (r AvailabilityResult) Verified() bool {
	return r.Status == AvailabilityOK
}

// CalendarDay is one entry of a monthly availability calendar.
type CalendarDay struct {
	Date              civil.Date `json:"date"`
	Available         bool       `json:"available"`
	AvailableQuantity int        `json:"available_quantity"`
	IsMaintenance     bool       `json:"is_maintenance"`
	Error             string     `json:"error,omitempty"`
}

// DayUsage is the stock consumed on a single day.
type DayUsage struct {
	Date          civil.Date
	Reserved      int
	IsMaintenance bool
}

// DailyUsage sums consuming intervals per day over window. Intervals outside
// the window or with a non-consuming status are ignored. It runs in
// O(days + intervals) using a difference array.
func DailyUsage(window DateRange, intervals []StockInterval) []DayUsage {
	n := window.Days()
	reserved := make([]int, n+1)
	maintenance := make([]int, n+1)

	for i := range intervals {
		iv := &intervals[i]
		if !IsConsumingStatus(iv.Status) {
			continue
		}
		clipped, ok := iv.Range().Clip(window)
		if !ok {
			continue
		}
		from := clipped.Start.DaysSince(window.Start)
		to := clipped.End.DaysSince(window.Start) + 1
		reserved[from] += iv.Quantity
		reserved[to] -= iv.Quantity
		if iv.Status == StatusMaintenance {
			maintenance[from]++
			maintenance[to]--
		}
	}

	out := make([]DayUsage, 0, n)
	var qty, maint, idx int
	for d := range window.All() {
		qty += reserved[idx]
		maint += maintenance[idx]
		out = append(out, DayUsage{Date: d, Reserved: qty, IsMaintenance: maint > 0})
		idx++
	}
	return out
}

func remaining(totalStock, reserved int) int {
	return max(0, totalStock-reserved)
}

// EvaluateRange computes a range check for an active product from the
// intervals overlapping window. The binding constraint is the tightest day.
func EvaluateRange(product *Product, window DateRange, quantity int, intervals []StockInterval) AvailabilityResult {
	res := AvailabilityResult{
		ProductID:        product.ID,
		StartDate:        window.Start,
		EndDate:          window.End,
		Requested:        quantity,
		ConflictingDates: []civil.Date{},
		Status:           AvailabilityOK,
	}

	minAvailable := -1
	for _, day := range DailyUsage(window, intervals) {
		avail := remaining(product.TotalStock, day.Reserved)
		if minAvailable < 0 || avail < minAvailable {
			minAvailable = avail
		}
		if avail < quantity {
			res.ConflictingDates = append(res.ConflictingDates, day.Date)
		}
	}

	res.AvailableQuantity = max(minAvailable, 0)
	res.Available = res.AvailableQuantity >= quantity && len(res.ConflictingDates) == 0
	return res
}

// NotFoundResult is the fail-closed answer for an unknown product.
func NotFoundResult(productID string, window DateRange, quantity int) AvailabilityResult {
	return closedResult(productID, window, quantity, AvailabilityNotFound, []civil.Date{window.Start}, "product not found")
}

// InactiveResult is the fail-closed answer for a product that is not for rent.
func InactiveResult(productID string, window DateRange, quantity int) AvailabilityResult {
	return closedResult(productID, window, quantity, AvailabilityInactive, []civil.Date{window.Start}, "product is inactive")
}

// StorageFailureResult is the fail-closed answer when stock data could not be
// read. It reports both ends of the window as conflicting.
func StorageFailureResult(productID string, window DateRange, quantity int, cause error) AvailabilityResult {
	dates := []civil.Date{window.Start}
	if window.End != window.Start {
		dates = append(dates, window.End)
	}
	msg := "unable to verify availability"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return closedResult(productID, window, quantity, AvailabilityStorageUnavailable, dates, msg)
}

func closedResult(productID string, window DateRange, quantity int, status AvailabilityStatus, dates []civil.Date, msg string) AvailabilityResult {
	return AvailabilityResult{
		ProductID:        productID,
		StartDate:        window.Start,
		EndDate:          window.End,
		Requested:        quantity,
		Available:        false,
		ConflictingDates: dates,
		Status:           status,
		Error:            msg,
	}
}

// BuildCalendar computes one entry per day of window. A day under
// maintenance is never available, whatever stock remains.
func BuildCalendar(product *Product, window DateRange, intervals []StockInterval) []CalendarDay {
	usage := DailyUsage(window, intervals)
	days := make([]CalendarDay, 0, len(usage))
	for _, u := range usage {
		avail := remaining(product.TotalStock, u.Reserved)
		days = append(days, CalendarDay{
			Date:              u.Date,
			Available:         avail > 0 && !u.IsMaintenance,
			AvailableQuantity: avail,
			IsMaintenance:     u.IsMaintenance,
		})
	}
	return days
}

// FailedCalendar marks every day of window unavailable with the cause attached.
func FailedCalendar(window DateRange, cause error) []CalendarDay {
	msg := "unable to verify availability"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	days := make([]CalendarDay, 0, window.Days())
	for d := range window.All() {
		days = append(days, CalendarDay{Date: d, Error: msg})
	}
	return days
}
