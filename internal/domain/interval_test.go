package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConsumingStatus(t *testing.T) {
	assert.True(t, IsConsumingStatus(StatusReserved))
	assert.True(t, IsConsumingStatus(StatusBlocked))
	assert.True(t, IsConsumingStatus(StatusMaintenance))
	assert.False(t, IsConsumingStatus(StatusCancelled))
	assert.False(t, IsConsumingStatus("returned"))

	assert.True(t, IsValidIntervalStatus(StatusCancelled))
	assert.False(t, IsValidIntervalStatus(""))
}

func TestStockInterval_Validate(t *testing.T) {
	base := func() StockInterval {
		return StockInterval{
			ProductID: "p1",
			StartDate: day(t, "2024-06-01"),
			EndDate:   day(t, "2024-06-03"),
			Quantity:  1,
			Status:    StatusReserved,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*StockInterval)
		wantErr bool
	}{
		{"valid", func(*StockInterval) {}, false},
		{"missing product", func(i *StockInterval) { i.ProductID = "" }, true},
		{"inverted", func(i *StockInterval) { i.EndDate = day(t, "2024-05-01") }, true},
		{"negative quantity", func(i *StockInterval) { i.Quantity = -1 }, true},
		{"zero reserved", func(i *StockInterval) { i.Quantity = 0 }, true},
		{"zero maintenance", func(i *StockInterval) { i.Quantity = 0; i.Status = StatusMaintenance }, false},
		{"unknown status", func(i *StockInterval) { i.Status = "lost" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := base()
			tt.mutate(&iv)
			err := iv.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInterval)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStockInterval_IsManualBlock(t *testing.T) {
	res := "r-1"
	assert.True(t, (&StockInterval{Status: StatusBlocked}).IsManualBlock())
	assert.True(t, (&StockInterval{Status: StatusMaintenance}).IsManualBlock())
	assert.False(t, (&StockInterval{Status: StatusReserved, ReservationID: &res}).IsManualBlock())
	assert.False(t, (&StockInterval{Status: StatusBlocked, ReservationID: &res}).IsManualBlock())
}

func TestStockInterval_Covers(t *testing.T) {
	iv := StockInterval{StartDate: day(t, "2024-01-10"), EndDate: day(t, "2024-01-15")}
	assert.True(t, iv.Covers(day(t, "2024-01-10")))
	assert.True(t, iv.Covers(day(t, "2024-01-15")))
	assert.False(t, iv.Covers(day(t, "2024-01-16")))
}

func TestProduct_Validate(t *testing.T) {
	assert.NoError(t, (&Product{ID: "p1", TotalStock: 0}).Validate())
	assert.ErrorIs(t, (&Product{TotalStock: 1}).Validate(), ErrInvalidProduct)
	assert.ErrorIs(t, (&Product{ID: "p1", TotalStock: -1}).Validate(), ErrInvalidProduct)
}
