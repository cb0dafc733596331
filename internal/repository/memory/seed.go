package memory

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/utafrali/locagame/internal/domain"
)

// SeedProduct describes a demo product and the stock it starts with.
type SeedProduct struct {
	Name       string
	TotalStock int
}

// DemoCatalogue is loaded when the service runs in memory mode with seeding on.
var DemoCatalogue = []SeedProduct{
	{Name: "Giant Jenga", TotalStock: 3},
	{Name: "Arcade Cabinet", TotalStock: 2},
	{Name: "Photo Booth", TotalStock: 1},
	{Name: "Foosball Table", TotalStock: 4},
}

// Seed inserts products with deterministic ids derived from their names and
// returns them. The first product gets a two-day maintenance block a week
// after now so the calendar has something to show.
func Seed(ctx context.Context, s *Store, catalogue []SeedProduct, now time.Time) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(catalogue))
	for _, c := range catalogue {
		p := domain.Product{
			ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte("locagame:product:"+c.Name)).String(),
			Name:       c.Name,
			TotalStock: c.TotalStock,
			IsActive:   true,
			UpdatedAt:  now.UTC(),
		}
		if err := s.Products().Upsert(ctx, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if len(products) > 0 {
		today := civil.DateOf(now)
		note := "seasonal inspection"
		block := &domain.StockInterval{
			ID:        uuid.New().String(),
			ProductID: products[0].ID,
			StartDate: today.AddDays(7),
			EndDate:   today.AddDays(8),
			Quantity:  0,
			Status:    domain.StatusMaintenance,
			Note:      &note,
			CreatedAt: now.UTC(),
		}
		if err := s.Intervals().Create(ctx, block); err != nil {
			return nil, err
		}
	}
	return products, nil
}
