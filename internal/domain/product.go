package domain

import (
	"errors"
	"time"
)

// ErrInvalidProduct is returned by Product.Validate.
var ErrInvalidProduct = errors.New("invalid product")

// Product is the part of a catalogue item that drives availability. Pricing,
// images and descriptions live in the storefront catalogue.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TotalStock int       `json:"total_stock"`
	IsActive   bool      `json:"is_active"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the fields availability depends on.
func (p *Product) Validate() error {
	switch {
	case p.ID == "":
		return errors.Join(ErrInvalidProduct, errors.New("id is required"))
	case p.TotalStock < 0:
		return errors.Join(ErrInvalidProduct, errors.New("total_stock must be non-negative"))
	}
	return nil
}
