package model

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a catalog entry with a count of units on the shelf.
type InventoryItem struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	Category          string              `json:"category"`
	QuantityAvailable int                 `json:"quantity_available"`
	PurchaseDate      *time.Time          `json:"purchase_date,omitempty"`
	UnitPrice         decimal.NullDecimal `json:"unit_price"`
	ImageMime         string              `json:"image_mime,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Label is the picker text shown when choosing an item to allocate.
func (i InventoryItem) Label() string {
	return i.Name + " · " + strconv.Itoa(i.QuantityAvailable) + " available"
}

// ItemInput carries the editable fields of an item.
type ItemInput struct {
	Name              string              `json:"name"`
	Category          string              `json:"category"`
	QuantityAvailable int                 `json:"quantity_available"`
	PurchaseDate      *time.Time          `json:"purchase_date,omitempty"`
	UnitPrice         decimal.NullDecimal `json:"unit_price"`
}

// Normalize trims text fields, rounds the price to cents and drops the time
// of day from the purchase date.
func (in *ItemInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.UnitPrice.Valid {
		in.UnitPrice.Decimal = in.UnitPrice.Decimal.Round(2)
	}
	if in.PurchaseDate != nil {
		d := in.PurchaseDate.UTC()
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		in.PurchaseDate = &d
	}
}

// Validate checks an item input.
func (in ItemInput) Validate() error {
	if in.Name == "" {
		return errors.New("name required")
	}
	if in.Category == "" {
		return errors.New("category required")
	}
	if in.QuantityAvailable < 0 {
		return errors.New("quantity must not be negative")
	}
	if in.UnitPrice.Valid && in.UnitPrice.Decimal.IsNegative() {
		return errors.New("unit price must not be negative")
	}
	return nil
}
