package model

import (
	"math"
	"time"
)

type Location string

const (
	LocationFridge  Location = "fridge"
	LocationPantry  Location = "pantry"
	LocationFreezer Location = "freezer"
)

// Valid reports whether l is one of the known storage locations.
func (l Location) Valid() bool {
	switch l {
	case LocationFridge, LocationPantry, LocationFreezer:
		return true
	}
	return false
}

type InventoryItem struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Quantity       float64    `json:"quantity"`
	Unit           string     `json:"unit"`
	Category       string     `json:"category"`
	Location       Location   `json:"location"`
	PurchaseDate   time.Time  `json:"purchaseDate"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	IsLow          bool       `json:"isLow"`
	IsFinished     bool       `json:"isFinished"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Flags holds the derived stock flags of an inventory item.
type Flags struct {
	IsLow      bool
	IsFinished bool
}

// DeriveFlags computes the stock flags for quantity under the given
// low-stock threshold. It is the only place the flags are computed.
func DeriveFlags(quantity, threshold float64) Flags {
	return Flags{
		IsLow:      quantity <= threshold,
		IsFinished: quantity <= 0,
	}
}

// WithFlags returns a copy of item whose derived flags match its quantity.
func (i InventoryItem) WithFlags(threshold float64) InventoryItem {
	f := DeriveFlags(i.Quantity, threshold)
	i.IsLow = f.IsLow
	i.IsFinished = f.IsFinished
	return i
}

// ExpiresWithin reports whether the item is not finished and has an
// expiration date no later than days after now. Already expired items count.
func (i InventoryItem) ExpiresWithin(now time.Time, days int) bool {
	if i.IsFinished || i.ExpirationDate == nil {
		return false
	}
	cutoff := now.AddDate(0, 0, days)
	return !i.ExpirationDate.After(cutoff)
}

// UsedQuantity returns the quantity left after consuming used, clamped at zero.
func UsedQuantity(quantity, used float64) float64 {
	return math.Max(0, quantity-used)
}

// InventoryPatch is a partial update. Nil fields keep their current value.
type InventoryPatch struct {
	Name                *string    `json:"name,omitempty"`
	Quantity            *float64   `json:"quantity,omitempty"`
	Unit                *string    `json:"unit,omitempty"`
	Category            *string    `json:"category,omitempty"`
	Location            *Location  `json:"location,omitempty"`
	PurchaseDate        *time.Time `json:"purchaseDate,omitempty"`
	ExpirationDate      *time.Time `json:"expirationDate,omitempty"`
	ClearExpirationDate bool       `json:"clearExpirationDate,omitempty"`
	LastUsedAt          *time.Time `json:"lastUsedAt,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
}

// Apply returns item with the patch merged in. Derived flags are left alone;
// callers recompute them with WithFlags.
func (p InventoryPatch) Apply(item InventoryItem) InventoryItem {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		item.Unit = *p.Unit
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Location != nil {
		item.Location = *p.Location
	}
	if p.PurchaseDate != nil {
		item.PurchaseDate = *p.PurchaseDate
	}
	if p.ClearExpirationDate {
		item.ExpirationDate = nil
	} else if p.ExpirationDate != nil {
		exp := *p.ExpirationDate
		item.ExpirationDate = &exp
	}
	if p.LastUsedAt != nil {
		used := *p.LastUsedAt
		item.LastUsedAt = &used
	}
	if p.Notes != nil {
		item.Notes = *p.Notes
	}
	return item
}

// IsEmpty reports whether the patch changes nothing.
func (p InventoryPatch) IsEmpty() bool {
	return p == InventoryPatch{}
}
