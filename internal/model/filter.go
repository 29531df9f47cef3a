package model

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

type InventoryStatus string

const (
	StatusAll      InventoryStatus = "all"
	StatusExpiring InventoryStatus = "expiring"
	StatusLow      InventoryStatus = "low"
	StatusFinished InventoryStatus = "finished"
)

func (s InventoryStatus) Valid() bool {
	switch s {
	case "", StatusAll, StatusExpiring, StatusLow, StatusFinished:
		return true
	}
	return false
}

// InventoryQuery narrows an inventory listing. Zero values match everything.
type InventoryQuery struct {
	Location Location
	Category string
	Status   InventoryStatus
	Search   string
}

// Matches applies every criterion except Search, which needs a matcher.
func (q InventoryQuery) Matches(item InventoryItem, now time.Time, warningDays int) bool {
	if q.Location != "" && item.Location != q.Location {
		return false
	}
	if q.Category != "" && !strings.EqualFold(item.Category, q.Category) {
		return false
	}
	switch q.Status {
	case StatusExpiring:
		return item.ExpiresWithin(now, warningDays)
	case StatusLow:
		return item.IsLow
	case StatusFinished:
		return item.IsFinished
	}
	return true
}

type InventorySort string

const (
	SortByName       InventorySort = "name"
	SortByExpiration InventorySort = "expiration"
	SortByQuantity   InventorySort = "quantity"
	SortByPurchase   InventorySort = "purchase"
)

// SortInventory returns a sorted copy of items. Items without an expiration
// date sort last when ordering by expiration.
func SortInventory(items []InventoryItem, by InventorySort) []InventoryItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b InventoryItem) int {
		switch by {
		case SortByExpiration:
			switch {
			case a.ExpirationDate == nil && b.ExpirationDate == nil:
			case a.ExpirationDate == nil:
				return 1
			case b.ExpirationDate == nil:
				return -1
			default:
				if c := a.ExpirationDate.Compare(*b.ExpirationDate); c != 0 {
					return c
				}
			}
		case SortByQuantity:
			if c := cmp.Compare(a.Quantity, b.Quantity); c != 0 {
				return c
			}
		case SortByPurchase:
			if c := b.PurchaseDate.Compare(a.PurchaseDate); c != 0 {
				return c
			}
		}
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}
