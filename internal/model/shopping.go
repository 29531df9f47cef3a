package model

import "time"

type ShoppingListItem struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Quantity        float64    `json:"quantity"`
	Unit            string     `json:"unit"`
	Category        string     `json:"category"`
	IsCompleted     bool       `json:"isCompleted"`
	Notes           string     `json:"notes,omitempty"`
	AddedAt         time.Time  `json:"addedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	InventoryItemID *string    `json:"inventoryItemId,omitempty"`
	FromInventory   bool       `json:"fromInventory"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NormalizeCompletion enforces completedAt != nil iff isCompleted.
func (s ShoppingListItem) NormalizeCompletion(now time.Time) ShoppingListItem {
	switch {
	case s.IsCompleted && s.CompletedAt == nil:
		t := now
		s.CompletedAt = &t
	case !s.IsCompleted:
		s.CompletedAt = nil
	}
	return s
}

// Toggled flips the completion flag and sets or clears the completion stamp.
func (s ShoppingListItem) Toggled(now time.Time) ShoppingListItem {
	s.IsCompleted = !s.IsCompleted
	s.CompletedAt = nil
	return s.NormalizeCompletion(now)
}

// ShoppingPatch is a partial update. Nil fields keep their current value.
type ShoppingPatch struct {
	Name        *string    `json:"name,omitempty"`
	Quantity    *float64   `json:"quantity,omitempty"`
	Unit        *string    `json:"unit,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	IsCompleted *bool      `json:"isCompleted,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Apply merges the patch into item and normalizes the completion stamp.
func (p ShoppingPatch) Apply(item ShoppingListItem, now time.Time) ShoppingListItem {
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
	if p.Notes != nil {
		item.Notes = *p.Notes
	}
	if p.IsCompleted != nil {
		if *p.IsCompleted != item.IsCompleted {
			item.CompletedAt = nil
		}
		item.IsCompleted = *p.IsCompleted
		if item.IsCompleted && p.CompletedAt != nil {
			at := *p.CompletedAt
			item.CompletedAt = &at
		}
	}
	return item.NormalizeCompletion(now)
}

// CompletionPatch builds the absolute patch that moves an item to the given
// completion state. It is what an offline toggle records for replay.
func CompletionPatch(item ShoppingListItem) ShoppingPatch {
	completed := item.IsCompleted
	p := ShoppingPatch{IsCompleted: &completed}
	if item.CompletedAt != nil {
		at := *item.CompletedAt
		p.CompletedAt = &at
	}
	return p
}

// ShoppingFromInventory builds a list entry that restocks item.
func ShoppingFromInventory(item InventoryItem, now time.Time) ShoppingListItem {
	ref := item.ID
	return ShoppingListItem{
		Name:            item.Name,
		Quantity:        1,
		Unit:            item.Unit,
		Category:        item.Category,
		AddedAt:         now,
		InventoryItemID: &ref,
		FromInventory:   true,
	}
}
