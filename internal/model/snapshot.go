package model

import "time"

// Snapshot is the export/import document.
type Snapshot struct {
	Inventory  []InventoryItem    `json:"inventory"`
	Shopping   []ShoppingListItem `json:"shopping"`
	Categories []Category         `json:"categories"`
	Settings   []UserSettings     `json:"settings"`
	ExportDate string             `json:"exportDate"`
}

// IsEmpty reports whether the snapshot carries no records at all.
func (s Snapshot) IsEmpty() bool {
	return len(s.Inventory) == 0 && len(s.Shopping) == 0 &&
		len(s.Categories) == 0 && len(s.Settings) == 0
}

// FormatExportDate renders t the way ExportDate is stored.
func FormatExportDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
