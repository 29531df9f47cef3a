package model

import (
	"regexp"
	"time"
)

var hexColorRegexp = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidColor reports whether c is a #rgb or #rrggbb hex color.
func ValidColor(c string) bool {
	return hexColorRegexp.MatchString(c)
}

// OtherCategory is the fallback category name.
const OtherCategory = "Other"

// DefaultCategories returns the set seeded on first run.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Produce", Color: "#4CAF50", Icon: "carrot", IsDefault: true},
		{Name: "Dairy", Color: "#90CAF9", Icon: "milk", IsDefault: true},
		{Name: "Meat & Seafood", Color: "#E57373", Icon: "drumstick", IsDefault: true},
		{Name: "Bakery", Color: "#D7A86E", Icon: "bread", IsDefault: true},
		{Name: "Pantry", Color: "#FFB74D", Icon: "jar", IsDefault: true},
		{Name: "Frozen", Color: "#80DEEA", Icon: "snowflake", IsDefault: true},
		{Name: "Beverages", Color: "#9575CD", Icon: "cup", IsDefault: true},
		{Name: "Snacks", Color: "#F06292", Icon: "cookie", IsDefault: true},
		{Name: "Household", Color: "#A1887F", Icon: "home", IsDefault: true},
		{Name: "Personal Care", Color: "#4DB6AC", Icon: "sparkles", IsDefault: true},
		{Name: OtherCategory, Color: "#9E9E9E", Icon: "tag", IsDefault: true},
	}
}
