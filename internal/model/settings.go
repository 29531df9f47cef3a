package model

import (
	"slices"
	"time"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// UserSettings is the singleton settings record.
type UserSettings struct {
	LowStockThreshold     float64   `json:"lowStockThreshold"`
	ExpirationWarningDays int       `json:"expirationWarningDays"`
	DefaultLocation       Location  `json:"defaultLocation"`
	PreferredUnits        []string  `json:"preferredUnits"`
	Theme                 Theme     `json:"theme"`
	ReducedMotion         bool      `json:"reducedMotion"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// DefaultSettings returns the settings seeded on first run and on reset.
func DefaultSettings() UserSettings {
	return UserSettings{
		LowStockThreshold:     2,
		ExpirationWarningDays: 7,
		DefaultLocation:       LocationPantry,
		PreferredUnits:        []string{"pcs", "g", "kg", "ml", "l", "pack"},
		Theme:                 ThemeSystem,
		ReducedMotion:         false,
	}
}

// Clone returns a deep copy.
func (s UserSettings) Clone() UserSettings {
	s.PreferredUnits = slices.Clone(s.PreferredUnits)
	return s
}

// SettingsPatch is a partial settings update; unspecified fields keep their values.
type SettingsPatch struct {
	LowStockThreshold     *float64  `json:"lowStockThreshold,omitempty"`
	ExpirationWarningDays *int      `json:"expirationWarningDays,omitempty"`
	DefaultLocation       *Location `json:"defaultLocation,omitempty"`
	PreferredUnits        *[]string `json:"preferredUnits,omitempty"`
	Theme                 *Theme    `json:"theme,omitempty"`
	ReducedMotion         *bool     `json:"reducedMotion,omitempty"`
}

// Apply merges the patch into s.
func (p SettingsPatch) Apply(s UserSettings) UserSettings {
	s = s.Clone()
	if p.LowStockThreshold != nil {
		s.LowStockThreshold = *p.LowStockThreshold
	}
	if p.ExpirationWarningDays != nil {
		s.ExpirationWarningDays = *p.ExpirationWarningDays
	}
	if p.DefaultLocation != nil {
		s.DefaultLocation = *p.DefaultLocation
	}
	if p.PreferredUnits != nil {
		s.PreferredUnits = slices.Clone(*p.PreferredUnits)
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.ReducedMotion != nil {
		s.ReducedMotion = *p.ReducedMotion
	}
	return s
}

// SettingsPatchFrom builds the absolute patch that sets every field of s.
func SettingsPatchFrom(s UserSettings) SettingsPatch {
	s = s.Clone()
	return SettingsPatch{
		LowStockThreshold:     &s.LowStockThreshold,
		ExpirationWarningDays: &s.ExpirationWarningDays,
		DefaultLocation:       &s.DefaultLocation,
		PreferredUnits:        &s.PreferredUnits,
		Theme:                 &s.Theme,
		ReducedMotion:         &s.ReducedMotion,
	}
}
