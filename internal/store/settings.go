package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

const settingsCols = `low_stock_threshold, expiration_warning_days, default_location, preferred_units, theme, reduced_motion, updated_at`

// ValidateSettings checks the structural rules of the settings record.
func ValidateSettings(s model.UserSettings) error {
	if s.LowStockThreshold < 0 {
		return apperr.Invalid("lowStockThreshold", "threshold must not be negative")
	}
	if s.ExpirationWarningDays < 0 {
		return apperr.Invalid("expirationWarningDays", "warning window must not be negative")
	}
	if !s.DefaultLocation.Valid() {
		return apperr.Invalid("defaultLocation", "unknown location %q", s.DefaultLocation)
	}
	if !s.Theme.Valid() {
		return apperr.Invalid("theme", "unknown theme %q", s.Theme)
	}
	return nil
}

// Get returns the singleton settings record.
func (s *SettingsStore) Get(ctx context.Context) (model.UserSettings, error) {
	var out model.UserSettings
	var location, theme, units string
	var reduced int

	err := s.db.QueryRowContext(ctx, `SELECT `+settingsCols+` FROM settings WHERE id = 1`).Scan(
		&out.LowStockThreshold, &out.ExpirationWarningDays, &location, &units,
		&theme, &reduced, &out.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return model.UserSettings{}, apperr.NotFound("settings", "1")
	}
	if err != nil {
		return model.UserSettings{}, classify("get settings", err)
	}

	if err := json.Unmarshal([]byte(units), &out.PreferredUnits); err != nil {
		return model.UserSettings{}, fmt.Errorf("decode preferred units: %w", err)
	}
	out.DefaultLocation = model.Location(location)
	out.Theme = model.Theme(theme)
	out.ReducedMotion = reduced != 0
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

// Save writes the singleton record, creating it when missing.
func (s *SettingsStore) Save(ctx context.Context, settings model.UserSettings) (model.UserSettings, error) {
	if err := ValidateSettings(settings); err != nil {
		return model.UserSettings{}, err
	}
	settings.UpdatedAt = now()
	if err := upsertSettings(ctx, s.db, settings); err != nil {
		return model.UserSettings{}, classify("save settings", err)
	}
	return s.Get(ctx)
}

// Reset restores the default settings.
func (s *SettingsStore) Reset(ctx context.Context) (model.UserSettings, error) {
	return s.Save(ctx, model.DefaultSettings())
}

func upsertSettings(ctx context.Context, ex execer, settings model.UserSettings) error {
	units := settings.PreferredUnits
	if units == nil {
		units = []string{}
	}
	encoded, err := json.Marshal(units)
	if err != nil {
		return fmt.Errorf("encode preferred units: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO settings (id, `+settingsCols+`) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   low_stock_threshold = excluded.low_stock_threshold,
		   expiration_warning_days = excluded.expiration_warning_days,
		   default_location = excluded.default_location,
		   preferred_units = excluded.preferred_units,
		   theme = excluded.theme,
		   reduced_motion = excluded.reduced_motion,
		   updated_at = excluded.updated_at`,
		settings.LowStockThreshold, settings.ExpirationWarningDays, string(settings.DefaultLocation),
		string(encoded), string(settings.Theme), boolInt(settings.ReducedMotion), settings.UpdatedAt.UTC(),
	)
	return err
}
