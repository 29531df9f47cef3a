package service

import (
	"context"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
)

type SettingsService struct {
	run      runner
	settings *store.SettingsStore
}

func (s *SettingsService) Get(ctx context.Context) (model.UserSettings, error) {
	return value(ctx, s.run, "get settings", s.settings.Get)
}

// Update merges patch into the stored settings; unspecified fields keep
// their values.
func (s *SettingsService) Update(ctx context.Context, patch model.SettingsPatch) (model.UserSettings, error) {
	return value(ctx, s.run, "update settings", func(ctx context.Context) (model.UserSettings, error) {
		current, err := s.settings.Get(ctx)
		if err != nil {
			return model.UserSettings{}, err
		}
		return s.settings.Save(ctx, patch.Apply(current))
	})
}

// Reset restores the default settings.
func (s *SettingsService) Reset(ctx context.Context) (model.UserSettings, error) {
	return value(ctx, s.run, "reset settings", s.settings.Reset)
}
