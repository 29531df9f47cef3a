package state

import (
	"context"

	"github.com/dukerupert/larder/internal/model"
)

type SettingsService interface {
	Get(ctx context.Context) (model.UserSettings, error)
	Update(ctx context.Context, patch model.SettingsPatch) (model.UserSettings, error)
	Reset(ctx context.Context) (model.UserSettings, error)
}

// Settings mirrors the singleton settings record. Until Load succeeds it
// reports the defaults.
type Settings struct {
	mirror *collection[model.UserSettings]
	svc    SettingsService
}

const settingsKey = "settings"

func settingsID(model.UserSettings) string { return settingsKey }

func NewSettings(svc SettingsService, opts Options) *Settings {
	return &Settings{
		mirror: newCollection(EntitySettings, settingsID, opts),
		svc:    svc,
	}
}

func (c *Settings) Load(ctx context.Context) error {
	return c.mirror.load(ctx, func(ctx context.Context) ([]model.UserSettings, error) {
		s, err := c.svc.Get(ctx)
		if err != nil {
			return nil, err
		}
		return []model.UserSettings{s}, nil
	})
}

// Current returns a copy of the mirrored settings.
func (c *Settings) Current() model.UserSettings {
	items := c.mirror.snapshot()
	if len(items) == 0 {
		return model.DefaultSettings()
	}
	return items[0].Clone()
}

func (c *Settings) mutate(ctx context.Context, online bool, patch model.SettingsPatch, write func(ctx context.Context) (model.UserSettings, error)) (model.UserSettings, error) {
	var result model.UserSettings
	err := c.mirror.run(ctx, mutation[model.UserSettings]{
		action: string(model.ActionUpdate),
		queued: !online,
		apply: func(items []model.UserSettings) ([]model.UserSettings, error) {
			cur := model.DefaultSettings()
			if len(items) > 0 {
				cur = items[0]
			}
			result = patch.Apply(cur)
			result.UpdatedAt = c.mirror.opts.Now()
			return []model.UserSettings{result}, nil
		},
		commit: func(ctx context.Context) (func([]model.UserSettings) []model.UserSettings, error) {
			if !online {
				return nil, c.mirror.opts.Outbox.Enqueue(ctx, model.SettingsChange{Patch: patch})
			}
			saved, err := write(ctx)
			if err != nil {
				return nil, err
			}
			result = saved
			return func([]model.UserSettings) []model.UserSettings {
				return []model.UserSettings{saved}
			}, nil
		},
	})
	return result.Clone(), err
}

// Update merges patch into the settings.
func (c *Settings) Update(ctx context.Context, patch model.SettingsPatch) (model.UserSettings, error) {
	return c.mutate(ctx, c.mirror.opts.online(), patch, func(ctx context.Context) (model.UserSettings, error) {
		return c.svc.Update(ctx, patch)
	})
}

// Reset restores the defaults. Offline the defaults are queued as an
// absolute patch.
func (c *Settings) Reset(ctx context.Context) (model.UserSettings, error) {
	return c.mutate(ctx, c.mirror.opts.online(), model.SettingsPatchFrom(model.DefaultSettings()), c.svc.Reset)
}

// Replay writes a queued settings change through the service.
func (c *Settings) Replay(ctx context.Context, ch model.SettingsChange) error {
	_, err := c.mutate(ctx, true, ch.Patch, func(ctx context.Context) (model.UserSettings, error) {
		return c.svc.Update(ctx, ch.Patch)
	})
	return err
}

func (c *Settings) Subscribe(fn Listener) func() { return c.mirror.Subscribe(fn) }
func (c *Settings) Loading() bool                { return c.mirror.Loading() }
func (c *Settings) Err() error                   { return c.mirror.Err() }
func (c *Settings) ErrorMessage() string         { return c.mirror.ErrorMessage() }
func (c *Settings) ClearError()                  { c.mirror.ClearError() }
