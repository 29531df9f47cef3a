package service

import (
	"context"
	"errors"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/grocery"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/search"
	"github.com/dukerupert/larder/internal/store"
	"github.com/google/uuid"
)

type InventoryService struct {
	run        runner
	items      inventoryStore
	settings   *store.SettingsStore
	categories *store.CategoryStore
	matcher    search.Matcher
}

// List returns the items matching q. Derived flags are recomputed under the
// current threshold, so a threshold change shows on the next read. The
// expiring status uses the warning window from settings; Search ranks matches
// on name, category and notes.
func (s *InventoryService) List(ctx context.Context, q model.InventoryQuery) ([]model.InventoryItem, error) {
	if !q.Status.Valid() {
		return nil, apperr.Invalid("status", "unknown status %q", q.Status)
	}
	if q.Location != "" && !q.Location.Valid() {
		return nil, apperr.Invalid("location", "unknown location %q", q.Location)
	}

	return value(ctx, s.run, "list inventory", func(ctx context.Context) ([]model.InventoryItem, error) {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		stored := q
		if q.Status == model.StatusLow {
			// is_low on disk may predate the current threshold.
			stored.Status = model.StatusAll
		}
		items, err := s.items.List(ctx, stored)
		if err != nil {
			return nil, err
		}
		now := s.run.now()
		kept := items[:0]
		for _, item := range items {
			item = item.WithFlags(settings.LowStockThreshold)
			if q.Matches(item, now, settings.ExpirationWarningDays) {
				kept = append(kept, item)
			}
		}
		return search.Filter(s.matcher, q.Search, kept, func(i model.InventoryItem) []string {
			return []string{i.Name, i.Category, i.Notes}
		}), nil
	})
}

// LowStock lists the items currently flagged low, finished ones included.
func (s *InventoryService) LowStock(ctx context.Context) ([]model.InventoryItem, error) {
	return s.List(ctx, model.InventoryQuery{Status: model.StatusLow})
}

func (s *InventoryService) Get(ctx context.Context, id string) (*model.InventoryItem, error) {
	return value(ctx, s.run, "get inventory item", func(ctx context.Context) (*model.InventoryItem, error) {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		item, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		flagged := item.WithFlags(settings.LowStockThreshold)
		return &flagged, nil
	})
}

func (s *InventoryService) get(ctx context.Context, id string) (*model.InventoryItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("inventory item", id)
	}
	return item, nil
}

// Prepare fills the defaults of a new item: the default location from
// settings, a category guessed from the name, and the derived flags under the
// current threshold. It does not write.
func (s *InventoryService) Prepare(ctx context.Context, item model.InventoryItem) (model.InventoryItem, error) {
	return value(ctx, s.run, "prepare inventory item", func(ctx context.Context) (model.InventoryItem, error) {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return model.InventoryItem{}, err
		}
		return s.prepare(ctx, item, settings)
	})
}

func (s *InventoryService) prepare(ctx context.Context, item model.InventoryItem, settings model.UserSettings) (model.InventoryItem, error) {
	if item.Location == "" {
		item.Location = settings.DefaultLocation
	}
	if item.Category == "" {
		cats, err := s.categories.List(ctx)
		if err != nil {
			return model.InventoryItem{}, err
		}
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = c.Name
		}
		item.Category = grocery.Resolve(item.Name, names)
	}
	if item.PurchaseDate.IsZero() {
		item.PurchaseDate = s.run.now()
	}
	return item.WithFlags(settings.LowStockThreshold), nil
}

// Create stores a new item. A caller-supplied id is kept; otherwise one is
// assigned before the first attempt so a retry cannot insert twice.
func (s *InventoryService) Create(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	var tries attempts
	return value(ctx, s.run, "create inventory item", func(ctx context.Context) (*model.InventoryItem, error) {
		retrying := tries.next()
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		prepared, err := s.prepare(ctx, item, settings)
		if err != nil {
			return nil, err
		}
		created, err := s.items.Create(ctx, prepared)
		if retrying && errors.Is(err, apperr.ErrDuplicateID) {
			return s.get(ctx, item.ID)
		}
		return created, err
	})
}

// Update merges patch into the stored item and recomputes its flags.
func (s *InventoryService) Update(ctx context.Context, id string, patch model.InventoryPatch) (*model.InventoryItem, error) {
	return value(ctx, s.run, "update inventory item", func(ctx context.Context) (*model.InventoryItem, error) {
		return s.update(ctx, id, patch)
	})
}

func (s *InventoryService) update(ctx context.Context, id string, patch model.InventoryPatch) (*model.InventoryItem, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	next := patch.Apply(*current).WithFlags(settings.LowStockThreshold)
	return s.items.Update(ctx, next)
}

// MarkAsUsed subtracts amount from the quantity, clamped at zero, and stamps
// the last-used time.
func (s *InventoryService) MarkAsUsed(ctx context.Context, id string, amount float64) (*model.InventoryItem, error) {
	if amount <= 0 {
		return nil, apperr.Invalid("amount", "amount must be positive")
	}
	return value(ctx, s.run, "mark inventory item used", func(ctx context.Context) (*model.InventoryItem, error) {
		current, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		q := model.UsedQuantity(current.Quantity, amount)
		used := s.run.now()
		return s.update(ctx, id, model.InventoryPatch{Quantity: &q, LastUsedAt: &used})
	})
}

// MarkAsFinished sets the quantity to zero and stamps the last-used time.
func (s *InventoryService) MarkAsFinished(ctx context.Context, id string) (*model.InventoryItem, error) {
	return value(ctx, s.run, "mark inventory item finished", func(ctx context.Context) (*model.InventoryItem, error) {
		zero := 0.0
		used := s.run.now()
		return s.update(ctx, id, model.InventoryPatch{Quantity: &zero, LastUsedAt: &used})
	})
}

func (s *InventoryService) Delete(ctx context.Context, id string) error {
	return s.run.do(ctx, "delete inventory item", func(ctx context.Context) error {
		return s.items.Delete(ctx, id)
	})
}
