package service

import (
	"context"
	"errors"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/grocery"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
	"github.com/google/uuid"
)

type ShoppingService struct {
	run        runner
	items      shoppingStore
	categories *store.CategoryStore
}

func (s *ShoppingService) List(ctx context.Context) ([]model.ShoppingListItem, error) {
	return value(ctx, s.run, "list shopping items", s.items.List)
}

func (s *ShoppingService) Get(ctx context.Context, id string) (*model.ShoppingListItem, error) {
	return value(ctx, s.run, "get shopping item", func(ctx context.Context) (*model.ShoppingListItem, error) {
		return s.get(ctx, id)
	})
}

func (s *ShoppingService) get(ctx context.Context, id string) (*model.ShoppingListItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("shopping item", id)
	}
	return item, nil
}

// Prepare fills the defaults of a new entry without writing it: quantity 1
// when unset, a category guessed from the name, the added time and the
// completion stamp.
func (s *ShoppingService) Prepare(ctx context.Context, item model.ShoppingListItem) (model.ShoppingListItem, error) {
	return value(ctx, s.run, "prepare shopping item", func(ctx context.Context) (model.ShoppingListItem, error) {
		return s.prepare(ctx, item)
	})
}

func (s *ShoppingService) prepare(ctx context.Context, item model.ShoppingListItem) (model.ShoppingListItem, error) {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.Category == "" {
		cats, err := s.categories.List(ctx)
		if err != nil {
			return model.ShoppingListItem{}, err
		}
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = c.Name
		}
		item.Category = grocery.Resolve(item.Name, names)
	}
	now := s.run.now()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	return item.NormalizeCompletion(now), nil
}

// Create stores a new entry. A caller-supplied id is kept; otherwise one is
// assigned before the first attempt.
func (s *ShoppingService) Create(ctx context.Context, item model.ShoppingListItem) (*model.ShoppingListItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	var tries attempts
	return value(ctx, s.run, "create shopping item", func(ctx context.Context) (*model.ShoppingListItem, error) {
		retrying := tries.next()
		prepared, err := s.prepare(ctx, item)
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

// Update merges patch into the stored entry.
func (s *ShoppingService) Update(ctx context.Context, id string, patch model.ShoppingPatch) (*model.ShoppingListItem, error) {
	return value(ctx, s.run, "update shopping item", func(ctx context.Context) (*model.ShoppingListItem, error) {
		current, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return s.items.Update(ctx, patch.Apply(*current, s.run.now()))
	})
}

// ToggleCompleted flips the completion flag and its timestamp atomically.
func (s *ShoppingService) ToggleCompleted(ctx context.Context, id string) (*model.ShoppingListItem, error) {
	return value(ctx, s.run, "toggle shopping item", func(ctx context.Context) (*model.ShoppingListItem, error) {
		return s.items.ToggleCompleted(ctx, id)
	})
}

// FromInventory builds the entries AddFromInventory would create, skipping
// items that already have a pending entry on the list.
func (s *ShoppingService) FromInventory(ctx context.Context, items []model.InventoryItem) ([]model.ShoppingListItem, error) {
	return value(ctx, s.run, "plan shopping items", func(ctx context.Context) ([]model.ShoppingListItem, error) {
		return s.fromInventory(ctx, items)
	})
}

func (s *ShoppingService) fromInventory(ctx context.Context, items []model.InventoryItem) ([]model.ShoppingListItem, error) {
	current, err := s.items.List(ctx)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]bool)
	for _, entry := range current {
		if entry.InventoryItemID != nil && !entry.IsCompleted {
			listed[*entry.InventoryItemID] = true
		}
	}

	now := s.run.now()
	var out []model.ShoppingListItem
	for _, item := range items {
		if listed[item.ID] {
			continue
		}
		listed[item.ID] = true
		out = append(out, model.ShoppingFromInventory(item, now))
	}
	return out, nil
}

// AddFromInventory bulk-creates entries for items, flagged as coming from
// the inventory with a back-reference. Items already on the list are skipped.
// The plan is made once, with ids, so a retried insert finds its own rows
// instead of planning them away.
func (s *ShoppingService) AddFromInventory(ctx context.Context, items []model.InventoryItem) ([]model.ShoppingListItem, error) {
	planned, err := s.FromInventory(ctx, items)
	if err != nil || len(planned) == 0 {
		return nil, err
	}
	for i := range planned {
		planned[i].ID = uuid.NewString()
	}

	var tries attempts
	return value(ctx, s.run, "add shopping items from inventory", func(ctx context.Context) ([]model.ShoppingListItem, error) {
		retrying := tries.next()
		created, err := s.items.CreateMany(ctx, planned)
		if !retrying || !errors.Is(err, apperr.ErrDuplicateID) {
			return created, err
		}
		// The batch is one transaction, so an earlier try stored all of it.
		out := make([]model.ShoppingListItem, 0, len(planned))
		for _, p := range planned {
			item, err := s.get(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, *item)
		}
		return out, nil
	})
}

// ClearCompleted deletes every completed entry and reports how many.
func (s *ShoppingService) ClearCompleted(ctx context.Context) (int64, error) {
	return value(ctx, s.run, "clear completed shopping items", s.items.ClearCompleted)
}

func (s *ShoppingService) Delete(ctx context.Context, id string) error {
	return s.run.do(ctx, "delete shopping item", func(ctx context.Context) error {
		return s.items.Delete(ctx, id)
	})
}
