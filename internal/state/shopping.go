package state

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
)

// ShoppingService is the write-through target of the Shopping container.
type ShoppingService interface {
	List(ctx context.Context) ([]model.ShoppingListItem, error)
	Prepare(ctx context.Context, item model.ShoppingListItem) (model.ShoppingListItem, error)
	Create(ctx context.Context, item model.ShoppingListItem) (*model.ShoppingListItem, error)
	Update(ctx context.Context, id string, patch model.ShoppingPatch) (*model.ShoppingListItem, error)
	ToggleCompleted(ctx context.Context, id string) (*model.ShoppingListItem, error)
	FromInventory(ctx context.Context, items []model.InventoryItem) ([]model.ShoppingListItem, error)
	AddFromInventory(ctx context.Context, items []model.InventoryItem) ([]model.ShoppingListItem, error)
	ClearCompleted(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// Shopping mirrors the shopping list.
type Shopping struct {
	*collection[model.ShoppingListItem]
	svc ShoppingService
}

func shoppingID(s model.ShoppingListItem) string { return s.ID }

func NewShopping(svc ShoppingService, opts Options) *Shopping {
	return &Shopping{
		collection: newCollection(EntityShopping, shoppingID, opts),
		svc:        svc,
	}
}

func (c *Shopping) Load(ctx context.Context) error {
	return c.load(ctx, c.svc.List)
}

func (c *Shopping) replace(item model.ShoppingListItem) func([]model.ShoppingListItem) []model.ShoppingListItem {
	return func(items []model.ShoppingListItem) []model.ShoppingListItem {
		return upsert(items, shoppingID, item)
	}
}

// provisional stamps a prepared entry created while offline.
func (c *Shopping) provisional(item model.ShoppingListItem) model.ShoppingListItem {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := c.opts.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	return item
}

func queueCreates(items []model.ShoppingListItem) []model.Change {
	changes := make([]model.Change, len(items))
	for i := range items {
		rec := items[i]
		changes[i] = model.ShoppingChange{Op: model.ActionCreate, ID: rec.ID, Item: &rec}
	}
	return changes
}

// AddItem adds an entry to the list. Online, the mirror only gains the
// record the service returns.
func (c *Shopping) AddItem(ctx context.Context, item model.ShoppingListItem) (model.ShoppingListItem, error) {
	var result model.ShoppingListItem
	if c.opts.online() {
		err := c.run(ctx, mutation[model.ShoppingListItem]{
			action: string(model.ActionCreate),
			id:     item.ID,
			commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
				created, err := c.svc.Create(ctx, item)
				if err != nil {
					return nil, err
				}
				result = *created
				return c.replace(*created), nil
			},
		})
		return result, err
	}

	prepared, err := c.svc.Prepare(ctx, item)
	if err != nil {
		c.fail(err)
		return model.ShoppingListItem{}, err
	}
	result = c.provisional(prepared)
	err = c.run(ctx, mutation[model.ShoppingListItem]{
		action: string(model.ActionCreate),
		id:     result.ID,
		queued: true,
		apply: func(items []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
			if has(items, shoppingID, result.ID) {
				return nil, &apperr.ValidationError{Field: "id", Message: "id already exists", Err: apperr.ErrDuplicateID}
			}
			return upsert(items, shoppingID, result), nil
		},
		commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
			return nil, c.opts.Outbox.Enqueue(ctx, queueCreates([]model.ShoppingListItem{result})...)
		},
	})
	return result, err
}

func (c *Shopping) patchMutation(
	id string,
	online bool,
	patch func(cur model.ShoppingListItem) model.ShoppingPatch,
	write func(ctx context.Context, p model.ShoppingPatch) (*model.ShoppingListItem, error),
	result *model.ShoppingListItem,
) mutation[model.ShoppingListItem] {
	var p model.ShoppingPatch
	return mutation[model.ShoppingListItem]{
		action: string(model.ActionUpdate),
		id:     id,
		queued: !online,
		apply: func(items []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
			cur, ok := find(items, shoppingID, id)
			if !ok {
				return nil, apperr.NotFound("shopping item", id)
			}
			now := c.opts.Now()
			p = patch(cur)
			next := p.Apply(cur, now)
			next.UpdatedAt = now
			*result = next
			return upsert(items, shoppingID, next), nil
		},
		commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
			if !online {
				return nil, c.opts.Outbox.Enqueue(ctx, model.ShoppingChange{Op: model.ActionUpdate, ID: id, Patch: &p})
			}
			updated, err := write(ctx, p)
			if err != nil {
				return nil, err
			}
			*result = *updated
			return c.replace(*updated), nil
		},
	}
}

// UpdateItem merges patch into the entry.
func (c *Shopping) UpdateItem(ctx context.Context, id string, patch model.ShoppingPatch) (model.ShoppingListItem, error) {
	var result model.ShoppingListItem
	err := c.run(ctx, c.patchMutation(id, c.opts.online(),
		func(model.ShoppingListItem) model.ShoppingPatch { return patch },
		func(ctx context.Context, p model.ShoppingPatch) (*model.ShoppingListItem, error) {
			return c.svc.Update(ctx, id, p)
		},
		&result,
	))
	return result, err
}

// ToggleCompleted flips the completion flag. Offline the resulting state is
// queued as an absolute patch.
func (c *Shopping) ToggleCompleted(ctx context.Context, id string) (model.ShoppingListItem, error) {
	var result model.ShoppingListItem
	err := c.run(ctx, c.patchMutation(id, c.opts.online(),
		func(cur model.ShoppingListItem) model.ShoppingPatch {
			return model.CompletionPatch(cur.Toggled(c.opts.Now()))
		},
		func(ctx context.Context, _ model.ShoppingPatch) (*model.ShoppingListItem, error) {
			return c.svc.ToggleCompleted(ctx, id)
		},
		&result,
	))
	return result, err
}

// AddFromInventory puts restock entries for items on the list, skipping
// items that already have a pending entry.
func (c *Shopping) AddFromInventory(ctx context.Context, items []model.InventoryItem) ([]model.ShoppingListItem, error) {
	var result []model.ShoppingListItem
	if c.opts.online() {
		err := c.run(ctx, mutation[model.ShoppingListItem]{
			action: string(model.ActionCreate),
			commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
				created, err := c.svc.AddFromInventory(ctx, items)
				if err != nil {
					return nil, err
				}
				result = created
				return func(cur []model.ShoppingListItem) []model.ShoppingListItem {
					for _, item := range created {
						cur = upsert(cur, shoppingID, item)
					}
					return cur
				}, nil
			},
		})
		return result, err
	}

	planned, err := c.svc.FromInventory(ctx, items)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	err = c.run(ctx, mutation[model.ShoppingListItem]{
		action: string(model.ActionCreate),
		queued: true,
		apply: func(cur []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
			listed := make(map[string]bool)
			for _, entry := range cur {
				if entry.InventoryItemID != nil && !entry.IsCompleted {
					listed[*entry.InventoryItemID] = true
				}
			}
			next := slices.Clone(cur)
			for _, item := range planned {
				if item.InventoryItemID != nil && listed[*item.InventoryItemID] {
					continue
				}
				item = c.provisional(item)
				result = append(result, item)
				next = append(next, item)
			}
			return next, nil
		},
		commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
			if len(result) == 0 {
				return nil, nil
			}
			return nil, c.opts.Outbox.Enqueue(ctx, queueCreates(result)...)
		},
	})
	return result, err
}

// ClearCompleted removes every completed entry and reports how many.
func (c *Shopping) ClearCompleted(ctx context.Context) (int, error) {
	online := c.opts.online()
	var cleared []string
	err := c.run(ctx, mutation[model.ShoppingListItem]{
		action: string(model.ActionDelete),
		queued: !online,
		apply: func(items []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
			for _, item := range items {
				if item.IsCompleted {
					cleared = append(cleared, item.ID)
				}
			}
			return without(items, func(i model.ShoppingListItem) bool { return i.IsCompleted }), nil
		},
		commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
			if online {
				_, err := c.svc.ClearCompleted(ctx)
				return nil, err
			}
			if len(cleared) == 0 {
				return nil, nil
			}
			changes := make([]model.Change, len(cleared))
			for i, id := range cleared {
				changes[i] = model.ShoppingChange{Op: model.ActionDelete, ID: id}
			}
			return nil, c.opts.Outbox.Enqueue(ctx, changes...)
		},
	})
	if err != nil {
		return 0, err
	}
	return len(cleared), nil
}

// DeleteItem removes the entry.
func (c *Shopping) DeleteItem(ctx context.Context, id string) error {
	online := c.opts.online()
	return c.run(ctx, mutation[model.ShoppingListItem]{
		action: string(model.ActionDelete),
		id:     id,
		queued: !online,
		apply: func(items []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
			if !has(items, shoppingID, id) {
				return nil, apperr.NotFound("shopping item", id)
			}
			return without(items, func(i model.ShoppingListItem) bool { return i.ID == id }), nil
		},
		commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
			if !online {
				return nil, c.opts.Outbox.Enqueue(ctx, model.ShoppingChange{Op: model.ActionDelete, ID: id})
			}
			return nil, c.svc.Delete(ctx, id)
		},
	})
}

// Replay writes a queued change through the service. A create whose id is
// already stored and a delete whose target is already gone count as applied.
func (c *Shopping) Replay(ctx context.Context, ch model.ShoppingChange) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	switch ch.Op {
	case model.ActionCreate:
		item := *ch.Item
		return c.run(ctx, mutation[model.ShoppingListItem]{
			action: string(model.ActionCreate),
			id:     ch.ID,
			commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
				created, err := c.svc.Create(ctx, item)
				if errors.Is(err, apperr.ErrDuplicateID) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return c.replace(*created), nil
			},
		})
	case model.ActionUpdate:
		patch := *ch.Patch
		write := func(ctx context.Context, p model.ShoppingPatch) (*model.ShoppingListItem, error) {
			return c.svc.Update(ctx, ch.ID, p)
		}
		if !has(c.snapshot(), shoppingID, ch.ID) {
			return c.run(ctx, mutation[model.ShoppingListItem]{
				action: string(model.ActionUpdate),
				id:     ch.ID,
				commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
					updated, err := write(ctx, patch)
					if err != nil {
						return nil, err
					}
					return c.replace(*updated), nil
				},
			})
		}
		var result model.ShoppingListItem
		return c.run(ctx, c.patchMutation(ch.ID, true,
			func(model.ShoppingListItem) model.ShoppingPatch { return patch },
			write,
			&result,
		))
	default:
		return c.run(ctx, mutation[model.ShoppingListItem]{
			action: string(model.ActionDelete),
			id:     ch.ID,
			apply: func(items []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
				return without(items, func(i model.ShoppingListItem) bool { return i.ID == ch.ID }), nil
			},
			commit: func(ctx context.Context) (func([]model.ShoppingListItem) []model.ShoppingListItem, error) {
				err := c.svc.Delete(ctx, ch.ID)
				if apperr.IsNotFound(err) {
					return nil, nil
				}
				return nil, err
			},
		})
	}
}

// Pending returns the entries still to buy, in list order.
func (c *Shopping) Pending() []model.ShoppingListItem {
	var out []model.ShoppingListItem
	for _, item := range c.snapshot() {
		if !item.IsCompleted {
			out = append(out, item)
		}
	}
	return out
}

// Completed returns the checked-off entries, in list order.
func (c *Shopping) Completed() []model.ShoppingListItem {
	var out []model.ShoppingListItem
	for _, item := range c.snapshot() {
		if item.IsCompleted {
			out = append(out, item)
		}
	}
	return out
}
