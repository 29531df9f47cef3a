package state

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/search"
)

// InventoryService is the write-through target of the Inventory container.
type InventoryService interface {
	List(ctx context.Context, q model.InventoryQuery) ([]model.InventoryItem, error)
	Prepare(ctx context.Context, item model.InventoryItem) (model.InventoryItem, error)
	Create(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error)
	Update(ctx context.Context, id string, patch model.InventoryPatch) (*model.InventoryItem, error)
	MarkAsUsed(ctx context.Context, id string, amount float64) (*model.InventoryItem, error)
	MarkAsFinished(ctx context.Context, id string) (*model.InventoryItem, error)
	Delete(ctx context.Context, id string) error
}

// Inventory mirrors the inventory items.
type Inventory struct {
	*collection[model.InventoryItem]
	svc      InventoryService
	settings SettingsSource
}

func inventoryID(i model.InventoryItem) string { return i.ID }

// NewInventory creates the container. settings supplies the threshold used
// for optimistic flags and the expiring window; nil means the defaults.
func NewInventory(svc InventoryService, settings SettingsSource, opts Options) *Inventory {
	return &Inventory{
		collection: newCollection(EntityInventory, inventoryID, opts),
		svc:        svc,
		settings:   settings,
	}
}

func (c *Inventory) currentSettings() model.UserSettings {
	if c.settings == nil {
		return model.DefaultSettings()
	}
	return c.settings.Current()
}

// Load replaces the mirror with the stored items.
func (c *Inventory) Load(ctx context.Context) error {
	return c.load(ctx, func(ctx context.Context) ([]model.InventoryItem, error) {
		return c.svc.List(ctx, model.InventoryQuery{})
	})
}

func (c *Inventory) replace(item model.InventoryItem) func([]model.InventoryItem) []model.InventoryItem {
	return func(items []model.InventoryItem) []model.InventoryItem {
		return upsert(items, inventoryID, item)
	}
}

// AddItem creates an item. Online, the mirror only gains the record the
// service returns. Offline, a provisional record with a generated id is shown
// and its create is queued under that id.
func (c *Inventory) AddItem(ctx context.Context, item model.InventoryItem) (model.InventoryItem, error) {
	var result model.InventoryItem
	if c.opts.online() {
		err := c.run(ctx, mutation[model.InventoryItem]{
			action: string(model.ActionCreate),
			id:     item.ID,
			commit: func(ctx context.Context) (func([]model.InventoryItem) []model.InventoryItem, error) {
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
		return model.InventoryItem{}, err
	}
	if prepared.ID == "" {
		prepared.ID = uuid.NewString()
	}
	now := c.opts.Now()
	prepared.CreatedAt, prepared.UpdatedAt = now, now
	result = prepared

	err = c.run(ctx, mutation[model.InventoryItem]{
		action: string(model.ActionCreate),
		id:     prepared.ID,
		queued: true,
		apply: func(items []model.InventoryItem) ([]model.InventoryItem, error) {
			if has(items, inventoryID, prepared.ID) {
				return nil, &apperr.ValidationError{Field: "id", Message: "id already exists", Err: apperr.ErrDuplicateID}
			}
			return upsert(items, inventoryID, prepared), nil
		},
		commit: func(ctx context.Context) (func([]model.InventoryItem) []model.InventoryItem, error) {
			rec := prepared
			return nil, c.opts.Outbox.Enqueue(ctx, model.InventoryChange{Op: model.ActionCreate, ID: rec.ID, Item: &rec})
		},
	})
	return result, err
}

// patchMutation applies patch optimistically, then writes it with write when
// online or queues it as an absolute patch when offline.
func (c *Inventory) patchMutation(
	id string,
	online bool,
	patch func(cur model.InventoryItem) model.InventoryPatch,
	write func(ctx context.Context, p model.InventoryPatch) (*model.InventoryItem, error),
	result *model.InventoryItem,
) mutation[model.InventoryItem] {
	var p model.InventoryPatch
	return mutation[model.InventoryItem]{
		action: string(model.ActionUpdate),
		id:     id,
		queued: !online,
		apply: func(items []model.InventoryItem) ([]model.InventoryItem, error) {
			cur, ok := find(items, inventoryID, id)
			if !ok {
				return nil, apperr.NotFound("inventory item", id)
			}
			p = patch(cur)
			next := p.Apply(cur).WithFlags(c.currentSettings().LowStockThreshold)
			next.UpdatedAt = c.opts.Now()
			*result = next
			return upsert(items, inventoryID, next), nil
		},
		commit: func(ctx context.Context) (func([]model.InventoryItem) []model.InventoryItem, error) {
			if !online {
				return nil, c.opts.Outbox.Enqueue(ctx, model.InventoryChange{Op: model.ActionUpdate, ID: id, Patch: &p})
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

// UpdateItem merges patch into the item and recomputes its flags.
func (c *Inventory) UpdateItem(ctx context.Context, id string, patch model.InventoryPatch) (model.InventoryItem, error) {
	var result model.InventoryItem
	err := c.run(ctx, c.patchMutation(id, c.opts.online(),
		func(model.InventoryItem) model.InventoryPatch { return patch },
		func(ctx context.Context, p model.InventoryPatch) (*model.InventoryItem, error) {
			return c.svc.Update(ctx, id, p)
		},
		&result,
	))
	return result, err
}

// MarkAsUsed subtracts amount from the quantity, clamped at zero.
func (c *Inventory) MarkAsUsed(ctx context.Context, id string, amount float64) (model.InventoryItem, error) {
	if amount <= 0 {
		err := apperr.Invalid("amount", "amount must be positive")
		c.fail(err)
		return model.InventoryItem{}, err
	}
	var result model.InventoryItem
	err := c.run(ctx, c.patchMutation(id, c.opts.online(),
		func(cur model.InventoryItem) model.InventoryPatch {
			q := model.UsedQuantity(cur.Quantity, amount)
			used := c.opts.Now()
			return model.InventoryPatch{Quantity: &q, LastUsedAt: &used}
		},
		func(ctx context.Context, _ model.InventoryPatch) (*model.InventoryItem, error) {
			return c.svc.MarkAsUsed(ctx, id, amount)
		},
		&result,
	))
	return result, err
}

// MarkAsFinished sets the quantity to zero.
func (c *Inventory) MarkAsFinished(ctx context.Context, id string) (model.InventoryItem, error) {
	var result model.InventoryItem
	err := c.run(ctx, c.patchMutation(id, c.opts.online(),
		func(model.InventoryItem) model.InventoryPatch {
			zero := 0.0
			used := c.opts.Now()
			return model.InventoryPatch{Quantity: &zero, LastUsedAt: &used}
		},
		func(ctx context.Context, _ model.InventoryPatch) (*model.InventoryItem, error) {
			return c.svc.MarkAsFinished(ctx, id)
		},
		&result,
	))
	return result, err
}

// DeleteItem removes the item.
func (c *Inventory) DeleteItem(ctx context.Context, id string) error {
	online := c.opts.online()
	return c.run(ctx, mutation[model.InventoryItem]{
		action: string(model.ActionDelete),
		id:     id,
		queued: !online,
		apply: func(items []model.InventoryItem) ([]model.InventoryItem, error) {
			if !has(items, inventoryID, id) {
				return nil, apperr.NotFound("inventory item", id)
			}
			return without(items, func(i model.InventoryItem) bool { return i.ID == id }), nil
		},
		commit: func(ctx context.Context) (func([]model.InventoryItem) []model.InventoryItem, error) {
			if !online {
				return nil, c.opts.Outbox.Enqueue(ctx, model.InventoryChange{Op: model.ActionDelete, ID: id})
			}
			return nil, c.svc.Delete(ctx, id)
		},
	})
}

// Replay writes a queued change through the service. A create whose id is
// already stored and a delete whose target is already gone count as applied.
func (c *Inventory) Replay(ctx context.Context, ch model.InventoryChange) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	switch ch.Op {
	case model.ActionCreate:
		item := *ch.Item
		return c.run(ctx, mutation[model.InventoryItem]{
			action: string(model.ActionCreate),
			id:     ch.ID,
			commit: func(ctx context.Context) (func([]model.InventoryItem) []model.InventoryItem, error) {
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
		if !has(c.snapshot(), inventoryID, ch.ID) {
			return c.run(ctx, mutation[model.InventoryItem]{
				action: string(model.ActionUpdate),
				id:     ch.ID,
				commit: func(ctx context.Context) (func([]model.InventoryItem) []model.InventoryItem, error) {
					updated, err := c.svc.Update(ctx, ch.ID, patch)
					if err != nil {
						return nil, err
					}
					return c.replace(*updated), nil
				},
			})
		}
		var result model.InventoryItem
		return c.run(ctx, c.patchMutation(ch.ID, true,
			func(model.InventoryItem) model.InventoryPatch { return patch },
			func(ctx context.Context, p model.InventoryPatch) (*model.InventoryItem, error) {
				return c.svc.Update(ctx, ch.ID, p)
			},
			&result,
		))
	default:
		return c.run(ctx, mutation[model.InventoryItem]{
			action: string(model.ActionDelete),
			id:     ch.ID,
			apply: func(items []model.InventoryItem) ([]model.InventoryItem, error) {
				return without(items, func(i model.InventoryItem) bool { return i.ID == ch.ID }), nil
			},
			commit: func(ctx context.Context) (func([]model.InventoryItem) []model.InventoryItem, error) {
				err := c.svc.Delete(ctx, ch.ID)
				if apperr.IsNotFound(err) {
					return nil, nil
				}
				return nil, err
			},
		})
	}
}

// Filter returns the mirrored items matching q, ranked by q.Search when set.
func (c *Inventory) Filter(q model.InventoryQuery) []model.InventoryItem {
	settings := c.currentSettings()
	now := c.opts.Now()
	var out []model.InventoryItem
	for _, item := range c.snapshot() {
		if q.Matches(item, now, settings.ExpirationWarningDays) {
			out = append(out, item)
		}
	}
	return search.Filter(c.opts.Matcher, q.Search, out, func(i model.InventoryItem) []string {
		return []string{i.Name, i.Category, i.Notes}
	})
}

// LowStock returns the items flagged low, finished ones included.
func (c *Inventory) LowStock() []model.InventoryItem {
	return c.Filter(model.InventoryQuery{Status: model.StatusLow})
}

// Expiring returns the unfinished items expiring within the warning window,
// soonest first.
func (c *Inventory) Expiring() []model.InventoryItem {
	return model.SortInventory(c.Filter(model.InventoryQuery{Status: model.StatusExpiring}), model.SortByExpiration)
}

// Sorted returns a copy of the mirror ordered by by.
func (c *Inventory) Sorted(by model.InventorySort) []model.InventoryItem {
	return model.SortInventory(c.snapshot(), by)
}
