package state

import (
	"context"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
)

type CategoryService interface {
	List(ctx context.Context) ([]model.Category, error)
	Create(ctx context.Context, c model.Category) (*model.Category, error)
	Delete(ctx context.Context, id string) error
}

// Categories mirrors the categories. Category writes are never queued: they
// go straight to the service whatever the connectivity.
type Categories struct {
	*collection[model.Category]
	svc CategoryService
}

func categoryID(c model.Category) string { return c.ID }

func NewCategories(svc CategoryService, opts Options) *Categories {
	return &Categories{
		collection: newCollection(EntityCategory, categoryID, opts),
		svc:        svc,
	}
}

func (c *Categories) Load(ctx context.Context) error {
	return c.load(ctx, c.svc.List)
}

// Add creates a custom category. The mirror changes once the service returns
// the stored record.
func (c *Categories) Add(ctx context.Context, cat model.Category) (model.Category, error) {
	var result model.Category
	err := c.run(ctx, mutation[model.Category]{
		action: string(model.ActionCreate),
		id:     cat.ID,
		commit: func(ctx context.Context) (func([]model.Category) []model.Category, error) {
			created, err := c.svc.Create(ctx, cat)
			if err != nil {
				return nil, err
			}
			result = *created
			return func(items []model.Category) []model.Category {
				return upsert(items, categoryID, *created)
			}, nil
		},
	})
	return result, err
}

// Delete removes a custom category. Default categories are refused before
// anything changes.
func (c *Categories) Delete(ctx context.Context, id string) error {
	return c.run(ctx, mutation[model.Category]{
		action: string(model.ActionDelete),
		id:     id,
		apply: func(items []model.Category) ([]model.Category, error) {
			cat, ok := find(items, categoryID, id)
			if !ok {
				return nil, apperr.NotFound("category", id)
			}
			if cat.IsDefault {
				return nil, &apperr.ValidationError{Field: "id", Message: apperr.ErrDefaultCategory.Error(), Err: apperr.ErrDefaultCategory}
			}
			return without(items, func(c model.Category) bool { return c.ID == id }), nil
		},
		commit: func(ctx context.Context) (func([]model.Category) []model.Category, error) {
			return nil, c.svc.Delete(ctx, id)
		},
	})
}

// Names returns the category names in mirror order.
func (c *Categories) Names() []string {
	items := c.snapshot()
	names := make([]string, len(items))
	for i, cat := range items {
		names[i] = cat.Name
	}
	return names
}
