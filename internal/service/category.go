package service

import (
	"context"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
)

type CategoryService struct {
	run        runner
	categories *store.CategoryStore
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return value(ctx, s.run, "list categories", s.categories.List)
}

// Create stores a custom category. Callers cannot create defaults.
func (s *CategoryService) Create(ctx context.Context, c model.Category) (*model.Category, error) {
	c.IsDefault = false
	return value(ctx, s.run, "create category", func(ctx context.Context) (*model.Category, error) {
		return s.categories.Create(ctx, c)
	})
}

// Delete removes a custom category. Deleting a default category fails with a
// terminal ValidationError wrapping apperr.ErrDefaultCategory.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	return s.run.do(ctx, "delete category", func(ctx context.Context) error {
		return s.categories.Delete(ctx, id)
	})
}
