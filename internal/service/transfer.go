package service

import (
	"context"
	"database/sql"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
)

// TransferService produces and restores whole-store snapshots.
type TransferService struct {
	run        runner
	db         *sql.DB
	inventory  *store.InventoryStore
	shopping   *store.ShoppingStore
	categories *store.CategoryStore
	settings   *store.SettingsStore
}

// Export collects every record into a snapshot stamped with the current time.
func (s *TransferService) Export(ctx context.Context) (model.Snapshot, error) {
	return value(ctx, s.run, "export", func(ctx context.Context) (model.Snapshot, error) {
		var snap model.Snapshot
		var err error
		if snap.Inventory, err = s.inventory.List(ctx, model.InventoryQuery{}); err != nil {
			return model.Snapshot{}, err
		}
		if snap.Shopping, err = s.shopping.List(ctx); err != nil {
			return model.Snapshot{}, err
		}
		if snap.Categories, err = s.categories.List(ctx); err != nil {
			return model.Snapshot{}, err
		}
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return model.Snapshot{}, err
		}
		for i, item := range snap.Inventory {
			snap.Inventory[i] = item.WithFlags(settings.LowStockThreshold)
		}
		snap.Settings = []model.UserSettings{settings}
		snap.ExportDate = model.FormatExportDate(s.run.now())

		if snap.Inventory == nil {
			snap.Inventory = []model.InventoryItem{}
		}
		if snap.Shopping == nil {
			snap.Shopping = []model.ShoppingListItem{}
		}
		if snap.Categories == nil {
			snap.Categories = []model.Category{}
		}
		return snap, nil
	})
}

// Import replaces all four collections with the snapshot's contents. An
// empty snapshot leaves the freshly seeded defaults behind. The offline log
// is cleared with them.
func (s *TransferService) Import(ctx context.Context, snap model.Snapshot) error {
	return s.run.do(ctx, "import", func(ctx context.Context) error {
		return store.ReplaceAll(ctx, s.db, snap)
	})
}
