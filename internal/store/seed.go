package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/larder/internal/model"
	"github.com/google/uuid"
)

// Seed inserts the default categories when the category table is empty and
// the default settings row when it is missing. It is safe to call on every
// start.
func Seed(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin seed", err)
	}
	defer tx.Rollback()

	if err := seedTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit seed", err)
	}
	return nil
}

func seedTx(ctx context.Context, tx *sql.Tx) error {
	var categories int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&categories); err != nil {
		return classify("count categories", err)
	}
	if categories == 0 {
		for _, c := range model.DefaultCategories() {
			if err := insertCategory(ctx, tx, prepareCategory(c)); err != nil {
				return classify(fmt.Sprintf("seed category %q", c.Name), err)
			}
		}
	}

	var settings int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&settings); err != nil {
		return classify("count settings", err)
	}
	if settings == 0 {
		defaults := model.DefaultSettings()
		defaults.UpdatedAt = now()
		if err := upsertSettings(ctx, tx, defaults); err != nil {
			return classify("seed settings", err)
		}
	}
	return nil
}

// ReplaceAll clears inventory, shopping, categories, settings and the offline
// log, then inserts the snapshot's records as they are. An empty snapshot
// re-seeds the defaults; a snapshot without settings gets the default
// settings so the singleton always exists.
func ReplaceAll(ctx context.Context, db *sql.DB, snap model.Snapshot) error {
	for _, item := range snap.Inventory {
		if err := ValidateInventoryItem(item); err != nil {
			return fmt.Errorf("inventory item %q: %w", item.ID, err)
		}
	}
	for _, item := range snap.Shopping {
		if err := ValidateShoppingItem(item); err != nil {
			return fmt.Errorf("shopping item %q: %w", item.ID, err)
		}
	}
	for _, c := range snap.Categories {
		if err := ValidateCategory(c); err != nil {
			return fmt.Errorf("category %q: %w", c.Name, err)
		}
	}
	for _, st := range snap.Settings {
		if err := ValidateSettings(st); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin import", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"inventory_items", "shopping_items", "categories", "settings", "pending_changes"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return classify("clear "+table, err)
		}
	}

	if snap.IsEmpty() {
		if err := seedTx(ctx, tx); err != nil {
			return err
		}
		return commit(tx, "commit import")
	}

	ts := now()
	settings := model.DefaultSettings()
	if len(snap.Settings) > 0 {
		settings = snap.Settings[0]
	}
	for _, item := range snap.Inventory {
		item = item.WithFlags(settings.LowStockThreshold)
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = ts
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = ts
		}
		if item.PurchaseDate.IsZero() {
			item.PurchaseDate = item.CreatedAt
		}
		if err := insertInventoryItem(ctx, tx, item); err != nil {
			return classify(fmt.Sprintf("import inventory item %q", item.ID), err)
		}
	}
	for _, item := range snap.Shopping {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = ts
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = ts
		}
		if item.AddedAt.IsZero() {
			item.AddedAt = item.CreatedAt
		}
		if err := insertShoppingItem(ctx, tx, item.NormalizeCompletion(ts)); err != nil {
			return classify(fmt.Sprintf("import shopping item %q", item.ID), err)
		}
	}
	for _, c := range snap.Categories {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = ts
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = ts
		}
		if err := insertCategory(ctx, tx, c); err != nil {
			return classify(fmt.Sprintf("import category %q", c.Name), err)
		}
	}

	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = ts
	}
	if err := upsertSettings(ctx, tx, settings); err != nil {
		return classify("import settings", err)
	}

	return commit(tx, "commit import")
}

func commit(tx *sql.Tx, op string) error {
	if err := tx.Commit(); err != nil {
		return classify(op, err)
	}
	return nil
}
