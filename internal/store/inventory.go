package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
	"github.com/google/uuid"
)

type InventoryStore struct {
	db *sql.DB
}

func NewInventoryStore(db *sql.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

func scanInventoryItem(scanner interface{ Scan(...any) error }) (*model.InventoryItem, error) {
	var item model.InventoryItem
	var expiration, lastUsed sql.NullTime
	var location string
	var isLow, isFinished int

	err := scanner.Scan(
		&item.ID, &item.Name, &item.Quantity, &item.Unit, &item.Category, &location,
		&item.PurchaseDate, &expiration, &lastUsed, &item.Notes,
		&isLow, &isFinished, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Location = model.Location(location)
	item.PurchaseDate = item.PurchaseDate.UTC()
	item.ExpirationDate = timePtr(expiration)
	item.LastUsedAt = timePtr(lastUsed)
	item.IsLow = isLow != 0
	item.IsFinished = isFinished != 0
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

const inventoryCols = `id, name, quantity, unit, category, location, purchase_date, expiration_date, last_used_at, notes, is_low, is_finished, created_at, updated_at`

// ValidateInventoryItem checks the structural rules of an inventory record.
func ValidateInventoryItem(item model.InventoryItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return apperr.Invalid("name", "name is required")
	}
	if item.Quantity < 0 {
		return apperr.Invalid("quantity", "quantity must not be negative")
	}
	if !item.Location.Valid() {
		return apperr.Invalid("location", "unknown location %q", item.Location)
	}
	return nil
}

// Create inserts item. An empty id is replaced by a new UUID; a non-empty id is
// kept so that records created offline keep their identity. Derived flags are
// stored as given.
func (s *InventoryStore) Create(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error) {
	if err := ValidateInventoryItem(item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	ts := now()
	item.CreatedAt = ts
	item.UpdatedAt = ts
	if item.PurchaseDate.IsZero() {
		item.PurchaseDate = ts
	}

	if err := insertInventoryItem(ctx, s.db, item); err != nil {
		return nil, classify("create inventory item", err)
	}
	return s.GetByID(ctx, item.ID)
}

func insertInventoryItem(ctx context.Context, ex execer, item model.InventoryItem) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO inventory_items (`+inventoryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Quantity, item.Unit, item.Category, string(item.Location),
		item.PurchaseDate.UTC(), nullTime(item.ExpirationDate), nullTime(item.LastUsedAt), item.Notes,
		boolInt(item.IsLow), boolInt(item.IsFinished), item.CreatedAt.UTC(), item.UpdatedAt.UTC(),
	)
	return err
}

func (s *InventoryStore) GetByID(ctx context.Context, id string) (*model.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inventoryCols+` FROM inventory_items WHERE id = ?`, id)
	item, err := scanInventoryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get inventory item", err)
	}
	return item, nil
}

// Update overwrites every mutable column of item and stamps updated_at.
func (s *InventoryStore) Update(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error) {
	if err := ValidateInventoryItem(item); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE inventory_items SET name = ?, quantity = ?, unit = ?, category = ?, location = ?,
		 purchase_date = ?, expiration_date = ?, last_used_at = ?, notes = ?, is_low = ?, is_finished = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name, item.Quantity, item.Unit, item.Category, string(item.Location),
		item.PurchaseDate.UTC(), nullTime(item.ExpirationDate), nullTime(item.LastUsedAt), item.Notes,
		boolInt(item.IsLow), boolInt(item.IsFinished), now(), item.ID,
	)
	if err != nil {
		return nil, classify("update inventory item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("inventory item", item.ID)
	}
	return s.GetByID(ctx, item.ID)
}

func (s *InventoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return classify("delete inventory item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("inventory item", id)
	}
	return nil
}

// List returns items ordered by name. Location, Category and the low and
// finished statuses are applied in SQL; the expiring status and Search depend
// on settings and a matcher and are left to the caller.
func (s *InventoryStore) List(ctx context.Context, q model.InventoryQuery) ([]model.InventoryItem, error) {
	var where []string
	var args []any
	if q.Location != "" {
		where = append(where, "location = ?")
		args = append(args, string(q.Location))
	}
	if q.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, q.Category)
	}
	switch q.Status {
	case model.StatusLow:
		where = append(where, "is_low = 1")
	case model.StatusFinished:
		where = append(where, "is_finished = 1")
	case model.StatusExpiring:
		where = append(where, "is_finished = 0 AND expiration_date IS NOT NULL")
	}

	query := `SELECT ` + inventoryCols + ` FROM inventory_items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name COLLATE NOCASE ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list inventory items", err)
	}
	defer rows.Close()

	var items []model.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *InventoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_items`).Scan(&n); err != nil {
		return 0, classify("count inventory items", err)
	}
	return n, nil
}
