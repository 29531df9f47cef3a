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

type ShoppingStore struct {
	db *sql.DB
}

func NewShoppingStore(db *sql.DB) *ShoppingStore {
	return &ShoppingStore{db: db}
}

func scanShoppingItem(scanner interface{ Scan(...any) error }) (*model.ShoppingListItem, error) {
	var item model.ShoppingListItem
	var completedAt sql.NullTime
	var inventoryID sql.NullString
	var completed, fromInventory int

	err := scanner.Scan(
		&item.ID, &item.Name, &item.Quantity, &item.Unit, &item.Category,
		&completed, &item.Notes, &item.AddedAt, &completedAt, &inventoryID,
		&fromInventory, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.IsCompleted = completed != 0
	item.CompletedAt = timePtr(completedAt)
	if inventoryID.Valid {
		item.InventoryItemID = &inventoryID.String
	}
	item.FromInventory = fromInventory != 0
	item.AddedAt = item.AddedAt.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

const shoppingCols = `id, name, quantity, unit, category, is_completed, notes, added_at, completed_at, inventory_item_id, from_inventory, created_at, updated_at`

// ValidateShoppingItem checks the structural rules of a shopping list record.
func ValidateShoppingItem(item model.ShoppingListItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return apperr.Invalid("name", "name is required")
	}
	if item.Quantity <= 0 {
		return apperr.Invalid("quantity", "quantity must be positive")
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// prepareShoppingItem fills the id and stamps of a new record and normalizes
// its completion state.
func prepareShoppingItem(item model.ShoppingListItem) model.ShoppingListItem {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	ts := now()
	item.CreatedAt = ts
	item.UpdatedAt = ts
	if item.AddedAt.IsZero() {
		item.AddedAt = ts
	}
	return item.NormalizeCompletion(ts)
}

func insertShoppingItem(ctx context.Context, ex execer, item model.ShoppingListItem) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO shopping_items (`+shoppingCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Quantity, item.Unit, item.Category,
		boolInt(item.IsCompleted), item.Notes, item.AddedAt.UTC(), nullTime(item.CompletedAt),
		nullString(item.InventoryItemID), boolInt(item.FromInventory),
		item.CreatedAt.UTC(), item.UpdatedAt.UTC(),
	)
	return err
}

func (s *ShoppingStore) Create(ctx context.Context, item model.ShoppingListItem) (*model.ShoppingListItem, error) {
	if err := ValidateShoppingItem(item); err != nil {
		return nil, err
	}
	item = prepareShoppingItem(item)
	if err := insertShoppingItem(ctx, s.db, item); err != nil {
		return nil, classify("create shopping item", err)
	}
	return s.GetByID(ctx, item.ID)
}

// CreateMany inserts items in one transaction. Either all are stored or none.
func (s *ShoppingStore) CreateMany(ctx context.Context, items []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
	prepared := make([]model.ShoppingListItem, 0, len(items))
	for _, item := range items {
		if err := ValidateShoppingItem(item); err != nil {
			return nil, err
		}
		prepared = append(prepared, prepareShoppingItem(item))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin create shopping items", err)
	}
	defer tx.Rollback()

	for _, item := range prepared {
		if err := insertShoppingItem(ctx, tx, item); err != nil {
			return nil, classify("create shopping items", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit shopping items", err)
	}
	return prepared, nil
}

func (s *ShoppingStore) GetByID(ctx context.Context, id string) (*model.ShoppingListItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+shoppingCols+` FROM shopping_items WHERE id = ?`, id)
	item, err := scanShoppingItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get shopping item", err)
	}
	return item, nil
}

// Update overwrites the mutable columns of item. completedAt is stamped or
// cleared to match isCompleted regardless of what the caller passed.
func (s *ShoppingStore) Update(ctx context.Context, item model.ShoppingListItem) (*model.ShoppingListItem, error) {
	if err := ValidateShoppingItem(item); err != nil {
		return nil, err
	}
	item = item.NormalizeCompletion(now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE shopping_items SET name = ?, quantity = ?, unit = ?, category = ?, is_completed = ?,
		 notes = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name, item.Quantity, item.Unit, item.Category, boolInt(item.IsCompleted),
		item.Notes, nullTime(item.CompletedAt), now(), item.ID,
	)
	if err != nil {
		return nil, classify("update shopping item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("shopping item", item.ID)
	}
	return s.GetByID(ctx, item.ID)
}

// ToggleCompleted flips the completion flag and sets or clears completed_at
// in a single statement.
func (s *ShoppingStore) ToggleCompleted(ctx context.Context, id string) (*model.ShoppingListItem, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE shopping_items
		 SET is_completed = 1 - is_completed,
		     completed_at = CASE WHEN is_completed = 1 THEN NULL ELSE ? END,
		     updated_at = ?
		 WHERE id = ?`,
		ts, ts, id,
	)
	if err != nil {
		return nil, classify("toggle shopping item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("shopping item", id)
	}
	return s.GetByID(ctx, id)
}

func (s *ShoppingStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shopping_items WHERE id = ?`, id)
	if err != nil {
		return classify("delete shopping item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("shopping item", id)
	}
	return nil
}

// ClearCompleted deletes every completed item and returns how many went.
func (s *ShoppingStore) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shopping_items WHERE is_completed = 1`)
	if err != nil {
		return 0, classify("clear completed shopping items", err)
	}
	return res.RowsAffected()
}

// List returns pending items first, then completed ones, each by added time.
func (s *ShoppingStore) List(ctx context.Context) ([]model.ShoppingListItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shoppingCols+` FROM shopping_items ORDER BY is_completed ASC, added_at ASC, id ASC`)
	if err != nil {
		return nil, classify("list shopping items", err)
	}
	defer rows.Close()

	var items []model.ShoppingListItem
	for rows.Next() {
		item, err := scanShoppingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ShoppingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shopping_items`).Scan(&n); err != nil {
		return 0, classify("count shopping items", err)
	}
	return n, nil
}
