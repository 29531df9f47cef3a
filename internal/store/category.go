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

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func scanCategory(scanner interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	var isDefault int
	err := scanner.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &isDefault, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.IsDefault = isDefault != 0
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

const categoryCols = `id, name, color, icon, is_default, created_at, updated_at`

// ValidateCategory checks the structural rules of a category record.
func ValidateCategory(c model.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Invalid("name", "name is required")
	}
	if !model.ValidColor(c.Color) {
		return apperr.Invalid("color", "color must be a hex value like #a1b2c3")
	}
	return nil
}

func insertCategory(ctx context.Context, ex execer, c model.Category) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO categories (`+categoryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Color, c.Icon, boolInt(c.IsDefault), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	return err
}

func prepareCategory(c model.Category) model.Category {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	ts := now()
	c.Name = strings.TrimSpace(c.Name)
	c.CreatedAt = ts
	c.UpdatedAt = ts
	return c
}

func (s *CategoryStore) Create(ctx context.Context, c model.Category) (*model.Category, error) {
	if err := ValidateCategory(c); err != nil {
		return nil, err
	}
	c = prepareCategory(c)
	if err := insertCategory(ctx, s.db, c); err != nil {
		return nil, classify("create category", err)
	}
	return s.GetByID(ctx, c.ID)
}

func (s *CategoryStore) GetByID(ctx context.Context, id string) (*model.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get category", err)
	}
	return c, nil
}

// GetByName looks a category up case-insensitively.
func (s *CategoryStore) GetByName(ctx context.Context, name string) (*model.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM categories WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name))
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get category by name", err)
	}
	return c, nil
}

// List returns defaults first, then custom categories, each by name.
func (s *CategoryStore) List(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryCols+` FROM categories ORDER BY is_default DESC, name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, classify("list categories", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// Delete removes a custom category. Default categories are never removed;
// the attempt fails with a ValidationError wrapping apperr.ErrDefaultCategory.
func (s *CategoryStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin delete category", err)
	}
	defer tx.Rollback()

	var isDefault int
	err = tx.QueryRowContext(ctx, `SELECT is_default FROM categories WHERE id = ?`, id).Scan(&isDefault)
	if err == sql.ErrNoRows {
		return apperr.NotFound("category", id)
	}
	if err != nil {
		return classify("get category", err)
	}
	if isDefault != 0 {
		return &apperr.ValidationError{
			Field:   "id",
			Message: apperr.ErrDefaultCategory.Error(),
			Err:     apperr.ErrDefaultCategory,
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return classify("delete category", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("commit delete category", err)
	}
	return nil
}

func (s *CategoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, classify("count categories", err)
	}
	return n, nil
}
