// Package service exposes typed operations per entity kind on top of the
// SQLite stores. Every store call runs under the configured retry policy and
// operation timeout; derived inventory flags are computed here, from the
// threshold read at write time.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/retry"
	"github.com/dukerupert/larder/internal/search"
	"github.com/dukerupert/larder/internal/store"
)

// Options configures the services built by New.
type Options struct {
	Policy  retry.Policy
	Timeout time.Duration
	Matcher search.Matcher
	Logger  *slog.Logger
	Now     func() time.Time
}

// Services groups the per-kind services sharing one database.
type Services struct {
	Inventory  *InventoryService
	Shopping   *ShoppingService
	Categories *CategoryService
	Settings   *SettingsService
	Transfer   *TransferService
}

// New builds every service over db.
func New(db *sql.DB, opts Options) *Services {
	r := newRunner(opts)
	inventory := store.NewInventoryStore(db)
	shopping := store.NewShoppingStore(db)
	categories := store.NewCategoryStore(db)
	settings := store.NewSettingsStore(db)

	matcher := opts.Matcher
	if matcher == nil {
		matcher = search.Subsequence{}
	}

	return &Services{
		Inventory:  &InventoryService{run: r, items: inventory, settings: settings, categories: categories, matcher: matcher},
		Shopping:   &ShoppingService{run: r, items: shopping, categories: categories},
		Categories: &CategoryService{run: r, categories: categories},
		Settings:   &SettingsService{run: r, settings: settings},
		Transfer: &TransferService{
			run: r, db: db,
			inventory: inventory, shopping: shopping, categories: categories, settings: settings,
		},
	}
}

type inventoryStore interface {
	Create(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error)
	GetByID(ctx context.Context, id string) (*model.InventoryItem, error)
	Update(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q model.InventoryQuery) ([]model.InventoryItem, error)
}

type shoppingStore interface {
	Create(ctx context.Context, item model.ShoppingListItem) (*model.ShoppingListItem, error)
	CreateMany(ctx context.Context, items []model.ShoppingListItem) ([]model.ShoppingListItem, error)
	GetByID(ctx context.Context, id string) (*model.ShoppingListItem, error)
	Update(ctx context.Context, item model.ShoppingListItem) (*model.ShoppingListItem, error)
	ToggleCompleted(ctx context.Context, id string) (*model.ShoppingListItem, error)
	Delete(ctx context.Context, id string) error
	ClearCompleted(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]model.ShoppingListItem, error)
}

type runner struct {
	policy  retry.Policy
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func newRunner(opts Options) runner {
	r := runner{policy: opts.Policy, timeout: opts.Timeout, logger: opts.Logger, now: opts.Now}
	if r.policy.MaxAttempts == 0 {
		r.policy = retry.Default()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r
}

// do runs fn as operation op under the retry policy, each attempt bounded by
// the operation timeout.
func (r runner) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p := r.policy
	if p.OnRetry == nil {
		p.OnRetry = func(err error, attempt int, delay time.Duration) {
			r.logger.Warn("retrying storage operation", "op", op, "attempt", attempt, "delay", delay, "error", err)
		}
	}
	return retry.Do(ctx, p, func(ctx context.Context) error {
		return retry.WithTimeout(ctx, op, r.timeout, fn)
	})
}

// value is do for operations with a result. An attempt abandoned by its
// timeout may still finish later, so the result is guarded.
func value[T any](ctx context.Context, r runner, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		mu  sync.Mutex
		out T
	)
	err := r.do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		out = v
		mu.Unlock()
		return nil
	})
	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// attempts counts the tries of one operation. An abandoned attempt may still
// be running when the next starts.
type attempts struct {
	n atomic.Int32
}

// next records a new try and reports whether an earlier one ran. An earlier
// try may have committed before failing, so a create that retries treats its
// own id already existing as success.
func (a *attempts) next() (retrying bool) {
	return a.n.Add(1) > 1
}
