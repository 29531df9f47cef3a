package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/retry"
	"github.com/dukerupert/larder/internal/store"
	"github.com/dukerupert/larder/internal/testutil"
)

var fixedNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func setupServices(t *testing.T) (context.Context, *Services) {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	if err := store.Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p := retry.Default()
	p.InitialDelay = time.Millisecond
	return ctx, New(db, Options{Policy: p, Now: func() time.Time { return fixedNow }})
}

func setThreshold(t *testing.T, ctx context.Context, svc *Services, threshold float64) {
	t.Helper()
	if _, err := svc.Settings.Update(ctx, model.SettingsPatch{LowStockThreshold: &threshold}); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
}

func TestCreateDerivesFlagsFromCurrentThreshold(t *testing.T) {
	ctx, svc := setupServices(t)
	setThreshold(t, ctx, svc, 3)

	eggs, err := svc.Inventory.Create(ctx, model.InventoryItem{Name: "Eggs", Quantity: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !eggs.IsLow || eggs.IsFinished {
		t.Errorf("eggs flags = low:%v finished:%v, want low only", eggs.IsLow, eggs.IsFinished)
	}
	if eggs.Category != "Dairy" {
		t.Errorf("category = %q, want auto-categorized Dairy", eggs.Category)
	}
	if eggs.Location != model.LocationPantry {
		t.Errorf("location = %q, want default pantry", eggs.Location)
	}

	setThreshold(t, ctx, svc, 1)
	q := 2.0
	updated, err := svc.Inventory.Update(ctx, eggs.ID, model.InventoryPatch{Quantity: &q})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsLow {
		t.Error("update should use the threshold in effect at write time")
	}
}

func TestCallersCannotSetDerivedFlags(t *testing.T) {
	ctx, svc := setupServices(t)

	item, err := svc.Inventory.Create(ctx, model.InventoryItem{
		Name: "Rice", Quantity: 10, Location: model.LocationPantry, IsLow: true, IsFinished: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.IsLow || item.IsFinished {
		t.Errorf("flags = low:%v finished:%v, want both recomputed false", item.IsLow, item.IsFinished)
	}
}

func TestMarkAsUsedClampsAndFinishes(t *testing.T) {
	ctx, svc := setupServices(t)

	item, err := svc.Inventory.Create(ctx, model.InventoryItem{Name: "Milk", Quantity: 1, Location: model.LocationFridge})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	item, err = svc.Inventory.MarkAsUsed(ctx, item.ID, 0.5)
	if err != nil {
		t.Fatalf("first use: %v", err)
	}
	if item.Quantity != 0.5 || item.IsFinished {
		t.Errorf("after first use = %v finished:%v", item.Quantity, item.IsFinished)
	}
	if item.LastUsedAt == nil || !item.LastUsedAt.Equal(fixedNow) {
		t.Errorf("lastUsedAt = %v, want %v", item.LastUsedAt, fixedNow)
	}

	item, err = svc.Inventory.MarkAsUsed(ctx, item.ID, 0.5)
	if err != nil {
		t.Fatalf("second use: %v", err)
	}
	if item.Quantity != 0 || !item.IsFinished {
		t.Errorf("after second use = %v finished:%v, want 0 finished", item.Quantity, item.IsFinished)
	}

	if _, err := svc.Inventory.MarkAsUsed(ctx, item.ID, 0); !apperr.IsValidation(err) {
		t.Errorf("zero amount: err = %v, want ValidationError", err)
	}
	if _, err := svc.Inventory.MarkAsUsed(ctx, "missing", 1); !apperr.IsNotFound(err) {
		t.Errorf("missing id: err = %v, want NotFoundError", err)
	}
}

func TestMarkAsFinished(t *testing.T) {
	ctx, svc := setupServices(t)

	item, _ := svc.Inventory.Create(ctx, model.InventoryItem{Name: "Flour", Quantity: 4, Location: model.LocationPantry})
	item, err := svc.Inventory.MarkAsFinished(ctx, item.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if item.Quantity != 0 || !item.IsFinished || !item.IsLow || item.LastUsedAt == nil {
		t.Errorf("finished item = %+v", item)
	}
}

func TestListExpiringAndSearch(t *testing.T) {
	ctx, svc := setupServices(t)

	soon := fixedNow.AddDate(0, 0, 3)
	past := fixedNow.AddDate(0, 0, -1)
	later := fixedNow.AddDate(0, 1, 0)
	seed := []model.InventoryItem{
		{Name: "Yogurt", Quantity: 2, Location: model.LocationFridge, ExpirationDate: &soon},
		{Name: "Old cheese", Quantity: 1, Location: model.LocationFridge, ExpirationDate: &past},
		{Name: "Frozen peas", Quantity: 1, Location: model.LocationFreezer, ExpirationDate: &later},
		{Name: "Cream", Quantity: 0, Location: model.LocationFridge, ExpirationDate: &soon},
		{Name: "Salt", Quantity: 1, Location: model.LocationPantry},
	}
	for _, item := range seed {
		if _, err := svc.Inventory.Create(ctx, item); err != nil {
			t.Fatalf("create %s: %v", item.Name, err)
		}
	}

	expiring, err := svc.Inventory.List(ctx, model.InventoryQuery{Status: model.StatusExpiring})
	if err != nil {
		t.Fatalf("list expiring: %v", err)
	}
	names := map[string]bool{}
	for _, i := range expiring {
		names[i.Name] = true
	}
	if len(expiring) != 2 || !names["Yogurt"] || !names["Old cheese"] {
		t.Errorf("expiring = %v, want Yogurt and Old cheese", names)
	}

	found, err := svc.Inventory.List(ctx, model.InventoryQuery{Search: "peas"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Frozen peas" {
		t.Errorf("search = %+v", found)
	}

	if _, err := svc.Inventory.List(ctx, model.InventoryQuery{Status: "rotten"}); !apperr.IsValidation(err) {
		t.Errorf("bad status: err = %v, want ValidationError", err)
	}
}

func TestShoppingToggleTwice(t *testing.T) {
	ctx, svc := setupServices(t)

	item, err := svc.Shopping.Create(ctx, model.ShoppingListItem{Name: "Bananas"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.Quantity != 1 || item.Category != "Produce" {
		t.Errorf("defaults = qty %v category %q", item.Quantity, item.Category)
	}

	for i := 0; i < 2; i++ {
		if item, err = svc.Shopping.ToggleCompleted(ctx, item.ID); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
	}
	if item.IsCompleted || item.CompletedAt != nil {
		t.Errorf("after two toggles = completed:%v at:%v", item.IsCompleted, item.CompletedAt)
	}
}

func TestAddFromInventorySkipsListedItems(t *testing.T) {
	ctx, svc := setupServices(t)

	milk, _ := svc.Inventory.Create(ctx, model.InventoryItem{Name: "Milk", Quantity: 0, Location: model.LocationFridge})
	bread, _ := svc.Inventory.Create(ctx, model.InventoryItem{Name: "Bread", Quantity: 1, Location: model.LocationPantry})

	low, err := svc.Inventory.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("low stock = %d items, want 2", len(low))
	}

	added, err := svc.Shopping.AddFromInventory(ctx, low)
	if err != nil {
		t.Fatalf("add from inventory: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("added %d, want 2", len(added))
	}
	for _, entry := range added {
		if !entry.FromInventory || entry.InventoryItemID == nil {
			t.Errorf("entry %q missing inventory back-reference", entry.Name)
		}
		if *entry.InventoryItemID != milk.ID && *entry.InventoryItemID != bread.ID {
			t.Errorf("entry %q references %q", entry.Name, *entry.InventoryItemID)
		}
	}

	again, err := svc.Shopping.AddFromInventory(ctx, low)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second add created %d duplicates", len(again))
	}
}

func TestClearCompleted(t *testing.T) {
	ctx, svc := setupServices(t)

	a, _ := svc.Shopping.Create(ctx, model.ShoppingListItem{Name: "Soap", Quantity: 1})
	svc.Shopping.Create(ctx, model.ShoppingListItem{Name: "Tea", Quantity: 1})
	if _, err := svc.Shopping.ToggleCompleted(ctx, a.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	n, err := svc.Shopping.ClearCompleted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("clear completed = %d, %v", n, err)
	}
	items, _ := svc.Shopping.List(ctx)
	if len(items) != 1 || items[0].Name != "Tea" {
		t.Errorf("remaining = %+v", items)
	}
}

func TestDeleteDefaultCategoryFails(t *testing.T) {
	ctx, svc := setupServices(t)

	cats, err := svc.Categories.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	err = svc.Categories.Delete(ctx, cats[0].ID)
	if !errors.Is(err, apperr.ErrDefaultCategory) {
		t.Fatalf("err = %v, want ErrDefaultCategory", err)
	}

	custom, err := svc.Categories.Create(ctx, model.Category{Name: "Baby", Color: "#ffc0cb", IsDefault: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if custom.IsDefault {
		t.Error("created categories must not be default")
	}
	if err := svc.Categories.Delete(ctx, custom.ID); err != nil {
		t.Errorf("delete custom: %v", err)
	}
}

func TestSettingsPartialMergeAndReset(t *testing.T) {
	ctx, svc := setupServices(t)

	theme := model.ThemeDark
	got, err := svc.Settings.Update(ctx, model.SettingsPatch{Theme: &theme})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Theme != model.ThemeDark || got.LowStockThreshold != 2 || got.ExpirationWarningDays != 7 {
		t.Errorf("merged = %+v", got)
	}

	got, err = svc.Settings.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got.Theme != model.ThemeSystem {
		t.Errorf("theme after reset = %q", got.Theme)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx, svc := setupServices(t)

	svc.Inventory.Create(ctx, model.InventoryItem{Name: "Rice", Quantity: 2, Location: model.LocationPantry})
	svc.Inventory.Create(ctx, model.InventoryItem{Name: "Peas", Quantity: 1, Location: model.LocationFreezer})
	svc.Shopping.Create(ctx, model.ShoppingListItem{Name: "Salt", Quantity: 1})
	svc.Categories.Create(ctx, model.Category{Name: "Spices", Color: "#a52"})

	snap, err := svc.Transfer.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if snap.ExportDate != "2026-04-10T09:00:00Z" {
		t.Errorf("export date = %q", snap.ExportDate)
	}

	_, empty := setupServices(t)
	if err := empty.Transfer.Import(ctx, snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	restored, err := empty.Transfer.Export(ctx)
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if len(restored.Inventory) != 2 || len(restored.Shopping) != 1 || len(restored.Categories) != 12 {
		t.Errorf("restored counts = %d/%d/%d, want 2/1/12",
			len(restored.Inventory), len(restored.Shopping), len(restored.Categories))
	}
}

func TestImportDerivesFlags(t *testing.T) {
	ctx, svc := setupServices(t)

	err := svc.Transfer.Import(ctx, model.Snapshot{
		Inventory: []model.InventoryItem{
			{ID: "flour", Name: "Flour", Quantity: 0, Location: model.LocationPantry},
		},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	flour, err := svc.Inventory.Get(ctx, "flour")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !flour.IsFinished || !flour.IsLow {
		t.Errorf("flags = low:%v finished:%v, want both set", flour.IsLow, flour.IsFinished)
	}
	low, err := svc.Inventory.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || low[0].ID != "flour" {
		t.Errorf("low stock = %+v, want flour", low)
	}
}

func TestListUsesCurrentThreshold(t *testing.T) {
	ctx, svc := setupServices(t)
	setThreshold(t, ctx, svc, 1)

	oats, err := svc.Inventory.Create(ctx, model.InventoryItem{Name: "Oats", Quantity: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if oats.IsLow {
		t.Fatal("oats should not start low")
	}

	setThreshold(t, ctx, svc, 4)
	low, err := svc.Inventory.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || !low[0].IsLow {
		t.Errorf("low stock = %+v, want oats flagged under the new threshold", low)
	}
	got, err := svc.Inventory.Get(ctx, oats.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsLow {
		t.Error("get should flag oats low under the new threshold")
	}
}

// lostAckInventory stores writes but reports the first as a transient failure,
// as when the connection drops after the commit.
type lostAckInventory struct {
	inventoryStore
	dropped bool
}

func (s *lostAckInventory) Create(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error) {
	created, err := s.inventoryStore.Create(ctx, item)
	if err == nil && !s.dropped {
		s.dropped = true
		return nil, &apperr.TransientStorageError{Op: "create inventory item", Err: errors.New("database is locked")}
	}
	return created, err
}

type lostAckShopping struct {
	shoppingStore
	dropped bool
}

func (s *lostAckShopping) Create(ctx context.Context, item model.ShoppingListItem) (*model.ShoppingListItem, error) {
	created, err := s.shoppingStore.Create(ctx, item)
	if err == nil && !s.dropped {
		s.dropped = true
		return nil, &apperr.TransientStorageError{Op: "create shopping item", Err: errors.New("database is locked")}
	}
	return created, err
}

func (s *lostAckShopping) CreateMany(ctx context.Context, items []model.ShoppingListItem) ([]model.ShoppingListItem, error) {
	created, err := s.shoppingStore.CreateMany(ctx, items)
	if err == nil && !s.dropped {
		s.dropped = true
		return nil, &apperr.TransientStorageError{Op: "create shopping items", Err: errors.New("database is locked")}
	}
	return created, err
}

func TestCreateRetryDoesNotDuplicate(t *testing.T) {
	ctx, svc := setupServices(t)
	svc.Inventory.items = &lostAckInventory{inventoryStore: svc.Inventory.items}
	svc.Shopping.items = &lostAckShopping{shoppingStore: svc.Shopping.items}

	rice, err := svc.Inventory.Create(ctx, model.InventoryItem{Name: "Rice", Quantity: 2})
	if err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	items, _ := svc.Inventory.List(ctx, model.InventoryQuery{})
	if len(items) != 1 || items[0].ID != rice.ID {
		t.Errorf("inventory = %+v, want only %s", items, rice.ID)
	}

	salt, err := svc.Shopping.Create(ctx, model.ShoppingListItem{Name: "Salt"})
	if err != nil {
		t.Fatalf("create shopping: %v", err)
	}
	entries, _ := svc.Shopping.List(ctx)
	if len(entries) != 1 || entries[0].ID != salt.ID {
		t.Errorf("shopping = %+v, want only %s", entries, salt.ID)
	}
}

func TestAddFromInventoryRetryReturnsStoredEntries(t *testing.T) {
	ctx, svc := setupServices(t)
	milk, _ := svc.Inventory.Create(ctx, model.InventoryItem{Name: "Milk", Quantity: 0, Location: model.LocationFridge})
	svc.Shopping.items = &lostAckShopping{shoppingStore: svc.Shopping.items}

	added, err := svc.Shopping.AddFromInventory(ctx, []model.InventoryItem{*milk})
	if err != nil {
		t.Fatalf("add from inventory: %v", err)
	}
	if len(added) != 1 || added[0].InventoryItemID == nil || *added[0].InventoryItemID != milk.ID {
		t.Fatalf("added = %+v, want the milk entry", added)
	}
	entries, _ := svc.Shopping.List(ctx)
	if len(entries) != 1 {
		t.Errorf("shopping = %d entries, want 1", len(entries))
	}
}

func TestRunnerRetriesTransientErrors(t *testing.T) {
	p := retry.Default()
	p.InitialDelay = time.Millisecond
	r := newRunner(Options{Policy: p})

	calls := 0
	got, err := value(context.Background(), r, "flaky", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &apperr.TransientStorageError{Op: "flaky", Err: errors.New("busy")}
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRunnerTimesOutAttempts(t *testing.T) {
	r := newRunner(Options{Policy: retry.None(), Timeout: 5 * time.Millisecond})

	err := r.do(context.Background(), "stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	var terr *apperr.TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
}
