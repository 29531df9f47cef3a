package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/testutil"
)

func setupSeededDB(t *testing.T) (context.Context, *InventoryStore, *ShoppingStore, *CategoryStore, *SettingsStore) {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ctx, NewInventoryStore(db), NewShoppingStore(db), NewCategoryStore(db), NewSettingsStore(db)
}

func TestSeedIsIdempotent(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := Seed(ctx, db); err != nil {
			t.Fatalf("seed #%d: %v", i+1, err)
		}
	}

	categories, err := NewCategoryStore(db).List(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 11 {
		t.Fatalf("expected 11 seed categories, got %d", len(categories))
	}
	names := make(map[string]bool)
	for _, c := range categories {
		if !c.IsDefault {
			t.Errorf("category %q should be default", c.Name)
		}
		names[c.Name] = true
	}
	for _, want := range []string{"Produce", "Dairy", "Meat & Seafood", "Personal Care", "Other"} {
		if !names[want] {
			t.Errorf("missing seed category %q", want)
		}
	}

	settings, err := NewSettingsStore(db).Get(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.LowStockThreshold != 2 || settings.ExpirationWarningDays != 7 {
		t.Errorf("settings = %+v, want defaults", settings)
	}
	if len(settings.PreferredUnits) != 6 {
		t.Errorf("preferred units = %v", settings.PreferredUnits)
	}
}

func TestInventoryCRUD(t *testing.T) {
	ctx, inv, _, _, _ := setupSeededDB(t)

	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	item, err := inv.Create(ctx, model.InventoryItem{
		Name:           "Eggs",
		Quantity:       2,
		Unit:           "pcs",
		Category:       "Dairy",
		Location:       model.LocationFridge,
		ExpirationDate: &exp,
		IsLow:          true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected generated id")
	}
	if item.CreatedAt.IsZero() || !item.CreatedAt.Equal(item.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", item.CreatedAt, item.UpdatedAt)
	}
	if item.PurchaseDate.IsZero() {
		t.Error("expected purchase date to default to now")
	}
	if item.ExpirationDate == nil || !item.ExpirationDate.Equal(exp) {
		t.Errorf("expiration = %v, want %v", item.ExpirationDate, exp)
	}
	if !item.IsLow || item.IsFinished {
		t.Errorf("flags = low:%v finished:%v", item.IsLow, item.IsFinished)
	}

	item.Quantity = 0
	item.IsFinished = true
	item.ExpirationDate = nil
	updated, err := inv.Update(ctx, *item)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Quantity != 0 || !updated.IsFinished || updated.ExpirationDate != nil {
		t.Errorf("updated = %+v", updated)
	}
	if updated.UpdatedAt.Before(item.UpdatedAt) {
		t.Error("updated_at should not move backwards")
	}

	if err := inv.Delete(ctx, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := inv.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
	if err := inv.Delete(ctx, item.ID); !apperr.IsNotFound(err) {
		t.Errorf("second delete err = %v, want NotFoundError", err)
	}
}

func TestInventoryValidation(t *testing.T) {
	ctx, inv, _, _, _ := setupSeededDB(t)

	cases := []model.InventoryItem{
		{Name: "", Quantity: 1, Location: model.LocationPantry},
		{Name: "Rice", Quantity: -1, Location: model.LocationPantry},
		{Name: "Rice", Quantity: 1, Location: "garage"},
	}
	for _, c := range cases {
		_, err := inv.Create(ctx, c)
		if !apperr.IsValidation(err) {
			t.Errorf("create %+v: err = %v, want ValidationError", c, err)
		}
		if apperr.IsRetryable(err) {
			t.Errorf("validation error must not be retryable")
		}
	}
}

func TestInventoryDuplicateID(t *testing.T) {
	ctx, inv, _, _, _ := setupSeededDB(t)

	item := model.InventoryItem{ID: "fixed-id", Name: "Rice", Quantity: 1, Location: model.LocationPantry}
	if _, err := inv.Create(ctx, item); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := inv.Create(ctx, item)
	if !errors.Is(err, apperr.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if !apperr.IsValidation(err) {
		t.Errorf("duplicate id should be a ValidationError")
	}
}

func TestInventoryListFilters(t *testing.T) {
	ctx, inv, _, _, _ := setupSeededDB(t)

	seed := []model.InventoryItem{
		{Name: "Milk", Quantity: 1, Category: "Dairy", Location: model.LocationFridge, IsLow: true},
		{Name: "Butter", Quantity: 0, Category: "Dairy", Location: model.LocationFridge, IsLow: true, IsFinished: true},
		{Name: "Flour", Quantity: 5, Category: "Pantry", Location: model.LocationPantry},
	}
	for _, item := range seed {
		if _, err := inv.Create(ctx, item); err != nil {
			t.Fatalf("create %s: %v", item.Name, err)
		}
	}

	tests := []struct {
		name  string
		query model.InventoryQuery
		want  []string
	}{
		{"all", model.InventoryQuery{}, []string{"Butter", "Flour", "Milk"}},
		{"fridge", model.InventoryQuery{Location: model.LocationFridge}, []string{"Butter", "Milk"}},
		{"category case-insensitive", model.InventoryQuery{Category: "dairy"}, []string{"Butter", "Milk"}},
		{"low", model.InventoryQuery{Status: model.StatusLow}, []string{"Butter", "Milk"}},
		{"finished", model.InventoryQuery{Status: model.StatusFinished}, []string{"Butter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := inv.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var got []string
			for _, it := range items {
				got = append(got, it.Name)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestShoppingToggleCompleted(t *testing.T) {
	ctx, _, shop, _, _ := setupSeededDB(t)

	item, err := shop.Create(ctx, model.ShoppingListItem{Name: "Eggs", Quantity: 12})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.IsCompleted || item.CompletedAt != nil {
		t.Fatalf("new item = %+v", item)
	}

	toggled, err := shop.ToggleCompleted(ctx, item.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.IsCompleted || toggled.CompletedAt == nil {
		t.Fatalf("after toggle = %+v", toggled)
	}

	toggled, err = shop.ToggleCompleted(ctx, item.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if toggled.IsCompleted {
		t.Error("expected not completed")
	}
	if toggled.CompletedAt != nil {
		t.Errorf("completedAt = %v, want nil", toggled.CompletedAt)
	}

	if _, err := shop.ToggleCompleted(ctx, "missing"); !apperr.IsNotFound(err) {
		t.Errorf("toggle missing: err = %v, want NotFoundError", err)
	}
}

func TestShoppingUpdateNormalizesCompletion(t *testing.T) {
	ctx, _, shop, _, _ := setupSeededDB(t)

	item, err := shop.Create(ctx, model.ShoppingListItem{Name: "Bread", Quantity: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	item.IsCompleted = true
	updated, err := shop.Update(ctx, *item)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Error("expected completedAt stamped by the store")
	}
}

func TestShoppingCreateManyAndClearCompleted(t *testing.T) {
	ctx, _, shop, _, _ := setupSeededDB(t)

	ref := "inv-1"
	created, err := shop.CreateMany(ctx, []model.ShoppingListItem{
		{Name: "Milk", Quantity: 1, InventoryItemID: &ref, FromInventory: true},
		{Name: "Bread", Quantity: 1, IsCompleted: true},
		{Name: "Apples", Quantity: 6},
	})
	if err != nil {
		t.Fatalf("create many: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created %d, want 3", len(created))
	}

	milk, err := shop.GetByID(ctx, created[0].ID)
	if err != nil || milk == nil {
		t.Fatalf("get milk: %v", err)
	}
	if !milk.FromInventory || milk.InventoryItemID == nil || *milk.InventoryItemID != ref {
		t.Errorf("milk back-reference = %+v", milk)
	}

	n, err := shop.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("clear completed: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d, want 1", n)
	}
	count, _ := shop.Count(ctx)
	if count != 2 {
		t.Errorf("remaining %d, want 2", count)
	}
}

func TestShoppingCreateManyIsAtomic(t *testing.T) {
	ctx, _, shop, _, _ := setupSeededDB(t)

	_, err := shop.CreateMany(ctx, []model.ShoppingListItem{
		{ID: "dup", Name: "Milk", Quantity: 1},
		{ID: "dup", Name: "Bread", Quantity: 1},
	})
	if !errors.Is(err, apperr.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if count, _ := shop.Count(ctx); count != 0 {
		t.Errorf("count = %d, want 0 after failed batch", count)
	}
}

func TestCategoryDelete(t *testing.T) {
	ctx, _, _, cats, _ := setupSeededDB(t)

	dairy, err := cats.GetByName(ctx, "dairy")
	if err != nil || dairy == nil {
		t.Fatalf("get dairy: %v", err)
	}
	err = cats.Delete(ctx, dairy.ID)
	if !errors.Is(err, apperr.ErrDefaultCategory) {
		t.Fatalf("delete default: err = %v, want ErrDefaultCategory", err)
	}
	if apperr.IsRetryable(err) {
		t.Error("default category error must be terminal")
	}
	if still, _ := cats.GetByID(ctx, dairy.ID); still == nil {
		t.Error("default category was removed")
	}

	custom, err := cats.Create(ctx, model.Category{Name: "Spices", Color: "#c0ffee", Icon: "pepper"})
	if err != nil {
		t.Fatalf("create custom: %v", err)
	}
	if custom.IsDefault {
		t.Error("custom category should not be default")
	}
	if err := cats.Delete(ctx, custom.ID); err != nil {
		t.Fatalf("delete custom: %v", err)
	}
	if gone, _ := cats.GetByID(ctx, custom.ID); gone != nil {
		t.Error("custom category still present")
	}
}

func TestCategoryValidation(t *testing.T) {
	ctx, _, _, cats, _ := setupSeededDB(t)

	if _, err := cats.Create(ctx, model.Category{Name: "Spices", Color: "red"}); !apperr.IsValidation(err) {
		t.Errorf("bad color: err = %v, want ValidationError", err)
	}
	if _, err := cats.Create(ctx, model.Category{Name: "PRODUCE", Color: "#fff"}); !apperr.IsValidation(err) {
		t.Errorf("duplicate name: err = %v, want ValidationError", err)
	}
}

func TestSettingsSaveAndReset(t *testing.T) {
	ctx, _, _, _, settings := setupSeededDB(t)

	s, err := settings.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s.LowStockThreshold = 5
	s.Theme = model.ThemeDark
	s.PreferredUnits = []string{"kg"}
	saved, err := settings.Save(ctx, s)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.LowStockThreshold != 5 || saved.Theme != model.ThemeDark || len(saved.PreferredUnits) != 1 {
		t.Errorf("saved = %+v", saved)
	}

	s.Theme = "neon"
	if _, err := settings.Save(ctx, s); !apperr.IsValidation(err) {
		t.Errorf("bad theme: err = %v, want ValidationError", err)
	}

	reset, err := settings.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.LowStockThreshold != 2 || reset.Theme != model.ThemeSystem {
		t.Errorf("reset = %+v", reset)
	}
}

func TestPendingStoreOrdering(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	ps := NewPendingStore(db)

	q := 1.0
	changes := []model.PendingChange{
		{QueuedAt: 30, Change: model.InventoryChange{Op: model.ActionDelete, ID: "a"}},
		{QueuedAt: 10, Change: model.InventoryChange{Op: model.ActionUpdate, ID: "a", Patch: &model.InventoryPatch{Quantity: &q}}},
		{QueuedAt: 20, Change: model.SettingsChange{Patch: model.SettingsPatch{LowStockThreshold: &q}}},
	}
	var seqs []int64
	for _, pc := range changes {
		stored, err := ps.Append(ctx, pc)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		seqs = append(seqs, stored[0].Seq)
	}

	list, err := ps.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []int64{10, 20, 30} {
		if list[i].QueuedAt != want {
			t.Errorf("list[%d].QueuedAt = %d, want %d", i, list[i].QueuedAt, want)
		}
	}
	if _, ok := list[1].Change.(model.SettingsChange); !ok {
		t.Errorf("list[1] = %T, want SettingsChange", list[1].Change)
	}

	latest, _ := ps.MaxQueuedAt(ctx)
	if latest != 30 {
		t.Errorf("max queued_at = %d, want 30", latest)
	}

	if err := ps.DeleteSeqs(ctx, seqs[:2]); err != nil {
		t.Fatalf("delete seqs: %v", err)
	}
	if n, _ := ps.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	_, err = ps.Append(ctx,
		model.PendingChange{QueuedAt: 40, Change: model.ShoppingChange{Op: model.ActionDelete, ID: "ok"}},
		model.PendingChange{QueuedAt: 41, Change: model.ShoppingChange{Op: model.ActionUpdate, ID: "x"}},
	)
	if err == nil {
		t.Error("expected invalid change to be rejected")
	}
	if n, _ := ps.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1 after rejected batch", n)
	}
}

func TestReplaceAll(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	inv := NewInventoryStore(db)
	if _, err := inv.Create(ctx, model.InventoryItem{Name: "Old", Quantity: 1, Location: model.LocationPantry}); err != nil {
		t.Fatalf("create: %v", err)
	}

	snap := model.Snapshot{
		Inventory: []model.InventoryItem{
			{ID: "i1", Name: "Rice", Quantity: 3, Location: model.LocationPantry},
			{ID: "i2", Name: "Peas", Quantity: 1, Location: model.LocationFreezer, IsLow: true},
		},
		Shopping:   []model.ShoppingListItem{{ID: "s1", Name: "Salt", Quantity: 1, IsCompleted: true}},
		Categories: []model.Category{{ID: "c1", Name: "Grains", Color: "#abc", IsDefault: true}},
	}
	if err := ReplaceAll(ctx, db, snap); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	if n, _ := inv.Count(ctx); n != 2 {
		t.Errorf("inventory count = %d, want 2", n)
	}
	salt, _ := NewShoppingStore(db).GetByID(ctx, "s1")
	if salt == nil || salt.CompletedAt == nil {
		t.Errorf("imported completed item = %+v, want completedAt stamped", salt)
	}
	cats, _ := NewCategoryStore(db).List(ctx)
	if len(cats) != 1 || cats[0].Name != "Grains" {
		t.Errorf("categories = %+v", cats)
	}
	if _, err := NewSettingsStore(db).Get(ctx); err != nil {
		t.Errorf("settings singleton missing after import: %v", err)
	}

	if err := ReplaceAll(ctx, db, model.Snapshot{}); err != nil {
		t.Fatalf("replace with empty: %v", err)
	}
	if n, _ := inv.Count(ctx); n != 0 {
		t.Errorf("inventory count = %d, want 0", n)
	}
	if n, _ := NewCategoryStore(db).Count(ctx); n != 11 {
		t.Errorf("categories = %d, want 11 reseeded defaults", n)
	}
}

func TestReplaceAllDerivesFlags(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	settings := model.DefaultSettings()
	settings.LowStockThreshold = 5
	err := ReplaceAll(ctx, db, model.Snapshot{
		Inventory: []model.InventoryItem{
			{ID: "empty", Name: "Flour", Quantity: 0, Location: model.LocationPantry},
			{ID: "some", Name: "Oats", Quantity: 4, Location: model.LocationPantry},
			{ID: "plenty", Name: "Rice", Quantity: 9, Location: model.LocationPantry, IsLow: true, IsFinished: true},
		},
		Settings: []model.UserSettings{settings},
	})
	if err != nil {
		t.Fatalf("replace all: %v", err)
	}

	inv := NewInventoryStore(db)
	tests := []struct {
		id       string
		low      bool
		finished bool
	}{
		{"empty", true, true},
		{"some", true, false},
		{"plenty", false, false},
	}
	for _, tt := range tests {
		item, err := inv.GetByID(ctx, tt.id)
		if err != nil || item == nil {
			t.Fatalf("get %s: %v", tt.id, err)
		}
		if item.IsLow != tt.low || item.IsFinished != tt.finished {
			t.Errorf("%s flags = low:%v finished:%v, want low:%v finished:%v",
				tt.id, item.IsLow, item.IsFinished, tt.low, tt.finished)
		}
	}

	low, err := inv.List(ctx, model.InventoryQuery{Status: model.StatusLow})
	if err != nil {
		t.Fatalf("list low: %v", err)
	}
	if len(low) != 2 {
		t.Errorf("low = %d items, want 2", len(low))
	}
}

func TestReplaceAllRejectsInvalidSnapshot(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := ReplaceAll(ctx, db, model.Snapshot{
		Inventory: []model.InventoryItem{{ID: "x", Name: "Bad", Quantity: -2, Location: model.LocationPantry}},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if n, _ := NewCategoryStore(db).Count(ctx); n != 11 {
		t.Errorf("existing data must survive a rejected import, categories = %d", n)
	}
}
