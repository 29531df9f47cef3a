package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/state"
)

type ShoppingHandler struct {
	items     *state.Shopping
	inventory *state.Inventory
	logger    *slog.Logger
}

func NewShoppingHandler(items *state.Shopping, inventory *state.Inventory, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{items: items, inventory: inventory, logger: orDefault(logger)}
}

// List serves the whole list, or only the pending or completed half when the
// filter query parameter says so.
func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	var items []model.ShoppingListItem
	switch r.URL.Query().Get("filter") {
	case "", "all":
		items = h.items.Items()
	case "pending":
		items = h.items.Pending()
	case "completed":
		items = h.items.Completed()
	default:
		writeMessage(w, http.StatusBadRequest, "invalid filter")
		return
	}
	if items == nil {
		items = []model.ShoppingListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ShoppingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var item model.ShoppingListItem
	if !decode(w, r, &item) {
		return
	}
	item.Name = strings.TrimSpace(item.Name)

	created, err := h.items.AddItem(r.Context(), item)
	if err != nil {
		writeError(w, h.logger, "create shopping item", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ShoppingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.ShoppingPatch
	if !decode(w, r, &patch) {
		return
	}
	item, err := h.items.UpdateItem(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, h.logger, "update shopping item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ShoppingHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.ToggleCompleted(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "toggle shopping item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ShoppingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.items.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, "delete shopping item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FromLowStock lists every low-stock inventory item that is not already
// pending on the list.
func (h *ShoppingHandler) FromLowStock(w http.ResponseWriter, r *http.Request) {
	added, err := h.items.AddFromInventory(r.Context(), h.inventory.LowStock())
	if err != nil {
		writeError(w, h.logger, "add low stock items", err)
		return
	}
	if added == nil {
		added = []model.ShoppingListItem{}
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *ShoppingHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := h.items.ClearCompleted(r.Context())
	if err != nil {
		writeError(w, h.logger, "clear completed items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}
