package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/state"
)

type InventoryHandler struct {
	items  *state.Inventory
	logger *slog.Logger
}

func NewInventoryHandler(items *state.Inventory, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{items: items, logger: orDefault(logger)}
}

// List serves the mirror filtered by the location, category, status and q
// query parameters. Results are ordered by sort, else by search rank when q
// is set, else by name.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := model.InventoryQuery{
		Location: model.Location(qs.Get("location")),
		Category: qs.Get("category"),
		Status:   model.InventoryStatus(qs.Get("status")),
		Search:   strings.TrimSpace(qs.Get("q")),
	}
	if q.Location != "" && !q.Location.Valid() {
		writeMessage(w, http.StatusBadRequest, "invalid location")
		return
	}
	if q.Status != "" && !q.Status.Valid() {
		writeMessage(w, http.StatusBadRequest, "invalid status")
		return
	}

	items := h.items.Filter(q)
	switch sortBy := model.InventorySort(qs.Get("sort")); {
	case sortBy != "":
		items = model.SortInventory(items, sortBy)
	case q.Search == "":
		items = model.SortInventory(items, model.SortByName)
	}
	if items == nil {
		items = []model.InventoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var item model.InventoryItem
	if !decode(w, r, &item) {
		return
	}
	item.Name = strings.TrimSpace(item.Name)

	created, err := h.items.AddItem(r.Context(), item)
	if err != nil {
		writeError(w, h.logger, "create inventory item", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.InventoryPatch
	if !decode(w, r, &patch) {
		return
	}
	item, err := h.items.UpdateItem(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, h.logger, "update inventory item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type useRequest struct {
	Amount float64 `json:"amount"`
}

func (h *InventoryHandler) Use(w http.ResponseWriter, r *http.Request) {
	var req useRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.items.MarkAsUsed(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeError(w, h.logger, "mark inventory item used", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) Finish(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.MarkAsFinished(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "mark inventory item finished", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.items.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, "delete inventory item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
