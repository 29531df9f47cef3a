package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/state"
)

type CategoryHandler struct {
	categories *state.Categories
	logger     *slog.Logger
}

func NewCategoryHandler(categories *state.Categories, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: orDefault(logger)}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	cats := h.categories.Items()
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cat model.Category
	if !decode(w, r, &cat) {
		return
	}
	cat.Name = strings.TrimSpace(cat.Name)
	cat.IsDefault = false

	created, err := h.categories.Add(r.Context(), cat)
	if err != nil {
		writeError(w, h.logger, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
