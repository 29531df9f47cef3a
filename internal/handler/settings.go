package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/state"
)

type SettingsHandler struct {
	settings *state.Settings
	logger   *slog.Logger
}

func NewSettingsHandler(settings *state.Settings, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: orDefault(logger)}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Current())
}

// Update merges the fields present in the body into the current settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if !decode(w, r, &patch) {
		return
	}
	s, err := h.settings.Update(r.Context(), patch)
	if err != nil {
		writeError(w, h.logger, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Reset(r.Context())
	if err != nil {
		writeError(w, h.logger, "reset settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
