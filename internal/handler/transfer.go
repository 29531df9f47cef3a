package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dukerupert/larder/internal/backup"
	"github.com/dukerupert/larder/internal/model"
)

// PassphraseHeader carries the export passphrase. Exports are sealed when
// it is set; imports need it to open a sealed file.
const PassphraseHeader = "X-Larder-Passphrase"

// Transfer exports the stored data and replaces it wholesale on import.
type Transfer interface {
	Export(ctx context.Context) (model.Snapshot, error)
	Import(ctx context.Context, snap model.Snapshot) error
}

type TransferHandler struct {
	transfer  Transfer
	exportDir string
	maxBytes  int64
	now       func() time.Time
	logger    *slog.Logger
}

func NewTransferHandler(transfer Transfer, exportDir string, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		transfer:  transfer,
		exportDir: exportDir,
		maxBytes:  maxBodyBytes,
		now:       time.Now,
		logger:    orDefault(logger),
	}
}

// Export returns the snapshot as a download, or with save=true writes it to
// the export directory and returns the path.
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	passphrase := r.Header.Get(PassphraseHeader)
	snap, err := h.transfer.Export(r.Context())
	if err != nil {
		writeError(w, h.logger, "export data", err)
		return
	}
	name := backup.FileName(h.now(), passphrase != "")

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		if h.exportDir == "" {
			writeMessage(w, http.StatusBadRequest, "no export directory configured")
			return
		}
		path := filepath.Join(h.exportDir, name)
		if err := backup.WriteFile(path, snap, passphrase); err != nil {
			writeError(w, h.logger, "write export file", err)
			return
		}
		h.logger.Info("export written", "path", path, "sealed", passphrase != "")
		writeJSON(w, http.StatusCreated, map[string]string{"path": path})
		return
	}

	data, err := backup.Encode(snap, passphrase)
	if err != nil {
		writeError(w, h.logger, "encode export", err)
		return
	}
	contentType := "application/json"
	if passphrase != "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type importResponse struct {
	Inventory  int `json:"inventory"`
	Shopping   int `json:"shopping"`
	Categories int `json:"categories"`
}

// Import replaces all stored data with the uploaded export.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxBytes+1))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if int64(len(data)) > h.maxBytes {
		writeMessage(w, http.StatusRequestEntityTooLarge, "export file too large")
		return
	}
	snap, err := backup.Decode(data, r.Header.Get(PassphraseHeader))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid export file: "+err.Error())
		return
	}
	if err := h.transfer.Import(r.Context(), snap); err != nil {
		writeError(w, h.logger, "import data", err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		Inventory:  len(snap.Inventory),
		Shopping:   len(snap.Shopping),
		Categories: len(snap.Categories),
	})
}
