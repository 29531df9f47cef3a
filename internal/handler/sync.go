package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/websocket"
)

// Queue is the connectivity and replay surface of the pending change queue.
type Queue interface {
	Online() bool
	Connected() bool
	SetOnline(ctx context.Context, online bool) error
	Sync(ctx context.Context) (int, error)
	PeekAll(ctx context.Context) ([]model.PendingChange, error)
	Discard(ctx context.Context) (int, error)
}

// Containers is the aggregate view of the reactive containers.
type Containers interface {
	Load(ctx context.Context) error
	Loading() bool
	Err() error
	ClearErrors()
}

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

type SyncHandler struct {
	queue      Queue
	containers Containers
	hub        Broadcaster
	logger     *slog.Logger
}

func NewSyncHandler(queue Queue, containers Containers, hub Broadcaster, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{queue: queue, containers: containers, hub: hub, logger: orDefault(logger)}
}

type connectivityResponse struct {
	Connected   bool   `json:"connected"`
	Online      bool   `json:"online"`
	ReplayError string `json:"replayError,omitempty"`
}

func (h *SyncHandler) connectivity(replayErr error) connectivityResponse {
	return connectivityResponse{
		Connected:   h.queue.Connected(),
		Online:      h.queue.Online(),
		ReplayError: apperr.Message(replayErr),
	}
}

func (h *SyncHandler) announce() {
	if h.hub != nil {
		h.hub.Broadcast(websocket.ConnectivityMessage(h.queue.Online()))
	}
}

func (h *SyncHandler) GetConnectivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectivity(nil))
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

// SetConnectivity records a connectivity signal. A replay failure on
// reconnect leaves writes queued and is reported in the body rather than
// as an error status, since the signal itself was recorded.
func (h *SyncHandler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Online == nil {
		writeMessage(w, http.StatusBadRequest, "online is required")
		return
	}

	err := h.queue.SetOnline(r.Context(), *req.Online)
	if err != nil {
		h.logger.Warn("replay on reconnect failed", "error", err)
	}
	h.announce()
	writeJSON(w, http.StatusOK, h.connectivity(err))
}

type pendingChange struct {
	Seq      int64           `json:"seq"`
	QueuedAt int64           `json:"queuedAt"`
	Kind     model.Kind      `json:"kind"`
	Action   model.Action    `json:"action"`
	ID       string          `json:"id,omitempty"`
	Change   json.RawMessage `json:"change"`
}

// Pending lists the queued changes in replay order.
func (h *SyncHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pcs, err := h.queue.PeekAll(r.Context())
	if err != nil {
		writeError(w, h.logger, "list pending changes", err)
		return
	}
	out := make([]pendingChange, 0, len(pcs))
	for _, pc := range pcs {
		payload, err := model.EncodeChange(pc.Change)
		if err != nil {
			writeError(w, h.logger, "encode pending change", err)
			return
		}
		out = append(out, pendingChange{
			Seq:      pc.Seq,
			QueuedAt: pc.QueuedAt,
			Kind:     pc.Change.Kind(),
			Action:   pc.Change.Action(),
			ID:       pc.Change.TargetID(),
			Change:   payload,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Sync forces a replay of the queue while connected.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.Sync(r.Context())
	if err != nil {
		writeError(w, h.logger, "sync pending changes", err)
		return
	}
	h.announce()
	writeJSON(w, http.StatusOK, map[string]any{"replayed": n, "online": h.queue.Online()})
}

// Discard drops the queued changes and reloads the mirrors from the store.
func (h *SyncHandler) Discard(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.Discard(r.Context())
	if err != nil {
		writeError(w, h.logger, "discard pending changes", err)
		return
	}
	if err := h.containers.Load(r.Context()); err != nil {
		writeError(w, h.logger, "reload containers", err)
		return
	}
	h.announce()
	writeJSON(w, http.StatusOK, map[string]int{"discarded": n})
}

type statusResponse struct {
	Loading   bool   `json:"loading"`
	Error     string `json:"error,omitempty"`
	Connected bool   `json:"connected"`
	Online    bool   `json:"online"`
	Pending   int    `json:"pending"`
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	pcs, err := h.queue.PeekAll(r.Context())
	if err != nil {
		writeError(w, h.logger, "count pending changes", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Loading:   h.containers.Loading(),
		Error:     apperr.Message(h.containers.Err()),
		Connected: h.queue.Connected(),
		Online:    h.queue.Online(),
		Pending:   len(pcs),
	})
}

// ClearErrors resets the recorded error of every container.
func (h *SyncHandler) ClearErrors(w http.ResponseWriter, r *http.Request) {
	h.containers.ClearErrors()
	w.WriteHeader(http.StatusNoContent)
}
