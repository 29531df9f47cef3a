// Package offline keeps the log of changes made while disconnected and
// replays it, in queue order, when connectivity returns.
package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
)

// ErrOffline is returned by Sync while disconnected.
var ErrOffline = errors.New("offline: not connected")

type InventoryReplayer interface {
	Replay(ctx context.Context, ch model.InventoryChange) error
}

type ShoppingReplayer interface {
	Replay(ctx context.Context, ch model.ShoppingChange) error
}

type SettingsReplayer interface {
	Replay(ctx context.Context, ch model.SettingsChange) error
}

// Replayers routes each kind of queued change to the container that owns it.
type Replayers struct {
	Inventory InventoryReplayer
	Shopping  ShoppingReplayer
	Settings  SettingsReplayer
}

type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Queue is the durable pending-change log. It starts disconnected; writes go
// straight through only once connected and fully drained.
type Queue struct {
	pending *store.PendingStore
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	connected bool
	online    bool
	last      int64
	replayers Replayers

	replayMu sync.Mutex
}

// New creates a queue over pending, continuing the timestamps of entries left
// by a previous session.
func New(ctx context.Context, pending *store.PendingStore, opts Options) (*Queue, error) {
	last, err := pending.MaxQueuedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("open pending queue: %w", err)
	}
	q := &Queue{pending: pending, logger: opts.Logger, now: opts.Now, last: last}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	if q.now == nil {
		q.now = time.Now
	}
	return q, nil
}

// SetReplayers sets the replay targets. Containers are built with the queue
// as their outbox, so this runs after construction.
func (q *Queue) SetReplayers(r Replayers) {
	q.mu.Lock()
	q.replayers = r
	q.mu.Unlock()
}

// Online reports whether mutations should be written directly: connected
// and with nothing left to replay.
func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// Connected reports the last connectivity signal.
func (q *Queue) Connected() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.connected
}

// Enqueue appends changes to the log atomically, stamped in call order.
func (q *Queue) Enqueue(ctx context.Context, changes ...model.Change) error {
	if len(changes) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	pcs := make([]model.PendingChange, len(changes))
	last := q.last
	for i, ch := range changes {
		last = max(q.now().UnixNano(), last+1)
		pcs[i] = model.PendingChange{QueuedAt: last, Change: ch}
	}
	if _, err := q.pending.Append(ctx, pcs...); err != nil {
		return fmt.Errorf("enqueue changes: %w", err)
	}
	q.last = last
	q.logger.Debug("queued changes", "count", len(pcs))
	return nil
}

// PeekAll returns the queued changes in replay order without removing them.
func (q *Queue) PeekAll(ctx context.Context) ([]model.PendingChange, error) {
	return q.pending.List(ctx)
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.pending.Count(ctx)
}

// ReplayAndClear replays every queued change in order, one at a time, and
// removes them once all have succeeded. On the first failure the whole log
// is kept and the error returned.
func (q *Queue) ReplayAndClear(ctx context.Context) (int, error) {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()
	return q.replay(ctx)
}

func (q *Queue) replay(ctx context.Context) (int, error) {
	pcs, err := q.pending.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("read pending changes: %w", err)
	}
	if len(pcs) == 0 {
		return 0, nil
	}

	q.mu.Lock()
	r := q.replayers
	q.mu.Unlock()

	seqs := make([]int64, 0, len(pcs))
	for _, pc := range pcs {
		if err := dispatch(ctx, r, pc.Change); err != nil {
			q.logger.Warn("replay aborted", "seq", pc.Seq, "kind", pc.Change.Kind(), "action", pc.Change.Action(), "id", pc.Change.TargetID(), "error", err)
			return 0, fmt.Errorf("replay %s %s %q: %w", pc.Change.Kind(), pc.Change.Action(), pc.Change.TargetID(), err)
		}
		seqs = append(seqs, pc.Seq)
	}
	if err := q.pending.DeleteSeqs(ctx, seqs); err != nil {
		return 0, fmt.Errorf("clear replayed changes: %w", err)
	}
	q.logger.Info("replayed pending changes", "count", len(seqs))
	return len(seqs), nil
}

func dispatch(ctx context.Context, r Replayers, ch model.Change) error {
	switch c := ch.(type) {
	case model.InventoryChange:
		if r.Inventory == nil {
			return errors.New("no inventory replayer")
		}
		return r.Inventory.Replay(ctx, c)
	case model.ShoppingChange:
		if r.Shopping == nil {
			return errors.New("no shopping replayer")
		}
		return r.Shopping.Replay(ctx, c)
	case model.SettingsChange:
		if r.Settings == nil {
			return errors.New("no settings replayer")
		}
		return r.Settings.Replay(ctx, c)
	default:
		return fmt.Errorf("unknown change type %T", ch)
	}
}

// drain replays until the log is empty, then switches writes to direct.
// Changes queued while a replay runs are picked up by the next round.
func (q *Queue) drain(ctx context.Context) (int, error) {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	total := 0
	for {
		n, err := q.replay(ctx)
		total += n
		if err != nil {
			return total, err
		}

		q.mu.Lock()
		if !q.connected {
			q.mu.Unlock()
			return total, nil
		}
		left, err := q.pending.Count(ctx)
		if err == nil && left == 0 {
			q.online = true
		}
		q.mu.Unlock()
		if err != nil {
			return total, fmt.Errorf("count pending changes: %w", err)
		}
		if left == 0 {
			return total, nil
		}
	}
}

// SetOnline records a connectivity signal. Going from offline to online
// replays the log; going offline routes new mutations to the log.
func (q *Queue) SetOnline(ctx context.Context, online bool) error {
	q.mu.Lock()
	was := q.connected
	q.connected = online
	if !online {
		q.online = false
	}
	q.mu.Unlock()

	if !online {
		if was {
			q.logger.Info("connectivity lost, queueing changes")
		}
		return nil
	}
	if was {
		return nil
	}
	q.logger.Info("connectivity restored, replaying queue")
	_, err := q.drain(ctx)
	return err
}

// Discard drops every queued change without replaying it. The caller is
// expected to reload the mirrors, which still show the discarded changes.
func (q *Queue) Discard(ctx context.Context) (int, error) {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	n, err := q.pending.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending changes: %w", err)
	}
	if err := q.pending.Clear(ctx); err != nil {
		return 0, fmt.Errorf("discard pending changes: %w", err)
	}
	q.mu.Lock()
	if q.connected {
		q.online = true
	}
	q.mu.Unlock()
	q.logger.Warn("discarded pending changes", "count", n)
	return n, nil
}

// Refresh re-reads the log after it was rewritten outside the queue, as an
// import does, and goes online when connected with nothing left to replay.
func (q *Queue) Refresh(ctx context.Context) error {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	n, err := q.pending.Count(ctx)
	if err != nil {
		return fmt.Errorf("count pending changes: %w", err)
	}
	q.mu.Lock()
	q.online = q.connected && n == 0
	q.mu.Unlock()
	return nil
}

// Sync forces a replay while connected, e.g. after a failed automatic one.
func (q *Queue) Sync(ctx context.Context) (int, error) {
	if !q.Connected() {
		return 0, ErrOffline
	}
	return q.drain(ctx)
}
