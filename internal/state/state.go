// Package state holds the in-memory mirrors of the entity store that the UI
// reads from. Every mutation is applied to the mirror first, then written
// through the service layer (or queued while offline); a failed write puts
// the mirror back exactly as it was before the mutation.
//
// Mirrors are copy-on-write slices: a mutation builds a new slice and never
// touches the old one, so taking a snapshot and restoring it are pointer
// copies.
package state

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/larder/internal/apperr"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/search"
)

// Phase is the stage of a mutation an Event reports.
type Phase string

const (
	PhaseOptimistic Phase = "optimistic"
	PhaseConfirmed  Phase = "confirmed"
	PhaseQueued     Phase = "queued"
	PhaseRolledBack Phase = "rolled_back"
	PhaseLoaded     Phase = "loaded"
)

// Entity names used in events.
const (
	EntityInventory = "inventory"
	EntityShopping  = "shopping"
	EntityCategory  = "category"
	EntitySettings  = "settings"
)

// Event describes a change of a container's mirror.
type Event struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Phase  Phase  `json:"phase"`
}

type Listener func(Event)

// Outbox receives the changes made while offline.
type Outbox interface {
	Online() bool
	Enqueue(ctx context.Context, changes ...model.Change) error
}

// SettingsSource supplies the settings the inventory mirror derives flags
// and expiry windows from.
type SettingsSource interface {
	Current() model.UserSettings
}

// Options are shared by every container constructor. A nil Outbox means the
// container is always online.
type Options struct {
	Outbox  Outbox
	Matcher search.Matcher
	Logger  *slog.Logger
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Matcher == nil {
		o.Matcher = search.Subsequence{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

func (o Options) online() bool {
	return o.Outbox == nil || o.Outbox.Online()
}

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]Listener
}

func (l *listeners) subscribe(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]Listener)
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) publish(e Event) {
	l.mu.Lock()
	fns := make([]Listener, 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

// status is the loading and error state every container exposes.
type status struct {
	mu      sync.RWMutex
	loading bool
	err     error
}

func (s *status) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the most recent failure, kept until ClearError.
func (s *status) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ErrorMessage returns the user-facing text of Err, or "".
func (s *status) ErrorMessage() string {
	return apperr.Message(s.Err())
}

func (s *status) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

func (s *status) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *status) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// collection is the mirror shared by the list-shaped containers.
type collection[T any] struct {
	status
	entity string
	idOf   func(T) string
	opts   Options
	subs   listeners

	// opMu serializes mutations and loads; mu guards items.
	opMu  sync.Mutex
	mu    sync.RWMutex
	items []T
}

func newCollection[T any](entity string, idOf func(T) string, opts Options) *collection[T] {
	return &collection[T]{entity: entity, idOf: idOf, opts: opts.withDefaults()}
}

// Subscribe registers fn for every event and returns its cancel func.
// Listeners run after the container's locks are released.
func (c *collection[T]) Subscribe(fn Listener) func() {
	return c.subs.subscribe(fn)
}

// snapshot returns the current mirror. Callers must not modify it.
func (c *collection[T]) snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

// Items returns a copy of the mirror.
func (c *collection[T]) Items() []T {
	return slices.Clone(c.snapshot())
}

func (c *collection[T]) Len() int {
	return len(c.snapshot())
}

func (c *collection[T]) Get(id string) (T, bool) {
	return find(c.snapshot(), c.idOf, id)
}

func (c *collection[T]) load(ctx context.Context, fetch func(ctx context.Context) ([]T, error)) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.setLoading(true)
	items, err := fetch(ctx)
	c.setLoading(false)
	if err != nil {
		c.fail(err)
		c.opts.Logger.Error("load mirror", "entity", c.entity, "error", err)
		return err
	}

	c.mu.Lock()
	c.items = slices.Clip(items)
	c.mu.Unlock()
	c.subs.publish(Event{Entity: c.entity, Action: "load", Phase: PhaseLoaded})
	return nil
}

// mutation is one optimistic change. apply computes the optimistic mirror
// from the current one and may refuse with an error; a nil apply leaves the
// mirror alone until commit succeeds. commit performs the write (or queues
// it) and may return a transform applied to the mirror on success.
type mutation[T any] struct {
	action string
	id     string
	queued bool
	apply  func(items []T) ([]T, error)
	commit func(ctx context.Context) (func(items []T) []T, error)
}

// run drives m through Idle -> Applying -> Confirmed | RolledBack.
func (c *collection[T]) run(ctx context.Context, m mutation[T]) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	before := c.items
	if m.apply != nil {
		next, err := m.apply(before)
		if err != nil {
			c.mu.Unlock()
			c.fail(err)
			return err
		}
		c.items = next
	}
	c.mu.Unlock()

	if m.apply != nil {
		c.subs.publish(Event{Entity: c.entity, Action: m.action, ID: m.id, Phase: PhaseOptimistic})
	}

	confirm, err := m.commit(ctx)
	if err != nil {
		c.mu.Lock()
		c.items = before
		c.mu.Unlock()
		c.fail(err)
		c.opts.Logger.Warn("mutation rolled back", "entity", c.entity, "action", m.action, "id", m.id, "error", err)
		c.subs.publish(Event{Entity: c.entity, Action: m.action, ID: m.id, Phase: PhaseRolledBack})
		return err
	}

	if confirm != nil {
		c.mu.Lock()
		c.items = confirm(c.items)
		c.mu.Unlock()
	}
	phase := PhaseConfirmed
	if m.queued {
		phase = PhaseQueued
	}
	c.subs.publish(Event{Entity: c.entity, Action: m.action, ID: m.id, Phase: phase})
	return nil
}

func find[T any](items []T, idOf func(T) string, id string) (T, bool) {
	for _, item := range items {
		if idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// upsert returns a new slice with item replacing the entry of the same id,
// or appended when there is none.
func upsert[T any](items []T, idOf func(T) string, item T) []T {
	id := idOf(item)
	for i := range items {
		if idOf(items[i]) == id {
			next := slices.Clone(items)
			next[i] = item
			return next
		}
	}
	next := make([]T, len(items), len(items)+1)
	copy(next, items)
	return append(next, item)
}

// without returns a new slice lacking the entries keep rejects.
func without[T any](items []T, drop func(T) bool) []T {
	next := make([]T, 0, len(items))
	for _, item := range items {
		if !drop(item) {
			next = append(next, item)
		}
	}
	return next
}

func has[T any](items []T, idOf func(T) string, id string) bool {
	_, ok := find(items, idOf, id)
	return ok
}
