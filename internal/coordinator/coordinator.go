// Package coordinator owns the four containers as a unit: it loads them in
// parallel at startup, reloads the inventory mirror when the settings or
// categories it depends on change, and forwards container events to a sink.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/state"
)

// Transfer exports and wholesale-replaces the stored data.
type Transfer interface {
	Export(ctx context.Context) (model.Snapshot, error)
	Import(ctx context.Context, snap model.Snapshot) error
}

// Outbox is the offline queue. An import rewrites its log behind its back.
type Outbox interface {
	Refresh(ctx context.Context) error
}

type Coordinator struct {
	Inventory  *state.Inventory
	Shopping   *state.Shopping
	Categories *state.Categories
	Settings   *state.Settings

	transfer Transfer
	outbox   Outbox
	sink     func(state.Event)
	logger   *slog.Logger

	mu      sync.RWMutex
	cancels []func()
	watched model.UserSettings
	reload  chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

type Options struct {
	// Sink receives every container event, e.g. to broadcast it.
	Sink   func(state.Event)
	Outbox Outbox
	Logger *slog.Logger
}

func New(inv *state.Inventory, shop *state.Shopping, cats *state.Categories, settings *state.Settings, transfer Transfer, opts Options) *Coordinator {
	c := &Coordinator{
		Inventory:  inv,
		Shopping:   shop,
		Categories: cats,
		Settings:   settings,
		transfer:   transfer,
		outbox:     opts.Outbox,
		sink:       opts.Sink,
		logger:     opts.Logger,
		reload:     make(chan struct{}, 1),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Load fills every container from the store concurrently.
func (c *Coordinator) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Settings.Load(ctx) })
	g.Go(func() error { return c.Categories.Load(ctx) })
	g.Go(func() error { return c.Inventory.Load(ctx) })
	g.Go(func() error { return c.Shopping.Load(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load containers: %w", err)
	}

	c.mu.Lock()
	c.watched = c.Settings.Current()
	c.mu.Unlock()
	return nil
}

// Start subscribes to the containers and runs the reload loop until ctx is
// cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.watched = c.Settings.Current()
	c.cancels = []func(){
		c.Inventory.Subscribe(c.forward),
		c.Shopping.Subscribe(c.forward),
		c.Categories.Subscribe(c.onCategory),
		c.Settings.Subscribe(c.onSettings),
	}
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.reload:
				if err := c.Inventory.Load(ctx); err != nil && ctx.Err() == nil {
					c.logger.Error("reload inventory", "error", err)
				}
			}
		}
	}()
}

// Stop unsubscribes and waits for the reload loop to exit.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	for _, fn := range cancels {
		fn()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Coordinator) forward(e state.Event) {
	if c.sink != nil {
		c.sink(e)
	}
}

func (c *Coordinator) requestReload() {
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

func (c *Coordinator) onCategory(e state.Event) {
	c.forward(e)
	if e.Phase == state.PhaseConfirmed {
		c.requestReload()
	}
}

func (c *Coordinator) onSettings(e state.Event) {
	c.forward(e)
	if e.Phase != state.PhaseConfirmed {
		return
	}
	cur := c.Settings.Current()
	c.mu.Lock()
	changed := cur.LowStockThreshold != c.watched.LowStockThreshold ||
		cur.ExpirationWarningDays != c.watched.ExpirationWarningDays
	c.watched = cur
	c.mu.Unlock()
	if changed {
		c.requestReload()
	}
}

// Loading reports whether any container is loading.
func (c *Coordinator) Loading() bool {
	return c.Inventory.Loading() || c.Shopping.Loading() || c.Categories.Loading() || c.Settings.Loading()
}

// Err joins the recorded errors of every container.
func (c *Coordinator) Err() error {
	return errors.Join(c.Inventory.Err(), c.Shopping.Err(), c.Categories.Err(), c.Settings.Err())
}

func (c *Coordinator) ClearErrors() {
	c.Inventory.ClearError()
	c.Shopping.ClearError()
	c.Categories.ClearError()
	c.Settings.ClearError()
}

func (c *Coordinator) Export(ctx context.Context) (model.Snapshot, error) {
	return c.transfer.Export(ctx)
}

// Import replaces all stored data with snap, drops the offline log with it
// and reloads every container.
func (c *Coordinator) Import(ctx context.Context, snap model.Snapshot) error {
	if err := c.transfer.Import(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	if c.outbox != nil {
		if err := c.outbox.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh offline queue: %w", err)
		}
	}
	return c.Load(ctx)
}
