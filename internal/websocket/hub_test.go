package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/state"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{hub: hub, send: make(chan []byte, sendBufferSize)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestPublishEvent(t *testing.T) {
	hub := NewHub(slog.Default())
	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)
	defer hub.Unregister(c1)
	defer hub.Unregister(c2)

	hub.Publish(state.Event{Entity: state.EntityInventory, Action: "update", ID: "rice", Phase: state.PhaseConfirmed})

	for _, c := range []*Client{c1, c2} {
		got := receive(t, c)
		if got.Type != "inventory_update" {
			t.Errorf("type = %q, want inventory_update", got.Type)
		}
		if got.ID != "rice" || got.Phase != "confirmed" {
			t.Errorf("message = %+v", got)
		}
	}
}

func TestPublishSkipsOptimisticEvents(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Publish(state.Event{Entity: state.EntityShopping, Action: "update", Phase: state.PhaseOptimistic})
	hub.Publish(state.Event{Entity: state.EntityShopping, Action: "update", Phase: state.PhaseRolledBack})

	if got := receive(t, c); got.Phase != "rolled_back" {
		t.Errorf("first message phase = %q, want rolled_back", got.Phase)
	}
	select {
	case <-c.send:
		t.Error("unexpected extra message")
	default:
	}
}

func TestConnectivityMessage(t *testing.T) {
	msg := ConnectivityMessage(true)
	if msg.Type != "connectivity_online" || msg.Online == nil || !*msg.Online {
		t.Errorf("message = %+v", msg)
	}
	if off := ConnectivityMessage(false); off.Action != "offline" || *off.Online {
		t.Errorf("message = %+v", off)
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	defer hub.Unregister(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(ConnectivityMessage(true))
	}
	hub.Broadcast(ConnectivityMessage(false))

	if got := hub.Dropped(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Publish(state.Event{Entity: state.EntityCategory, Action: "create", Phase: state.PhaseConfirmed})
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
