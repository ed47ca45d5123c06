package sync

import (
	"encoding/json"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/calebmorris/choreboard/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		logger: slog.Default(),
		send:   make(chan []byte, sendBufferSize),
	}
}

func testSnapshot(name string) *model.Snapshot {
	return &model.Snapshot{
		FamilyName:   name,
		Members:      []model.Member{},
		Templates:    []model.ChoreTemplate{},
		Chores:       []model.ChoreInstance{},
		Rewards:      []model.Reward{},
		RewardClaims: []model.RewardClaim{},
		Todos:        []model.TodoItem{},
		Events:       []model.CalendarEvent{},
		Settings:     map[string]string{},
	}
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

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastOnlyToSubscribers(t *testing.T) {
	hub := NewHub(slog.Default())

	subscribed := mockClient(hub)
	subscribed.subscriptionID.Store(7)
	unsubscribed := mockClient(hub)

	hub.Register(subscribed)
	hub.Register(unsubscribed)

	hub.BroadcastSnapshot(testSnapshot("Testers"))

	select {
	case data := <-subscribed.send:
		var env eventEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.ID != 7 {
			t.Errorf("event id = %d, want subscription id 7", env.ID)
		}
		if env.Type != "event" {
			t.Errorf("type = %q, want event", env.Type)
		}
		var snap model.Snapshot
		if err := json.Unmarshal(env.Event.Data, &snap); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		if snap.FamilyName != "Testers" {
			t.Errorf("family_name = %q, want Testers", snap.FamilyName)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	select {
	case <-unsubscribed.send:
		t.Fatal("unsubscribed client should receive nothing")
	default:
	}

	hub.Unregister(subscribed)
	hub.Unregister(unsubscribed)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.BroadcastSnapshot(testSnapshot("Nobody"))
}

func TestBroadcastFullBufferDrops(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	c.subscriptionID.Store(1)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.BroadcastSnapshot(testSnapshot("fill"))
	}

	// This push drops rather than blocking the mutation path.
	done := make(chan struct{})
	go func() {
		hub.BroadcastSnapshot(testSnapshot("dropped"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on full buffer")
	}

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			if count != sendBufferSize {
				t.Errorf("expected %d buffered events, got %d", sendBufferSize, count)
			}
			hub.Unregister(c)
			return
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg gosync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			c.subscriptionID.Store(1)
			hub.Register(c)
			hub.BroadcastSnapshot(testSnapshot("concurrent"))
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
