package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

// testClient creates a registered Client backed by a real dispatcher but
// no connection; handle() only touches the send channel.
func testClient(t *testing.T, d *Dispatcher) *Client {
	t.Helper()
	hub := NewHub(slog.Default())
	c := &Client{
		hub:    hub,
		disp:   d,
		logger: slog.Default(),
		send:   make(chan []byte, sendBufferSize),
	}
	hub.Register(c)
	t.Cleanup(func() { hub.Unregister(c) })
	return c
}

func readResult(t *testing.T, c *Client) resultEnvelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env resultEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for response")
		return resultEnvelope{}
	}
}

func TestSubscribeStoresRequestID(t *testing.T) {
	d := setupDispatcher(t)
	c := testClient(t, d)

	c.handle(context.Background(), []byte(`{"id":7,"type":"subscribe"}`))

	env := readResult(t, c)
	if !env.Success {
		t.Fatalf("subscribe failed: %+v", env.Error)
	}
	if env.ID != 7 {
		t.Errorf("result id = %d, want 7", env.ID)
	}
	if got := c.subscriptionID.Load(); got != 7 {
		t.Errorf("subscription id = %d, want 7", got)
	}
}

func TestSubscribeRejectsNonPositiveID(t *testing.T) {
	d := setupDispatcher(t)
	c := testClient(t, d)

	c.handle(context.Background(), []byte(`{"id":0,"type":"subscribe"}`))

	env := readResult(t, c)
	if env.Success {
		t.Error("subscribe with id 0 should fail")
	}
	if c.subscriptionID.Load() != 0 {
		t.Error("rejected subscribe must not mark the client subscribed")
	}
}

func TestResponseSurvivesFullBuffer(t *testing.T) {
	d := setupDispatcher(t)
	c := testClient(t, d)

	// Fill the buffer with stale snapshot pushes.
	for i := 0; i < sendBufferSize; i++ {
		c.send <- []byte(`{}`)
	}

	done := make(chan struct{})
	go func() {
		c.handle(context.Background(), []byte(`{"id":9,"type":"get_data"}`))
		close(done)
	}()

	// The response must wait for a free slot, not get dropped.
	select {
	case <-done:
		t.Fatal("response should block on a full buffer, not drop")
	case <-time.After(50 * time.Millisecond):
	}

	for i := 0; i < sendBufferSize; i++ {
		<-c.send
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("response never sent after buffer drained")
	}

	env := readResult(t, c)
	if !env.Success || env.ID != 9 {
		t.Errorf("result = %+v, want success for request 9", env)
	}
}

func TestBlockedResponseReleasedByTeardown(t *testing.T) {
	d := setupDispatcher(t)
	c := testClient(t, d)

	for i := 0; i < sendBufferSize; i++ {
		c.send <- []byte(`{}`)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.handle(ctx, []byte(`{"id":3,"type":"get_data"}`))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancelled context should release the blocked response")
	}
}
