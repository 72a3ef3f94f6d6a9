package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBroadcaster(t *testing.T, cfg Config) *Broadcaster {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(slog.New(slog.DiscardHandler), rdb, cfg, nil)
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed message")
		return nil
	}
}

func TestRelayFansOutToAllClients(t *testing.T) {
	b := newTestBroadcaster(t, Config{})

	first := NewClient("c1", 4)
	second := NewClient("c2", 4)
	if err := b.Connect(first); err != nil {
		t.Fatalf("connect c1: %v", err)
	}
	if err := b.Connect(second); err != nil {
		t.Fatalf("connect c2: %v", err)
	}

	b.Relay([]byte("hello"))

	if got := recv(t, first); string(got) != "hello" {
		t.Fatalf("c1 got %q, want hello", got)
	}
	if got := recv(t, second); string(got) != "hello" {
		t.Fatalf("c2 got %q, want hello", got)
	}
}

func TestRelayPrunesStalledClient(t *testing.T) {
	b := newTestBroadcaster(t, Config{})

	stalled := NewClient("stalled", 1)
	healthy := NewClient("healthy", 4)
	if err := b.Connect(stalled); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := b.Connect(healthy); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Fill the stalled client's queue, then relay twice: the second relay
	// finds the queue full, prunes the client, and still delivers to the
	// healthy one.
	b.Relay([]byte("one"))
	b.Relay([]byte("two"))

	if got := recv(t, healthy); string(got) != "one" {
		t.Fatalf("healthy got %q, want one", got)
	}
	if got := recv(t, healthy); string(got) != "two" {
		t.Fatalf("healthy got %q, want two", got)
	}
	if b.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1 after prune", b.ClientCount())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	b := newTestBroadcaster(t, Config{})

	c := NewClient("c1", 4)
	if err := b.Connect(c); err != nil {
		t.Fatalf("connect: %v", err)
	}

	b.Disconnect("c1")
	b.Disconnect("c1")
	b.Disconnect("never-connected")

	if b.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0", b.ClientCount())
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("expected disconnected client to be signalled")
	}
}

func TestConnectEnforcesBound(t *testing.T) {
	b := newTestBroadcaster(t, Config{MaxClients: 2})

	if err := b.Connect(NewClient("c1", 1)); err != nil {
		t.Fatalf("connect c1: %v", err)
	}
	if err := b.Connect(NewClient("c2", 1)); err != nil {
		t.Fatalf("connect c2: %v", err)
	}
	if err := b.Connect(NewClient("c3", 1)); !errors.Is(err, ErrRegistryFull) {
		t.Fatalf("err = %v, want ErrRegistryFull", err)
	}

	// Freeing a slot admits a new client.
	b.Disconnect("c1")
	if err := b.Connect(NewClient("c3", 1)); err != nil {
		t.Fatalf("connect after free: %v", err)
	}
}

func TestPublishReachesLocalClientsThroughBus(t *testing.T) {
	b := newTestBroadcaster(t, Config{Channel: "chat"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	// Give the subscription a moment to establish before publishing.
	time.Sleep(50 * time.Millisecond)

	c := NewClient("c1", 4)
	if err := b.Connect(c); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := b.Publish(ctx, []byte("via-bus")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if got := recv(t, c); string(got) != "via-bus" {
		t.Fatalf("got %q, want via-bus", got)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancellation")
	}
}
