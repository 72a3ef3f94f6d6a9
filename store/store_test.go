package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestPutGetRoundTrip(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k1", []byte("v1"), time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("get = %q, want v1", got)
	}
}

func TestGetAfterExpiry(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k1", []byte("v1"), time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(2 * time.Second)

	// An expired key reads exactly like one that was never written.
	if _, err := s.Get(ctx, "k1"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expired get err = %v, want ErrKeyNotFound", err)
	}
	if _, err := s.Get(ctx, "never-written"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("missing get err = %v, want ErrKeyNotFound", err)
	}
}

func TestPutOverwritesAndRefreshesTTL(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k1", []byte("old"), time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "k1", []byte("new"), 10*time.Second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	mr.FastForward(2 * time.Second)

	got, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("get = %q, want new", got)
	}
}

func TestUpdateMergesJSONValue(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "s1", []byte(`{"a":1}`), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	err := s.Update(ctx, "s1", time.Minute, func(current []byte) ([]byte, error) {
		var m map[string]int
		if err := json.Unmarshal(current, &m); err != nil {
			return nil, err
		}
		m["b"] = 2
		return json.Marshal(m)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var m map[string]int
	if err := json.Unmarshal(got, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["a"] != 1 || m["b"] != 2 {
		t.Fatalf("merged value = %v, want a:1 b:2", m)
	}
}

func TestUpdateMissingKeyGetsNilBaseline(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "fresh", time.Minute, func(current []byte) ([]byte, error) {
		if current != nil {
			t.Fatalf("baseline = %q, want nil", current)
		}
		return []byte("seeded"), nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(ctx, "fresh")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "seeded" {
		t.Fatalf("get = %q, want seeded", got)
	}
}

func TestUpdatePropagatesMutatorError(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("mutator refused")
	err := s.Update(ctx, "k1", time.Minute, func(current []byte) ([]byte, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want mutator sentinel", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestTTLReporting(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	ttl, err := s.TTL(ctx, "k1")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %v, want (0, 1m]", ttl)
	}

	if _, err := s.TTL(ctx, "absent"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("ttl absent err = %v, want ErrKeyNotFound", err)
	}
}
