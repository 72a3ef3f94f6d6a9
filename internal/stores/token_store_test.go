package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestIssueValidateConsume(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewTokenStore(rdb, "prt")
	ctx := context.Background()

	token, err := store.Issue(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64", len(token))
	}

	userID, err := store.Validate(ctx, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("validate user = %q, want u1", userID)
	}

	userID, err = store.Consume(ctx, token)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("consume user = %q, want u1", userID)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewTokenStore(rdb, "prt")
	ctx := context.Background()

	token, err := store.Issue(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := store.Consume(ctx, token); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	if _, err := store.Consume(ctx, token); !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("second consume err = %v, want ErrTokenConsumed", err)
	}
	if _, err := store.Validate(ctx, token); !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("validate after consume err = %v, want ErrTokenConsumed", err)
	}
}

func TestConsumeUnknownToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewTokenStore(rdb, "prt")
	ctx := context.Background()

	if _, err := store.Consume(ctx, "deadbeef"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("err = %v, want ErrTokenNotFound", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewTokenStore(rdb, "prt")
	ctx := context.Background()

	token, err := store.Issue(ctx, "u1", time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := store.Validate(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("validate err = %v, want ErrTokenNotFound", err)
	}
	if _, err := store.Consume(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("consume err = %v, want ErrTokenNotFound", err)
	}
}

func TestRevokeAll(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewTokenStore(rdb, "prt")
	ctx := context.Background()

	first, err := store.Issue(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	second, err := store.Issue(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	other, err := store.Issue(ctx, "u2", time.Hour)
	if err != nil {
		t.Fatalf("issue other: %v", err)
	}

	if err := store.RevokeAll(ctx, "u1"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	for _, token := range []string{first, second} {
		if _, err := store.Validate(ctx, token); !errors.Is(err, ErrTokenNotFound) {
			t.Fatalf("validate revoked err = %v, want ErrTokenNotFound", err)
		}
	}

	// Another identity's tokens are untouched.
	if _, err := store.Validate(ctx, other); err != nil {
		t.Fatalf("validate unrelated: %v", err)
	}
}

func TestDistinctPrefixesAreDisjoint(t *testing.T) {
	_, rdb := newTestRedis(t)
	reset := NewTokenStore(rdb, "prt")
	verify := NewTokenStore(rdb, "evt")
	ctx := context.Background()

	token, err := reset.Issue(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := verify.Validate(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("cross-prefix validate err = %v, want ErrTokenNotFound", err)
	}
}
