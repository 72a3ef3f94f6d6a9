package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

const memoKeyPrefix = "cache:"

// MemoKey derives a deterministic cache key for a named computation and
// its arguments: `cache:<name>:<sha256(args)>`. The same name and argument
// values always map to the same key.
func MemoKey(name string, args ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(args, "\x1f")))
	return memoKeyPrefix + name + ":" + hex.EncodeToString(sum[:])
}

// Memoize wraps compute in a read-through cache on s. The returned
// function checks the derived key first and only runs compute on a miss,
// populating the entry before returning. Wrapping is explicit and composed
// at the call site; there is no implicit registry of wrapped functions.
//
// Concurrent misses for the same key may each run compute and each write
// the entry; last write wins. Callers needing single-flight de-duplication
// must layer it themselves.
func Memoize(s *Store, name string, ttl time.Duration, compute func(ctx context.Context, args ...string) ([]byte, error)) func(ctx context.Context, args ...string) ([]byte, error) {
	return func(ctx context.Context, args ...string) ([]byte, error) {
		key := MemoKey(name, args...)

		cached, err := s.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}

		result, err := compute(ctx, args...)
		if err != nil {
			return nil, err
		}

		if err := s.Put(ctx, key, result, ttl); err != nil {
			// The computation already succeeded; a failed cache fill must
			// not fail the call.
			return result, nil
		}
		return result, nil
	}
}

// Invalidate drops a memoized entry.
func Invalidate(ctx context.Context, s *Store, name string, args ...string) error {
	return s.Delete(ctx, MemoKey(name, args...))
}
