package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gatekit/gatekit"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("userstore: redis unavailable")

const (
	userKeyPrefix  = "user:"
	nameIdxPrefix  = "user:by-name:"
	emailIdxPrefix = "user:by-email:"
	membershipSet  = "users"

	maxRetries = 4
)

// Users describes the Redis-backed account repository and its observable behavior.
// Users implements the gatekit UserProvider contract and may be shared by
// any number of goroutines after construction.
type Users struct {
	redis redis.UniversalClient
}

// NewUsers describes the new users operation and its observable behavior.
// NewUsers may return an error when input validation, dependency calls, or security checks fail.
func NewUsers(client redis.UniversalClient) *Users {
	return &Users{redis: client}
}

type userRecord struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Verified     bool      `json:"verified"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
}

func userKey(id string) string        { return userKeyPrefix + id }
func nameIdxKey(name string) string   { return nameIdxPrefix + strings.ToLower(name) }
func emailIdxKey(email string) string { return emailIdxPrefix + strings.ToLower(email) }

func toPublic(r userRecord) gatekit.UserRecord {
	return gatekit.UserRecord{
		UserID:       r.UserID,
		Username:     r.Username,
		FullName:     r.FullName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Verified:     r.Verified,
		Disabled:     r.Disabled,
		CreatedAt:    r.CreatedAt,
	}
}

// CreateUser stores a new account and claims its username and email index
// keys in one transaction. A lost race on either index fails with
// [gatekit.ErrAccountExists], same as a plain duplicate.
func (s *Users) CreateUser(ctx context.Context, input gatekit.CreateUserInput) (gatekit.UserRecord, error) {
	rec := userRecord{
		UserID:       uuid.NewString(),
		Username:     input.Username,
		FullName:     input.FullName,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return gatekit.UserRecord{}, fmt.Errorf("userstore: encode record: %w", err)
	}

	nameKey := nameIdxKey(rec.Username)
	emailKey := emailIdxKey(rec.Email)

	txn := func(tx *redis.Tx) error {
		taken, err := tx.Exists(ctx, nameKey, emailKey).Result()
		if err != nil {
			return err
		}
		if taken > 0 {
			return gatekit.ErrAccountExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(rec.UserID), payload, 0)
			pipe.Set(ctx, nameKey, rec.UserID, 0)
			pipe.Set(ctx, emailKey, rec.UserID, 0)
			pipe.SAdd(ctx, membershipSet, rec.UserID)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, txn, nameKey, emailKey)
		if err == nil {
			return toPublic(rec), nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, gatekit.ErrAccountExists) {
			return gatekit.UserRecord{}, gatekit.ErrAccountExists
		}
		return gatekit.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return gatekit.UserRecord{}, fmt.Errorf("%w: create transaction retries exhausted", ErrRedisUnavailable)
}

// GetUserByID describes the get user by id operation and its observable behavior.
// GetUserByID may return an error when input validation, dependency calls, or security checks fail.
func (s *Users) GetUserByID(ctx context.Context, userID string) (gatekit.UserRecord, error) {
	raw, err := s.redis.Get(ctx, userKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gatekit.UserRecord{}, gatekit.ErrUserNotFound
	}
	if err != nil {
		return gatekit.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return gatekit.UserRecord{}, fmt.Errorf("userstore: decode record %q: %w", userID, err)
	}
	return toPublic(rec), nil
}

// GetUserByUsername describes the get user by username operation and its observable behavior.
// GetUserByUsername may return an error when input validation, dependency calls, or security checks fail.
func (s *Users) GetUserByUsername(ctx context.Context, username string) (gatekit.UserRecord, error) {
	return s.getByIndex(ctx, nameIdxKey(username))
}

// GetUserByEmail describes the get user by email operation and its observable behavior.
// GetUserByEmail may return an error when input validation, dependency calls, or security checks fail.
func (s *Users) GetUserByEmail(ctx context.Context, email string) (gatekit.UserRecord, error) {
	return s.getByIndex(ctx, emailIdxKey(email))
}

func (s *Users) getByIndex(ctx context.Context, idxKey string) (gatekit.UserRecord, error) {
	id, err := s.redis.Get(ctx, idxKey).Result()
	if errors.Is(err, redis.Nil) {
		return gatekit.UserRecord{}, gatekit.ErrUserNotFound
	}
	if err != nil {
		return gatekit.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.GetUserByID(ctx, id)
}

// UpdatePasswordHash describes the update password hash operation and its observable behavior.
// UpdatePasswordHash may return an error when input validation, dependency calls, or security checks fail.
func (s *Users) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return s.mutate(ctx, userID, func(rec *userRecord) error {
		rec.PasswordHash = newHash
		return nil
	})
}

// MarkVerified describes the mark verified operation and its observable behavior.
// MarkVerified may return an error when input validation, dependency calls, or security checks fail.
func (s *Users) MarkVerified(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(rec *userRecord) error {
		rec.Verified = true
		return nil
	})
}

// UpdateProfile applies the non-nil fields of update. An email change
// moves the email index key, drops Verified back to false, and fails with
// [gatekit.ErrAccountExists] when the new address is already claimed.
func (s *Users) UpdateProfile(ctx context.Context, userID string, update gatekit.ProfileUpdate) (gatekit.UserRecord, error) {
	key := userKey(userID)
	var result userRecord

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return gatekit.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var rec userRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("userstore: decode record %q: %w", userID, err)
		}

		oldEmailKey := ""
		newEmailKey := ""
		if update.FullName != nil {
			rec.FullName = *update.FullName
		}
		if update.Email != nil && !strings.EqualFold(*update.Email, rec.Email) {
			newEmailKey = emailIdxKey(*update.Email)
			// The new index key must be under WATCH before the existence
			// check, or two accounts racing to the same address could
			// both see it free and both claim it.
			if err := tx.Watch(ctx, newEmailKey).Err(); err != nil {
				return err
			}
			taken, err := tx.Exists(ctx, newEmailKey).Result()
			if err != nil {
				return err
			}
			if taken > 0 {
				return gatekit.ErrAccountExists
			}
			oldEmailKey = emailIdxKey(rec.Email)
			rec.Email = *update.Email
			rec.Verified = false
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("userstore: encode record %q: %w", userID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if newEmailKey != "" {
				pipe.Set(ctx, newEmailKey, rec.UserID, 0)
				pipe.Del(ctx, oldEmailKey)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = rec
		return nil
	}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, txn, key)
		if err == nil {
			return toPublic(result), nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, gatekit.ErrUserNotFound) || errors.Is(err, gatekit.ErrAccountExists) {
			return gatekit.UserRecord{}, err
		}
		return gatekit.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return gatekit.UserRecord{}, fmt.Errorf("%w: profile transaction retries exhausted", ErrRedisUnavailable)
}

// Delete removes an account and all of its index keys. Deleting an
// unknown id fails with [gatekit.ErrUserNotFound].
func (s *Users) Delete(ctx context.Context, userID string) error {
	key := userKey(userID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return gatekit.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var rec userRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("userstore: decode record %q: %w", userID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, nameIdxKey(rec.Username), emailIdxKey(rec.Email))
			pipe.SRem(ctx, membershipSet, userID)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, gatekit.ErrUserNotFound) {
			return gatekit.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return fmt.Errorf("%w: delete transaction retries exhausted", ErrRedisUnavailable)
}

// ListIDs returns the ids of every stored account, in no particular
// order. Intended for operational tooling, not request paths.
func (s *Users) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, membershipSet).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

func (s *Users) mutate(ctx context.Context, userID string, fn func(rec *userRecord) error) error {
	key := userKey(userID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return gatekit.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var rec userRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("userstore: decode record %q: %w", userID, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("userstore: encode record %q: %w", userID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, gatekit.ErrUserNotFound) {
			return gatekit.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return fmt.Errorf("%w: mutate transaction retries exhausted", ErrRedisUnavailable)
}

// compile-time contract check
var _ gatekit.UserProvider = (*Users)(nil)
