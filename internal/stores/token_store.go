package stores

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenRecordVersionV1 = 1

	// tokenBytes yields 64 hex characters, comfortably above the 128-bit
	// entropy floor for single-use tokens.
	tokenBytes = 32
)

var (
	ErrTokenNotFound         = errors.New("token record not found")
	ErrTokenConsumed         = errors.New("token already consumed")
	ErrTokenRedisUnavailable = errors.New("token redis unavailable")
)

// TokenRecord is the stored state of one single-use token.
type TokenRecord struct {
	UserID    string
	ExpiresAt int64
	Consumed  bool
}

// TokenStore persists single-use tokens in Redis under a fixed prefix.
// Distinct flows (password reset, email verification) use distinct
// prefixes and therefore disjoint keyspaces.
type TokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewTokenStore(redisClient redis.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = "sut"
	}
	return &TokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *TokenStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + ":" + hex.EncodeToString(sum[:])
}

func (s *TokenStore) indexKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Issue generates a fresh opaque token for userID, stores its record with
// an absolute expiry computed now, and returns the token. The expiry is
// fixed at issuance; it is never re-evaluated against a relative clock.
func (s *TokenStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("token store: empty user id")
	}
	if ttl <= 0 {
		return "", errors.New("token store: non-positive ttl")
	}

	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)

	record := &TokenRecord{
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	encoded, err := encodeTokenRecord(record)
	if err != nil {
		return "", err
	}

	key := s.key(token)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, encoded, ttl)
		pipe.SAdd(ctx, s.indexKey(userID), key)
		pipe.Expire(ctx, s.indexKey(userID), ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	return token, nil
}

// Validate reports the owning user of a live token without consuming it.
func (s *TokenStore) Validate(ctx context.Context, token string) (string, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	record, err := decodeTokenRecord(data)
	if err != nil {
		return "", err
	}
	if record.Consumed {
		return "", ErrTokenConsumed
	}
	if time.Now().Unix() >= record.ExpiresAt {
		return "", ErrTokenNotFound
	}

	return record.UserID, nil
}

// Consume atomically validates the token and marks it consumed, returning
// the owning user ID. A second Consume of the same token fails with
// ErrTokenConsumed even when the calls race: the check and the mark commit
// in one WATCH/MULTI transaction, retried on contention.
func (s *TokenStore) Consume(ctx context.Context, token string) (string, error) {
	const maxRetries = 4
	key := s.key(token)

	for i := 0; i < maxRetries; i++ {
		var userID string

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeTokenRecord(data)
			if err != nil {
				return err
			}
			if record.Consumed {
				return ErrTokenConsumed
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrTokenNotFound
			}

			record.Consumed = true
			updated, err := encodeTokenRecord(record)
			if err != nil {
				return err
			}

			// The tombstone keeps its original expiry so replay detection
			// lasts exactly as long as the token would have.
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				pipe.SRem(ctx, s.indexKey(record.UserID), key)
				return nil
			})
			if err != nil {
				return err
			}

			userID = record.UserID
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return "", ErrTokenNotFound
			case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenConsumed):
				return "", err
			default:
				return "", fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
			}
		}

		return userID, nil
	}

	return "", ErrTokenNotFound
}

// RevokeAll deletes every outstanding token record for userID. Consumed
// tombstones are not tracked in the index and survive until expiry.
func (s *TokenStore) RevokeAll(ctx context.Context, userID string) error {
	index := s.indexKey(userID)

	keys, err := s.redis.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, index)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	return nil
}

func encodeTokenRecord(record *TokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersionV1)
	if record.Consumed {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("token record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*TokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersionV1 {
		return nil, errors.New("invalid token record version")
	}

	consumed, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &TokenRecord{Consumed: consumed == 1}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}
	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	return record, nil
}
