package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const sessionKeyPrefix = "session:"

// ErrSessionNotFound is returned when a session is absent or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the stored payload of one session entry.
type Session struct {
	UserID    string            `json:"user_id"`
	CreatedAt time.Time         `json:"created_at"`
	Data      map[string]string `json:"data"`
}

// Sessions manages `session:<id>` entries on top of [Store].
//
// Sessions instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Sessions struct {
	store *Store
	ttl   time.Duration
}

// NewSessions describes the newsessions operation and its observable behavior.
//
// NewSessions may return an error when input validation, dependency calls, or security checks fail.
// NewSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewSessions(s *Store, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sessions{store: s, ttl: ttl}
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Sessions) Create(ctx context.Context, userID string, data map[string]string) (string, error) {
	if data == nil {
		data = map[string]string{}
	}
	session := Session{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}

	encoded, err := json.Marshal(session)
	if err != nil {
		return "", err
	}

	sessionID := uuid.NewString()
	if err := m.store.Put(ctx, sessionKeyPrefix+sessionID, encoded, m.ttl); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks fail.
// Get does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Sessions) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := m.store.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Update merges patch into the session's data map and refreshes the TTL.
// Fields not named in patch are preserved. The merge runs under the
// store's conditional-write transaction, so concurrent updates to the same
// session cannot silently drop each other's keys.
func (m *Sessions) Update(ctx context.Context, sessionID string, patch map[string]string) error {
	return m.store.Update(ctx, sessionKeyPrefix+sessionID, m.ttl, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, ErrSessionNotFound
		}

		var session Session
		if err := json.Unmarshal(current, &session); err != nil {
			return nil, err
		}
		if session.Data == nil {
			session.Data = map[string]string{}
		}
		for k, v := range patch {
			session.Data[k] = v
		}
		return json.Marshal(session)
	})
}

// Delete describes the delete operation and its observable behavior.
//
// Delete may return an error when input validation, dependency calls, or security checks fail.
// Delete does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Sessions) Delete(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionKeyPrefix+sessionID)
}
