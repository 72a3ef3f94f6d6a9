package gatekit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
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

type mockUserProvider struct {
	mu    sync.Mutex
	users map[string]UserRecord // by user id
	nexts int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{users: map[string]UserRecord{}}
}

func (p *mockUserProvider) put(u UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[u.UserID] = u
}

func (p *mockUserProvider) get(userID string) UserRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.users[userID]
}

func (p *mockUserProvider) GetUserByUsername(ctx context.Context, username string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Username == username {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (p *mockUserProvider) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Email == email {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (p *mockUserProvider) GetUserByID(ctx context.Context, userID string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (p *mockUserProvider) CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Username == input.Username || u.Email == input.Email {
			return UserRecord{}, ErrAccountExists
		}
	}
	p.nexts++
	u := UserRecord{
		UserID:       "u" + string(rune('0'+p.nexts)),
		Username:     input.Username,
		FullName:     input.FullName,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		CreatedAt:    time.Now(),
	}
	p.users[u.UserID] = u
	return u, nil
}

func (p *mockUserProvider) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = newHash
	p.users[userID] = u
	return nil
}

func (p *mockUserProvider) MarkVerified(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Verified = true
	p.users[userID] = u
	return nil
}

func (p *mockUserProvider) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	if update.Email != nil && *update.Email != u.Email {
		u.Email = *update.Email
		u.Verified = false
	}
	p.users[userID] = u
	return u, nil
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *mockNotifier) Send(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *mockNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	// Keep the hashing cheap so the suite stays fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client, up UserProvider, notifier Notifier) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithLogger(slog.New(slog.DiscardHandler)).
		WithUserProvider(up).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

// drainNotifications stops the dispatcher so every queued notification has
// been handed to the notifier before the test asserts on it.
func drainNotifications(e *Engine) {
	e.notify.Close()
}

func seedUser(t *testing.T, e *Engine, up *mockUserProvider, username, email, pass string) UserRecord {
	t.Helper()

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("hash seed password: %v", err)
	}
	u := UserRecord{
		UserID:       "seed-" + username,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	up.put(u)
	return u
}

func TestAuthenticateIssuesValidToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, nil)
	ctx := context.Background()

	seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")

	token, err := engine.Authenticate(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	res, err := engine.Validate(ctx, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Subject != "alice" || res.User.Email != "alice@x.com" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAuthenticateUniformFailure(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, nil)
	ctx := context.Background()

	seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")

	// Unknown username and wrong password are indistinguishable.
	_, unknownErr := engine.Authenticate(ctx, "nobody", "whatever-pass")
	_, wrongErr := engine.Authenticate(ctx, "alice", "wrong-password")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", wrongErr)
	}
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, nil)
	ctx := context.Background()

	u := seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")
	u.Disabled = true
	up.put(u)

	if _, err := engine.Authenticate(ctx, "alice", "correct-horse"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestValidateRejectsDeletedSubject(t *testing.T) {
	_, rdb := newTestRedis(t)
	up := newMockUserProvider()
	engine := newTestEngine(t, rdb, up, nil)
	ctx := context.Background()

	u := seedUser(t, engine, up, "alice", "alice@x.com", "correct-horse")

	token, err := engine.Authenticate(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	up.mu.Lock()
	delete(up.users, u.UserID)
	up.mu.Unlock()

	if _, err := engine.Validate(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}
