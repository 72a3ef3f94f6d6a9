package gatekit

import (
	"errors"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config defines a public type used by gatekit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Verification  VerificationConfig
	Session       SessionConfig
	Redis         RedisConfig
	SMTP          SMTPConfig
	Notify        NotifyConfig
	Broadcast     BroadcastConfig
}

// JWTConfig defines a public type used by gatekit APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	SigningKey    []byte
	SigningMethod string // "hs256" (default) or "hs512"
	AccessTTL     time.Duration
	Issuer        string
}

// PasswordConfig defines a public type used by gatekit APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory        uint32 // in KB
	Time          uint32
	Parallelism   uint8
	SaltLength    uint32
	KeyLength     uint32
	MinLength     int
	RehashOnLogin bool
}

// PasswordResetConfig defines a public type used by gatekit APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	// Window is the reset-token validity window. Fixed at one hour by
	// default; the expiry timestamp is computed and stored at issuance.
	Window      time.Duration
	RedisPrefix string
}

// VerificationConfig defines a public type used by gatekit APIs.
//
// VerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerificationConfig struct {
	Window      time.Duration
	RedisPrefix string
}

// SessionConfig defines a public type used by gatekit APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	TTL time.Duration
}

// RedisConfig defines a public type used by gatekit APIs.
//
// RedisConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// SMTPConfig defines a public type used by gatekit APIs.
//
// SMTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

// NotifyConfig defines a public type used by gatekit APIs.
//
// NotifyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NotifyConfig struct {
	BufferSize int
	DropIfFull bool
}

// BroadcastConfig defines a public type used by gatekit APIs.
//
// BroadcastConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BroadcastConfig struct {
	Channel    string
	MaxClients int
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     30 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:        64 * 1024,
			Time:          2,
			Parallelism:   2,
			SaltLength:    16,
			KeyLength:     32,
			MinLength:     8,
			RehashOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Window:      time.Hour,
			RedisPrefix: "prt",
		},
		Verification: VerificationConfig{
			Window:      24 * time.Hour,
			RedisPrefix: "evt",
		},
		Session: SessionConfig{
			TTL: time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		SMTP: SMTPConfig{
			Port:    587,
			BaseURL: "http://localhost:8080",
		},
		Notify: NotifyConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Broadcast: BroadcastConfig{
			Channel:    "chat",
			MaxClients: 4096,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if len(c.JWT.SigningKey) < 32 {
		return errors.New("config: JWT signing key must be at least 32 bytes")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "hs512":
	default:
		return errors.New("config: unsupported JWT signing method")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("config: JWT access TTL must be positive")
	}
	if c.PasswordReset.Window <= 0 {
		return errors.New("config: password reset window must be positive")
	}
	if c.Verification.Window <= 0 {
		return errors.New("config: verification window must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: session TTL must be positive")
	}
	if c.Password.MinLength < 1 {
		return errors.New("config: password minimum length must be positive")
	}
	return nil
}

const envPrefix = "GATEKIT_"

// LoadEnv overlays GATEKIT_* environment variables onto a default config.
// Variable names map path segments with underscores, e.g.
// GATEKIT_REDIS_ADDR, GATEKIT_JWT_SIGNING_KEY, GATEKIT_SMTP_HOST.
func LoadEnv() (Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if v := k.String("jwt.signing.key"); v != "" {
		cfg.JWT.SigningKey = []byte(v)
	}
	if v := k.String("jwt.algorithm"); v != "" {
		cfg.JWT.SigningMethod = strings.ToLower(v)
	}
	if v := k.Int("jwt.access.ttl.minutes"); v > 0 {
		cfg.JWT.AccessTTL = time.Duration(v) * time.Minute
	}
	if v := k.String("jwt.issuer"); v != "" {
		cfg.JWT.Issuer = v
	}

	if v := k.String("redis.addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := k.String("redis.username"); v != "" {
		cfg.Redis.Username = v
	}
	if v := k.String("redis.password"); v != "" {
		cfg.Redis.Password = v
	}
	if k.Exists("redis.db") {
		cfg.Redis.DB = k.Int("redis.db")
	}

	if v := k.String("smtp.host"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := k.Int("smtp.port"); v > 0 {
		cfg.SMTP.Port = v
	}
	if v := k.String("smtp.username"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := k.String("smtp.password"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := k.String("smtp.from"); v != "" {
		cfg.SMTP.From = v
	}
	if v := k.String("smtp.base.url"); v != "" {
		cfg.SMTP.BaseURL = v
	}

	if v := k.Int("reset.window.minutes"); v > 0 {
		cfg.PasswordReset.Window = time.Duration(v) * time.Minute
	}
	if v := k.Int("session.ttl.seconds"); v > 0 {
		cfg.Session.TTL = time.Duration(v) * time.Second
	}
	if v := k.String("broadcast.channel"); v != "" {
		cfg.Broadcast.Channel = v
	}
	if v := k.Int("broadcast.max.clients"); v > 0 {
		cfg.Broadcast.MaxClients = v
	}

	return cfg, nil
}
