package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const defaultMaxClients = 4096

// ErrRegistryFull is returned by Connect when the local registry is at
// capacity.
var ErrRegistryFull = errors.New("broadcast registry full")

// ErrBusUnavailable wraps transport failures talking to the pub/sub bus.
var ErrBusUnavailable = errors.New("broadcast bus unavailable")

// Metrics holds the prometheus instruments for one broadcaster.
type Metrics struct {
	Connections prometheus.Gauge
	Relayed     prometheus.Counter
	Dropped     prometheus.Counter
}

// NewMetrics registers broadcaster instruments on reg. Pass
// prometheus.DefaultRegisterer in production wiring.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatekit_broadcast_connections",
			Help: "Currently registered broadcast clients.",
		}),
		Relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekit_broadcast_relayed_total",
			Help: "Messages delivered to local client queues.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekit_broadcast_dropped_total",
			Help: "Messages dropped because a client queue was full or closing.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.Relayed, m.Dropped)
	}
	return m
}

// Broadcaster keeps the local client registry and bridges it to the shared
// Redis pub/sub channel. Safe for concurrent use.
type Broadcaster struct {
	log        *slog.Logger
	redis      redis.UniversalClient
	channel    string
	maxClients int
	metrics    *Metrics

	mu      sync.RWMutex
	clients map[string]*Client
}

// Config defines a public type used by gatekit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Channel    string
	MaxClients int
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(log *slog.Logger, redisClient redis.UniversalClient, cfg Config, metrics *Metrics) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Channel == "" {
		cfg.Channel = "broadcast"
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Broadcaster{
		log:        log,
		redis:      redisClient,
		channel:    cfg.Channel,
		maxClients: cfg.MaxClients,
		metrics:    metrics,
		clients:    make(map[string]*Client),
	}
}

// Connect registers a client. The registry is bounded: past capacity,
// Connect fails instead of growing without limit under churn.
func (b *Broadcaster) Connect(client *Client) error {
	if client == nil || client.ID == "" {
		return errors.New("broadcast: nil or unidentified client")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.clients) >= b.maxClients {
		return ErrRegistryFull
	}
	b.clients[client.ID] = client
	b.metrics.Connections.Set(float64(len(b.clients)))

	b.log.Debug("broadcast.client.connect", "client_id", client.ID)
	return nil
}

// Disconnect removes a client and signals its shutdown. Safe to call for
// an already-removed or unknown handle.
func (b *Broadcaster) Disconnect(id string) {
	if id == "" {
		return
	}

	b.mu.Lock()
	client := b.clients[id]
	delete(b.clients, id)
	b.metrics.Connections.Set(float64(len(b.clients)))
	b.mu.Unlock()

	// Close after removal so no relayer still holding the pointer races
	// the teardown.
	if client != nil {
		client.Close()
		b.log.Debug("broadcast.client.disconnect", "client_id", id)
	}
}

// Publish sends payload to the shared channel. Every subscribed process,
// including this one, relays it to its local clients.
func (b *Broadcaster) Publish(ctx context.Context, payload []byte) error {
	if err := b.redis.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}
	return nil
}

// Relay fans payload out to every registered client. Non-blocking: a
// client with a full queue or one that is shutting down is pruned and the
// fan-out continues. Relay never returns an error and never panics.
func (b *Broadcaster) Relay(payload []byte) {
	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	var prune []string
	for _, c := range clients {
		select {
		case <-c.Done():
			prune = append(prune, c.ID)
			b.metrics.Dropped.Inc()
			continue
		default:
		}

		select {
		case c.Send <- payload:
			b.metrics.Relayed.Inc()
		default:
			// A stalled consumer loses its registration rather than
			// stalling everyone else's delivery.
			prune = append(prune, c.ID)
			b.metrics.Dropped.Inc()
		}
	}

	for _, id := range prune {
		b.Disconnect(id)
	}
}

// Run subscribes to the shared channel and relays every received message
// to the local registry until ctx is cancelled. The host process owns
// supervision: Run returning before cancellation means the subscription
// failed and should be restarted.
func (b *Broadcaster) Run(ctx context.Context) error {
	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Force the subscription before we report ourselves live.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}

	b.log.Info("broadcast.relay.start", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcast.relay.stop", "channel", b.channel)
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("%w: subscription closed", ErrBusUnavailable)
			}
			b.Relay([]byte(msg.Payload))
		}
	}
}

// ClientCount reports the current registry size.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
