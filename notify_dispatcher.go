package gatekit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// notifyDispatcher decouples outbound notifications from request
// handling: Emit enqueues, a single worker drains the queue and calls the
// Notifier, and delivery failures are logged here with no path back to
// the request that caused them.
type notifyDispatcher struct {
	cfg       NotifyConfig
	notifier  Notifier
	log       *slog.Logger
	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newNotifyDispatcher(cfg NotifyConfig, notifier Notifier, log *slog.Logger) *notifyDispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if notifier == nil {
		notifier = NoOpNotifier{}
	}

	d := &notifyDispatcher{
		cfg:      cfg,
		notifier: notifier,
		log:      log,
		ch:       make(chan Notification, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) deliver(n Notification) {
	if err := d.notifier.Send(context.Background(), n); err != nil {
		d.log.Error("notification delivery failed", "kind", int(n.Kind), "err", err)
	}
}

// Emit queues a notification. With DropIfFull set, a full queue sheds the
// notification and bumps the drop counter instead of blocking the caller.
func (d *notifyDispatcher) Emit(ctx context.Context, n Notification) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- n:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- n:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops the worker after draining whatever is already queued.
func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
