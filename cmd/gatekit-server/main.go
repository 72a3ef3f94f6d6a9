// Command gatekit-server runs the full HTTP surface: authentication,
// account flows, ephemeral state, and the websocket broadcaster.
//
// Configuration comes from GATEKIT_* environment variables (see
// gatekit.LoadEnv); the listen address is a flag. Without GATEKIT_SMTP_HOST
// set, notifications are discarded, which is the sensible default for
// local development.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/gatekit/gatekit"
	"github.com/gatekit/gatekit/broadcast"
	"github.com/gatekit/gatekit/httpapi"
	"github.com/gatekit/gatekit/notifier"
	"github.com/gatekit/gatekit/userstore"
)

func main() {
	listen := flag.String("listen", ":8080", "HTTP listen address")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(log, *listen); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, listen string) error {
	cfg, err := gatekit.LoadEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return err
	}
	log.Info("redis connected", "addr", cfg.Redis.Addr)

	var notify gatekit.Notifier
	if cfg.SMTP.Host != "" {
		mailer, err := notifier.NewMailer(cfg.SMTP)
		if err != nil {
			return err
		}
		notify = mailer
		log.Info("smtp notifier enabled", "host", cfg.SMTP.Host)
	} else {
		notify = gatekit.NoOpNotifier{}
		log.Warn("no smtp host configured, notifications are discarded")
	}

	engine, err := gatekit.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(log).
		WithUserProvider(userstore.NewUsers(rdb)).
		WithNotifier(notify).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	broadcaster := broadcast.New(log, rdb, broadcast.Config{
		Channel:    cfg.Broadcast.Channel,
		MaxClients: cfg.Broadcast.MaxClients,
	}, broadcast.NewMetrics(registry))
	go superviseRelay(ctx, log, broadcaster)

	api, err := httpapi.NewServer(httpapi.Options{
		Engine:      engine,
		Broadcaster: broadcaster,
		Logger:      log,
		Registry:    registry,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// superviseRelay keeps the broadcast subscription alive. Run returning
// before shutdown means the subscription dropped; back off and resubscribe.
func superviseRelay(ctx context.Context, log *slog.Logger, b *broadcast.Broadcaster) {
	for {
		err := b.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Error("broadcast relay stopped, restarting", "err", err)

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return
		}
	}
}
