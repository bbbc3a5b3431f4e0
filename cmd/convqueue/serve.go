package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/convqueue/config"
	"github.com/bnema/convqueue/internal/adapter/cache"
	"github.com/bnema/convqueue/internal/adapter/cache/redis"
	"github.com/bnema/convqueue/internal/adapter/converter/ffmpeg"
	"github.com/bnema/convqueue/internal/adapter/events/amqp"
	httpadapter "github.com/bnema/convqueue/internal/adapter/http"
	"github.com/bnema/convqueue/internal/adapter/http/ratelimit"
	"github.com/bnema/convqueue/internal/infrastructure/logger"
	"github.com/bnema/convqueue/internal/port"
	"github.com/bnema/convqueue/internal/service"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion worker and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	log := logger.With("serve")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	lock := dataLock(cfg)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another convqueue daemon is already running for this data directory")
	}
	defer func() { _ = lock.Unlock() }()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor := ffmpeg.NewExecutor(cfg.FFmpeg.Path, cfg.FFprobe.Path)

	var invalidator port.CacheInvalidator = cache.Nop{}
	if cfg.Redis.Addr != "" {
		inv, err := redis.NewInvalidator(redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer func() { _ = inv.Close() }()
		invalidator = inv
		log.Info().Str("addr", cfg.Redis.Addr).Msg("cache invalidation enabled")
	}

	bus := service.NewEventBus()

	var publisherDone chan struct{}
	if cfg.AMQP.URL != "" {
		pub, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()

		events := bus.SubscribeBuffered(256)
		publisherDone = make(chan struct{})
		go func() {
			defer close(publisherDone)
			pub.Run(ctx, events)
		}()
		defer bus.Unsubscribe(events)
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("event fan-out enabled")
	}

	queue, err := service.NewConversionQueue(ctx, st.queue, st.assets, executor, cfg, invalidator, bus)
	if err != nil {
		return err
	}
	defer queue.Close()

	if !queue.Process() && !executor.Available() {
		log.Warn().Str("ffmpeg", cfg.FFmpeg.Path).Msg("encoding tool unavailable; items stay waiting")
	}

	auth, err := httpadapter.NewTokenAuth(cfg.HTTP.AdminTokenHash)
	if err != nil {
		return err
	}
	if !auth.Enabled() {
		log.Warn().Msg("no admin token configured; mutating API routes are disabled")
	}

	limiter := ratelimit.NewFailureLimiter(5, 15*time.Minute, ratelimit.NewBackoff(time.Minute, time.Hour, 2.0))
	go limiter.Run(ctx, time.Minute)

	go purgeLoop(ctx, queue, cfg.Queue)

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Queue:     queue,
		Assets:    st.assets,
		Events:    bus,
		Auth:      auth,
		Limiter:   limiter,
		PurgeDays: cfg.Queue.PurgeAfterDays,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Event streams end when the daemon context is canceled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	stop()
	queue.Close()
	if publisherDone != nil {
		<-publisherDone
	}

	log.Info().Msg("shutdown complete")
	return nil
}

type purger interface {
	DeleteOldItems(ctx context.Context, thresholdDays int) (int, error)
}

// purgeLoop removes old items at startup and then every interval. A zero
// threshold disables purging.
func purgeLoop(ctx context.Context, q purger, cfg config.QueueConfig) {
	if cfg.PurgeAfterDays <= 0 || cfg.PurgeInterval <= 0 {
		return
	}
	log := logger.With("purge")

	purge := func() {
		n, err := q.DeleteOldItems(ctx, cfg.PurgeAfterDays)
		if err != nil {
			log.Error().Err(err).Msg("purge failed")
			return
		}
		if n > 0 {
			log.Info().Int("deleted", n).Int("days", cfg.PurgeAfterDays).Msg("old queue items purged")
		}
	}

	purge()
	ticker := time.NewTicker(cfg.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
