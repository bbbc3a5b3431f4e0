package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/bnema/convqueue/config"
	"github.com/bnema/convqueue/internal/adapter/cache"
	"github.com/bnema/convqueue/internal/adapter/converter/ffmpeg"
	"github.com/bnema/convqueue/internal/adapter/storage/jsonfile"
	"github.com/bnema/convqueue/internal/adapter/storage/sqlite"
	"github.com/bnema/convqueue/internal/port"
	"github.com/bnema/convqueue/internal/service"
)

const lockFileName = "convqueue.lock"

var errDaemonRunning = errors.New("the convqueue daemon is running for this data directory")

type stores struct {
	queue  port.QueueStore
	assets port.AssetStore
	close  func() error
}

func openStores(cfg *config.Config) (*stores, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	switch cfg.Store.Driver {
	case "json":
		st, err := jsonfile.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open json store: %w", err)
		}
		return &stores{queue: st.Queue(), assets: st.Assets(), close: func() error { return nil }}, nil
	default:
		st, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return &stores{queue: st.Queue(), assets: st.Assets(), close: st.Close}, nil
	}
}

func dataLock(cfg *config.Config) *flock.Flock {
	return flock.New(filepath.Join(cfg.DataDir, lockFileName))
}

// withExclusiveStore runs fn while holding the data directory lock, so no
// daemon can start or be running against the same store.
func withExclusiveStore(cfg *config.Config, fn func(st *stores) error) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	lock := dataLock(cfg)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errDaemonRunning
	}
	defer func() { _ = lock.Unlock() }()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	return fn(st)
}

// withStores opens the stores without taking the lock. Only safe for drivers
// that handle concurrent writers.
func withStores(cfg *config.Config, fn func(st *stores) error) error {
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	return fn(st)
}

// daemonRunning reports whether another process holds the data directory lock.
func daemonRunning(cfg *config.Config) (bool, error) {
	lock := dataLock(cfg)
	ok, err := lock.TryLock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

// offlineQueue builds a queue over the store without starting the worker.
// Callers must hold the data directory lock.
func offlineQueue(ctx context.Context, cfg *config.Config, st *stores) (*service.ConversionQueue, error) {
	executor := ffmpeg.NewExecutor(cfg.FFmpeg.Path, cfg.FFprobe.Path)
	return service.NewConversionQueue(ctx, st.queue, st.assets, executor, cfg, cache.Nop{}, nil)
}
