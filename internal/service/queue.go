package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/infrastructure/logger"
	"github.com/bnema/convqueue/internal/infrastructure/metrics"
	"github.com/bnema/convqueue/internal/port"
)

type QueueStatus string

const (
	QueueIdle       QueueStatus = "idle"
	QueueProcessing QueueStatus = "processing"
)

// activeItem tracks the item the worker is currently converting.
type activeItem struct {
	id           int64
	cancel       context.CancelFunc
	done         chan struct{}
	userCanceled atomic.Bool
}

// ConversionQueue owns the in-memory index of queue items and the single
// background worker that converts them. All methods are safe for concurrent
// use.
type ConversionQueue struct {
	store    port.QueueStore
	assets   port.AssetStore
	executor port.ConversionExecutor
	settings port.GallerySettingsProvider
	cache    port.CacheInvalidator
	events   EventPublisher
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	items     map[int64]*domain.QueueItem
	status    QueueStatus
	current   *activeItem
	attempted map[int]struct{}
	lastAdded time.Time
}

// NewConversionQueue loads every persisted item and resets items left in
// processing by a previous run back to waiting. Canceling ctx stops the worker.
func NewConversionQueue(
	ctx context.Context,
	store port.QueueStore,
	assets port.AssetStore,
	executor port.ConversionExecutor,
	settings port.GallerySettingsProvider,
	cache port.CacheInvalidator,
	events EventPublisher,
) (*ConversionQueue, error) {
	qctx, cancel := context.WithCancel(ctx)
	q := &ConversionQueue{
		store:     store,
		assets:    assets,
		executor:  executor,
		settings:  settings,
		cache:     cache,
		events:    events,
		log:       logger.With("conversion_queue"),
		ctx:       qctx,
		cancel:    cancel,
		items:     make(map[int64]*domain.QueueItem),
		status:    QueueIdle,
		attempted: make(map[int]struct{}),
	}

	if err := q.load(ctx); err != nil {
		cancel()
		return nil, err
	}
	return q, nil
}

func (q *ConversionQueue) load(ctx context.Context) error {
	items, err := q.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load queue items: %w", err)
	}

	sortItems(items)

	recovered := 0
	for _, item := range items {
		if item.Status == domain.ItemStatusProcessing {
			item.ResetToWaiting()
			item.AppendDetail("Processing was interrupted; item returned to the queue.")
			if err := q.store.Update(ctx, item); err != nil {
				return fmt.Errorf("reset interrupted item %d: %w", item.ID, err)
			}
			recovered++
		}
		q.items[item.ID] = item
		if item.DateAdded.After(q.lastAdded) {
			q.lastAdded = item.DateAdded
		}
	}

	q.updateDepthLocked()
	q.log.Info().Int("items", len(items)).Int("recovered", recovered).Msg("conversion queue loaded")
	return nil
}

// Add enqueues a conversion for the asset. It does not deduplicate: producers
// call IsWaitingInQueueOrProcessing first.
func (q *ConversionQueue) Add(ctx context.Context, asset *domain.Asset, conversionType domain.ConversionType) (*domain.QueueItem, error) {
	if asset == nil {
		return nil, errors.New("asset is nil")
	}
	if !conversionType.Valid() {
		return nil, fmt.Errorf("unsupported conversion type %q", conversionType)
	}

	item := domain.NewQueueItem(asset, conversionType)

	q.mu.Lock()
	defer q.mu.Unlock()

	if item.DateAdded.Before(q.lastAdded) {
		item.DateAdded = q.lastAdded
	}
	if err := q.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("persist queue item: %w", err)
	}
	q.lastAdded = item.DateAdded
	q.items[item.ID] = item
	q.updateDepthLocked()

	metrics.RecordItemAdded(string(conversionType))
	q.publishLocked(EventItemAdded, item)
	q.log.Info().
		Int64("item_id", item.ID).
		Int64("asset_id", item.AssetID).
		Str("conversion_type", string(conversionType)).
		Msg("queue item added")

	return item.Clone(), nil
}

// Process starts the worker loop unless it is already running or the
// encoding tool is missing. It reports whether a new loop was started.
func (q *ConversionQueue) Process() bool {
	if !q.executor.Available() {
		q.log.Debug().Msg("encoding tool unavailable, not processing")
		return false
	}

	q.mu.Lock()
	if q.status == QueueProcessing || q.ctx.Err() != nil {
		q.mu.Unlock()
		return false
	}
	q.setStatusLocked(QueueProcessing)
	q.wg.Add(1)
	q.mu.Unlock()

	go q.run()
	return true
}

// CancelItem signals cancellation for the item currently being converted and
// blocks until the worker has moved off it. Items that are not current are
// left untouched.
func (q *ConversionQueue) CancelItem(ctx context.Context, id int64) error {
	q.mu.RLock()
	active := q.current
	q.mu.RUnlock()

	if active == nil || active.id != id {
		return nil
	}

	q.log.Info().Int64("item_id", id).Msg("canceling current item")
	active.userCanceled.Store(true)
	active.cancel()

	select {
	case <-active.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RemoveItem deletes an item, canceling it first when it is being converted.
func (q *ConversionQueue) RemoveItem(ctx context.Context, id int64) error {
	for {
		if err := q.CancelItem(ctx, id); err != nil {
			return err
		}

		q.mu.Lock()
		if q.current != nil && q.current.id == id {
			// The worker picked the item up between the cancel check and the lock.
			q.mu.Unlock()
			continue
		}

		item, ok := q.items[id]
		if !ok {
			q.mu.Unlock()
			return domain.ErrNotFound
		}
		if !item.Status.IsTerminal() {
			item.Status = domain.ItemStatusCanceled
		}
		if err := q.store.Delete(ctx, id); err != nil {
			q.mu.Unlock()
			return fmt.Errorf("delete queue item %d: %w", id, err)
		}
		delete(q.items, id)
		q.updateDepthLocked()
		q.publishLocked(EventItemDeleted, item)
		q.mu.Unlock()

		q.log.Info().Int64("item_id", id).Int64("asset_id", item.AssetID).Msg("queue item removed")
		return nil
	}
}

// Remove deletes every item that targets the asset.
func (q *ConversionQueue) Remove(ctx context.Context, assetID int64) error {
	for _, id := range q.idsWhere(func(item *domain.QueueItem) bool { return item.AssetID == assetID }) {
		if err := q.RemoveItem(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// DeleteOldItems removes items added more than thresholdDays ago, whatever
// their status, and returns how many were removed.
func (q *ConversionQueue) DeleteOldItems(ctx context.Context, thresholdDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -thresholdDays)
	ids := q.idsWhere(func(item *domain.QueueItem) bool { return item.DateAdded.Before(cutoff) })

	removed := 0
	for _, id := range ids {
		if err := q.RemoveItem(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		q.log.Info().Int("removed", removed).Int("threshold_days", thresholdDays).Msg("purged old queue items")
	}
	return removed, nil
}

func (q *ConversionQueue) Get(id int64) (*domain.QueueItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	item, ok := q.items[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// GetCurrent returns the item being converted, or nil.
func (q *ConversionQueue) GetCurrent() *domain.QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.current == nil {
		return nil
	}
	return q.items[q.current.id].Clone()
}

// Items returns a snapshot of all items ordered by date added.
func (q *ConversionQueue) Items() []*domain.QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*domain.QueueItem, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item.Clone())
	}
	sortItems(out)
	return out
}

func (q *ConversionQueue) Status() QueueStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.status
}

// IsWaitingInQueueOrProcessing reports whether the asset has an item that is
// waiting or being converted. An empty conversion type matches any type.
func (q *ConversionQueue) IsWaitingInQueueOrProcessing(assetID int64, conversionType domain.ConversionType) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, item := range q.items {
		if item.AssetID != assetID {
			continue
		}
		if conversionType != "" && item.ConversionType != conversionType {
			continue
		}
		if item.Status == domain.ItemStatusWaiting || item.Status == domain.ItemStatusProcessing {
			return true
		}
	}
	return false
}

// HasEncoderSetting reports whether the asset's gallery has at least one
// usable encoder setting for the asset's original file.
func (q *ConversionQueue) HasEncoderSetting(asset *domain.Asset) bool {
	gs := q.settings.GallerySettings(asset.GalleryID)
	return domain.HasUsableEncoderSetting(asset.Type, asset.Original.Filename(), gs.EncoderSettings)
}

// AttemptedSettings returns the sequences of encoder settings already tried
// for the current item.
func (q *ConversionQueue) AttemptedSettings() []int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]int, 0, len(q.attempted))
	for seq := range q.attempted {
		out = append(out, seq)
	}
	sort.Ints(out)
	return out
}

// Wait blocks until the running worker loop, if any, has exited.
func (q *ConversionQueue) Wait() {
	q.wg.Wait()
}

// Close stops the worker. An item interrupted by Close goes back to waiting.
func (q *ConversionQueue) Close() {
	q.cancel()
	q.wg.Wait()
}

func (q *ConversionQueue) idsWhere(match func(*domain.QueueItem) bool) []int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var ids []int64
	for id, item := range q.items {
		if match(item) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (q *ConversionQueue) setStatusLocked(status QueueStatus) {
	if q.status == status {
		return
	}
	q.status = status
	metrics.SetProcessing(status == QueueProcessing)
	if q.events != nil {
		q.events.Publish(newEvent(EventQueueStatusChanged, nil, status))
	}
	q.log.Debug().Str("status", string(status)).Msg("queue status changed")
}

func (q *ConversionQueue) publishLocked(t EventType, item *domain.QueueItem) {
	if q.events == nil {
		return
	}
	q.events.Publish(newEvent(t, item, q.status))
}

func (q *ConversionQueue) updateDepthLocked() {
	waiting := 0
	for _, item := range q.items {
		if item.Status == domain.ItemStatusWaiting {
			waiting++
		}
	}
	metrics.SetQueueDepth(waiting)
}

func sortItems(items []*domain.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DateAdded.Equal(items[j].DateAdded) {
			return items[i].DateAdded.Before(items[j].DateAdded)
		}
		return items[i].ID < items[j].ID
	})
}
