package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/infrastructure/metrics"
)

// run is the single worker loop. It converts the oldest waiting item until
// none are left and then sets the queue idle under the same lock that Process
// uses, so a concurrent Process call either sees the loop running or starts a
// new one.
func (q *ConversionQueue) run() {
	defer q.wg.Done()

	idled := false
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("worker loop panicked")
		}
		if !idled {
			q.mu.Lock()
			q.setStatusLocked(QueueIdle)
			q.mu.Unlock()
		}
	}()

	for {
		if q.ctx.Err() != nil {
			q.log.Info().Msg("worker shutting down")
			return
		}

		id, ok := q.nextWaiting()
		if !ok {
			idled = true
			return
		}
		q.processItem(id)
	}
}

// nextWaiting returns the oldest waiting item. When there is none it sets the
// queue idle before releasing the lock.
func (q *ConversionQueue) nextWaiting() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var next *domain.QueueItem
	for _, item := range q.items {
		if item.Status != domain.ItemStatusWaiting {
			continue
		}
		if next == nil || item.DateAdded.Before(next.DateAdded) ||
			(item.DateAdded.Equal(next.DateAdded) && item.ID < next.ID) {
			next = item
		}
	}

	if next == nil {
		q.setStatusLocked(QueueIdle)
		return 0, false
	}
	return next.ID, true
}

// processItem is the error boundary for one item: any failure, including a
// panic, ends with the item in a terminal state and the loop moving on.
func (q *ConversionQueue) processItem(id int64) {
	itemCtx, cancel := context.WithCancel(q.ctx)
	defer cancel()

	active := &activeItem{id: id, cancel: cancel, done: make(chan struct{})}
	item, err := q.beginItem(active)
	if err != nil {
		q.log.Warn().Err(err).Int64("item_id", id).Msg("skipping queue item")
		return
	}
	defer q.releaseCurrent(active)

	log := q.log.With().Int64("item_id", id).Int64("asset_id", item.AssetID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("conversion panicked")
			q.finishItem(item.ID, domain.ItemStatusError, fmt.Sprintf("Unexpected error: %v", r))
		}
	}()

	log.Info().Str("conversion_type", string(item.ConversionType)).Msg("conversion started")

	asset, result, err := q.executeConversion(itemCtx, item)
	switch {
	case errors.Is(err, domain.ErrAssetVanished):
		log.Warn().Msg("asset vanished, dropping queue item")
		q.dropItem(item.ID)
		return
	case errors.Is(err, errNoRotationNeeded):
		q.finishItem(item.ID, domain.ItemStatusComplete, "No rotation needed.")
	case (result != nil && result.CancellationRequested) || itemCtx.Err() != nil:
		q.discardOutput(result)
		if !active.userCanceled.Load() && q.ctx.Err() != nil {
			q.requeueItem(item.ID)
			return
		}
		q.finishItem(item.ID, domain.ItemStatusCanceled, "Conversion canceled.")
	case err != nil:
		log.Error().Err(err).Msg("conversion failed")
		q.finishItem(item.ID, domain.ItemStatusError, err.Error())
	default:
		status := result.FinalStatus()
		detail := ""
		if status == domain.ItemStatusComplete {
			filename, applyErr := q.applyResult(itemCtx, item, asset, result)
			if applyErr != nil {
				log.Error().Err(applyErr).Msg("failed to store conversion result")
				q.discardOutput(result)
				status = domain.ItemStatusError
				detail = applyErr.Error()
			} else {
				detail = fmt.Sprintf("Created %s (%s).", filename, humanize.Bytes(uint64(result.FileSize)))
			}
		} else {
			detail = "All encoder settings failed to produce a file."
		}
		q.finishItem(item.ID, status, detail)
	}

	if asset != nil && q.cache != nil {
		if err := q.cache.Invalidate(context.WithoutCancel(itemCtx), asset.CacheKeys()); err != nil {
			log.Warn().Err(err).Msg("cache invalidation failed")
		}
	}
}

// beginItem moves a waiting item to processing and makes it current.
func (q *ConversionQueue) beginItem(active *activeItem) (*domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[active.id]
	if !ok || item.Status != domain.ItemStatusWaiting {
		return nil, domain.ErrItemNotWaiting
	}

	item.MarkStarted(time.Now().UTC())
	if err := q.store.Update(q.ctx, item); err != nil {
		// Never leave an unpersistable item waiting or the loop would spin on it.
		item.AppendDetail(fmt.Sprintf("Failed to start conversion: %v", err))
		item.MarkCompleted(domain.ItemStatusError, time.Now().UTC())
		q.updateDepthLocked()
		return nil, fmt.Errorf("persist started item: %w", err)
	}

	q.current = active
	q.attempted = make(map[int]struct{})
	q.updateDepthLocked()
	q.publishLocked(EventItemStarted, item)
	return item.Clone(), nil
}

func (q *ConversionQueue) releaseCurrent(active *activeItem) {
	q.mu.Lock()
	if q.current == active {
		q.current = nil
	}
	q.attempted = make(map[int]struct{})
	q.mu.Unlock()
	close(active.done)
}

// mutateItem applies fn to the indexed item and persists it. The item may have
// been removed concurrently, in which case nothing happens.
func (q *ConversionQueue) mutateItem(id int64, fn func(item *domain.QueueItem)) (*domain.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return nil, false
	}
	fn(item)
	if err := q.store.Update(context.WithoutCancel(q.ctx), item); err != nil {
		q.log.Error().Err(err).Int64("item_id", id).Msg("failed to persist queue item")
	}
	return item, true
}

func (q *ConversionQueue) appendDetail(id int64, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return
	}
	item.AppendDetail(msg)
	if err := q.store.Update(context.WithoutCancel(q.ctx), item); err != nil {
		q.log.Error().Err(err).Int64("item_id", id).Msg("failed to persist status detail")
	}
	if q.events != nil {
		ev := newEvent(EventStatusDetailAppended, item, q.status)
		ev.Detail = msg
		q.events.Publish(ev)
	}
}

func (q *ConversionQueue) setNewFilename(id int64, name string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok || item.NewFilename == name {
		return
	}
	item.NewFilename = name
	if err := q.store.Update(context.WithoutCancel(q.ctx), item); err != nil {
		q.log.Error().Err(err).Int64("item_id", id).Msg("failed to persist new filename")
	}
	q.publishLocked(EventItemUpdated, item)
}

func (q *ConversionQueue) markAttempted(sequence int) {
	q.mu.Lock()
	q.attempted[sequence] = struct{}{}
	q.mu.Unlock()
}

func (q *ConversionQueue) attemptedSnapshot() map[int]struct{} {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make(map[int]struct{}, len(q.attempted))
	for seq := range q.attempted {
		out[seq] = struct{}{}
	}
	return out
}

func (q *ConversionQueue) finishItem(id int64, status domain.ItemStatus, detail string) {
	if detail != "" {
		q.appendDetail(id, detail)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return
	}
	item.MarkCompleted(status, time.Now().UTC())
	if err := q.store.Update(context.WithoutCancel(q.ctx), item); err != nil {
		q.log.Error().Err(err).Int64("item_id", id).Msg("failed to persist completed item")
	}
	q.attempted = make(map[int]struct{})
	q.updateDepthLocked()

	metrics.RecordItemCompleted(string(item.ConversionType), string(status), item.Duration())
	q.publishLocked(EventItemCompleted, item)
	q.log.Info().
		Int64("item_id", id).
		Str("status", string(status)).
		Dur("duration", item.Duration()).
		Msg("conversion finished")
}

// requeueItem puts an item interrupted by shutdown back to waiting.
func (q *ConversionQueue) requeueItem(id int64) {
	item, ok := q.mutateItem(id, func(item *domain.QueueItem) {
		item.ResetToWaiting()
		item.AppendDetail("Conversion interrupted by shutdown; item returned to the queue.")
	})
	if !ok {
		return
	}
	q.mu.Lock()
	q.updateDepthLocked()
	q.publishLocked(EventItemUpdated, item)
	q.mu.Unlock()
}

// dropItem removes an item whose asset no longer exists.
func (q *ConversionQueue) dropItem(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return
	}
	if err := q.store.Delete(context.WithoutCancel(q.ctx), id); err != nil {
		q.log.Error().Err(err).Int64("item_id", id).Msg("failed to delete orphaned queue item")
	}
	delete(q.items, id)
	q.updateDepthLocked()
	q.publishLocked(EventItemDeleted, item)
}

// discardOutput removes a partial or unused output file.
func (q *ConversionQueue) discardOutput(result *domain.ConversionResult) {
	if result == nil || result.DestinationPath == "" || result.DestinationPath == result.SourcePath {
		return
	}
	if err := os.Remove(result.DestinationPath); err != nil && !os.IsNotExist(err) {
		q.log.Warn().Err(err).Str("path", result.DestinationPath).Msg("failed to remove output file")
	}
}
