package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var count int
	err = second.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('assets', 'queue_items')`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestQueueStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	queue := store.Queue()
	ctx := context.Background()

	item := domain.NewQueueItem(&domain.Asset{ID: 9, RotateFlip: domain.Rotate90}, domain.ConversionRotateVideo)
	require.NoError(t, queue.Create(ctx, item))
	require.False(t, item.IsNew())

	got, err := queue.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.AssetID)
	assert.Equal(t, domain.ItemStatusWaiting, got.Status)
	assert.Equal(t, domain.ConversionRotateVideo, got.ConversionType)
	assert.Equal(t, domain.Rotate90, got.RotateFlip)
	assert.WithinDuration(t, item.DateAdded, got.DateAdded, time.Millisecond)
	assert.False(t, got.DateConversionStarted.Valid)

	start := time.Now().UTC()
	item.MarkStarted(start)
	item.AppendDetail("line one")
	item.AppendDetail("line two")
	item.NewFilename = "clip.mp4"
	item.MarkCompleted(domain.ItemStatusComplete, start.Add(time.Second))
	require.NoError(t, queue.Update(ctx, item))

	got, err = queue.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusComplete, got.Status)
	assert.Equal(t, "line one\nline two", got.StatusDetail)
	assert.Equal(t, "clip.mp4", got.NewFilename)
	assert.Equal(t, time.Second, got.Duration())

	require.NoError(t, queue.Delete(ctx, item.ID))
	_, err = queue.Get(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueStore_ListOrdersByDateAdded(t *testing.T) {
	store := newTestStore(t)
	queue := store.Queue()
	ctx := context.Background()

	base := time.Now().UTC()
	late := domain.NewQueueItem(&domain.Asset{ID: 1}, domain.ConversionCreateOptimized)
	late.DateAdded = base.Add(time.Minute)
	early := domain.NewQueueItem(&domain.Asset{ID: 2}, domain.ConversionCreateOptimized)
	early.DateAdded = base

	require.NoError(t, queue.Create(ctx, late))
	require.NoError(t, queue.Create(ctx, early))

	items, err := queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, early.ID, items[0].ID)
	assert.Equal(t, late.ID, items[1].ID)
}

func TestQueueStore_IDsAreNotReused(t *testing.T) {
	store := newTestStore(t)
	queue := store.Queue()
	ctx := context.Background()

	first := domain.NewQueueItem(&domain.Asset{ID: 1}, domain.ConversionCreateOptimized)
	require.NoError(t, queue.Create(ctx, first))
	require.NoError(t, queue.Delete(ctx, first.ID))

	second := domain.NewQueueItem(&domain.Asset{ID: 1}, domain.ConversionCreateOptimized)
	require.NoError(t, queue.Create(ctx, second))

	assert.Greater(t, second.ID, first.ID)
}

func TestAssetStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	assets := store.Assets()
	ctx := context.Background()

	asset := domain.NewAsset(3, 4, "/media/holiday clip.mov")
	asset.Tags = []string{"beach", "2024"}
	asset.Original.FileSize = 1024
	require.NoError(t, assets.Create(ctx, asset))

	got, err := assets.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaTypeVideo, got.Type)
	assert.Equal(t, "holiday clip", got.Title)
	assert.Equal(t, []string{"beach", "2024"}, got.Tags)
	assert.Nil(t, got.Optimized)

	got.Optimized = &domain.Rendition{Path: "/media/holiday clip_opt.mp4", FileSize: 512, Width: 640, Height: 360}
	got.RotateFlip = domain.RotateNone
	require.NoError(t, assets.Save(ctx, got))

	reloaded, err := assets.Get(ctx, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Optimized)
	assert.Equal(t, "holiday clip_opt.mp4", reloaded.Optimized.Filename())
	assert.Equal(t, 640, reloaded.Optimized.Width)

	all, err := assets.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, assets.Delete(ctx, asset.ID))
	_, err = assets.Get(ctx, asset.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, assets.Save(ctx, got), domain.ErrNotFound)
}
