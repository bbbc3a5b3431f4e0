package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/infrastructure/logger"
	"github.com/bnema/convqueue/internal/port"
	goredis "github.com/redis/go-redis/v9"
)

// InvalidationChannel carries one message per invalidation so that processes
// holding in-memory copies can drop them too.
const InvalidationChannel = "convqueue:invalidate"

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Invalidator deletes the cached asset, album and tag-index entries of an
// asset and announces the change on InvalidationChannel.
type Invalidator struct {
	client *goredis.Client
}

func NewInvalidator(opts Options) (*Invalidator, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Invalidator{client: client}, nil
}

func (i *Invalidator) Close() error {
	return i.client.Close()
}

func AssetKey(id int64) string {
	return fmt.Sprintf("asset:%d", id)
}

func AlbumKey(id int64) string {
	return fmt.Sprintf("album:%d", id)
}

// TagsKey names the tag index, which is kept per gallery.
func TagsKey(galleryID int64) string {
	return fmt.Sprintf("tags:%d", galleryID)
}

type invalidation struct {
	AssetID   int64    `json:"asset_id"`
	AlbumID   int64    `json:"album_id"`
	GalleryID int64    `json:"gallery_id"`
	Keys      []string `json:"keys"`
}

func (i *Invalidator) Invalidate(ctx context.Context, keys domain.CacheKeys) error {
	msg := invalidation{
		AssetID:   keys.AssetID,
		AlbumID:   keys.AlbumID,
		GalleryID: keys.GalleryID,
		Keys:      []string{AssetKey(keys.AssetID), AlbumKey(keys.AlbumID), TagsKey(keys.GalleryID)},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}

	pipe := i.client.TxPipeline()
	pipe.Del(ctx, msg.Keys...)
	pipe.Publish(ctx, InvalidationChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate asset %d: %w", keys.AssetID, err)
	}

	logger.Debug().Int64("asset_id", keys.AssetID).Strs("keys", msg.Keys).Msg("cache invalidated")
	return nil
}

var _ port.CacheInvalidator = (*Invalidator)(nil)
