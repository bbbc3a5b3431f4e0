package port

import (
	"context"

	"github.com/bnema/convqueue/internal/domain"
)

// QueueStore persists queue items. Create assigns the item's ID.
type QueueStore interface {
	Create(ctx context.Context, item *domain.QueueItem) error
	Get(ctx context.Context, id int64) (*domain.QueueItem, error)
	List(ctx context.Context) ([]*domain.QueueItem, error)
	Update(ctx context.Context, item *domain.QueueItem) error
	Delete(ctx context.Context, id int64) error
}

// AssetStore loads and saves the media assets queue items operate on.
type AssetStore interface {
	Create(ctx context.Context, asset *domain.Asset) error
	Get(ctx context.Context, id int64) (*domain.Asset, error)
	Save(ctx context.Context, asset *domain.Asset) error
}
