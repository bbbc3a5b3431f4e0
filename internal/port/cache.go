package port

import (
	"context"

	"github.com/bnema/convqueue/internal/domain"
)

// CacheInvalidator signals the asset, album and tag-index caches that an
// asset changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, keys domain.CacheKeys) error
}
