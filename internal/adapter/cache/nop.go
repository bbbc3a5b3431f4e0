package cache

import (
	"context"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port"
)

// Nop is used when no external cache is configured.
type Nop struct{}

func (Nop) Invalidate(context.Context, domain.CacheKeys) error { return nil }

var _ port.CacheInvalidator = Nop{}
