package port

import (
	"context"
	"time"

	"github.com/bnema/convqueue/internal/domain"
)

// ConversionExecutor runs the external encoding tool. Failures show up as a
// missing or empty destination file; the returned error carries only the
// reason for the status detail, or context.Canceled when the caller canceled.
type ConversionExecutor interface {
	Available() bool
	Execute(ctx context.Context, req domain.ConversionRequest, timeout time.Duration) (output string, err error)
	Probe(ctx context.Context, path string) (*domain.ProbeResult, error)
}
