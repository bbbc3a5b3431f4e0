package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/convqueue/internal/adapter/storage/jsonfile"
	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port"
	"github.com/stretchr/testify/require"
)

// fakeExecutor stands in for ffmpeg. By default every call writes a small
// file at the destination.
type fakeExecutor struct {
	mu          sync.Mutex
	unavailable bool
	calls       []domain.ConversionRequest
	run         func(ctx context.Context, call int, req domain.ConversionRequest) (string, error)
	probe       *domain.ProbeResult
}

func (f *fakeExecutor) Available() bool {
	return !f.unavailable
}

func (f *fakeExecutor) Execute(ctx context.Context, req domain.ConversionRequest, _ time.Duration) (string, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, req)
	run := f.run
	f.mu.Unlock()

	if run == nil {
		return "", writeOutput(req, "converted")
	}
	return run(ctx, n, req)
}

func (f *fakeExecutor) Probe(_ context.Context, _ string) (*domain.ProbeResult, error) {
	if f.probe == nil {
		return nil, domain.ErrToolUnavailable
	}
	return f.probe, nil
}

func (f *fakeExecutor) Calls() []domain.ConversionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ConversionRequest(nil), f.calls...)
}

func (f *fakeExecutor) setRun(run func(ctx context.Context, call int, req domain.ConversionRequest) (string, error)) {
	f.mu.Lock()
	f.run = run
	f.mu.Unlock()
}

func writeOutput(req domain.ConversionRequest, content string) error {
	return os.WriteFile(req.DestinationPath, []byte(content), 0644)
}

type staticSettings domain.GallerySettings

func (s staticSettings) GallerySettings(int64) domain.GallerySettings {
	return domain.GallerySettings(s)
}

func videoSettings() staticSettings {
	return staticSettings{
		EncoderSettings: []domain.EncoderSetting{
			{Sequence: 1, SourceExt: "*video", DestinationExt: ".mp4", Arguments: `-y -i "{SourceFilePath}" -vf "{AutoRotateFilter}scale={Width}:{Height}" "{DestinationFilePath}"`},
			{Sequence: 2, SourceExt: "*video", DestinationExt: ".webm", Arguments: `-y -i "{SourceFilePath}" "{DestinationFilePath}"`},
		},
	}
}

type testEnv struct {
	queue    *ConversionQueue
	store    *jsonfile.Store
	executor *fakeExecutor
	bus      *EventBus
	events   chan Event
	dir      string
}

func newTestEnv(t *testing.T, settings port.GallerySettingsProvider, cache port.CacheInvalidator) *testEnv {
	t.Helper()

	dataDir := t.TempDir()
	store, err := jsonfile.NewStore(dataDir)
	require.NoError(t, err)

	env := &testEnv{
		store:    store,
		executor: &fakeExecutor{},
		bus:      NewEventBus(),
		dir:      t.TempDir(),
	}
	env.events = env.bus.SubscribeBuffered(1024)
	env.open(t, settings, cache)
	return env
}

// open (re)creates the queue over the env's store.
func (e *testEnv) open(t *testing.T, settings port.GallerySettingsProvider, cache port.CacheInvalidator) {
	t.Helper()
	q, err := NewConversionQueue(context.Background(), e.store.Queue(), e.store.Assets(), e.executor, settings, cache, e.bus)
	require.NoError(t, err)
	t.Cleanup(q.Close)
	e.queue = q
}

func (e *testEnv) createAsset(t *testing.T, name string) *domain.Asset {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("original "+name), 0644))

	asset := domain.NewAsset(1, 1, path)
	asset.Original.FileSize = int64(len("original " + name))
	require.NoError(t, e.store.Assets().Create(context.Background(), asset))
	return asset
}

func (e *testEnv) add(t *testing.T, asset *domain.Asset, ct domain.ConversionType) *domain.QueueItem {
	t.Helper()
	item, err := e.queue.Add(context.Background(), asset, ct)
	require.NoError(t, err)
	return item
}

// processAll runs the worker loop to completion.
func (e *testEnv) processAll(t *testing.T) {
	t.Helper()
	require.True(t, e.queue.Process())
	e.queue.Wait()
}

func (e *testEnv) item(t *testing.T, id int64) *domain.QueueItem {
	t.Helper()
	item, ok := e.queue.Get(id)
	require.True(t, ok, "item %d not in queue", id)
	return item
}

func (e *testEnv) reloadAsset(t *testing.T, id int64) *domain.Asset {
	t.Helper()
	asset, err := e.store.Assets().Get(context.Background(), id)
	require.NoError(t, err)
	return asset
}

// drainEvents returns every event published so far.
func (e *testEnv) drainEvents() []Event {
	var out []Event
	for {
		select {
		case ev := <-e.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}
