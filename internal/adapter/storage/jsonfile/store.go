package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port"
)

const fileName = "convqueue.json"

type snapshot struct {
	NextItemID  int64               `json:"next_item_id"`
	NextAssetID int64               `json:"next_asset_id"`
	Items       []*domain.QueueItem `json:"items"`
	Assets      []*domain.Asset     `json:"assets"`
}

// Store keeps queue items and assets in a single JSON file, rewritten
// atomically on every change. Values are copied in and out so callers never
// share memory with the store.
type Store struct {
	mu          sync.RWMutex
	path        string
	items       map[int64]*domain.QueueItem
	assets      map[int64]*domain.Asset
	nextItemID  int64
	nextAssetID int64
}

func NewStore(dataDir string) (*Store, error) {
	store := &Store{
		path:        filepath.Join(dataDir, fileName),
		items:       make(map[int64]*domain.QueueItem),
		assets:      make(map[int64]*domain.Asset),
		nextItemID:  1,
		nextAssetID: 1,
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	for _, item := range snap.Items {
		s.items[item.ID] = item
		if item.ID >= s.nextItemID {
			s.nextItemID = item.ID + 1
		}
	}
	for _, asset := range snap.Assets {
		s.assets[asset.ID] = asset
		if asset.ID >= s.nextAssetID {
			s.nextAssetID = asset.ID + 1
		}
	}
	if snap.NextItemID > s.nextItemID {
		s.nextItemID = snap.NextItemID
	}
	if snap.NextAssetID > s.nextAssetID {
		s.nextAssetID = snap.NextAssetID
	}

	return nil
}

func (s *Store) save() error {
	tmpPath := s.path + ".tmp"

	snap := snapshot{
		NextItemID:  s.nextItemID,
		NextAssetID: s.nextAssetID,
		Items:       make([]*domain.QueueItem, 0, len(s.items)),
		Assets:      make([]*domain.Asset, 0, len(s.assets)),
	}
	for _, item := range s.items {
		snap.Items = append(snap.Items, item)
	}
	for _, asset := range s.assets {
		snap.Assets = append(snap.Assets, asset)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

// Queue returns the queue item side of the store.
func (s *Store) Queue() *QueueStore { return &QueueStore{s: s} }

// Assets returns the asset side of the store.
func (s *Store) Assets() *AssetStore { return &AssetStore{s: s} }

type QueueStore struct{ s *Store }

func (q *QueueStore) Create(_ context.Context, item *domain.QueueItem) error {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = s.nextItemID
	s.nextItemID++
	s.items[item.ID] = item.Clone()
	return s.save()
}

func (q *QueueStore) Get(_ context.Context, id int64) (*domain.QueueItem, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item.Clone(), nil
}

func (q *QueueStore) List(_ context.Context) ([]*domain.QueueItem, error) {
	s := q.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.QueueItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out, nil
}

// Update ignores items that were deleted in the meantime.
func (q *QueueStore) Update(_ context.Context, item *domain.QueueItem) error {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return nil
	}
	s.items[item.ID] = item.Clone()
	return s.save()
}

func (q *QueueStore) Delete(_ context.Context, id int64) error {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	return s.save()
}

type AssetStore struct{ s *Store }

func (a *AssetStore) Create(_ context.Context, asset *domain.Asset) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	asset.ID = s.nextAssetID
	s.nextAssetID++
	s.assets[asset.ID] = asset.Clone()
	return s.save()
}

func (a *AssetStore) Get(_ context.Context, id int64) (*domain.Asset, error) {
	s := a.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.assets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return asset.Clone(), nil
}

func (a *AssetStore) Save(_ context.Context, asset *domain.Asset) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[asset.ID]; !ok {
		return domain.ErrNotFound
	}
	s.assets[asset.ID] = asset.Clone()
	return s.save()
}

// Delete removes an asset record. Queue items that reference it are left for
// the queue to drop when it reaches them.
func (a *AssetStore) Delete(_ context.Context, id int64) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assets, id)
	return s.save()
}

var (
	_ port.QueueStore = (*QueueStore)(nil)
	_ port.AssetStore = (*AssetStore)(nil)
)
