package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bnema/convqueue/internal/adapter/http/ratelimit"
	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port/mocks"
	"github.com/bnema/convqueue/internal/service"
)

const testToken = "0123456789abcdef-admin"

type queueMock struct {
	mock.Mock
}

func newQueueMock(t *testing.T) *queueMock {
	m := &queueMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *queueMock) Add(ctx context.Context, asset *domain.Asset, ct domain.ConversionType) (*domain.QueueItem, error) {
	args := m.Called(ctx, asset, ct)
	item, _ := args.Get(0).(*domain.QueueItem)
	return item, args.Error(1)
}

func (m *queueMock) Process() bool {
	return m.Called().Bool(0)
}

func (m *queueMock) CancelItem(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *queueMock) RemoveItem(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *queueMock) Remove(ctx context.Context, assetID int64) error {
	return m.Called(ctx, assetID).Error(0)
}

func (m *queueMock) DeleteOldItems(ctx context.Context, days int) (int, error) {
	args := m.Called(ctx, days)
	return args.Int(0), args.Error(1)
}

func (m *queueMock) Get(id int64) (*domain.QueueItem, bool) {
	args := m.Called(id)
	item, _ := args.Get(0).(*domain.QueueItem)
	return item, args.Bool(1)
}

func (m *queueMock) GetCurrent() *domain.QueueItem {
	item, _ := m.Called().Get(0).(*domain.QueueItem)
	return item
}

func (m *queueMock) Items() []*domain.QueueItem {
	items, _ := m.Called().Get(0).([]*domain.QueueItem)
	return items
}

func (m *queueMock) Status() service.QueueStatus {
	return m.Called().Get(0).(service.QueueStatus)
}

func (m *queueMock) IsWaitingInQueueOrProcessing(assetID int64, ct domain.ConversionType) bool {
	return m.Called(assetID, ct).Bool(0)
}

func (m *queueMock) HasEncoderSetting(asset *domain.Asset) bool {
	return m.Called(asset).Bool(0)
}

var _ QueueService = (*queueMock)(nil)

type testServer struct {
	queue  *queueMock
	assets *mocks.AssetStoreMock
	bus    *service.EventBus
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testToken), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := NewTokenAuth(string(hash))
	require.NoError(t, err)

	ts := &testServer{
		queue:  newQueueMock(t),
		assets: mocks.NewAssetStoreMock(t),
		bus:    service.NewEventBus(),
	}
	ts.server = NewServer(ServerConfig{
		Queue:     ts.queue,
		Assets:    ts.assets,
		Events:    ts.bus,
		Auth:      auth,
		Limiter:   ratelimit.NewFailureLimiter(3, time.Minute, ratelimit.NewBackoff(time.Minute, time.Hour, 2)),
		PurgeDays: 180,
	})
	return ts
}

func (ts *testServer) do(method, target, body string, authorized bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) expectState(status service.QueueStatus, current *domain.QueueItem, items []*domain.QueueItem) {
	ts.queue.On("Status").Return(status).Maybe()
	ts.queue.On("GetCurrent").Return(current).Maybe()
	ts.queue.On("Items").Return(items).Maybe()
}
