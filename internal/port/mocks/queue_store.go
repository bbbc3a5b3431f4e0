package mocks

import (
	"context"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port"
	"github.com/stretchr/testify/mock"
)

type QueueStoreMock struct {
	mock.Mock
}

func NewQueueStoreMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *QueueStoreMock {
	m := &QueueStoreMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *QueueStoreMock) Create(ctx context.Context, item *domain.QueueItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *QueueStoreMock) Get(ctx context.Context, id int64) (*domain.QueueItem, error) {
	args := m.Called(ctx, id)
	if item, ok := args.Get(0).(*domain.QueueItem); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueStoreMock) List(ctx context.Context) ([]*domain.QueueItem, error) {
	args := m.Called(ctx)
	if items, ok := args.Get(0).([]*domain.QueueItem); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueStoreMock) Update(ctx context.Context, item *domain.QueueItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *QueueStoreMock) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ port.QueueStore = (*QueueStoreMock)(nil)
