package mocks

import (
	"context"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port"
	"github.com/stretchr/testify/mock"
)

type AssetStoreMock struct {
	mock.Mock
}

func NewAssetStoreMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *AssetStoreMock {
	m := &AssetStoreMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *AssetStoreMock) Create(ctx context.Context, asset *domain.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *AssetStoreMock) Get(ctx context.Context, id int64) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if a, ok := args.Get(0).(*domain.Asset); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AssetStoreMock) Save(ctx context.Context, asset *domain.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

var _ port.AssetStore = (*AssetStoreMock)(nil)
