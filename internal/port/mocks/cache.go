package mocks

import (
	"context"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/bnema/convqueue/internal/port"
	"github.com/stretchr/testify/mock"
)

type CacheInvalidatorMock struct {
	mock.Mock
}

func NewCacheInvalidatorMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *CacheInvalidatorMock {
	m := &CacheInvalidatorMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *CacheInvalidatorMock) Invalidate(ctx context.Context, keys domain.CacheKeys) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

var _ port.CacheInvalidator = (*CacheInvalidatorMock)(nil)
