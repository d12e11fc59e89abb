package storage

import (
	"context"

	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/stretchr/testify/mock"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, item *lifecycle.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, id string) (*lifecycle.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lifecycle.Item), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, item *lifecycle.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context, opts ListOptions) ([]lifecycle.Item, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]lifecycle.Item), args.Error(1)
}

func (m *MockStore) Watch(ctx context.Context) (<-chan Change, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan Change), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
