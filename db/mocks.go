package db

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

// MockDB is a mock implementation of the Database interface for testing
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDB) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	mockArgs := m.Called(ctx, query, args)
	if mockArgs.Get(0) == nil {
		return nil, mockArgs.Error(1)
	}
	return mockArgs.Get(0).(sql.Result), mockArgs.Error(1)
}

func (m *MockDB) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	mockArgs := m.Called(ctx, query, args)
	return mockArgs.Get(0).(*sql.Row)
}

func (m *MockDB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	mockArgs := m.Called(ctx, query, args)
	if mockArgs.Get(0) == nil {
		return nil, mockArgs.Error(1)
	}
	return mockArgs.Get(0).(*sql.Rows), mockArgs.Error(1)
}

func (m *MockDB) CreateStatusEvent(ctx context.Context, event *models.StatusEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockDB) ListStatusEvents(ctx context.Context, txHash string) ([]*models.StatusEvent, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StatusEvent), args.Error(1)
}

func (m *MockDB) CreateKeeperTick(ctx context.Context, tick *models.KeeperTick) error {
	args := m.Called(ctx, tick)
	return args.Error(0)
}

func (m *MockDB) GetLatestKeeperTick(ctx context.Context) (*models.KeeperTick, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.KeeperTick), args.Error(1)
}

func (m *MockDB) InitDB(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
