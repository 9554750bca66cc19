package db

import (
	"context"
	"database/sql"

	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

// Database interface defines the methods that a database implementation must provide
type Database interface {
	// Database connection management
	Close() error
	Ping() error
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	// Status event audit trail
	CreateStatusEvent(ctx context.Context, event *models.StatusEvent) error
	ListStatusEvents(ctx context.Context, txHash string) ([]*models.StatusEvent, error)

	// Keeper tick audit trail
	CreateKeeperTick(ctx context.Context, tick *models.KeeperTick) error
	GetLatestKeeperTick(ctx context.Context) (*models.KeeperTick, error)

	// Schema management
	InitDB(ctx context.Context) error
}
