package db

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

// PostgresDB implements the Database interface using PostgreSQL
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	postgresDB := &PostgresDB{db: db}

	if err := postgresDB.InitDB(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	return postgresDB, nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// Ping checks if the database connection is alive
func (p *PostgresDB) Ping() error {
	return p.db.Ping()
}

// Exec executes a query without returning any rows
func (p *PostgresDB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (p *PostgresDB) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns rows
func (p *PostgresDB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

// CreateStatusEvent appends a status event to the audit trail
func (p *PostgresDB) CreateStatusEvent(ctx context.Context, event *models.StatusEvent) error {
	query := `
		INSERT INTO status_events (tx_hash, chain_id, status, block_number, confirmations, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var blockNumber, confirmations sql.NullInt64
	if event.BlockNumber != 0 {
		blockNumber = sql.NullInt64{Int64: int64(event.BlockNumber), Valid: true}
	}
	if event.Confirmations != nil {
		confirmations = sql.NullInt64{Int64: int64(*event.Confirmations), Valid: true}
	}

	_, err := p.db.ExecContext(ctx, query,
		event.TxHash,
		event.ChainID,
		string(event.Status),
		blockNumber,
		confirmations,
		event.Reason,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create status event")
	}
	return nil
}

// ListStatusEvents returns the recorded events for a transaction hash in
// insertion order
func (p *PostgresDB) ListStatusEvents(ctx context.Context, txHash string) ([]*models.StatusEvent, error) {
	query := `
		SELECT tx_hash, chain_id, status, block_number, confirmations, reason
		FROM status_events
		WHERE tx_hash = $1
		ORDER BY id ASC
	`

	rows, err := p.db.QueryContext(ctx, query, txHash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list status events")
	}
	defer rows.Close()

	var events []*models.StatusEvent
	for rows.Next() {
		var event models.StatusEvent
		var blockNumber, confirmations sql.NullInt64
		if err := rows.Scan(
			&event.TxHash,
			&event.ChainID,
			&event.Status,
			&blockNumber,
			&confirmations,
			&event.Reason,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan status event")
		}
		if blockNumber.Valid {
			event.BlockNumber = uint64(blockNumber.Int64)
		}
		if confirmations.Valid {
			n := uint64(confirmations.Int64)
			event.Confirmations = &n
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate status events")
	}

	return events, nil
}

// CreateKeeperTick records one keeper tick
func (p *PostgresDB) CreateKeeperTick(ctx context.Context, tick *models.KeeperTick) error {
	query := `
		INSERT INTO keeper_ticks (started_at, tx_hash, error, accounts)
		VALUES ($1, $2, $3, $4)
	`

	_, err := p.db.ExecContext(ctx, query, tick.StartedAt, tick.TxHash, tick.Error, tick.Accounts)
	if err != nil {
		return errors.Wrap(err, "failed to create keeper tick")
	}
	return nil
}

// GetLatestKeeperTick returns the most recent keeper tick, or nil when the
// keeper has never ticked
func (p *PostgresDB) GetLatestKeeperTick(ctx context.Context) (*models.KeeperTick, error) {
	query := `
		SELECT started_at, tx_hash, error, accounts
		FROM keeper_ticks
		ORDER BY id DESC
		LIMIT 1
	`

	var tick models.KeeperTick
	err := p.db.QueryRowContext(ctx, query).Scan(&tick.StartedAt, &tick.TxHash, &tick.Error, &tick.Accounts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest keeper tick")
	}

	return &tick, nil
}

// InitDB initializes the database schema
func (p *PostgresDB) InitDB(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS status_events (
			id SERIAL PRIMARY KEY,
			tx_hash VARCHAR(66) NOT NULL,
			chain_id BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			block_number BIGINT,
			confirmations BIGINT,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_status_events_tx_hash ON status_events(tx_hash);

		CREATE TABLE IF NOT EXISTS keeper_ticks (
			id SERIAL PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			tx_hash VARCHAR(66) NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			accounts INT NOT NULL DEFAULT 0
		);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}
	return nil
}
