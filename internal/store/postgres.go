package store

import (
	"context"
	"fmt"

	"mcpstudio/pkg/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listEnabledServersQuery = `SELECT name, type, config, enabled FROM mcp_servers WHERE user_id = $1 AND enabled ORDER BY name`

// DBTX is the subset of a pgx pool the store uses. *pgxpool.Pool and
// pgxmock pools satisfy it.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore reads user servers from the mcp_servers table.
type PostgresStore struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	logging.Info("Store", "Connected to Postgres user server store")
	return &PostgresStore{db: pool, pool: pool}, nil
}

// NewPostgresStoreFromDB wraps an existing connection.
func NewPostgresStoreFromDB(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListEnabledServers returns the enabled servers of userID, ordered by name.
func (s *PostgresStore) ListEnabledServers(ctx context.Context, userID string) ([]ServerRow, error) {
	rows, err := s.db.Query(ctx, listEnabledServersQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers of user %s: %w", userID, err)
	}
	defer rows.Close()

	var result []ServerRow
	for rows.Next() {
		var (
			row    ServerRow
			config []byte
		)
		if err := rows.Scan(&row.Name, &row.Type, &config, &row.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan server row: %w", err)
		}
		if config != nil {
			row.Config = config
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list servers of user %s: %w", userID, err)
	}
	return result, nil
}

// Close releases the pool if the store owns one.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
