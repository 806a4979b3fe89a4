package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	DefaultTableName = "fhevm_signatures"
	PostgresDriver   = "postgres"
)

var tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SqlStorage stores entries in a two-column table of a database/sql database.
type SqlStorage struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

var _ IStringStorage = (*SqlStorage)(nil)

// OpenPostgresStorage connects to postgres with dsn and prepares table.
func OpenPostgresStorage(ctx context.Context, dsn, table string, l *zap.Logger) (*SqlStorage, error) {
	db, err := sql.Open(PostgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	s, err := NewSqlStorage(ctx, db, table, l)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSqlStorage wraps db and creates table if it does not exist. An empty
// table name uses DefaultTableName.
func NewSqlStorage(ctx context.Context, db *sql.DB, table string, l *zap.Logger) (*SqlStorage, error) {
	if table == "" {
		table = DefaultTableName
	}
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	s := &SqlStorage{db: db, table: table, logger: l}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (storage_key TEXT PRIMARY KEY, storage_value TEXT)`, table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	l.Sugar().Debugw("Prepared signature table", zap.String("table", table))
	return s, nil
}

func (s *SqlStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	q := fmt.Sprintf(`SELECT storage_value FROM %s WHERE storage_key = $1`, s.table)
	var value string
	err := s.db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// SetItem replaces any existing row for key inside one transaction.
func (s *SqlStorage) SetItem(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	del := fmt.Sprintf(`DELETE FROM %s WHERE storage_key = $1`, s.table)
	if _, err := tx.ExecContext(ctx, del, key); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear %s: %w", key, err)
	}
	ins := fmt.Sprintf(`INSERT INTO %s (storage_key, storage_value) VALUES ($1, $2)`, s.table)
	if _, err := tx.ExecContext(ctx, ins, key, value); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

func (s *SqlStorage) RemoveItem(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE storage_key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *SqlStorage) Close() error {
	return s.db.Close()
}
