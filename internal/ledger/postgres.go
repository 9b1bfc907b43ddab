package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresTableName        = "relay_ledger"
	postgresOperationTimeout = 5 * time.Second
)

type (
	// PostgresDB is a lazily initialized connection shared by every
	// namespace stored in the same table
	PostgresDB struct {
		dsn       string
		tableName string
		openDB    func(driverName, dsn string) (*sql.DB, error)

		initOnce sync.Once
		initErr  error
		db       *sql.DB
	}

	// Postgres stores one namespace as rows of the shared ledger table.
	// SetIfAbsent is INSERT ... ON CONFLICT DO NOTHING
	Postgres[V any] struct {
		pg        *PostgresDB
		namespace string
	}
)

var _ Ledger[string] = (*Postgres[string])(nil)

// NewPostgresDB prepares a connection for dsn. Nothing is dialed until the
// first ledger operation
func NewPostgresDB(dsn string) (*PostgresDB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidDSN
	}
	return &PostgresDB{
		dsn:       dsn,
		tableName: postgresTableName,
		openDB:    sql.Open,
	}, nil
}

// NewPostgres creates a Ledger for namespace on the shared connection
func NewPostgres[V any](pg *PostgresDB, namespace string) *Postgres[V] {
	return &Postgres[V]{
		pg:        pg,
		namespace: namespace,
	}
}

func (p *Postgres[V]) Set(ctx context.Context, key string, value V) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	db, err := p.pg.ensureReady()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		p.pg.table())
	_, err = db.ExecContext(ctx, query, p.namespace, key, data)
	return err
}

func (p *Postgres[V]) SetIfAbsent(
	ctx context.Context, key string, value V,
) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	data, err := encode(value)
	if err != nil {
		return false, err
	}
	db, err := p.pg.ensureReady()
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO NOTHING`, p.pg.table())
	res, err := db.ExecContext(ctx, query, p.namespace, key, data)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *Postgres[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	db, err := p.pg.ensureReady()
	if err != nil {
		return zero, false, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT value FROM %s WHERE namespace = $1 AND key = $2",
		p.pg.table())
	var data string
	err = db.QueryRowContext(ctx, query, p.namespace, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	v, err := decode[V](data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (p *Postgres[V]) Delete(ctx context.Context, key string) error {
	db, err := p.pg.ensureReady()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE namespace = $1 AND key = $2", p.pg.table())
	_, err = db.ExecContext(ctx, query, p.namespace, key)
	return err
}

func (p *Postgres[V]) Dump(ctx context.Context) ([]Record[V], error) {
	db, err := p.pg.ensureReady()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT key, value FROM %s WHERE namespace = $1", p.pg.table())
	rows, err := db.QueryContext(ctx, query, p.namespace)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []Record[V]
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, err
		}
		v, err := decode[V](data)
		if err != nil {
			return nil, err
		}
		res = append(res, Record[V]{Key: key, Value: v})
	}
	return res, rows.Err()
}

func (p *Postgres[V]) Clear(ctx context.Context) error {
	db, err := p.pg.ensureReady()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE namespace = $1", p.pg.table())
	_, err = db.ExecContext(ctx, query, p.namespace)
	return err
}

// Close releases the underlying connection pool
func (pg *PostgresDB) Close() error {
	if pg == nil || pg.db == nil {
		return nil
	}
	return pg.db.Close()
}

func (pg *PostgresDB) table() string {
	return postgresQuoteIdentifier(pg.tableName)
}

func (pg *PostgresDB) ensureReady() (*sql.DB, error) {
	pg.initOnce.Do(func() {
		db, err := pg.openDB("postgres", pg.dsn)
		if err != nil {
			pg.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(
			context.Background(), postgresOperationTimeout,
		)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				namespace TEXT NOT NULL,
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (namespace, key)
			)`, pg.table())
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			pg.initErr = err
			return
		}
		pg.db = db
	})
	return pg.db, pg.initErr
}

func postgresQuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
