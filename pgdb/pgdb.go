// Package pgdb executes parameterized statements against a PostgreSQL
// database and maps result rows to loosely-typed records. Each Database owns
// a single connection pool for its lifetime; mutating statements outside an
// explicit transaction commit immediately.
package pgdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// openDB opens the underlying database handle. Indirected for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

// Params holds the connection parameters for one database.
type Params struct {
	User     string
	Host     string
	Password string
	Port     int
	Database string
	// SSLMode defaults to "disable" when empty.
	SSLMode string
}

func (p Params) dsn(dbname string) string {
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, dbname, sslmode)
}

// Record is one result row keyed by column name. Byte slices are converted
// to strings so text columns read naturally.
type Record map[string]any

// querier wraps the standard Exec and Query methods shared by *sql.DB and
// *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn implements statement execution over a querier. Database and Tx embed
// it, so the same operations run inside and outside transactions.
type conn struct {
	q querier
}

// Exec runs a statement that returns no rows.
func (c conn) Exec(ctx context.Context, query string, args []any) error {
	if _, err := c.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("pgdb: exec: %w", err)
	}
	return nil
}

// Query runs a statement and maps each row to a Record using the reported
// column descriptors. Statements without column descriptors return nil.
func (c conn) Query(ctx context.Context, query string, args []any) ([]Record, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgdb: query: %w", err)
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("pgdb: query: %w", err)
	}
	return records, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, rows.Err()
	}
	var records []Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = vals[i]
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Database is a handle to one PostgreSQL database, bound to a single
// connection pool for its lifetime.
type Database struct {
	conn
	db     *sql.DB
	params Params
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, p Params) (*Database, error) {
	db, err := openDB(p.dsn(p.Database))
	if err != nil {
		return nil, &ConnectionError{Host: p.Host, Port: p.Port, Database: p.Database, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{Host: p.Host, Port: p.Port, Database: p.Database, Err: err}
	}
	return NewDatabase(db, p), nil
}

// NewDatabase wraps an existing *sql.DB. Used by Open and by tests that
// inject a mocked handle.
func NewDatabase(db *sql.DB, p Params) *Database {
	return &Database{conn: conn{q: db}, db: db, params: p}
}

// Params returns the connection parameters the database was opened with.
func (d *Database) Params() Params {
	return d.params
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Tx starts a transaction. The returned handle exposes the same Query/Exec
// and record operations as the Database.
func (d *Database) Tx(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pgdb: begin: %w", err)
	}
	return &Tx{conn: conn{q: tx}, tx: tx}, nil
}

// Tx is an open transaction.
type Tx struct {
	conn
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("pgdb: commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("pgdb: rollback: %w", err)
	}
	return nil
}
