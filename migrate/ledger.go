package migrate

import (
	"context"

	"github.com/syssam/pgutils/pgdb"
	"github.com/syssam/pgutils/pgsql"
)

// TableName is the ledger table holding one row per applied migration.
const TableName = "_migrations"

// ensureLedger creates the ledger table. The insertion-ordered SERIAL id is
// what revert walks backwards over.
const ensureLedger = `CREATE TABLE IF NOT EXISTS _migrations (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// Ledger reads and writes the applied-migrations table. Rows are only ever
// inserted and deleted, never updated; Record and Remove run on the caller's
// transaction so the ledger write commits atomically with the migration SQL.
type Ledger struct {
	db *pgdb.Database
}

// NewLedger returns a ledger over the database's _migrations table.
func NewLedger(db *pgdb.Database) *Ledger {
	return &Ledger{db: db}
}

// Ensure creates the ledger table when it does not exist. Idempotent.
func (l *Ledger) Ensure(ctx context.Context) error {
	if err := l.db.Exec(ctx, ensureLedger, nil); err != nil {
		return &LedgerError{Op: "ensure", Err: err}
	}
	return nil
}

// Applied returns the recorded migration names in insertion order.
func (l *Ledger) Applied(ctx context.Context) ([]string, error) {
	return l.applied(ctx, pgsql.Asc)
}

// AppliedDesc returns the recorded migration names newest first.
func (l *Ledger) AppliedDesc(ctx context.Context) ([]string, error) {
	return l.applied(ctx, pgsql.Desc)
}

func (l *Ledger) applied(ctx context.Context, dir pgsql.Direction) ([]string, error) {
	records, err := l.db.FindMany(ctx, pgsql.Select(TableName).
		Columns(map[string]bool{"name": true}).
		OrderBy(pgsql.Order{Column: "id", Direction: dir}))
	if err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		name, _ := rec["name"].(string)
		names = append(names, name)
	}
	return names, nil
}

// Record inserts a ledger row for the migration on the given transaction.
func (l *Ledger) Record(ctx context.Context, tx *pgdb.Tx, name string) error {
	if _, err := tx.Insert(ctx, pgsql.Insert(TableName).Set(map[string]any{"name": name})); err != nil {
		return &LedgerError{Op: "record", Err: err}
	}
	return nil
}

// Remove deletes the migration's ledger row on the given transaction.
func (l *Ledger) Remove(ctx context.Context, tx *pgdb.Tx, name string) error {
	if err := tx.Delete(ctx, pgsql.Delete(TableName).Where(pgsql.EQ("name", name))); err != nil {
		return &LedgerError{Op: "remove", Err: err}
	}
	return nil
}
