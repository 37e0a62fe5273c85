package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/syssam/pgutils/pgsql"
)

// FindMany builds and executes the selector. When the selector has joins but
// no explicit projection, each joined table's columns are read from
// information_schema and projected as joinalias_column.
func (c conn) FindMany(ctx context.Context, s *pgsql.Selector) ([]Record, error) {
	if !s.HasColumns() {
		for _, j := range s.ResolvedJoins() {
			cols, err := c.TableColumns(ctx, j.Table)
			if err != nil {
				return nil, err
			}
			s.ExpandJoin(j.Alias, cols...)
		}
	}
	query, args, err := s.Build()
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, query, args)
}

// FindFirst executes the selector with limit 1. The boolean reports whether
// a record was found; absence is not an error.
func (c conn) FindFirst(ctx context.Context, s *pgsql.Selector) (Record, bool, error) {
	records, err := c.FindMany(ctx, s.Limit(1))
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

// Count executes the selector's COUNT(*) form.
func (c conn) Count(ctx context.Context, s *pgsql.Selector) (int64, error) {
	query, args, err := s.BuildCount()
	if err != nil {
		return 0, err
	}
	records, err := c.Query(ctx, query, args)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	switch total := records[0]["total"].(type) {
	case int64:
		return total, nil
	case string:
		n, err := strconv.ParseInt(total, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("pgdb: count: parse total: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("pgdb: count: unexpected total type %T", total)
	}
}

// Insert builds and executes the insert. With a RETURNING projection the
// first resulting record is returned, keyed by the selected columns;
// otherwise the statement executes without a result and the record is nil.
func (c conn) Insert(ctx context.Context, ins *pgsql.Inserter) (Record, error) {
	query, args, err := ins.Build()
	if err != nil {
		return nil, err
	}
	if len(ins.ReturningColumns()) == 0 {
		return nil, c.Exec(ctx, query, args)
	}
	records, err := c.Query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Update builds and executes the update.
func (c conn) Update(ctx context.Context, u *pgsql.Updater) error {
	query, args, err := u.Build()
	if err != nil {
		return err
	}
	return c.Exec(ctx, query, args)
}

// Delete builds and executes the delete.
func (c conn) Delete(ctx context.Context, d *pgsql.Deleter) error {
	query, args, err := d.Build()
	if err != nil {
		return err
	}
	return c.Exec(ctx, query, args)
}

// TableColumns returns the table's column names in ordinal order.
func (c conn) TableColumns(ctx context.Context, table string) ([]string, error) {
	s := pgsql.Select("information_schema.columns").As("i").
		Columns(map[string]bool{"column_name": true}).
		Where(pgsql.EQ("table_name", table)).
		OrderBy(pgsql.Order{Column: "ordinal_position"})
	records, err := c.FindMany(ctx, s)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(records))
	for _, rec := range records {
		name, _ := rec["column_name"].(string)
		columns = append(columns, name)
	}
	return columns, nil
}

// CreateDatabase creates the configured database when it does not exist yet.
func (d *Database) CreateDatabase(ctx context.Context) (bool, error) {
	return CreateDatabase(ctx, d.params)
}

// CreateDatabase connects to the server's maintenance database and creates
// the target database when it does not exist yet. Usable before the target
// database can be opened. Idempotent: the boolean reports whether the
// database was created by this call.
func CreateDatabase(ctx context.Context, p Params) (bool, error) {
	name := p.Database
	if !pgsql.ValidIdentifier(name) {
		return false, fmt.Errorf("pgdb: create database %q: %w", name, pgsql.ErrBadIdentifier)
	}
	admin, err := openDB(p.dsn("postgres"))
	if err != nil {
		return false, &ConnectionError{Host: p.Host, Port: p.Port, Database: "postgres", Err: err}
	}
	defer admin.Close()

	var one int
	err = admin.QueryRowContext(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", name).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
		if _, err := admin.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %q", name)); err != nil {
			return false, fmt.Errorf("pgdb: create database %q: %w", name, err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("pgdb: create database %q: %w", name, err)
	}
}
