package migrate

import (
	"context"
	"log/slog"

	"github.com/syssam/pgutils/pgdb"
)

// Runner applies and reverts migrations against one database. Every file runs
// in its own transaction together with its ledger write, and a batch stops at
// the first failure, leaving earlier files committed.
type Runner struct {
	db     *pgdb.Database
	dir    Dir
	ledger *Ledger
	log    *slog.Logger
}

// NewRunner returns a runner over the database and migrations directory. A
// nil logger falls back to slog.Default.
func NewRunner(db *pgdb.Database, dir string, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{db: db, dir: NewDir(dir), ledger: NewLedger(db), log: log}
}

// Ledger returns the runner's ledger.
func (r *Runner) Ledger() *Ledger {
	return r.ledger
}

// Dir returns the runner's migration source directory.
func (r *Runner) Dir() Dir {
	return r.dir
}

// ApplyAll applies every migration file not yet in the ledger, in file-name
// order, and returns how many were applied. All files are parsed up front, so
// a malformed file fails the batch before any SQL is sent.
func (r *Runner) ApplyAll(ctx context.Context) (int, error) {
	names, err := r.dir.Files()
	if err != nil {
		return 0, err
	}
	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		m, err := r.dir.Read(name)
		if err != nil {
			return 0, err
		}
		migrations = append(migrations, m)
	}
	if err := r.ledger.Ensure(ctx); err != nil {
		return 0, err
	}
	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return 0, err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}
	count := 0
	for _, m := range migrations {
		if done[m.Name] {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return count, err
		}
		r.log.Info("migration applied", "file", m.Name)
		count++
	}
	return count, nil
}

// RevertLast reverts the most recently recorded migration. The boolean
// reports whether there was anything to revert.
func (r *Runner) RevertLast(ctx context.Context) (string, bool, error) {
	if err := r.ledger.Ensure(ctx); err != nil {
		return "", false, err
	}
	applied, err := r.ledger.AppliedDesc(ctx)
	if err != nil {
		return "", false, err
	}
	if len(applied) == 0 {
		return "", false, nil
	}
	name := applied[0]
	m, err := r.dir.Read(name)
	if err != nil {
		return "", false, err
	}
	if err := r.revert(ctx, m); err != nil {
		return "", false, err
	}
	r.log.Info("migration reverted", "file", name)
	return name, true, nil
}

// RevertAll reverts every recorded migration, newest first, and returns how
// many were reverted.
func (r *Runner) RevertAll(ctx context.Context) (int, error) {
	if err := r.ledger.Ensure(ctx); err != nil {
		return 0, err
	}
	applied, err := r.ledger.AppliedDesc(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, name := range applied {
		m, err := r.dir.Read(name)
		if err != nil {
			return count, err
		}
		if err := r.revert(ctx, m); err != nil {
			return count, err
		}
		r.log.Info("migration reverted", "file", name)
		count++
	}
	return count, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.Tx(ctx)
	if err != nil {
		return err
	}
	if m.Up != "" {
		if err := tx.Exec(ctx, m.Up, nil); err != nil {
			tx.Rollback()
			return &ExecError{File: m.Name, Direction: "apply", Err: err}
		}
	}
	if err := r.ledger.Record(ctx, tx, m.Name); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &ExecError{File: m.Name, Direction: "apply", Err: err}
	}
	return nil
}

func (r *Runner) revert(ctx context.Context, m Migration) error {
	tx, err := r.db.Tx(ctx)
	if err != nil {
		return err
	}
	if m.Down != "" {
		if err := tx.Exec(ctx, m.Down, nil); err != nil {
			tx.Rollback()
			return &ExecError{File: m.Name, Direction: "revert", Err: err}
		}
	}
	if err := r.ledger.Remove(ctx, tx, m.Name); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &ExecError{File: m.Name, Direction: "revert", Err: err}
	}
	return nil
}
