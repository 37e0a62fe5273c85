package pgutils

import (
	"context"
	"log/slog"

	"github.com/syssam/pgutils/migrate"
	"github.com/syssam/pgutils/pgdb"
)

// Client is the facade over one configured database: executor access, lazily
// opened on first use, and migration management when enabled for the entry.
// A Client is intended for use from a single goroutine.
type Client struct {
	cfg ClientConfig
	log *slog.Logger
	db  *pgdb.Database
}

// NewClient returns a client for the configuration entry. A nil logger falls
// back to slog.Default. The database connection is not opened until DB,
// Migrations or CreateAndConnectDatabase is called.
func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, log: log}
}

// ID returns the client id.
func (c *Client) ID() string {
	return c.cfg.ID
}

// Config returns the configuration entry the client was built from.
func (c *Client) Config() ClientConfig {
	return c.cfg
}

// ManagesMigrations reports whether migration management is enabled.
func (c *Client) ManagesMigrations() bool {
	return c.cfg.ManageMigrations
}

// DB returns the client's database, opening the connection on first call.
func (c *Client) DB(ctx context.Context) (*pgdb.Database, error) {
	if c.db != nil {
		return c.db, nil
	}
	db, err := pgdb.Open(ctx, c.cfg.params())
	if err != nil {
		return nil, err
	}
	c.db = db
	return c.db, nil
}

// Migrations returns a migration runner over the client's migrations
// directory with the ledger table ensured. Fails with ErrMigrationsDisabled
// when the entry does not manage migrations.
func (c *Client) Migrations(ctx context.Context) (*migrate.Runner, error) {
	if !c.cfg.ManageMigrations {
		return nil, &ConfigurationError{Err: ErrMigrationsDisabled}
	}
	db, err := c.DB(ctx)
	if err != nil {
		return nil, err
	}
	runner := migrate.NewRunner(db, c.cfg.MigrationsDir, c.log.With("client", c.cfg.ID))
	if err := runner.Ledger().Ensure(ctx); err != nil {
		return nil, err
	}
	return runner, nil
}

// CreateAndConnectDatabase creates the client's database when absent, then
// opens the connection. Refused when the entry does not manage migrations.
// The boolean reports whether the database was created by this call.
func (c *Client) CreateAndConnectDatabase(ctx context.Context) (bool, error) {
	if !c.cfg.ManageMigrations {
		return false, &ConfigurationError{Err: ErrMigrationsDisabled}
	}
	created, err := pgdb.CreateDatabase(ctx, c.cfg.params())
	if err != nil {
		return false, err
	}
	if _, err := c.DB(ctx); err != nil {
		return created, err
	}
	if created {
		c.log.Info("database created", "client", c.cfg.ID, "database", c.cfg.Database)
	}
	return created, nil
}

// Close closes the client's database connection when one was opened.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
