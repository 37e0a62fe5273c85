// Command pgutils manages the configured PostgreSQL clients: project
// scaffolding, database creation and SQL migrations, driven by the
// pg-utils.json file in the working directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/syssam/pgutils"
	"github.com/syssam/pgutils/migrate"
)

const migrationsDir = "migrations"

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(log)
	case "add":
		err = runAdd(log, os.Args[2:])
	case "create":
		err = runCreate(log, os.Args[2:])
	case "migrate":
		err = runMigrate(log, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pgutils <command> [flags]

commands:
  init     create the migrations directory and a default pg-utils.json
  add      append a client entry to pg-utils.json
  create   create the database for one client (-i) or all managed clients
  migrate  scaffold (-c), apply, or revert (-d, -a) migrations`)
}

func runInit(log *slog.Logger) error {
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return err
	}
	log.Info("migrations directory ready", "dir", migrationsDir)
	created, err := pgutils.WriteDefaultConfig(pgutils.ConfigFile)
	if err != nil {
		return err
	}
	if created {
		log.Info("configuration file created", "file", pgutils.ConfigFile)
	}
	added, err := pgutils.EnsureGitignore(".gitignore")
	if err != nil {
		return err
	}
	if added {
		log.Info("configuration file added to .gitignore")
	}
	return nil
}

func runAdd(log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	var cfg pgutils.ClientConfig
	fs.StringVar(&cfg.ID, "i", "", "client id")
	fs.StringVar(&cfg.User, "u", "", "database user")
	fs.StringVar(&cfg.Host, "H", "", "database host")
	fs.StringVar(&cfg.Password, "p", "", "database password")
	fs.IntVar(&cfg.Port, "P", 5432, "database port")
	fs.StringVar(&cfg.Database, "d", "", "database name")
	fs.BoolVar(&cfg.ManageMigrations, "m", false, "enable migration management")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.ID == "" || cfg.User == "" || cfg.Host == "" || cfg.Database == "" {
		return fmt.Errorf("add: -i, -u, -H and -d are required")
	}
	if err := pgutils.AddClient(pgutils.ConfigFile, cfg); err != nil {
		return err
	}
	log.Info("client added", "client", cfg.ID)
	return nil
}

func runCreate(log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	id := fs.String("i", "", "client id (default: all managed clients)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	registry, err := pgutils.LoadRegistry(pgutils.ConfigFile, log)
	if err != nil {
		return err
	}
	defer registry.Close()

	clients, err := selectClients(registry, *id)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, c := range clients {
		created, err := c.CreateAndConnectDatabase(ctx)
		if err != nil {
			return err
		}
		log.Info("database ready", "client", c.ID(), "created", created)
	}
	return nil
}

func runMigrate(log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	create := fs.String("c", "", "scaffold a new migration file with the given name")
	down := fs.Bool("d", false, "revert instead of apply")
	all := fs.Bool("a", false, "with -d, revert all applied migrations")
	id := fs.String("i", "", "client id (default: all managed clients)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *create != "" {
		path, err := migrate.CreateFile(migrationsDir, *create)
		if err != nil {
			return err
		}
		log.Info("migration file created", "file", path)
		return nil
	}
	registry, err := pgutils.LoadRegistry(pgutils.ConfigFile, log)
	if err != nil {
		return err
	}
	defer registry.Close()

	clients, err := selectClients(registry, *id)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, c := range clients {
		runner, err := c.Migrations(ctx)
		if err != nil {
			return err
		}
		switch {
		case *down && *all:
			count, err := runner.RevertAll(ctx)
			if err != nil {
				return err
			}
			log.Info("migrations reverted", "client", c.ID(), "count", count)
		case *down:
			name, ok, err := runner.RevertLast(ctx)
			if err != nil {
				return err
			}
			if !ok {
				log.Info("nothing to revert", "client", c.ID())
				continue
			}
			log.Info("migration reverted", "client", c.ID(), "file", name)
		default:
			count, err := runner.ApplyAll(ctx)
			if err != nil {
				return err
			}
			log.Info("migrations applied", "client", c.ID(), "count", count)
		}
	}
	return nil
}

func selectClients(registry *pgutils.Registry, id string) ([]*pgutils.Client, error) {
	if id != "" {
		c, err := registry.Client(id)
		if err != nil {
			return nil, err
		}
		return []*pgutils.Client{c}, nil
	}
	return registry.Managed(), nil
}
