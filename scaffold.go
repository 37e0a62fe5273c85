package pgutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// defaultClients seeds a fresh configuration file with one development and
// one production entry.
var defaultClients = []ClientConfig{
	{
		ID:               "development",
		User:             "dev_user",
		Host:             "localhost",
		Password:         "dev_password",
		Port:             5432,
		Database:         "dev_database",
		MigrationsDir:    "migrations",
		ManageMigrations: true,
	},
	{
		ID:               "production",
		User:             "prod_user",
		Host:             "prod-db.example.com",
		Password:         "prod_password",
		Port:             5432,
		Database:         "prod_database",
		MigrationsDir:    "migrations",
		ManageMigrations: false,
	},
}

func writeConfig(path string, cfg fileConfig) error {
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return &ConfigurationError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, append(body, '\n'), 0o644); err != nil {
		return &ConfigurationError{Path: path, Err: err}
	}
	return nil
}

func readConfigFile(path string) (fileConfig, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, &ConfigurationError{Path: path, Err: err}
	}
	var cfg fileConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return fileConfig{}, &ConfigurationError{Path: path, Err: err}
	}
	return cfg, nil
}

// WriteDefaultConfig writes a configuration file seeded with the default
// development and production entries. An existing file is left untouched; the
// boolean reports whether the file was written.
func WriteDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, &ConfigurationError{Path: path, Err: err}
	}
	if err := writeConfig(path, fileConfig{Clients: defaultClients}); err != nil {
		return false, err
	}
	return true, nil
}

// AddClient appends a client entry to an existing configuration file.
// Duplicate ids are rejected.
func AddClient(path string, c ClientConfig) error {
	if c.ID == "" {
		return &ConfigurationError{Path: path, Err: fmt.Errorf("client entry without id")}
	}
	cfg, err := readConfigFile(path)
	if err != nil {
		return err
	}
	for _, existing := range cfg.Clients {
		if existing.ID == c.ID {
			return &ConfigurationError{Path: path, Err: fmt.Errorf("%w: %s", ErrDuplicateClient, c.ID)}
		}
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "migrations"
	}
	cfg.Clients = append(cfg.Clients, c)
	return writeConfig(path, cfg)
}

// EnsureGitignore appends the configuration file name to the .gitignore at
// path when not already listed. The boolean reports whether an entry was
// added.
func EnsureGitignore(path string) (bool, error) {
	body, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("pgutils: gitignore: %w", err)
	}
	if strings.Contains(string(body), ConfigFile) {
		return false, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("pgutils: gitignore: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("\n" + ConfigFile + "\n"); err != nil {
		return false, fmt.Errorf("pgutils: gitignore: %w", err)
	}
	return true, nil
}
