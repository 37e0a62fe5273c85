// Package pgutils ties the query builder, executor and migration runner
// together behind per-client facades configured from a pg-utils.json file.
// Clients are held in an explicit Registry owned by the caller; there is no
// process-wide state.
package pgutils

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/syssam/pgutils/pgdb"
)

// ConfigFile is the default configuration file name.
const ConfigFile = "pg-utils.json"

// ClientConfig is one client entry of the configuration file.
type ClientConfig struct {
	ID               string `mapstructure:"id" json:"id"`
	User             string `mapstructure:"user" json:"user"`
	Host             string `mapstructure:"host" json:"host"`
	Password         string `mapstructure:"password" json:"password"`
	Port             int    `mapstructure:"port" json:"port"`
	Database         string `mapstructure:"database" json:"database"`
	SSLMode          string `mapstructure:"sslmode" json:"sslmode,omitempty"`
	MigrationsDir    string `mapstructure:"migrationsDir" json:"migrationsDir"`
	ManageMigrations bool   `mapstructure:"manageMigrations" json:"manageMigrations"`
}

func (c ClientConfig) params() pgdb.Params {
	return pgdb.Params{
		User:     c.User,
		Host:     c.Host,
		Password: c.Password,
		Port:     c.Port,
		Database: c.Database,
		SSLMode:  c.SSLMode,
	}
}

// fileConfig is the configuration file root.
type fileConfig struct {
	Clients []ClientConfig `mapstructure:"clients" json:"clients"`
}

// LoadConfig reads the client entries from the given configuration file.
// Entries must have unique non-empty ids.
func LoadConfig(path string) ([]ClientConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	seen := make(map[string]bool, len(cfg.Clients))
	for _, client := range cfg.Clients {
		if client.ID == "" {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("client entry without id")}
		}
		if seen[client.ID] {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("%w: %s", ErrDuplicateClient, client.ID)}
		}
		seen[client.ID] = true
	}
	return cfg.Clients, nil
}
