package pgutils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigs() []ClientConfig {
	return []ClientConfig{
		{ID: "development", Database: "dev_database", ManageMigrations: true, MigrationsDir: "migrations"},
		{ID: "production", Database: "prod_database", ManageMigrations: false, MigrationsDir: "migrations"},
	}
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(testConfigs(), nil)
	require.NoError(t, err)

	t.Run("client_by_id", func(t *testing.T) {
		c, err := r.Client("development")
		require.NoError(t, err)
		assert.Equal(t, "development", c.ID())
	})

	t.Run("unknown_id", func(t *testing.T) {
		_, err := r.Client("staging")
		require.ErrorIs(t, err, ErrUnknownClient)
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("clients_keep_config_order", func(t *testing.T) {
		clients := r.Clients()
		require.Len(t, clients, 2)
		assert.Equal(t, "development", clients[0].ID())
		assert.Equal(t, "production", clients[1].ID())
	})

	t.Run("managed_filters_by_flag", func(t *testing.T) {
		managed := r.Managed()
		require.Len(t, managed, 1)
		assert.Equal(t, "development", managed[0].ID())
	})
}

func TestNewRegistryRejectsDuplicateIDs(t *testing.T) {
	_, err := NewRegistry([]ClientConfig{{ID: "a"}, {ID: "a"}}, nil)
	require.ErrorIs(t, err, ErrDuplicateClient)
}

func TestClientMigrationGating(t *testing.T) {
	c := NewClient(ClientConfig{ID: "production", ManageMigrations: false}, nil)

	_, err := c.Migrations(context.Background())
	require.ErrorIs(t, err, ErrMigrationsDisabled)

	_, err = c.CreateAndConnectDatabase(context.Background())
	require.ErrorIs(t, err, ErrMigrationsDisabled)
}
