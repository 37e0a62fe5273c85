package pgutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)

	created, err := WriteDefaultConfig(path)
	require.NoError(t, err)
	assert.True(t, created)

	cfgs, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "development", cfgs[0].ID)
	assert.True(t, cfgs[0].ManageMigrations)
	assert.Equal(t, "production", cfgs[1].ID)
	assert.False(t, cfgs[1].ManageMigrations)

	t.Run("existing_file_untouched", func(t *testing.T) {
		require.NoError(t, AddClient(path, ClientConfig{ID: "staging", Port: 5432}))
		created, err := WriteDefaultConfig(path)
		require.NoError(t, err)
		assert.False(t, created)

		cfgs, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Len(t, cfgs, 3)
	})
}

func TestAddClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	_, err := WriteDefaultConfig(path)
	require.NoError(t, err)

	t.Run("appends_with_default_migrations_dir", func(t *testing.T) {
		require.NoError(t, AddClient(path, ClientConfig{ID: "staging", Host: "staging-db", Port: 5432}))
		cfgs, err := LoadConfig(path)
		require.NoError(t, err)
		require.Len(t, cfgs, 3)
		assert.Equal(t, "staging", cfgs[2].ID)
		assert.Equal(t, "migrations", cfgs[2].MigrationsDir)
	})

	t.Run("duplicate_id_rejected", func(t *testing.T) {
		err := AddClient(path, ClientConfig{ID: "development"})
		require.ErrorIs(t, err, ErrDuplicateClient)
	})

	t.Run("missing_config_file", func(t *testing.T) {
		err := AddClient(filepath.Join(t.TempDir(), ConfigFile), ClientConfig{ID: "x"})
		require.Error(t, err)
		assert.True(t, IsConfigurationError(err))
	})
}

func TestEnsureGitignore(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gitignore")

	added, err := EnsureGitignore(path)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = EnsureGitignore(path)
	require.NoError(t, err)
	assert.False(t, added)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), ConfigFile)
}
