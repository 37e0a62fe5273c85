package migrate

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("splits_up_and_down", func(t *testing.T) {
		m, err := Parse("20240101000000000_init.sql",
			"-- up\nCREATE TABLE users (id SERIAL);\n\n-- down\nDROP TABLE users;\n")
		require.NoError(t, err)
		assert.Equal(t, "20240101000000000_init.sql", m.Name)
		assert.Equal(t, "CREATE TABLE users (id SERIAL);", m.Up)
		assert.Equal(t, "DROP TABLE users;", m.Down)
	})

	t.Run("up_marker_is_optional", func(t *testing.T) {
		m, err := Parse("m.sql", "CREATE TABLE t (id INT);\n-- down\nDROP TABLE t;\n")
		require.NoError(t, err)
		assert.Equal(t, "CREATE TABLE t (id INT);", m.Up)
	})

	t.Run("empty_down_section", func(t *testing.T) {
		m, err := Parse("m.sql", "-- up\nCREATE TABLE t (id INT);\n-- down\n")
		require.NoError(t, err)
		assert.Empty(t, m.Down)
	})

	t.Run("missing_down_marker", func(t *testing.T) {
		_, err := Parse("m.sql", "-- up\nCREATE TABLE t (id INT);\n")
		require.ErrorIs(t, err, ErrMissingDownMarker)
		assert.True(t, IsParseError(err))
	})

	t.Run("duplicate_down_marker", func(t *testing.T) {
		_, err := Parse("m.sql", "-- up\nA;\n-- down\nB;\n-- down\nC;\n")
		require.ErrorIs(t, err, ErrDuplicateDownMarker)
	})
}

func TestCreateFile(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateFile(dir, "Create Users")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{17}_create_users\.sql$`), filepath.Base(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fileTemplate, string(body))

	m, err := Parse(filepath.Base(path), string(body))
	require.NoError(t, err)
	assert.Empty(t, m.Up)
	assert.Empty(t, m.Down)

	t.Run("empty_name_rejected", func(t *testing.T) {
		_, err := CreateFile(dir, "  ")
		require.Error(t, err)
	})
}
