package migrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/pgutils/pgdb"
)

const (
	appliedAscSQL  = "SELECT m.name FROM _migrations AS m ORDER BY m.id ASC"
	appliedDescSQL = "SELECT m.name FROM _migrations AS m ORDER BY m.id DESC"
	recordSQL      = "INSERT INTO _migrations (name) VALUES ($1)"
	removeSQL      = "DELETE FROM _migrations WHERE (name = $1)"
)

func newMockRunner(t *testing.T, dir string) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(pgdb.NewDatabase(db, pgdb.Params{Database: "testdb"}), dir, quiet), mock
}

func writeMigration(t *testing.T, dir, name, up, down string) {
	t.Helper()
	body := "-- up\n" + up + "\n\n-- down\n" + down + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func expectEnsure(mock sqlmock.Sqlmock) {
	mock.ExpectExec(ensureLedger).WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectApply(mock sqlmock.Sqlmock, name, up string) {
	mock.ExpectBegin()
	mock.ExpectExec(up).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(recordSQL).WithArgs(name).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func expectRevert(mock sqlmock.Sqlmock, name, down string) {
	mock.ExpectBegin()
	mock.ExpectExec(down).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(removeSQL).WithArgs(name).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestApplyAllRunsPendingInOrder(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);", "DROP TABLE users;")
	writeMigration(t, dir, "20240102000000000_add_orders.sql", "CREATE TABLE orders (id SERIAL);", "DROP TABLE orders;")
	r, mock := newMockRunner(t, dir)

	expectEnsure(mock)
	mock.ExpectQuery(appliedAscSQL).WillReturnRows(sqlmock.NewRows([]string{"name"}))
	expectApply(mock, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);")
	expectApply(mock, "20240102000000000_add_orders.sql", "CREATE TABLE orders (id SERIAL);")

	count, err := r.ApplyAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAllIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);", "DROP TABLE users;")
	r, mock := newMockRunner(t, dir)

	expectEnsure(mock)
	mock.ExpectQuery(appliedAscSQL).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("20240101000000000_init.sql"))

	count, err := r.ApplyAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAllStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);", "DROP TABLE users;")
	writeMigration(t, dir, "20240102000000000_broken.sql", "CREATE TABLE nope;", "DROP TABLE nope;")
	r, mock := newMockRunner(t, dir)

	expectEnsure(mock)
	mock.ExpectQuery(appliedAscSQL).WillReturnRows(sqlmock.NewRows([]string{"name"}))
	expectApply(mock, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);")
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE nope;").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	count, err := r.ApplyAll(context.Background())
	require.Error(t, err)
	assert.True(t, IsExecError(err))
	assert.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAllFailsBeforeSQLOnMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "20240101000000000_bad.sql"),
		[]byte("-- up\nCREATE TABLE t (id INT);\n"), 0o644))
	r, mock := newMockRunner(t, dir)

	count, err := r.ApplyAll(context.Background())
	require.ErrorIs(t, err, ErrMissingDownMarker)
	assert.Equal(t, 0, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevertLast(t *testing.T) {
	t.Run("reverts_newest", func(t *testing.T) {
		dir := t.TempDir()
		writeMigration(t, dir, "20240102000000000_add_orders.sql", "CREATE TABLE orders (id SERIAL);", "DROP TABLE orders;")
		r, mock := newMockRunner(t, dir)

		expectEnsure(mock)
		mock.ExpectQuery(appliedDescSQL).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).
				AddRow("20240102000000000_add_orders.sql").
				AddRow("20240101000000000_init.sql"))
		expectRevert(mock, "20240102000000000_add_orders.sql", "DROP TABLE orders;")

		name, ok, err := r.RevertLast(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "20240102000000000_add_orders.sql", name)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty_ledger_is_a_noop", func(t *testing.T) {
		r, mock := newMockRunner(t, t.TempDir())

		expectEnsure(mock)
		mock.ExpectQuery(appliedDescSQL).WillReturnRows(sqlmock.NewRows([]string{"name"}))

		name, ok, err := r.RevertLast(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, name)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRevertAllRunsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);", "DROP TABLE users;")
	writeMigration(t, dir, "20240102000000000_add_orders.sql", "CREATE TABLE orders (id SERIAL);", "DROP TABLE orders;")
	r, mock := newMockRunner(t, dir)

	expectEnsure(mock)
	mock.ExpectQuery(appliedDescSQL).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("20240102000000000_add_orders.sql").
			AddRow("20240101000000000_init.sql"))
	expectRevert(mock, "20240102000000000_add_orders.sql", "DROP TABLE orders;")
	expectRevert(mock, "20240101000000000_init.sql", "DROP TABLE users;")

	count, err := r.RevertAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyThenRevertRestoresLedger(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);", "DROP TABLE users;")
	r, mock := newMockRunner(t, dir)

	expectEnsure(mock)
	mock.ExpectQuery(appliedAscSQL).WillReturnRows(sqlmock.NewRows([]string{"name"}))
	expectApply(mock, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);")

	expectEnsure(mock)
	mock.ExpectQuery(appliedDescSQL).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("20240101000000000_init.sql"))
	expectRevert(mock, "20240101000000000_init.sql", "DROP TABLE users;")

	count, err := r.ApplyAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	name, ok, err := r.RevertLast(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20240101000000000_init.sql", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRecordFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000000_init.sql", "CREATE TABLE users (id SERIAL);", "DROP TABLE users;")
	r, mock := newMockRunner(t, dir)

	expectEnsure(mock)
	mock.ExpectQuery(appliedAscSQL).WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE users (id SERIAL);").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(recordSQL).
		WithArgs("20240101000000000_init.sql").
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	count, err := r.ApplyAll(context.Background())
	require.Error(t, err)
	assert.True(t, IsLedgerError(err))
	assert.Equal(t, 0, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
