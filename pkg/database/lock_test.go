package database_test

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/database"
	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/dbtest"
)

func TestDBLocker_MySQL(t *testing.T) {
	conn, mock := dbtest.NewMock(t, database.NewMySQLGrammar())
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")).
		WithArgs("reports", 5).
		WillReturnRows(sqlmock.NewRows([]string{"l"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT RELEASE_LOCK(?)")).
		WithArgs("reports").
		WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(int64(1)))

	ran := false
	err := conn.Transactions().WithLock(ctx, "reports", 5*time.Second, func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestDBLocker_Timeout(t *testing.T) {
	conn, mock := dbtest.NewMock(t, database.NewMySQLGrammar())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")).
		WithArgs("busy", 0).
		WillReturnRows(sqlmock.NewRows([]string{"l"}).AddRow(int64(0)))

	ran := false
	err := conn.Transactions().WithLock(context.Background(), "busy", 0, func() error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, database.ErrLockTimeout)
	assert.False(t, ran)
}

func TestDBLocker_ReleasedOnError(t *testing.T) {
	conn, mock := dbtest.NewMock(t, database.NewMySQLGrammar())
	boom := errors.New("boom")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")).
		WillReturnRows(sqlmock.NewRows([]string{"l"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT RELEASE_LOCK(?)")).
		WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(int64(1)))

	err := conn.Transactions().WithLock(context.Background(), "jobs", time.Second, func() error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDBLocker_Postgres(t *testing.T) {
	conn, mock := dbtest.NewMock(t, database.NewPostgresGrammar())
	ctx := context.Background()
	locker := database.NewDBLocker(conn.DB, conn.Grammar, dbtest.NewLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("pg_try_advisory_lock")).
		WithArgs("sync").
		WillReturnRows(sqlmock.NewRows([]string{"l"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("pg_advisory_unlock")).
		WithArgs("sync").
		WillReturnRows(sqlmock.NewRows([]string{"r"}).AddRow(true))

	ok, err := locker.Acquire(ctx, "sync", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = locker.Acquire(ctx, "sync", time.Second)
	assert.Error(t, err, "the same locker cannot take a lock twice")

	require.NoError(t, locker.Release(ctx, "sync"))
	assert.Error(t, locker.Release(ctx, "sync"))
}

func TestDBLocker_SQLiteUnsupported(t *testing.T) {
	conn := dbtest.NewSQLite(t)

	_, err := conn.Transactions().GetLock(context.Background(), "x", time.Second)
	assert.ErrorIs(t, err, database.ErrUnsupported)
}

// TestRedisLocker, REDIS_ADDR tanımlıysa gerçek bir Redis'e karşı çalışır.
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	a := database.NewRedisLocker(client, "mlquery:test:lock:", 5*time.Second)
	b := database.NewRedisLocker(client, "mlquery:test:lock:", 5*time.Second)

	ok, err := a.Acquire(ctx, "nightly", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx, "nightly", 150*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx, "nightly"))
	require.NoError(t, database.WithLock(ctx, b, "nightly", time.Second, func() error { return nil }))
}
