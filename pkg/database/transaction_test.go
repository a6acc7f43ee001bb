package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/database"
	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/dbtest"
	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/events"
)

type retryableErr struct{}

func (retryableErr) Error() string   { return "deadlock found" }
func (retryableErr) Retryable() bool { return true }

func countUsers(t *testing.T, conn *database.Connection) int64 {
	t.Helper()
	n, err := conn.Builder().Table("users").Count()
	require.NoError(t, err)
	return n
}

func TestTransaction_Savepoints(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
	ctx := context.Background()
	tm := conn.Transactions()

	require.NoError(t, tm.Begin(ctx))
	assert.Equal(t, 1, tm.Level())
	_, err := tm.Builder().Table("users").Insert(database.Values{"name": "outer"})
	require.NoError(t, err)

	require.NoError(t, tm.Begin(ctx))
	assert.Equal(t, 2, tm.Level())
	_, err = tm.Builder().Table("users").Insert(database.Values{"name": "inner"})
	require.NoError(t, err)
	require.NoError(t, tm.Rollback(ctx))
	assert.Equal(t, 1, tm.Level())

	require.NoError(t, tm.Commit(ctx))
	assert.False(t, tm.InTransaction())

	names, err := conn.Builder().Table("users").Pluck("name")
	require.NoError(t, err)
	assert.Equal(t, []any{"outer"}, names)
}

func TestTransaction_NoActiveTransaction(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
	tm := conn.Transactions()

	assert.ErrorIs(t, tm.Commit(context.Background()), database.ErrNoTransaction)
	assert.ErrorIs(t, tm.Rollback(context.Background()), database.ErrNoTransaction)
}

func TestTransaction_Callbacks(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
	ctx := context.Background()
	tm := conn.Transactions()

	var fired []string
	tm.AfterCommit(func() { fired = append(fired, "immediate") })
	assert.Equal(t, []string{"immediate"}, fired)

	require.NoError(t, tm.Begin(ctx))
	tm.AfterCommit(func() { fired = append(fired, "outer") })

	require.NoError(t, tm.Begin(ctx))
	tm.AfterCommit(func() { fired = append(fired, "discarded") })
	require.NoError(t, tm.Rollback(ctx))

	require.NoError(t, tm.Begin(ctx))
	tm.AfterCommit(func() { fired = append(fired, "released") })
	require.NoError(t, tm.Commit(ctx))

	assert.Equal(t, []string{"immediate"}, fired, "nothing runs before the outermost commit")
	require.NoError(t, tm.Commit(ctx))
	assert.Equal(t, []string{"immediate", "outer", "released"}, fired)
}

func TestTransaction_RollbackCallbacks(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
	ctx := context.Background()
	tm := conn.Transactions()

	rolledBack := false
	committed := false
	boom := errors.New("boom")

	err := tm.Transaction(ctx, func(tx *database.TransactionManager) error {
		tx.AfterRollback(func() { rolledBack = true })
		tx.AfterCommit(func() { committed = true })
		_, err := tx.Builder().Table("users").Insert(database.Values{"name": "ghost"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, rolledBack)
	assert.False(t, committed)
	assert.Equal(t, int64(0), countUsers(t, conn))
}

func TestTransaction_PanicRollsBack(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
	tm := conn.Transactions()

	assert.Panics(t, func() {
		_ = tm.Transaction(context.Background(), func(tx *database.TransactionManager) error {
			_, _ = tx.Builder().Table("users").Insert(database.Values{"name": "ghost"})
			panic("kaboom")
		})
	})
	assert.False(t, tm.InTransaction())
	assert.Equal(t, int64(0), countUsers(t, conn))
}

func TestTransaction_ResolverUsesTransactionConnection(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)

	err := conn.Transactions().Transaction(context.Background(), func(tx *database.TransactionManager) error {
		if _, err := tx.Builder().Table("user").Insert(database.Values{"name": "Ada"}); err != nil {
			return err
		}
		n, err := tx.Builder().From("user").Count()
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countUsers(t, conn))
}

func TestTransactionWithRetry(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
	ctx := context.Background()

	calls := 0
	err := conn.Transactions().TransactionWithRetry(ctx, func(tx *database.TransactionManager) error {
		calls++
		if _, err := tx.Builder().Table("users").Insert(database.Values{"name": "try"}); err != nil {
			return err
		}
		if calls < 3 {
			return retryableErr{}
		}
		return nil
	}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(1), countUsers(t, conn), "failed attempts are rolled back")
}

func TestTransactionWithRetry_GivesUp(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
	ctx := context.Background()

	calls := 0
	err := conn.Transactions().TransactionWithRetry(ctx, func(*database.TransactionManager) error {
		calls++
		return retryableErr{}
	}, 2, time.Millisecond)
	assert.ErrorAs(t, err, &retryableErr{})
	assert.Equal(t, 2, calls)

	calls = 0
	boom := errors.New("constraint violation")
	err = conn.Transactions().TransactionWithRetry(ctx, func(*database.TransactionManager) error {
		calls++
		return boom
	}, 5, time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-retryable errors are returned immediately")
}

func TestTransactionWithRetry_NestedDoesNotRetry(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
	ctx := context.Background()
	tm := conn.Transactions()

	require.NoError(t, tm.Begin(ctx))
	defer func() { _ = tm.Rollback(ctx) }()

	calls := 0
	err := tm.TransactionWithRetry(ctx, func(*database.TransactionManager) error {
		calls++
		return retryableErr{}
	}, 3, time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, tm.Level())
}

func TestTransaction_Events(t *testing.T) {
	logger := dbtest.NewLogger(t)
	dispatcher := events.NewDispatcher(logger)
	t.Cleanup(dispatcher.Shutdown)

	var committed, rolledBack, queries int
	dispatcher.Listen(events.EventTransactionCommitted, events.ListenerFunc(func(events.Event) error {
		committed++
		return nil
	}))
	dispatcher.Listen(events.EventTransactionRolledBack, events.ListenerFunc(func(events.Event) error {
		rolledBack++
		return nil
	}))
	dispatcher.Listen(events.EventQueryExecuted, events.ListenerFunc(func(e events.Event) error {
		queries++
		qe, ok := e.(*events.QueryExecuted)
		require.True(t, ok)
		assert.False(t, qe.Failed())
		return nil
	}))

	conn := dbtest.NewSQLiteWith(t, database.ConnectionOptions{Dispatcher: dispatcher, Logger: logger}, dbtest.BlogSchema)
	ctx := context.Background()
	tm := conn.Transactions()

	require.NoError(t, tm.Transaction(ctx, func(tx *database.TransactionManager) error {
		return tx.Transaction(ctx, func(inner *database.TransactionManager) error {
			_, err := inner.Builder().Table("users").Insert(database.Values{"name": "Ada"})
			return err
		})
	}))
	_ = tm.Transaction(ctx, func(*database.TransactionManager) error { return errors.New("nope") })

	assert.Equal(t, 1, committed, "savepoints do not publish")
	assert.Equal(t, 1, rolledBack)
	assert.Equal(t, 1, queries)
}

func TestDatabaseTransactionHelper(t *testing.T) {
	conn := dbtest.NewSQLite(t, dbtest.BlogSchema)

	dbtest.DatabaseTransaction(t, conn, func(tx *database.TransactionManager) {
		_, err := tx.Builder().Table("users").Insert(database.Values{"name": "temp"})
		require.NoError(t, err)
		n, err := tx.Builder().Table("users").Count()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	assert.Equal(t, int64(0), countUsers(t, conn))
}
