package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/events"
)

/*
*
// QueryExecutor, Go'nun 'database/sql' paketindeki *sql.DB (havuz),
// *sql.Tx (transaction) ve *sql.Conn (sabitlenmiş bağlantı) tarafından
// örtük olarak uygulanan metodları tanımlayan bir arayüzdür.
//
// QueryBuilder *sql.DB'ye kilitlenmek yerine bu arayüze kilitlenir.
// Bu sayede hem normal sorgularda hem de transaction'lar içinde çalışır.
*/
type QueryExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Logger, log interface'i (dependency injection için). *log.Logger bunu sağlar.
type Logger interface {
	Printf(format string, v ...any)
	Println(v ...any)
}

// instrumented, executor çağrılarını ölçer, driver hatalarını QueryError'a
// sarar ve (varsa) dispatcher'a QueryExecuted event'i gönderir.
type instrumented struct {
	exec       QueryExecutor
	dispatcher *events.Dispatcher
}

func (i instrumented) publish(query string, args []any, started time.Time, err error) {
	if i.dispatcher == nil {
		return
	}
	_ = i.dispatcher.Dispatch(events.NewQueryExecuted(query, args, time.Since(started), err))
}

func (i instrumented) run(ctx context.Context, query string, args []any) (sql.Result, error) {
	started := time.Now()
	res, err := i.exec.ExecContext(ctx, query, args...)
	err = wrapDriverError(err, query)
	i.publish(query, args, started, err)
	return res, err
}

func (i instrumented) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	started := time.Now()
	rows, err := i.exec.QueryContext(ctx, query, args...)
	err = wrapDriverError(err, query)
	i.publish(query, args, started, err)
	return rows, err
}
