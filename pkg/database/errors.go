// -----------------------------------------------------------------------------
// Database Errors
// -----------------------------------------------------------------------------
// Hata taksonomisi:
//   - Build hataları (geçersiz identifier, koşulsuz JOIN): render sırasında döner.
//   - Execution hataları: driver'ın state/code/message bilgisiyle QueryError olarak döner.
//   - Metadata hataları: Resolver tarafından loglanır ve "yok" kabul edilir, yukarı taşınmaz.
//   - Not-found: hata değil, boş sonuçtur. FindOrFail gibi varyantlar ErrNotFound döner.
// -----------------------------------------------------------------------------

package database

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

var (
	ErrNoTable               = errors.New("database: no table specified")
	ErrJoinWithoutConditions = errors.New("database: join requires at least one condition")
	ErrInvalidIdentifier     = errors.New("database: invalid SQL identifier")
	ErrInvalidOperator       = errors.New("database: invalid SQL operator")
	ErrNotFound              = errors.New("database: record not found")
	ErrLockTimeout           = errors.New("database: lock acquisition timed out")
	ErrUnsupported           = errors.New("database: unsupported by dialect")
	ErrCursorConsumed        = errors.New("database: cursor already consumed")
	ErrNoTransaction         = errors.New("database: no active transaction")
	ErrNoExecutor            = errors.New("database: builder has no executor")
)

// QueryError, driver'ın reddettiği bir statement'ı temsil eder.
//
// Alanlar:
//   - SQL: Çalıştırılan (positional) SQL
//   - State: SQLSTATE (varsa)
//   - Code: Driver'a özgü hata kodu
//   - Message: Driver'ın mesajı
//   - Err: Orijinal driver hatası (errors.As/Is ile erişilebilir)
type QueryError struct {
	SQL     string
	State   string
	Code    string
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.State != "" || e.Code != "" {
		return fmt.Sprintf("database: query failed [state=%s code=%s]: %s (sql: %s)", e.State, e.Code, e.Message, e.SQL)
	}
	return fmt.Sprintf("database: query failed: %s (sql: %s)", e.Message, e.SQL)
}

func (e *QueryError) Unwrap() error { return e.Err }

// wrapDriverError, driver hatasını QueryError'a çevirir.
// nil veya zaten QueryError olan hatalar olduğu gibi döner.
func wrapDriverError(err error, query string) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}

	out := &QueryError{SQL: query, Message: err.Error(), Err: err}

	var myErr *mysql.MySQLError
	var pqErr *pq.Error
	var liteErr *sqlite.Error
	switch {
	case errors.As(err, &myErr):
		out.Code = strconv.Itoa(int(myErr.Number))
		out.State = string(myErr.SQLState[:])
		out.Message = myErr.Message
	case errors.As(err, &pqErr):
		out.Code = string(pqErr.Code)
		out.State = string(pqErr.Code)
		out.Message = pqErr.Message
	case errors.As(err, &liteErr):
		out.Code = strconv.Itoa(liteErr.Code())
	}
	return out
}

// SQLite birincil hata kodları (extended kodların alt 8 biti).
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// IsRetryable, hatanın deadlock / lock-timeout sınıfından olup olmadığını döndürür.
// Sadece bu sınıf TransactionWithRetry tarafından yeniden denenir.
//
//   - MySQL: 1213 (deadlock), 1205 (lock wait timeout)
//   - PostgreSQL: 40001 (serialization failure), 40P01 (deadlock), 55P03 (lock not available)
//   - SQLite: SQLITE_BUSY, SQLITE_LOCKED
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqliteBusy || code == sqliteLocked
	}

	var retry interface{ Retryable() bool }
	if errors.As(err, &retry) {
		return retry.Retryable()
	}
	return false
}
