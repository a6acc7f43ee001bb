// pkg/database/transaction.go
//
// TransactionManager, tek bir bağlantı havuzu üzerinde iç içe transaction
// desteği sağlar. Sadece en dıştaki Begin/Commit/Rollback gerçek
// transaction'a dokunur; iç seviyeler savepoint yığını olarak modellenir:
//
//   Begin (seviye 0)  → BEGIN
//   Begin (seviye n)  → SAVEPOINT trans<n+1>
//   Commit (seviye n) → RELEASE SAVEPOINT trans<n>
//   Rollback (n)      → ROLLBACK TO SAVEPOINT trans<n>
//
// AfterCommit/AfterRollback callback'leri kayıt sırasıyla ve sadece en
// dıştaki commit/rollback tamamlandıktan sonra çalışır. Geri alınan bir
// savepoint içinde kaydedilen callback'ler atılır. Transaction dışında
// kaydedilen callback'ler hemen çalışır.
//
// Isolation level ve read-only ayarı sadece bir sonraki gerçek
// transaction'a uygulanır.
//
// Örnek kullanım:
//
//   tm := conn.Transactions()
//   err := tm.Transaction(ctx, func(tx *database.TransactionManager) error {
//       _, err := tx.Builder().Table("accounts").Where("id", "=", 1).
//           Decrement("balance", 100)
//       return err
//   })
//
// TransactionManager eşzamanlı kullanım için değildir; her mantıksal iş
// akışı kendi manager'ını kullanmalıdır.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/events"
)

// TransactionManager, savepoint yığını ve callback kuyruklarını yönetir.
type TransactionManager struct {
	conn   *Connection
	tx     *sql.Tx
	level  int
	locker Locker

	isolation sql.IsolationLevel
	readOnly  bool

	// frame i, seviye i+1'de kaydedilen callback'leri tutar.
	commitFrames   [][]func()
	rollbackFrames [][]func()
}

// NewTransactionManager, bağlantı için yeni bir manager oluşturur.
func NewTransactionManager(conn *Connection) *TransactionManager {
	return &TransactionManager{conn: conn}
}

// Level, mevcut transaction derinliğidir (0 = transaction yok).
func (tm *TransactionManager) Level() int { return tm.level }

// InTransaction, aktif bir transaction olup olmadığını döndürür.
func (tm *TransactionManager) InTransaction() bool { return tm.level > 0 }

// Executor, aktif transaction varsa *sql.Tx'i, yoksa havuzu döndürür.
func (tm *TransactionManager) Executor() QueryExecutor {
	if tm.tx != nil {
		return tm.tx
	}
	return tm.conn.DB
}

// Builder, mevcut executor üzerinde yeni bir QueryBuilder döndürür.
func (tm *TransactionManager) Builder(opts ...Option) *QueryBuilder {
	return tm.conn.builderFor(tm.Executor(), opts...)
}

// SetIsolationLevel, bir sonraki gerçek transaction'ın isolation seviyesini belirler.
func (tm *TransactionManager) SetIsolationLevel(level sql.IsolationLevel) *TransactionManager {
	tm.isolation = level
	return tm
}

// SetReadOnly, bir sonraki gerçek transaction'ı read-only başlatır.
func (tm *TransactionManager) SetReadOnly(readOnly bool) *TransactionManager {
	tm.readOnly = readOnly
	return tm
}

func savepointName(level int) string {
	return "trans" + strconv.Itoa(level)
}

// Begin, transaction başlatır veya iç içe ise savepoint oluşturur.
func (tm *TransactionManager) Begin(ctx context.Context) error {
	if tm.level == 0 {
		tx, err := tm.conn.DB.BeginTx(ctx, &sql.TxOptions{Isolation: tm.isolation, ReadOnly: tm.readOnly})
		if err != nil {
			return wrapDriverError(err, "BEGIN")
		}
		tm.isolation, tm.readOnly = sql.LevelDefault, false
		tm.tx = tx
		tm.level = 1
		tm.commitFrames = [][]func(){nil}
		tm.rollbackFrames = [][]func(){nil}
		tm.conn.logger().Println("🔄 Transaction başladı.")
		return nil
	}

	query := "SAVEPOINT " + savepointName(tm.level+1)
	if _, err := tm.tx.ExecContext(ctx, query); err != nil {
		return wrapDriverError(err, query)
	}
	tm.level++
	tm.commitFrames = append(tm.commitFrames, nil)
	tm.rollbackFrames = append(tm.rollbackFrames, nil)
	return nil
}

// Commit, en dıştaki seviyede transaction'ı commit eder; iç seviyede
// savepoint'i serbest bırakır.
func (tm *TransactionManager) Commit(ctx context.Context) error {
	switch {
	case tm.level == 0:
		return ErrNoTransaction
	case tm.level > 1:
		query := "RELEASE SAVEPOINT " + savepointName(tm.level)
		if _, err := tm.tx.ExecContext(ctx, query); err != nil {
			return wrapDriverError(err, query)
		}
		tm.popFrame(true)
		return nil
	}

	err := tm.tx.Commit()
	commits := tm.commitFrames[0]
	tm.finish()
	if err != nil {
		return wrapDriverError(err, "COMMIT")
	}
	tm.conn.logger().Println("✅ Transaction commit edildi.")
	tm.publish(events.NewTransactionCommitted())
	for _, fn := range commits {
		fn()
	}
	return nil
}

// Rollback, en dıştaki seviyede transaction'ı geri alır; iç seviyede
// son savepoint'e döner.
func (tm *TransactionManager) Rollback(ctx context.Context) error {
	switch {
	case tm.level == 0:
		return ErrNoTransaction
	case tm.level > 1:
		query := "ROLLBACK TO SAVEPOINT " + savepointName(tm.level)
		if _, err := tm.tx.ExecContext(ctx, query); err != nil {
			return wrapDriverError(err, query)
		}
		tm.popFrame(false)
		return nil
	}

	err := tm.tx.Rollback()
	rollbacks := tm.rollbackFrames[0]
	tm.finish()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return wrapDriverError(err, "ROLLBACK")
	}
	tm.conn.logger().Println("❌ Transaction geri alındı.")
	tm.publish(events.NewTransactionRolledBack())
	for _, fn := range rollbacks {
		fn()
	}
	return nil
}

// popFrame, savepoint seviyesini kapatır. keep=true ise callback'ler bir
// üst seviyeye taşınır, aksi halde atılır.
func (tm *TransactionManager) popFrame(keep bool) {
	top := len(tm.commitFrames) - 1
	if keep {
		tm.commitFrames[top-1] = append(tm.commitFrames[top-1], tm.commitFrames[top]...)
		tm.rollbackFrames[top-1] = append(tm.rollbackFrames[top-1], tm.rollbackFrames[top]...)
	}
	tm.commitFrames = tm.commitFrames[:top]
	tm.rollbackFrames = tm.rollbackFrames[:top]
	tm.level--
}

func (tm *TransactionManager) finish() {
	tm.tx = nil
	tm.level = 0
	tm.commitFrames = nil
	tm.rollbackFrames = nil
}

func (tm *TransactionManager) publish(e events.Event) {
	if d := tm.conn.Dispatcher; d != nil {
		_ = d.Dispatch(e)
	}
}

// AfterCommit, en dıştaki commit'ten sonra çalışacak callback kaydeder.
// Transaction yoksa callback hemen çalışır.
func (tm *TransactionManager) AfterCommit(fn func()) {
	if tm.level == 0 {
		fn()
		return
	}
	top := len(tm.commitFrames) - 1
	tm.commitFrames[top] = append(tm.commitFrames[top], fn)
}

// AfterRollback, en dıştaki rollback'ten sonra çalışacak callback kaydeder.
// Transaction yoksa callback hemen çalışır.
func (tm *TransactionManager) AfterRollback(fn func()) {
	if tm.level == 0 {
		fn()
		return
	}
	top := len(tm.rollbackFrames) - 1
	tm.rollbackFrames[top] = append(tm.rollbackFrames[top], fn)
}

// Transaction, fn'i bir transaction (veya iç içe ise savepoint) içinde
// çalıştırır. fn hata dönerse ya da panic olursa geri alınır.
//
// Örnek:
//
//	err := tm.Transaction(ctx, func(tx *database.TransactionManager) error {
//	    _, err := tx.Builder().Table("orders").Insert(database.Values{"total": 10})
//	    return err
//	})
func (tm *TransactionManager) Transaction(ctx context.Context, fn func(tx *TransactionManager) error) (err error) {
	if err := tm.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tm.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(tm); err != nil {
		if rbErr := tm.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tm.Commit(ctx)
}

// TransactionWithRetry, fn'i transaction içinde çalıştırır; deadlock veya
// lock timeout gibi tekrar denenebilir bir hatada geri alır, sleep kadar
// bekler ve toplam attempts kez dener. Son hata döner.
//
// Zaten bir transaction içindeyken tekrar deneme yapılmaz; dıştaki
// transaction zaten geçersizdir.
func (tm *TransactionManager) TransactionWithRetry(ctx context.Context, fn func(tx *TransactionManager) error, attempts int, sleep time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	limit := rate.Inf
	if sleep > 0 {
		limit = rate.Every(sleep)
	}
	limiter := rate.NewLimiter(limit, 1)
	limiter.Allow()

	for attempt := 1; ; attempt++ {
		err := tm.Transaction(ctx, fn)
		if err == nil {
			return nil
		}
		if attempt >= attempts || tm.level > 0 || !IsRetryable(err) {
			return err
		}
		tm.conn.logger().Printf("🔁 Transaction tekrar deneniyor (%d/%d): %v", attempt+1, attempts, err)
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return fmt.Errorf("transaction retry aborted: %w", errors.Join(err, waitErr))
		}
	}
}

// Locker, bağlantının advisory lock implementasyonunu döndürür.
func (tm *TransactionManager) Locker() Locker {
	if tm.locker == nil {
		tm.locker = NewDBLocker(tm.conn.DB, tm.conn.Grammar, tm.conn.logger())
	}
	return tm.locker
}

// GetLock, isimli advisory lock'u timeout süresince almaya çalışır.
func (tm *TransactionManager) GetLock(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	return tm.Locker().Acquire(ctx, name, timeout)
}

// ReleaseLock, isimli advisory lock'u bırakır.
func (tm *TransactionManager) ReleaseLock(ctx context.Context, name string) error {
	return tm.Locker().Release(ctx, name)
}

// WithLock, lock'u alır, fn'i çalıştırır ve her çıkış yolunda lock'u bırakır.
func (tm *TransactionManager) WithLock(ctx context.Context, name string, timeout time.Duration, fn func() error) error {
	return WithLock(ctx, tm.Locker(), name, timeout, fn)
}
