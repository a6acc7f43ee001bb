// -----------------------------------------------------------------------------
// Event System - Core Interfaces
// -----------------------------------------------------------------------------
// Bu dosya, query katmanının yayınladığı event'lerin temel yapılarını içerir.
//
// Event Nedir?
// Event (olay), veritabanı katmanında meydana gelen gözlemlenebilir bir
// durumu temsil eder: bir statement'ın çalışması, bir transaction'ın commit
// veya rollback edilmesi, bir şema probe'unun başarısız olması gibi.
//
// Query katmanı metrik veya tracing backend'i bilmez; bunları event
// listener'ları üzerinden dışarıya bırakır:
//
//	dispatcher.Listen(events.EventQueryExecuted, events.ListenerFunc(func(e events.Event) error {
//	    q := e.(*events.QueryExecuted)
//	    if q.Duration > time.Second {
//	        log.Printf("yavaş sorgu: %s (%v)", q.SQL, q.Duration)
//	    }
//	    return nil
//	}))
// -----------------------------------------------------------------------------

package events

import (
	"time"
)

// Event, tüm event'lerin implement etmesi gereken interface.
type Event interface {
	// Name, event'in benzersiz adını döndürür.
	// Örnek: "query.executed", "transaction.committed"
	Name() string

	// OccurredAt, event'in gerçekleşme zamanını döndürür.
	OccurredAt() time.Time

	// Payload, event ile taşınan veriyi döndürür.
	Payload() any
}

// BaseEvent, tüm event'ler için temel yapıdır. Embed eden struct'lar
// Name() ve OccurredAt() metodlarını otomatik implement etmiş olur.
type BaseEvent struct {
	name       string
	occurredAt time.Time
	payload    any
}

// NewBaseEvent, yeni bir BaseEvent oluşturur.
//
// Parametreler:
//   - name: Event adı (örn: "query.executed")
//   - payload: Event verisi (nil olabilir)
//
// Örnek:
//
//	event := events.NewBaseEvent("schema.flushed", nil)
func NewBaseEvent(name string, payload any) *BaseEvent {
	return &BaseEvent{
		name:       name,
		occurredAt: time.Now(),
		payload:    payload,
	}
}

// Name, event adını döndürür.
func (e *BaseEvent) Name() string {
	return e.name
}

// OccurredAt, event zamanını döndürür.
func (e *BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// Payload, event verisini döndürür.
func (e *BaseEvent) Payload() any {
	return e.payload
}

// SetPayload, event verisini günceller.
func (e *BaseEvent) SetPayload(payload any) {
	e.payload = payload
}

// -----------------------------------------------------------------------------
// Query Layer Events
// -----------------------------------------------------------------------------

const (
	// EventQueryExecuted, her çalıştırılan statement'tan sonra yayınlanır.
	EventQueryExecuted = "query.executed"

	// Transaction event'leri sadece en dıştaki seviyede yayınlanır;
	// savepoint işlemleri event üretmez.
	EventTransactionCommitted  = "transaction.committed"
	EventTransactionRolledBack = "transaction.rolled_back"
)

// QueryExecuted, çalıştırılan bir statement'ın özeti.
type QueryExecuted struct {
	*BaseEvent
	SQL      string        // Driver'a giden pozisyonel SQL
	Bindings []any         // Pozisyonel argümanlar
	Duration time.Duration // Çalışma süresi
	Err      error         // Driver hatası (başarılıysa nil)
}

// NewQueryExecuted, QueryExecuted event'i oluşturur. Payload event'in kendisidir.
//
// Örnek:
//
//	dispatcher.Dispatch(events.NewQueryExecuted(sql, args, time.Since(start), err))
func NewQueryExecuted(sql string, bindings []any, duration time.Duration, err error) *QueryExecuted {
	e := &QueryExecuted{
		BaseEvent: NewBaseEvent(EventQueryExecuted, nil),
		SQL:       sql,
		Bindings:  bindings,
		Duration:  duration,
		Err:       err,
	}
	e.SetPayload(e)
	return e
}

// Failed, statement'ın hata ile bitip bitmediğini döndürür.
func (e *QueryExecuted) Failed() bool { return e.Err != nil }

// NewTransactionCommitted, en dıştaki commit event'ini oluşturur.
func NewTransactionCommitted() Event {
	return NewBaseEvent(EventTransactionCommitted, nil)
}

// NewTransactionRolledBack, en dıştaki rollback event'ini oluşturur.
func NewTransactionRolledBack() Event {
	return NewBaseEvent(EventTransactionRolledBack, nil)
}
