// -----------------------------------------------------------------------------
// Event Listeners
// -----------------------------------------------------------------------------
// Listener, bir event gerçekleştiğinde çalışacak kod bloğudur. Dispatch
// edilen event'e (ve wildcard'a) kayıtlı tüm listener'lar çalıştırılır.
//
// Örnek:
//
//	type SlowQueryLogger struct {
//	    Threshold time.Duration
//	}
//
//	func (l *SlowQueryLogger) Handle(event events.Event) error {
//	    q := event.(*events.QueryExecuted)
//	    if q.Duration > l.Threshold {
//	        log.Printf("🐢 %s (%v)", q.SQL, q.Duration)
//	    }
//	    return nil
//	}
//
//	dispatcher.Listen(events.EventQueryExecuted, &SlowQueryLogger{Threshold: time.Second})
// -----------------------------------------------------------------------------

package events

// Listener, event'leri dinleyen ve işleyen interface.
//
// Her listener, Handle() metodunu implement etmelidir.
// Handle metodu, event gerçekleştiğinde çağrılır.
type Listener interface {
	// Handle, event'i işler.
	//
	// Parametre:
	//   - event: Gerçekleşen event
	//
	// Döndürür:
	//   - error: İşlem başarısızsa hata döner
	//
	// Hata Yönetimi:
	// Handle metodu error dönerse, dispatcher bu hatayı loglar
	// ancak diğer listener'ların çalışmasını engellemez.
	Handle(event Event) error
}

// ListenerFunc, fonksiyonları Listener interface'ine çevirir.
//
// Bu adapter pattern sayesinde, struct tanımlamadan
// fonksiyon olarak listener yazabilirsiniz:
//
//	dispatcher.Listen(events.EventTransactionCommitted, events.ListenerFunc(func(e events.Event) error {
//	    log.Println("commit:", e.OccurredAt())
//	    return nil
//	}))
type ListenerFunc func(Event) error

// Handle, ListenerFunc'ı Listener interface'ine uyumlu hale getirir.
func (f ListenerFunc) Handle(event Event) error {
	return f(event)
}

// -----------------------------------------------------------------------------
// Async Listener Wrapper
// -----------------------------------------------------------------------------

// AsyncListener, listener'ı goroutine'de çalıştıran wrapper.
//
// Kullanım:
//
//	exporter := events.NewAsyncListener(&MetricsExporter{}, logger)
//	dispatcher.Listen(events.EventQueryExecuted, exporter)
//
// Statement'ı çalıştıran goroutine listener'ı beklemez.
type AsyncListener struct {
	listener Listener
	logger   Logger // Error logging için
}

// Logger, log interface'i (dependency injection için).
type Logger interface {
	Printf(format string, v ...any)
	Println(v ...any)
}

// NewAsyncListener, yeni bir AsyncListener oluşturur.
//
// Parametreler:
//   - listener: Wrap edilecek listener
//   - logger: Hata loglamak için logger
//
// Döndürür:
//   - *AsyncListener: Async listener wrapper
func NewAsyncListener(listener Listener, logger Logger) *AsyncListener {
	return &AsyncListener{
		listener: listener,
		logger:   logger,
	}
}

// Handle, listener'ı goroutine'de çalıştırır.
//
// NOT: Goroutine'de çalıştığı için error dönmez (nil döner).
// Hatalar logger'a yazılır.
func (a *AsyncListener) Handle(event Event) error {
	// Goroutine'de çalıştır
	go func() {
		if err := a.listener.Handle(event); err != nil {
			a.logger.Printf("❌ Async listener error for event '%s': %v", event.Name(), err)
		}
	}()

	// Goroutine başlatıldı, hemen dön
	return nil
}

// -----------------------------------------------------------------------------
// Conditional Listener
// -----------------------------------------------------------------------------

// ConditionalListener, sadece belirli koşullarda çalışan listener.
//
// Kullanım:
//
//	failedOnly := events.NewConditionalListener(alerter, func(e events.Event) bool {
//	    q, ok := e.(*events.QueryExecuted)
//	    return ok && q.Failed()
//	})
//	dispatcher.Listen(events.EventQueryExecuted, failedOnly)
type ConditionalListener struct {
	listener  Listener
	condition func(Event) bool
}

// NewConditionalListener, yeni bir ConditionalListener oluşturur.
func NewConditionalListener(listener Listener, condition func(Event) bool) *ConditionalListener {
	return &ConditionalListener{
		listener:  listener,
		condition: condition,
	}
}

// Handle, koşul sağlanıyorsa listener'ı çalıştırır.
func (c *ConditionalListener) Handle(event Event) error {
	if c.condition(event) {
		return c.listener.Handle(event)
	}
	return nil // Koşul sağlanmadı, skip
}
