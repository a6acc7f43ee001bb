// -----------------------------------------------------------------------------
// Event Dispatcher
// -----------------------------------------------------------------------------
// Bu dosya, query katmanının event'lerini listener'lara dağıtan merkezi
// yapıdır (observer pattern).
//
// Builder ve TransactionManager dispatcher'ı opsiyonel olarak alır. Hiç
// listener yoksa Dispatch ucuz bir map lookup'ından ibarettir; bu yüzden her
// statement için QueryExecuted yayınlamak güvenlidir.
//
// Kullanım:
//
//	dispatcher := events.NewDispatcher(logger)
//	defer dispatcher.Shutdown()
//
//	dispatcher.Listen(events.EventQueryExecuted, slowQueryLogger)
//	dispatcher.Listen(events.WildcardEvent, auditTrail)
//
//	conn, _ := database.Open(ctx, "mysql", dsn, database.ConnectionOptions{
//	    Dispatcher: dispatcher,
//	})
// -----------------------------------------------------------------------------

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// WildcardEvent, tüm event'leri dinleyen listener'lar için kullanılan isim.
const WildcardEvent = "*"

// Dispatcher, event'leri yöneten merkezi yapıdır.
//
// Özellikler:
// - Thread-safe
// - Event başına birden fazla listener
// - Wildcard ("*") listener desteği
// - Senkron ve asenkron dispatch
// - Context ile graceful shutdown
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	logger    Logger
	wg        sync.WaitGroup // Async event'leri takip etmek için
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewDispatcher, yeni bir Dispatcher oluşturur.
//
// Dispatcher kullanımı bittiğinde Shutdown() çağrılmalıdır:
//
//	dispatcher := events.NewDispatcher(logger)
//	defer dispatcher.Shutdown()
func NewDispatcher(logger Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		listeners: make(map[string][]Listener),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Listen, belirtilen event'e bir listener kaydeder. WildcardEvent ile
// kaydedilen listener'lar her event için çağrılır.
//
// Örnek:
//
//	dispatcher.Listen(events.EventTransactionRolledBack, events.ListenerFunc(func(e events.Event) error {
//	    rollbacks.Inc()
//	    return nil
//	}))
func (d *Dispatcher) Listen(eventName string, listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners[eventName] = append(d.listeners[eventName], listener)
	d.logger.Printf("✅ Listener registered for event: %s", eventName)
}

// listenersFor, event'e özgü listener'ları ve ardından wildcard
// listener'ları döndürür.
func (d *Dispatcher) listenersFor(name string) []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()

	specific := d.listeners[name]
	wildcard := d.listeners[WildcardEvent]
	if len(wildcard) == 0 || name == WildcardEvent {
		return specific
	}
	out := make([]Listener, 0, len(specific)+len(wildcard))
	out = append(out, specific...)
	return append(out, wildcard...)
}

// Dispatch, bir event'i tüm kayıtlı listener'lara sırayla gönderir.
// Bir listener hata dönerse diğerleri yine çalışır; tüm hatalar birleştirilerek döner.
//
// Örnek:
//
//	if err := dispatcher.Dispatch(events.NewTransactionCommitted()); err != nil {
//	    log.Printf("Event dispatch error: %v", err)
//	}
func (d *Dispatcher) Dispatch(event Event) error {
	listeners := d.listenersFor(event.Name())
	if len(listeners) == 0 {
		return nil
	}

	var errs []error
	for _, listener := range listeners {
		if err := listener.Handle(event); err != nil {
			errs = append(errs, err)
			d.logger.Printf("❌ Listener error for '%s': %v", event.Name(), err)
		}
	}
	return errors.Join(errs...)
}

// DispatchAsync, event'i goroutine'de dispatch eder ve hemen döner.
// Hatalar sadece log'a yazılır. Shutdown'dan sonra gelen event'ler yok sayılır.
func (d *Dispatcher) DispatchAsync(event Event) {
	select {
	case <-d.ctx.Done():
		d.logger.Printf("⚠️  Dispatcher is shutting down, async event '%s' ignored", event.Name())
		return
	default:
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		select {
		case <-d.ctx.Done():
			d.logger.Printf("⚠️  Async event '%s' cancelled due to shutdown", event.Name())
			return
		default:
		}

		if err := d.Dispatch(event); err != nil {
			d.logger.Printf("❌ Async dispatch error for '%s': %v", event.Name(), err)
		}
	}()
}

// Forget, belirtilen event için tüm listener'ları kaldırır.
func (d *Dispatcher) Forget(eventName string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.listeners, eventName)
	d.logger.Printf("🗑️  All listeners removed for event: %s", eventName)
}

// GetListeners, belirtilen event'in (wildcard hariç) listener sayısını döndürür.
func (d *Dispatcher) GetListeners(eventName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.listeners[eventName])
}

// HasListeners, event'i dinleyen (wildcard dahil) bir listener olup olmadığını döndürür.
func (d *Dispatcher) HasListeners(eventName string) bool {
	return len(d.listenersFor(eventName)) > 0
}

// Clear, tüm listener'ları temizler.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners = make(map[string][]Listener)
	d.logger.Println("🗑️  All event listeners cleared")
}

// Stats, event adı → listener sayısı map'ini döndürür.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int, len(d.listeners))
	for event, listeners := range d.listeners {
		stats[event] = len(listeners)
	}
	return stats
}

// Shutdown, yeni async event'leri engeller ve bekleyenlerin bitmesini bekler.
func (d *Dispatcher) Shutdown() {
	d.logger.Println("🔄 Shutting down event dispatcher...")
	d.cancel()
	d.wg.Wait()
	d.logger.Println("✅ Event dispatcher shutdown complete")
}

// ShutdownWithTimeout, Shutdown gibidir ama en fazla timeout kadar bekler.
func (d *Dispatcher) ShutdownWithTimeout(timeout time.Duration) error {
	d.logger.Printf("🔄 Shutting down event dispatcher (timeout: %v)...", timeout)
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Println("✅ Event dispatcher shutdown complete")
		return nil
	case <-time.After(timeout):
		d.logger.Println("⚠️  Event dispatcher shutdown timeout - some events may not have completed")
		return fmt.Errorf("shutdown timeout exceeded after %v", timeout)
	}
}
