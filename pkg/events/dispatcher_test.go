// -----------------------------------------------------------------------------
// Event Dispatcher Tests
// -----------------------------------------------------------------------------
// Testler:
// - Senkron dispatch ve çoklu listener
// - Wildcard listener
// - Listener hatalarının birleştirilmesi
// - Async dispatch ve graceful shutdown
// - Concurrent dispatch (race detector ile)
// -----------------------------------------------------------------------------

package events

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger, test için log satırlarını biriktiren logger.
type MockLogger struct {
	mu   sync.Mutex
	logs []string
}

func (m *MockLogger) Printf(format string, v ...any) {
	m.mu.Lock()
	m.logs = append(m.logs, fmt.Sprintf(format, v...))
	m.mu.Unlock()
}

func (m *MockLogger) Println(v ...any) {
	m.mu.Lock()
	m.logs = append(m.logs, fmt.Sprint(v...))
	m.mu.Unlock()
}

func (m *MockLogger) Logs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.logs...)
}

// countingListener, çağrı sayısını tutan listener.
type countingListener struct {
	handled atomic.Int32
	delay   time.Duration
	err     error
}

func (l *countingListener) Handle(Event) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.handled.Add(1)
	return l.err
}

func (l *countingListener) count() int { return int(l.handled.Load()) }

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(&MockLogger{})
	t.Cleanup(d.Shutdown)
	return d
}

func TestDispatcher_BasicDispatch(t *testing.T) {
	d := newDispatcher(t)
	listener := &countingListener{}
	d.Listen(EventTransactionCommitted, listener)

	require.NoError(t, d.Dispatch(NewTransactionCommitted()))
	assert.Equal(t, 1, listener.count())
}

func TestDispatcher_NoListenersIsNoop(t *testing.T) {
	d := newDispatcher(t)
	assert.NoError(t, d.Dispatch(NewQueryExecuted("SELECT 1", nil, time.Millisecond, nil)))
	assert.False(t, d.HasListeners(EventQueryExecuted))
}

func TestDispatcher_MultipleListeners(t *testing.T) {
	d := newDispatcher(t)
	listeners := []*countingListener{{}, {}, {}}
	for _, l := range listeners {
		d.Listen(EventQueryExecuted, l)
	}

	require.NoError(t, d.Dispatch(NewQueryExecuted("SELECT 1", nil, 0, nil)))
	for i, l := range listeners {
		assert.Equal(t, 1, l.count(), "listener %d", i)
	}
	assert.Equal(t, 3, d.GetListeners(EventQueryExecuted))
}

func TestDispatcher_WildcardListener(t *testing.T) {
	d := newDispatcher(t)
	all := &countingListener{}
	commits := &countingListener{}
	d.Listen(WildcardEvent, all)
	d.Listen(EventTransactionCommitted, commits)

	require.NoError(t, d.Dispatch(NewTransactionCommitted()))
	require.NoError(t, d.Dispatch(NewTransactionRolledBack()))
	require.NoError(t, d.Dispatch(NewQueryExecuted("SELECT 1", nil, 0, nil)))

	assert.Equal(t, 3, all.count())
	assert.Equal(t, 1, commits.count())
	assert.True(t, d.HasListeners(EventTransactionRolledBack))
}

func TestDispatcher_ListenerErrorDoesNotStopOthers(t *testing.T) {
	d := newDispatcher(t)
	first := &countingListener{}
	failing := &countingListener{err: errors.New("exporter down")}
	last := &countingListener{}
	d.Listen(EventQueryExecuted, first)
	d.Listen(EventQueryExecuted, failing)
	d.Listen(EventQueryExecuted, last)

	err := d.Dispatch(NewQueryExecuted("SELECT 1", nil, 0, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exporter down")
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, last.count())
}

func TestDispatcher_QueryExecutedPayload(t *testing.T) {
	d := newDispatcher(t)
	var got *QueryExecuted
	d.Listen(EventQueryExecuted, ListenerFunc(func(e Event) error {
		got = e.(*QueryExecuted)
		return nil
	}))

	boom := errors.New("deadlock")
	require.NoError(t, d.Dispatch(NewQueryExecuted("UPDATE t SET a = ?", []any{1}, 2*time.Millisecond, boom)))

	require.NotNil(t, got)
	assert.Equal(t, "UPDATE t SET a = ?", got.SQL)
	assert.Equal(t, []any{1}, got.Bindings)
	assert.Equal(t, 2*time.Millisecond, got.Duration)
	assert.True(t, got.Failed())
	assert.Same(t, got, got.Payload())
}

func TestDispatcher_ConditionalListener(t *testing.T) {
	d := newDispatcher(t)
	failures := &countingListener{}
	d.Listen(EventQueryExecuted, NewConditionalListener(failures, func(e Event) bool {
		q, ok := e.(*QueryExecuted)
		return ok && q.Failed()
	}))

	require.NoError(t, d.Dispatch(NewQueryExecuted("SELECT 1", nil, 0, nil)))
	require.NoError(t, d.Dispatch(NewQueryExecuted("SELECT 1", nil, 0, errors.New("x"))))
	assert.Equal(t, 1, failures.count())
}

func TestDispatcher_ForgetAndClear(t *testing.T) {
	d := newDispatcher(t)
	d.Listen(EventTransactionCommitted, &countingListener{})
	d.Listen(EventTransactionRolledBack, &countingListener{})

	d.Forget(EventTransactionCommitted)
	assert.Equal(t, map[string]int{EventTransactionRolledBack: 1}, d.Stats())

	d.Clear()
	assert.Empty(t, d.Stats())
}

func TestDispatcher_AsyncDispatchAndShutdown(t *testing.T) {
	d := NewDispatcher(&MockLogger{})
	listener := &countingListener{delay: 20 * time.Millisecond}
	d.Listen(EventQueryExecuted, listener)

	for i := 0; i < 10; i++ {
		d.DispatchAsync(NewQueryExecuted(fmt.Sprintf("SELECT %d", i), nil, 0, nil))
	}
	d.Shutdown()

	assert.Equal(t, 10, listener.count())
}

func TestDispatcher_AsyncAfterShutdownIsIgnored(t *testing.T) {
	d := NewDispatcher(&MockLogger{})
	listener := &countingListener{}
	d.Listen(EventQueryExecuted, listener)
	d.Shutdown()

	d.DispatchAsync(NewQueryExecuted("SELECT 1", nil, 0, nil))
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, listener.count())
}

func TestDispatcher_ShutdownWithTimeout(t *testing.T) {
	d := NewDispatcher(&MockLogger{})
	d.Listen(EventQueryExecuted, &countingListener{delay: 300 * time.Millisecond})
	d.DispatchAsync(NewQueryExecuted("SELECT 1", nil, 0, nil))

	assert.Error(t, d.ShutdownWithTimeout(20*time.Millisecond))
}

func TestDispatcher_ConcurrentDispatch(t *testing.T) {
	d := newDispatcher(t)
	listener := &countingListener{}
	d.Listen(EventQueryExecuted, listener)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = d.Dispatch(NewQueryExecuted("SELECT 1", nil, 0, nil))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, listener.count())
}

func BenchmarkDispatcher_NoListeners(b *testing.B) {
	d := NewDispatcher(&MockLogger{})
	defer d.Shutdown()
	event := NewQueryExecuted("SELECT 1", nil, 0, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = d.Dispatch(event)
	}
}
