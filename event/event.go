// Package event provides typed, synchronous callback lists with disconnectable connections.
package event

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Event is a list of handlers invoked in connection order each time the event is signaled.
// The zero value is ready to use.
type Event[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []handler[T]
}

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Connection is returned by Connect and removes its handler when disconnected.
type Connection struct {
	once       sync.Once
	disconnect func()
}

// Disconnect removes the handler. It is safe to call more than once and on a nil Connection.
func (c *Connection) Disconnect() {
	if c == nil {
		return
	}
	c.once.Do(c.disconnect)
}

// PanicError is reported by Signal for a handler that panicked.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("event handler panicked: %v", e.Value)
}

// Connect adds fn to the handler list.
func (e *Event[T]) Connect(fn func(T)) *Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, handler[T]{id: id, fn: fn})
	return &Connection{disconnect: func() { e.remove(id) }}
}

func (e *Event[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// ConnectionCount returns the number of connected handlers.
func (e *Event[T]) ConnectionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

// Signal calls every handler with value on the calling goroutine. A panicking handler does not
// prevent the remaining handlers from running; every panic is returned as a *PanicError.
// Handlers may connect or disconnect during Signal; changes apply to the next Signal.
func (e *Event[T]) Signal(value T) error {
	e.mu.Lock()
	handlers := append([]handler[T](nil), e.handlers...)
	e.mu.Unlock()

	var errs error
	for _, h := range handlers {
		errs = multierr.Append(errs, call(h.fn, value))
	}
	return errs
}

func call[T any](fn func(T), value T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	fn(value)
	return nil
}
