package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Handler is a callback invoked with the data payload of a delivered
// event.
type Handler func(payload any)

// AnyHandler is a callback invoked for every delivered event regardless
// of type.
type AnyHandler func(eventType string, payload any)

// registration is a single listener entry. A registration is identified
// by pointer, so the disposer returned by On can remove exactly the
// registration it was created for.
type registration struct {
	handler    Handler
	anyHandler AnyHandler
}

// Dispatcher fans events out to registered listeners. It has no
// knowledge of the transport: the client feeds it parsed envelopes and
// locally synthesized connection events.
//
// Dispatch is synchronous and follows registration order. Emit iterates
// over a snapshot of the listener set, so a handler that disposes itself
// or another listener during dispatch does not corrupt iteration. A
// panicking handler is recovered and logged so sibling handlers still
// run.
type Dispatcher struct {
	logger *zap.Logger

	mu        sync.Mutex
	listeners map[string][]*registration
	anyList   []*registration
}

// NewDispatcher creates an empty Dispatcher. A nil logger is replaced
// with a no-op logger.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger:    logger,
		listeners: make(map[string][]*registration),
	}
}

// On registers a handler for an event type and returns a disposer that
// removes exactly that registration. Calling the disposer more than
// once, or after Clear, is a no-op.
func (d *Dispatcher) On(eventType string, handler Handler) func() {
	reg := &registration{handler: handler}

	d.mu.Lock()
	d.listeners[eventType] = append(d.listeners[eventType], reg)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.listeners[eventType] = removeRegistration(d.listeners[eventType], reg)
		if len(d.listeners[eventType]) == 0 {
			delete(d.listeners, eventType)
		}
	}
}

// OnAny registers a handler invoked for every event. Any-listeners run
// after the type-specific listeners for each event, in registration
// order.
func (d *Dispatcher) OnAny(handler AnyHandler) func() {
	reg := &registration{anyHandler: handler}

	d.mu.Lock()
	d.anyList = append(d.anyList, reg)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.anyList = removeRegistration(d.anyList, reg)
	}
}

// Emit delivers a payload to all listeners currently registered for
// eventType. Emitting with zero listeners is a no-op.
func (d *Dispatcher) Emit(eventType string, payload any) {
	d.mu.Lock()
	typed := make([]*registration, len(d.listeners[eventType]))
	copy(typed, d.listeners[eventType])
	anyListeners := make([]*registration, len(d.anyList))
	copy(anyListeners, d.anyList)
	d.mu.Unlock()

	for _, reg := range typed {
		d.invoke(eventType, func() { reg.handler(payload) })
	}
	for _, reg := range anyListeners {
		d.invoke(eventType, func() { reg.anyHandler(eventType, payload) })
	}
}

// ListenerCount returns the number of listeners registered for an event
// type, not counting any-listeners.
func (d *Dispatcher) ListenerCount(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[eventType])
}

// Clear removes all registrations. Previously returned disposers become
// no-ops.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[string][]*registration)
	d.anyList = nil
}

// invoke runs a single handler, recovering a panic so the remaining
// handlers for the event still execute.
func (d *Dispatcher) invoke(eventType string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("eventType", eventType),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

// removeRegistration returns regs without reg, preserving order. Absent
// entries are tolerated so disposers are idempotent.
func removeRegistration(regs []*registration, reg *registration) []*registration {
	for i, r := range regs {
		if r == reg {
			return append(regs[:i], regs[i+1:]...)
		}
	}
	return regs
}
