package callback

import (
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Broadcaster keeps an ordered list of listeners and delivers outcomes to all
// of them. The same listener may be registered more than once and is then
// notified once per registration.
type Broadcaster[D any] struct {
	mu        sync.Mutex
	listeners []Listener[D]
	log       logrus.FieldLogger
}

// SetLogger sets where panicking listeners are reported. Defaults to the
// logrus standard logger.
func (b *Broadcaster[D]) SetLogger(l logrus.FieldLogger) {
	b.mu.Lock()
	b.log = l
	b.mu.Unlock()
}

// Register appends l. Nil listeners are ignored.
func (b *Broadcaster[D]) Register(l Listener[D]) {
	if l == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

// Remove drops the first registration of l. Removing an unknown listener is a no-op.
// A listener whose dynamic type is not comparable can be registered but never matches.
func (b *Broadcaster[D]) Remove(l Listener[D]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, registered := range b.listeners {
		if sameListener(registered, l) {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func sameListener[D any](a, b Listener[D]) bool {
	ta := reflect.TypeOf(a)
	if ta == nil || ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Broadcast delivers o to every listener, most recently registered first.
// A panicking listener is logged and the fan-out continues with the next one.
// The lock is held for the whole fan-out, so listeners must not register or
// remove listeners on the same broadcaster from inside a callback.
func (b *Broadcaster[D]) Broadcast(d D, o Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.listeners) - 1; i >= 0; i-- {
		b.deliver(b.listeners[i], d, o)
	}
}

func (b *Broadcaster[D]) deliver(l Listener[D], d D, o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log := b.log
			if log == nil {
				log = logrus.StandardLogger()
			}
			log.WithFields(logrus.Fields{
				"panic":   r,
				"outcome": o.Kind.String(),
				"stack":   string(debug.Stack()),
			}).Error("listener panicked")
		}
	}()

	Deliver(l, d, o)
}

// Len returns the number of registrations.
func (b *Broadcaster[D]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Clear drops every listener.
func (b *Broadcaster[D]) Clear() {
	b.mu.Lock()
	b.listeners = nil
	b.mu.Unlock()
}
