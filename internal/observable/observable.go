// Package observable holds a single value that UI code can read and watch.
package observable

import "sync"

// Value is a concurrency-safe holder that notifies subscribers whenever a
// Set changes the stored value. Notifications are coalesced: a slow
// subscriber sees at least one signal after the latest change, not one per
// change.
type Value[T comparable] struct {
	mu   sync.RWMutex
	v    T
	subs map[int]chan struct{}
	next int
}

// New returns a Value holding initial.
func New[T comparable](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[int]chan struct{})}
}

// Get returns the current value.
func (o *Value[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.v
}

// Set stores v and notifies subscribers if it differs from the current value.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.v == v {
		return
	}
	o.v = v

	for _, ch := range o.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel signalled after each change and a cancel func
// that stops and closes it.
func (o *Value[T]) Subscribe() (<-chan struct{}, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.subs == nil {
		o.subs = make(map[int]chan struct{})
	}

	id := o.next
	o.next++
	ch := make(chan struct{}, 1)
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
			close(ch)
		})
	}
}
