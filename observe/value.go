// Package observe provides a small observable container. A bridge publishes
// state snapshots into a Value and any number of nested consumers read it,
// either by polling Get or by blocking on a subscription channel, without the
// snapshot being threaded through intermediate layers by hand.
package observe

import "sync"

// Value holds the latest published snapshot of T.
//
// A nil *Value reads as the zero T, so consumers rendered outside any
// publisher see an empty default rather than an error.
type Value[T any] struct {
	mu   sync.RWMutex
	cur  T
	subs []chan T
}

// NewValue returns a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{cur: initial}
}

// Get returns the latest snapshot.
func (v *Value[T]) Get() T {
	if v == nil {
		var zero T
		return zero
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Set publishes a new snapshot. Delivery to subscribers is latest-wins and
// never blocks the publisher: a subscriber that has not drained its channel
// sees only the newest snapshot.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.cur = val
	subs := v.subs
	v.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- val:
		default:
			// Replace the stale buffered snapshot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- val:
			default:
			}
		}
	}
}

// Subscribe returns a channel that receives snapshots published after this
// call. The channel is buffered with the latest snapshot only.
func (v *Value[T]) Subscribe() <-chan T {
	ch := make(chan T, 1)
	v.mu.Lock()
	v.subs = append(v.subs, ch)
	v.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription channel.
func (v *Value[T]) Unsubscribe(ch <-chan T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, c := range v.subs {
		if (<-chan T)(c) == ch {
			v.subs = append(v.subs[:i], v.subs[i+1:]...)
			return
		}
	}
}
