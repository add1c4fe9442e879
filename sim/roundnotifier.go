package sim

import (
	"context"
	"sync"
)

// A RoundListener is notified every time all the units have been ticked once.
type RoundListener interface {
	RoundCompleted(ctx context.Context)
}

type roundListenerFunc struct {
	f func(ctx context.Context)
}

func (l *roundListenerFunc) RoundCompleted(ctx context.Context) {
	l.f(ctx)
}

// NewRoundListenerFunc wraps a function into a RoundListener. Every call
// returns a distinct listener, so the result can be removed again.
func NewRoundListenerFunc(f func(ctx context.Context)) RoundListener {
	return &roundListenerFunc{f: f}
}

// RoundNotifier delivers round completions to its listeners, in subscription
// order, on the goroutine that calls Fire. Listeners may be added or removed
// from any goroutine while a delivery is in progress.
type RoundNotifier struct {
	lock      sync.Mutex
	listeners []RoundListener
}

// AddListener subscribes a listener.
func (n *RoundNotifier) AddListener(l RoundListener) {
	n.lock.Lock()
	defer n.lock.Unlock()

	newList := make([]RoundListener, len(n.listeners), len(n.listeners)+1)
	copy(newList, n.listeners)
	n.listeners = append(newList, l)
}

// RemoveListener unsubscribes the first registration of a listener.
func (n *RoundNotifier) RemoveListener(l RoundListener) {
	n.lock.Lock()
	defer n.lock.Unlock()

	for i, registered := range n.listeners {
		if registered != l {
			continue
		}

		newList := make([]RoundListener, 0, len(n.listeners)-1)
		newList = append(newList, n.listeners[:i]...)
		newList = append(newList, n.listeners[i+1:]...)
		n.listeners = newList

		return
	}
}

// NumListeners returns the number of subscribed listeners.
func (n *RoundNotifier) NumListeners() int {
	return len(n.snapshot())
}

// Fire notifies all the listeners that a round has completed.
func (n *RoundNotifier) Fire(ctx context.Context) {
	for _, l := range n.snapshot() {
		l.RoundCompleted(ctx)
	}
}

func (n *RoundNotifier) snapshot() []RoundListener {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.listeners
}
