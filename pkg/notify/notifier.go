// Package notify provides an in-process change-notification hub. Writers
// signal a key after every successful store write; subscribers get a
// coalesced wake-up per key and re-read the store themselves.
package notify

import "sync"

// Notifier fans out change signals per key (one key per user document).
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan struct{}
	next int
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[int]chan struct{})}
}

// Subscribe registers interest in a key. The returned channel receives a
// signal after each change; consecutive signals coalesce while the consumer
// is busy. The cancel func releases the registration and is idempotent.
func (n *Notifier) Subscribe(key string) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan struct{}, 1)
	id := n.next
	n.next++

	if n.subs[key] == nil {
		n.subs[key] = make(map[int]chan struct{})
	}
	n.subs[key][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[key], id)
			if len(n.subs[key]) == 0 {
				delete(n.subs, key)
			}
		})
	}
	return ch, cancel
}

// Notify signals every subscriber of key. Never blocks: a subscriber that
// already has a pending signal is skipped.
func (n *Notifier) Notify(key string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports the number of active registrations for a key.
func (n *Notifier) Subscribers(key string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[key])
}
