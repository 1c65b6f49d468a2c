// Package wakeup lets Enqueue nudge blocked Lease calls instead of leaving
// them to their next poll.
package wakeup

import "sync"

type Notifier interface {
	// Notify signals that a job of the given type became leasable.
	Notify(jobType string)
	// Subscribe returns a channel that receives a value whenever any of the
	// types is notified, and a function that releases the subscription.
	Subscribe(jobTypes ...string) (<-chan struct{}, func())
	Close() error
}

// Local is an in-process broadcaster. Signals are coalesced: a subscriber
// that has not drained its channel misses nothing but gets one wake-up.
type Local struct {
	mu   sync.RWMutex
	subs map[string]map[chan struct{}]struct{}
}

var _ Notifier = (*Local)(nil)

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[chan struct{}]struct{})}
}

func (l *Local) Subscribe(jobTypes ...string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	for _, t := range jobTypes {
		set := l.subs[t]
		if set == nil {
			set = make(map[chan struct{}]struct{})
			l.subs[t] = set
		}
		set[ch] = struct{}{}
	}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for _, t := range jobTypes {
				if set, ok := l.subs[t]; ok {
					delete(set, ch)
					if len(set) == 0 {
						delete(l.subs, t)
					}
				}
			}
		})
	}
}

func (l *Local) Notify(jobType string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for ch := range l.subs[jobType] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (l *Local) Close() error { return nil }

// Nop never wakes anyone; Lease falls back to polling.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Notify(string) {}

func (Nop) Subscribe(...string) (<-chan struct{}, func()) { return nil, func() {} }

func (Nop) Close() error { return nil }
