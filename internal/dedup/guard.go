// Package dedup guarantees at most one reminder per facilitator, course
// offering and week inside a cool-down window.
package dedup

import (
	"context"
	"fmt"
	"time"
)

// Key identifies the reminders that must not be repeated within the
// cool-down window.
type Key struct {
	FacilitatorID    uint
	CourseOfferingID uint
	WeekNumber       int
}

func (k Key) String() string {
	return fmt.Sprintf("facilitator=%d offering=%d week=%d", k.FacilitatorID, k.CourseOfferingID, k.WeekNumber)
}

// Store persists the last send time per key. Claim must be a single atomic
// check-and-set: it records now as the last send and reports true only when
// no send was recorded after cutoff.
type Store interface {
	Claim(ctx context.Context, key Key, now, cutoff time.Time) (bool, error)
	LastSent(ctx context.Context, key Key) (*time.Time, error)
	Release(ctx context.Context, key Key, sentAt, restore time.Time) error
}

type Guard struct {
	store    Store
	coolDown time.Duration
	now      func() time.Time
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func New(store Store, coolDown time.Duration, opts ...Option) *Guard {
	g := &Guard{store: store, coolDown: coolDown, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) clock() time.Time {
	return g.now().UTC().Truncate(time.Microsecond)
}

func (g *Guard) CoolDown() time.Duration { return g.coolDown }

// ShouldSend reports whether no reminder for key was recorded inside the
// cool-down window. It is a read-only hint; only RecordSent decides.
func (g *Guard) ShouldSend(ctx context.Context, key Key) (bool, error) {
	last, err := g.store.LastSent(ctx, key)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return !last.After(g.clock().Add(-g.coolDown)), nil
}

// RecordSent atomically claims the send for key. Of any number of concurrent
// callers inside one cool-down window exactly one gets claimed == true; the
// returned sentAt identifies the claim for Forget.
func (g *Guard) RecordSent(ctx context.Context, key Key) (sentAt time.Time, claimed bool, err error) {
	now := g.clock()
	claimed, err = g.store.Claim(ctx, key, now, now.Add(-g.coolDown))
	if err != nil {
		return time.Time{}, false, err
	}
	return now, claimed, nil
}

// Forget undoes the claim made at sentAt, so that a reminder whose delivery
// failed can be claimed again by its retry. A claim that was superseded is
// left alone.
func (g *Guard) Forget(ctx context.Context, key Key, sentAt time.Time) error {
	return g.store.Release(ctx, key, sentAt, sentAt.Add(-g.coolDown))
}
