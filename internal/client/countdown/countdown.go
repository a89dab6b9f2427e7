// Package countdown drives "sends in ..." displays for queued messages.
package countdown

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Item is one queued message and the moment it is due.
type Item struct {
	ID    string
	DueAt time.Time
}

// Entry is an Item with its remaining time at a tick.
type Entry struct {
	ID        string
	Remaining time.Duration
}

type Countdown struct {
	interval time.Duration
	now      func() time.Time
}

type Option func(*Countdown)

func WithInterval(d time.Duration) Option {
	return func(c *Countdown) { c.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Countdown) { c.now = now }
}

func New(opts ...Option) *Countdown {
	c := &Countdown{interval: time.Second, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run calls render immediately and then once per interval with the items
// still pending, soonest first. It returns when nothing is pending or ctx is
// done; the ticker is always stopped on return.
func (c *Countdown) Run(ctx context.Context, items []Item, render func([]Entry)) {
	pending := c.Pending(items)
	if len(pending) == 0 {
		return
	}
	render(pending)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending = c.Pending(items)
			if len(pending) == 0 {
				render(nil)
				return
			}
			render(pending)
		}
	}
}

// Pending lists the items not yet due, soonest first.
func (c *Countdown) Pending(items []Item) []Entry {
	now := c.now()
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		if left := it.DueAt.Sub(now); left > 0 {
			out = append(out, Entry{ID: it.ID, Remaining: left})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Remaining < out[j].Remaining })
	return out
}

// Format renders a remaining duration as m:ss, rounding partial seconds up.
func Format(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
