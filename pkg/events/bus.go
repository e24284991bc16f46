// Package events implements the cluster DB's subscription mechanism (spec
// §4.1): class-filtered subscriptions with a from-token/timeout long-poll
// contract, an inject() escape hatch for deterministic wakeups, and named
// barriers giving a causal "processed up to here" signal.
package events

import (
	"context"
	"strings"
	"sync"

	"github.com/xapi-core/xapi-core/pkg/model"
)

// Token names a subscriber's last-received point in the event stream. The
// zero token means "from the beginning" (used after a transport restart,
// per §4.4's events-from-xapi loop).
type Token uint64

// Event is one post-image delivered to a subscriber. Snapshot is the row's
// value at the moment of the write, not a live pointer, so a subscriber's
// view cannot be mutated out from under it.
type Event struct {
	Class    model.Class
	Ref      model.Ref
	Token    Token
	Snapshot any
}

// filter is one entry of a subscription's class list: "VM", "host/<ref>",
// or "VM/<ref>".
type filter struct {
	class model.Class
	ref   model.Ref // empty means "all rows of class"
}

func parseFilter(s string) filter {
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		return filter{class: model.Class(s[:idx]), ref: model.Ref(s[idx+1:])}
	}
	return filter{class: model.Class(s)}
}

func (f filter) matches(class model.Class, ref model.Ref) bool {
	if f.class != class {
		return false
	}
	return f.ref == "" || f.ref == ref
}

// Bus is the event log plus the subscription and barrier registries.
type Bus struct {
	mu      sync.Mutex
	log     []Event
	nextTok Token
	waiters []chan struct{} // woken whenever the log grows

	barriers map[int]chan struct{}
}

func NewBus() *Bus {
	return &Bus{barriers: make(map[int]chan struct{})}
}

// Emit appends an event for (class, ref, snapshot) and wakes any blocked
// Wait callers. Returns the token stamped on the event, which callers use
// as a per-row ordering marker (spec: "the server assigns tokens
// monotonically per row").
func (b *Bus) Emit(class model.Class, ref model.Ref, snapshot any) Token {
	b.mu.Lock()
	b.nextTok++
	tok := b.nextTok
	b.log = append(b.log, Event{Class: class, Ref: ref, Token: tok, Snapshot: snapshot})
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	return tok
}

// Inject forces an event to be emitted immediately for a row, without a
// real mutation, so that a subscriber can be woken deterministically in
// tests or by a reconciliation pass.
func (b *Bus) Inject(class model.Class, ref model.Ref, snapshot any) Token {
	return b.Emit(class, ref, snapshot)
}

// From returns all events strictly after from, matching any of filters,
// plus the token to resume from next.
func (b *Bus) From(from Token, filters []string) ([]Event, Token) {
	parsed := make([]filter, len(filters))
	for i, f := range filters {
		parsed[i] = parseFilter(f)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	next := from
	for _, ev := range b.log {
		if ev.Token <= from {
			continue
		}
		next = ev.Token
		for _, f := range parsed {
			if f.matches(ev.Class, ev.Ref) {
				out = append(out, ev)
				break
			}
		}
	}
	if len(b.log) > 0 {
		next = b.log[len(b.log)-1].Token
	}
	return out, next
}

// Wait blocks until at least one new event has been emitted since from, the
// context is cancelled, or timeout elapses (via ctx). It returns
// immediately if events are already available.
func (b *Bus) Wait(ctx context.Context, from Token, filters []string) ([]Event, Token) {
	for {
		evs, next := b.From(from, filters)
		if len(evs) > 0 || next > from {
			return evs, next
		}

		b.mu.Lock()
		ch := make(chan struct{})
		b.waiters = append(b.waiters, ch)
		b.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return nil, from
		}
	}
}

// LatestToken returns the greatest token ever issued, used by the
// events-from-xapi loop to record "at least this observation has been
// processed" for other threads waiting on it (§4.4).
func (b *Bus) LatestToken() Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextTok
}

// InjectBarrier signals barrier id, releasing every WaitBarrier caller for
// that id whether it started waiting before or after this call — giving
// callers the causal "processed up to here" signal of §4.1.
func (b *Bus) InjectBarrier(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.barriers[id]
	if !ok {
		ch = make(chan struct{})
		b.barriers[id] = ch
	}
	// A barrier is satisfied as soon as it is injected in this
	// single-process model: there is no separate downstream consumer
	// queue to drain, so signal immediately. Subscribers that called
	// WaitBarrier before InjectBarrier are blocked on this same channel.
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// WaitBarrier blocks until the barrier id has been signalled (InjectBarrier
// called for that id) or the context is done.
func (b *Bus) WaitBarrier(ctx context.Context, id int) error {
	b.mu.Lock()
	ch, ok := b.barriers[id]
	if !ok {
		ch = make(chan struct{})
		b.barriers[id] = ch
	}
	b.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
