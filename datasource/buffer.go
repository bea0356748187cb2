package datasource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// StreamBuffer sits between a source's raw Subscribe channel and the
// coordinator. It bounds memory with a capacity limit (oldest item
// evicted once full), drops items older than MaxAge once a newer one
// arrives, and optionally rate-limits forwarding so a bursty source
// can't overwhelm the coordinator. Rate limiting blocks the producer via
// Limiter.Wait rather than dropping — items are only ever lost through
// the logged capacity/age eviction paths.
type StreamBuffer[Item, Cursor any] struct {
	cfg     BufferConfig
	limiter *rate.Limiter

	mu        sync.Mutex
	queue     []queuedEvent[Item, Cursor]
	evictions uint64
}

type queuedEvent[Item, Cursor any] struct {
	event      StreamEvent[Item, Cursor]
	enqueuedAt time.Time
}

func NewStreamBuffer[Item, Cursor any](cfg BufferConfig) *StreamBuffer[Item, Cursor] {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &StreamBuffer[Item, Cursor]{cfg: cfg, limiter: limiter}
}

// Evictions reports how many items have been dropped for capacity or age.
func (b *StreamBuffer[Item, Cursor]) Evictions() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evictions
}

func (b *StreamBuffer[Item, Cursor]) push(ev StreamEvent[Item, Cursor], sourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.MaxAge > 0 {
		cutoff := time.Now().Add(-b.cfg.MaxAge)
		kept := b.queue[:0]
		for _, q := range b.queue {
			if q.enqueuedAt.Before(cutoff) {
				b.evictions++
				slog.Warn("datasource: evicting aged item from buffer", "source_id", sourceID)
				continue
			}
			kept = append(kept, q)
		}
		b.queue = kept
	}

	if b.cfg.MaxItems > 0 && len(b.queue) >= b.cfg.MaxItems {
		b.queue = b.queue[1:]
		b.evictions++
		slog.Warn("datasource: evicting oldest item, buffer full", "source_id", sourceID, "max_items", b.cfg.MaxItems)
	}

	b.queue = append(b.queue, queuedEvent[Item, Cursor]{event: ev, enqueuedAt: time.Now()})
}

func (b *StreamBuffer[Item, Cursor]) pop() (StreamEvent[Item, Cursor], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		var zero StreamEvent[Item, Cursor]
		return zero, false
	}
	next := b.queue[0]
	b.queue = b.queue[1:]
	return next.event, true
}

// Run drains in into the returned channel, applying this buffer's
// capacity/age eviction and rate limiting. It closes the output channel
// once in closes (after draining whatever remains queued) or ctx is
// cancelled.
func (b *StreamBuffer[Item, Cursor]) Run(ctx context.Context, sourceID string, in <-chan StreamEvent[Item, Cursor]) <-chan StreamEvent[Item, Cursor] {
	out := make(chan StreamEvent[Item, Cursor])

	// notify wakes the forwarding loop whenever push adds an item or in closes.
	notify := make(chan struct{}, 1)
	wake := func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	}

	var closed atomicBool
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					closed.set(true)
					wake()
					return
				}
				b.push(ev, sourceID)
				wake()
			}
		}
	}()

	go func() {
		defer close(out)
		for {
			ev, ok := b.pop()
			if ok {
				if !b.forward(ctx, out, ev) {
					return
				}
				continue
			}
			if closed.get() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}
		}
	}()

	return out
}

type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (a *atomicBool) set(v bool) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *atomicBool) get() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}

func (b *StreamBuffer[Item, Cursor]) forward(ctx context.Context, out chan<- StreamEvent[Item, Cursor], ev StreamEvent[Item, Cursor]) bool {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return false
		}
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
