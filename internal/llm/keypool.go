package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/jobsift/internal/constants"
)

// KeyPool hands out API keys one holder at a time. A released key goes to
// the longest-waiting caller first; when nobody waits, keys are picked
// round-robin so usage spreads evenly across the pool.
type KeyPool struct {
	mu      sync.Mutex
	keys    []string
	busy    []bool
	cursor  int
	waiters []chan int

	// timeout bounds Acquire when the caller's context has no deadline
	// sooner.
	timeout time.Duration
}

// NewKeyPool creates a pool over the given keys.
func NewKeyPool(keys []string) *KeyPool {
	return &KeyPool{
		keys:    keys,
		busy:    make([]bool, len(keys)),
		timeout: constants.KeyAcquireTimeout,
	}
}

// Size returns the number of keys in the pool.
func (p *KeyPool) Size() int {
	return len(p.keys)
}

// Acquire returns a free key and a release func. When every key is held,
// the caller queues behind earlier waiters until a release hands one over,
// the context ends, or the acquire timeout passes. The release func is
// idempotent.
func (p *KeyPool) Acquire(ctx context.Context) (string, func(), error) {
	if len(p.keys) == 0 {
		return "", nil, errors.New("no llm keys configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	if idx, ok := p.tryAcquireLocked(); ok {
		p.mu.Unlock()
		return p.keys[idx], p.releaseFunc(idx), nil
	}
	ch := make(chan int, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case idx := <-ch:
		return p.keys[idx], p.releaseFunc(idx), nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ch {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return "", nil, fmt.Errorf("waiting for llm key: %w", ctx.Err())
			}
		}
		p.mu.Unlock()
		// No longer queued: a release handed us a key while we were
		// timing out. Recycle it so the next waiter gets it.
		select {
		case idx := <-ch:
			p.release(idx)
		default:
		}
		return "", nil, fmt.Errorf("waiting for llm key: %w", ctx.Err())
	}
}

// tryAcquireLocked scans from the cursor for a free key. Caller holds mu.
func (p *KeyPool) tryAcquireLocked() (int, bool) {
	n := len(p.keys)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		if !p.busy[idx] {
			p.busy[idx] = true
			p.cursor = (idx + 1) % n
			return idx, true
		}
	}
	return 0, false
}

func (p *KeyPool) release(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.waiters) > 0 {
		// Hand the key straight to the head of the queue; the busy slot
		// stays held by the new owner.
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		ch <- idx
		return
	}
	p.busy[idx] = false
}

func (p *KeyPool) releaseFunc(idx int) func() {
	var once sync.Once
	return func() {
		once.Do(func() { p.release(idx) })
	}
}
