package llm

import (
	"context"
	"testing"
	"time"
)

func TestKeyPool_RoundRobin(t *testing.T) {
	p := NewKeyPool([]string{"k1", "k2"})

	got := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		key, release, err := p.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
		got = append(got, key)
		release()
	}

	want := []string{"k1", "k2", "k1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("acquire #%d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestKeyPool_HeldKeysAreDistinct(t *testing.T) {
	p := NewKeyPool([]string{"k1", "k2", "k3"})

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		key, release, err := p.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
		defer release()
		if seen[key] {
			t.Errorf("key %q handed out twice", key)
		}
		seen[key] = true
	}
}

func TestKeyPool_ExhaustionTimesOut(t *testing.T) {
	p := NewKeyPool([]string{"only"})
	p.timeout = 50 * time.Millisecond

	_, release, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	start := time.Now()
	if _, _, err := p.Acquire(context.Background()); err == nil {
		t.Fatal("expected second Acquire to time out")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Acquire blocked for %v, want about 50ms", elapsed)
	}
}

func TestKeyPool_WaitersServedInOrder(t *testing.T) {
	p := NewKeyPool([]string{"only"})

	_, release, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	order := make(chan string, 2)
	started := make(chan struct{}, 2)
	waiter := func(name string) {
		started <- struct{}{}
		_, rel, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("%s Acquire() error = %v", name, err)
			order <- name + "-failed"
			return
		}
		order <- name
		rel()
	}

	go waiter("first")
	<-started
	time.Sleep(50 * time.Millisecond)
	go waiter("second")
	<-started
	time.Sleep(50 * time.Millisecond)

	release()

	if got := <-order; got != "first" {
		t.Errorf("first key went to %q, want %q", got, "first")
	}
	if got := <-order; got != "second" {
		t.Errorf("second key went to %q, want %q", got, "second")
	}
}

func TestKeyPool_ReleaseIsIdempotent(t *testing.T) {
	p := NewKeyPool([]string{"only"})
	p.timeout = 50 * time.Millisecond

	_, release, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()
	release()

	// The double release must not free the slot twice: after one acquire
	// the pool is exhausted again.
	_, release2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	defer release2()

	if _, _, err := p.Acquire(context.Background()); err == nil {
		t.Error("expected Acquire to fail while the only key is held")
	}
}

func TestKeyPool_Empty(t *testing.T) {
	p := NewKeyPool(nil)
	if _, _, err := p.Acquire(context.Background()); err == nil {
		t.Fatal("expected Acquire on an empty pool to fail")
	}
}
