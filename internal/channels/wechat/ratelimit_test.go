package wechat

import (
	"sync"
	"testing"
	"time"
)

// fakeClock drives rateState deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateCooldown(t *testing.T) {
	clock := newFakeClock()
	r := newRateState(2*time.Second, 30)
	r.now = clock.Now

	if !r.Allow("chat-a") {
		t.Fatal("first message should pass")
	}
	if r.Allow("chat-a") {
		t.Error("second message inside the cooldown should drop")
	}

	// A different chat has its own cooldown.
	if !r.Allow("chat-b") {
		t.Error("cooldown must be per chat")
	}

	clock.Advance(2 * time.Second)
	if !r.Allow("chat-a") {
		t.Error("message after the cooldown should pass")
	}
}

func TestRateWindowCap(t *testing.T) {
	clock := newFakeClock()
	r := newRateState(time.Millisecond, 5)
	r.now = clock.Now

	for i := 0; i < 5; i++ {
		chat := string(rune('a' + i))
		if !r.Allow(chat) {
			t.Fatalf("message %d should pass under the cap", i)
		}
	}
	if r.Allow("z") {
		t.Error("message past the window cap should drop")
	}

	// Entries age out of the window and free capacity.
	clock.Advance(rateWindow + time.Second)
	if !r.Allow("z") {
		t.Error("message after the window rolls over should pass")
	}
	if got := r.WindowCount(); got != 1 {
		t.Errorf("WindowCount() = %d, want 1 after rollover", got)
	}
}

func TestRateWindowPrunesOldEntries(t *testing.T) {
	clock := newFakeClock()
	r := newRateState(time.Millisecond, 100)
	r.now = clock.Now

	r.Allow("a")
	r.Allow("b")
	clock.Advance(rateWindow / 2)
	r.Allow("c")
	clock.Advance(rateWindow/2 + time.Second)

	// Only "c" remains inside the trailing window.
	if got := r.WindowCount(); got != 1 {
		t.Errorf("WindowCount() = %d, want 1", got)
	}
}

func TestRateCheckAndRecordAtomic(t *testing.T) {
	r := newRateState(time.Hour, 1000)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Allow("same-chat")
		}()
	}
	wg.Wait()
	close(results)

	passed := 0
	for ok := range results {
		if ok {
			passed++
		}
	}
	if passed != 1 {
		t.Errorf("%d concurrent messages passed for one chat inside the cooldown, want 1", passed)
	}
}
