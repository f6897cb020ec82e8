package wechat

import (
	"sync"
	"time"
)

const (
	defaultCooldown     = 2 * time.Second
	defaultMaxPerWindow = 30

	// rateWindow is the trailing window for the per-account processed count.
	rateWindow = time.Minute
)

// rateState tracks per-chat cooldowns and the account's sliding count of
// processed messages. Check and record happen under one lock so two
// concurrent messages in the same chat cannot both pass.
type rateState struct {
	mu           sync.Mutex
	cooldown     time.Duration
	maxPerWindow int
	lastByChat   map[string]time.Time
	processed    []time.Time
	now          func() time.Time
}

func newRateState(cooldown time.Duration, maxPerWindow int) *rateState {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if maxPerWindow <= 0 {
		maxPerWindow = defaultMaxPerWindow
	}
	return &rateState{
		cooldown:     cooldown,
		maxPerWindow: maxPerWindow,
		lastByChat:   make(map[string]time.Time),
		now:          time.Now,
	}
}

// SetLimits re-applies the configured limits so policy edits take effect
// without a restart. Non-positive values fall back to the defaults.
func (r *rateState) SetLimits(cooldown time.Duration, maxPerWindow int) {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if maxPerWindow <= 0 {
		maxPerWindow = defaultMaxPerWindow
	}
	r.mu.Lock()
	r.cooldown = cooldown
	r.maxPerWindow = maxPerWindow
	r.mu.Unlock()
}

// Allow atomically checks both tiers and, on pass, records the activity.
func (r *rateState) Allow(chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if last, ok := r.lastByChat[chatID]; ok && now.Sub(last) < r.cooldown {
		return false
	}
	if len(r.processed) >= r.maxPerWindow {
		return false
	}

	r.lastByChat[chatID] = now
	r.processed = append(r.processed, now)
	return true
}

// prune drops window entries older than rateWindow from the front.
func (r *rateState) prune(now time.Time) {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(r.processed) && r.processed[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		r.processed = append(r.processed[:0], r.processed[i:]...)
	}
}

// WindowCount returns the current processed count within the window.
func (r *rateState) WindowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now())
	return len(r.processed)
}
