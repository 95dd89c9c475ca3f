package notify

import (
	"sync"
	"time"
)

// DedupLimiter prevents duplicate messages within a time window
type DedupLimiter struct {
	sent   map[string]time.Time
	window time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

// NewDedupLimiter creates a new deduplication limiter
func NewDedupLimiter(window time.Duration) *DedupLimiter {
	return &DedupLimiter{
		sent:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// CanSend reports whether key was not sent within the window, and if so
// records it as sent now.
func (dl *DedupLimiter) CanSend(key string) bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	now := dl.now()
	for k, sentAt := range dl.sent {
		if now.Sub(sentAt) >= dl.window {
			delete(dl.sent, k)
		}
	}
	if _, exists := dl.sent[key]; exists {
		return false
	}
	dl.sent[key] = now
	return true
}

// Forget drops key so the next CanSend for it succeeds.
func (dl *DedupLimiter) Forget(key string) {
	dl.mu.Lock()
	delete(dl.sent, key)
	dl.mu.Unlock()
}
