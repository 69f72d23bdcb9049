package analytics

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle limits repetitive diagnostic log lines to one per interval per key.
// One Throttle is shared by every throttled call site.
type Throttle struct {
	clock clockwork.Clock

	mu   sync.Mutex
	last map[string]time.Time
}

func NewThrottle(clock clockwork.Clock) *Throttle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{
		clock: clock,
		last:  make(map[string]time.Time),
	}
}

// ShouldLog reports whether a line for key may be emitted now. The first call
// for a key is always allowed; later calls are allowed once interval has
// elapsed since the last allowed one. Check and update happen under one lock.
func (t *Throttle) ShouldLog(key string, interval time.Duration) bool {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[key]; ok && now.Sub(last) < interval {
		return false
	}
	t.last[key] = now
	return true
}

// Sweep forgets keys last allowed more than maxAge ago and returns how many
// were removed. A swept key behaves like a new one.
func (t *Throttle) Sweep(maxAge time.Duration) int {
	cutoff := t.clock.Now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, last := range t.last {
		if last.Before(cutoff) {
			delete(t.last, key)
			removed++
		}
	}
	return removed
}

func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
