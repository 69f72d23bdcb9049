package repository

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const stripeCount = 256

// stripedLock serializes work per key using a fixed pool of mutexes.
// Different keys may share a stripe.
type stripedLock struct {
	stripes [stripeCount]sync.Mutex
}

func (s *stripedLock) lock(key string) func() {
	m := &s.stripes[xxhash.Sum64String(key)%stripeCount]
	m.Lock()
	return m.Unlock
}
