package models

import (
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
)

const (
	// MaxPinFailures failed attempts lock a client out for PinLockout.
	MaxPinFailures = 5
	PinLockout     = 15 * time.Minute
)

// PinFailures counts wrong PIN attempts per client. Counters expire PinLockout after
// the last failure.
type PinFailures struct {
	mu     sync.Mutex
	counts *ttlworker.Cache[string, int]
}

func NewPinFailures() *PinFailures {
	return &PinFailures{counts: ttlworker.NewCache[string, int](PinLockout)}
}

// Locked reports whether key has reached the failure limit.
func (p *PinFailures) Locked(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts.Get(key) >= MaxPinFailures
}

// Fail records a failure and returns the new count.
func (p *PinFailures) Fail(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.counts.Get(key) + 1
	p.counts.Set(key, n)
	return n
}

// Reset forgets key after a successful attempt.
func (p *PinFailures) Reset(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts.Delete(key)
}
