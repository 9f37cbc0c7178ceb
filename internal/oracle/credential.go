package oracle

import (
	"sync"
	"time"
)

// Credential binds one Provider instance to one model selection. LLM_KEYS
// is an ordered list of these: each entry in the ring is tried in order,
// advancing on rate-limit/auth/quota failures per spec.md's key-rotation
// policy.
type Credential struct {
	Provider Provider
	Model    string
}

// credentialState tracks one credential's health, adapted from the
// teacher's agent.ProviderState circuit breaker (failover.go). The ring
// reuses the same open/half-open shape: a credential stops being offered
// once it accumulates enough consecutive failures, and becomes available
// again after the breaker timeout elapses.
type credentialState struct {
	failures    int
	circuitOpen bool
	openedAt    time.Time
}

const (
	circuitBreakerThreshold = 3
	circuitBreakerTimeout   = 30 * time.Second
)

func (s *credentialState) isAvailable() bool {
	if !s.circuitOpen {
		return true
	}
	return time.Since(s.openedAt) > circuitBreakerTimeout
}

func (s *credentialState) recordFailure() {
	s.failures++
	if s.failures >= circuitBreakerThreshold && !s.circuitOpen {
		s.circuitOpen = true
		s.openedAt = time.Now()
	}
}

func (s *credentialState) recordSuccess() {
	s.failures = 0
	s.circuitOpen = false
}

// Ring rotates across an ordered set of credentials. It is the Go-side
// trust boundary for "advance and retry" from spec.md §4.3: the oracle
// never retries a 429/auth/quota failure on the same credential, it moves
// to the next one in the ring.
type Ring struct {
	mu          sync.Mutex
	credentials []Credential
	states      []*credentialState
	cursor      int
}

// NewRing builds a rotation ring over the given credentials, in the order
// given (the order LLM_KEYS was configured in).
func NewRing(credentials []Credential) *Ring {
	states := make([]*credentialState, len(credentials))
	for i := range states {
		states[i] = &credentialState{}
	}
	return &Ring{credentials: credentials, states: states}
}

// Len reports how many credentials are in the ring.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.credentials)
}

// At returns the credential and its rotation index at position i modulo
// the ring size, plus whether that credential's circuit is currently open.
func (r *Ring) At(i int) (Credential, bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.credentials)
	if n == 0 {
		return Credential{}, false, -1
	}
	idx := ((i % n) + n) % n
	return r.credentials[idx], r.states[idx].isAvailable(), idx
}

// Start returns the ring's current rotation cursor, the position to begin
// a fresh decide() call at; it is not advanced by reads, only by
// RecordFailure/Advance so successive decide() calls keep making progress
// around a degraded ring instead of always retrying credential 0 first.
func (r *Ring) Start() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Advance moves the ring's starting cursor to the credential after idx,
// so the next decide() call (and the rest of this one) skip a credential
// that just failed in a way that warrants rotation.
func (r *Ring) Advance(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.credentials) == 0 {
		return
	}
	r.cursor = (idx + 1) % len(r.credentials)
}

// RecordFailure marks the credential at idx as having failed, possibly
// opening its circuit breaker.
func (r *Ring) RecordFailure(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.states) {
		return
	}
	r.states[idx].recordFailure()
}

// RecordSuccess clears the credential at idx's failure count and closes
// its circuit breaker.
func (r *Ring) RecordSuccess(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.states) {
		return
	}
	r.states[idx].recordSuccess()
}
