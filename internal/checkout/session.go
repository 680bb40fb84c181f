package checkout

import (
	"errors"
	"sync"
	"time"

	"github.com/haln-dev/glowcart/internal/pricing"
	"github.com/haln-dev/glowcart/internal/voucher"
)

// ErrSubmitInFlight is returned when a checkout is already being submitted
// for the same session.
var ErrSubmitInFlight = errors.New("checkout: submit already in flight")

// Session is the per-shopper checkout state held between requests. The cart
// itself lives upstream, the session only remembers the applied voucher and
// the last snapshot used for quoting.
type Session struct {
	mu sync.Mutex

	Key         string
	Snapshot    CartSnapshot
	Voucher     *voucher.Voucher
	RefreshedAt time.Time

	submitting bool
}

// SetSnapshot replaces the cached cart snapshot.
func (s *Session) SetSnapshot(snap CartSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Snapshot = snap
	s.RefreshedAt = time.Now()
}

// CachedSnapshot returns the last snapshot set on the session.
func (s *Session) CachedSnapshot() CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Snapshot
}

// ApplyVoucher stores a validated voucher on the session.
func (s *Session) ApplyVoucher(v voucher.Voucher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Voucher = &v
}

// ClearVoucher removes any applied voucher.
func (s *Session) ClearVoucher() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Voucher = nil
}

// AppliedVoucher returns the applied voucher, if any.
func (s *Session) AppliedVoucher() (voucher.Voucher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Voucher == nil {
		return voucher.Voucher{}, false
	}
	return *s.Voucher, true
}

// DiscountPercent returns the applied voucher's discount, zero when none.
func (s *Session) DiscountPercent() float64 {
	if v, ok := s.AppliedVoucher(); ok {
		return v.DiscountPercent
	}
	return 0
}

// Quote prices the given snapshot with the session's voucher applied.
func (s *Session) Quote(engine pricing.Engine, snap CartSnapshot) pricing.Breakdown {
	return engine.QuoteWithDiscount(snap.PricingItems(), s.DiscountPercent())
}

// BeginSubmit marks the session as submitting. A second submit while one is
// in flight fails rather than risking a duplicate order.
func (s *Session) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return ErrSubmitInFlight
	}
	s.submitting = true
	return nil
}

// EndSubmit clears the in-flight marker.
func (s *Session) EndSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
}

// Sessions is an in-memory session registry keyed by caller identity.
type Sessions struct {
	mu        sync.Mutex
	byKey     map[string]*Session
	maxIdle   time.Duration
	lastSweep time.Time
}

// NewSessions builds a registry. Sessions idle longer than maxIdle are
// dropped lazily on access.
func NewSessions(maxIdle time.Duration) *Sessions {
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	return &Sessions{
		byKey:   make(map[string]*Session),
		maxIdle: maxIdle,
	}
}

// Get returns the session for key, creating it if needed.
func (s *Sessions) Get(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	sess, ok := s.byKey[key]
	if !ok {
		sess = &Session{Key: key, RefreshedAt: time.Now()}
		s.byKey[key] = sess
	}
	return sess
}

// Drop removes the session for key.
func (s *Sessions) Drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, key)
}

func (s *Sessions) sweepLocked() {
	now := time.Now()
	if now.Sub(s.lastSweep) < s.maxIdle/2 {
		return
	}
	s.lastSweep = now
	for key, sess := range s.byKey {
		sess.mu.Lock()
		idle := now.Sub(sess.RefreshedAt)
		inFlight := sess.submitting
		sess.mu.Unlock()
		if idle > s.maxIdle && !inFlight {
			delete(s.byKey, key)
		}
	}
}
