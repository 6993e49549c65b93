package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultSessionTTL is how long an idle chat session's sequence number is remembered.
const DefaultSessionTTL = 30 * time.Minute

// Sequencer remembers the newest request sequence number per chat session so replies to
// superseded requests can be flagged as stale.
type Sequencer struct {
	mu   sync.Mutex
	seen *cache.Cache
}

// NewSequencer creates a sequencer whose sessions expire after ttl of inactivity.
func NewSequencer(ttl time.Duration) *Sequencer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sequencer{seen: cache.New(ttl, ttl)}
}

// Observe records that a request with seq has started. Requests without a session or
// sequence number are not tracked.
func (s *Sequencer) Observe(session string, seq int64) {
	session = strings.TrimSpace(session)
	if session == "" || seq <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if latest, ok := s.latest(session); ok && latest >= seq {
		s.seen.Set(session, latest, cache.DefaultExpiration)
		return
	}
	s.seen.Set(session, seq, cache.DefaultExpiration)
}

// Stale reports whether a newer request than seq has been observed for the session.
func (s *Sequencer) Stale(session string, seq int64) bool {
	session = strings.TrimSpace(session)
	if session == "" || seq <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	latest, ok := s.latest(session)
	return ok && latest > seq
}

func (s *Sequencer) latest(session string) (int64, bool) {
	v, ok := s.seen.Get(session)
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}
