package privacypass

import (
	"sync"
	"time"
)

// SpentTokenSet records redeemed token nonces so a token cannot be
// spent twice. Check-and-insert is atomic under one lock, which is what
// makes concurrent redemption of the same token admit exactly one
// winner.
type SpentTokenSet struct {
	mu    sync.Mutex
	spent map[string]time.Time
}

// NewSpentTokenSet creates an empty spent-token set.
func NewSpentTokenSet() *SpentTokenSet {
	return &SpentTokenSet{spent: make(map[string]time.Time)}
}

// InsertIfAbsent records a nonce and reports whether it was new. A
// false return means the token was already spent.
func (s *SpentTokenSet) InsertIfAbsent(nonce string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spent[nonce]; ok {
		return false
	}
	s.spent[nonce] = now
	return true
}

// ExpireOlderThan drops nonces recorded before the cutoff and returns
// how many were dropped. Issuers rotate keys on the same horizon, so an
// expired nonce cannot be replayed under a still-trusted key.
func (s *SpentTokenSet) ExpireOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for nonce, at := range s.spent {
		if at.Before(cutoff) {
			delete(s.spent, nonce)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of recorded nonces.
func (s *SpentTokenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spent)
}
