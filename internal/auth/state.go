package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// stateTTL bounds how long a pending LinkedIn link request stays valid.
// Long enough for the user to approve on LinkedIn, short enough to
// limit the window a leaked state could be replayed in.
const stateTTL = 10 * time.Minute

type pendingLink struct {
	userID    string
	expiresAt time.Time
}

// StateStore issues and redeems the opaque anti-CSRF state values for
// the LinkedIn link flow.
//
// Each state is a random UUID bound server-side to the internal ID of
// the GitHub user who started the link. The callback hands the state
// back and Consume tells us which user the new LinkedIn credentials
// belong to. States are single-use and expire after stateTTL.
//
// In-memory on purpose: this service runs as a single process (see the
// deployment model), and a pending link is worthless across restarts —
// the user just clicks "link" again.
type StateStore struct {
	mu      sync.Mutex
	pending map[string]pendingLink
	now     func() time.Time // overridable in tests
}

func NewStateStore() *StateStore {
	return &StateStore{
		pending: make(map[string]pendingLink),
		now:     time.Now,
	}
}

// Issue mints a fresh state bound to the given internal user ID.
func (s *StateStore) Issue(userID string) string {
	state := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	s.pending[state] = pendingLink{
		userID:    userID,
		expiresAt: s.now().Add(stateTTL),
	}
	return state
}

// Consume redeems a state exactly once. Returns the bound user ID, or
// ok=false when the state is unknown, already used, or expired.
func (s *StateStore) Consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)

	if s.now().After(link.expiresAt) {
		return "", false
	}
	return link.userID, true
}

// evictExpiredLocked drops expired entries. Called under s.mu from
// Issue so the map can't grow without bound under abandoned flows.
func (s *StateStore) evictExpiredLocked() {
	now := s.now()
	for state, link := range s.pending {
		if now.After(link.expiresAt) {
			delete(s.pending, state)
		}
	}
}
