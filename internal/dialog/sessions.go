package dialog

import (
	"sync"

	"github.com/tbourn/go-order-bot/internal/domain"
)

// Sessions holds one dialogue session per chat. Each chat has its own lock,
// so turns of one chat run one at a time while different chats proceed in
// parallel.
type Sessions struct {
	mu    sync.Mutex
	slots map[domain.ChatID]*slot
}

type slot struct {
	mu   sync.Mutex
	sess *domain.Session // nil until /start
	refs int             // guarded by Sessions.mu
}

// NewSessions returns an empty session table.
func NewSessions() *Sessions {
	return &Sessions{slots: make(map[domain.ChatID]*slot)}
}

// acquire returns the chat's slot with its lock held. Every acquire must
// be paired with release.
func (s *Sessions) acquire(id domain.ChatID) *slot {
	s.mu.Lock()
	sl, ok := s.slots[id]
	if !ok {
		sl = &slot{}
		s.slots[id] = sl
	}
	sl.refs++
	s.mu.Unlock()

	sl.mu.Lock()
	return sl
}

// release unlocks sl and drops it from the table when no turn holds it and
// the chat never sent /start.
func (s *Sessions) release(id domain.ChatID, sl *slot) {
	s.mu.Lock()
	sl.refs--
	if sl.refs == 0 && sl.sess == nil {
		delete(s.slots, id)
	}
	s.mu.Unlock()
	sl.mu.Unlock()
}

// Get returns a copy of the chat's session and whether one exists.
func (s *Sessions) Get(id domain.ChatID) (domain.Session, bool) {
	sl := s.acquire(id)
	defer s.release(id, sl)
	if sl.sess == nil {
		return domain.Session{}, false
	}
	return *sl.sess, true
}

// Len returns the number of chats with a session.
func (s *Sessions) Len() int {
	s.mu.Lock()
	slots := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.Unlock()

	n := 0
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.sess != nil {
			n++
		}
		sl.mu.Unlock()
	}
	return n
}
