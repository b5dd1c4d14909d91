package bot

import (
	"sync"
	"time"

	"redscribe/scraper/internal/relay"
)

// State tracks where a chat is in the scrape conversation.
type State int

const (
	// StateIdle means no scrape is in flight for the chat.
	StateIdle State = iota
	// StateAwaitingInstruction means a scraped batch is held and the
	// next free-text message decides its AI processing.
	StateAwaitingInstruction
)

// Session is one chat's conversation state. Batch is only set while
// the session is AwaitingInstruction.
type Session struct {
	State     State
	Batch     *relay.Batch
	UpdatedAt time.Time
}

// sessionManager holds per-chat sessions with a fixed TTL. Expired
// sessions are discarded on access rather than by a background sweep;
// the map stays small enough that stale idle entries cost nothing.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionManager(ttl time.Duration) *sessionManager {
	return &sessionManager{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the chat's session, dropping it first if it expired. A
// chat with no live session is Idle.
func (m *sessionManager) Get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return &Session{State: StateIdle}
	}
	if m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, chatID)
		return &Session{State: StateIdle}
	}
	return s
}

// Await stores the pending batch and moves the chat to
// AwaitingInstruction, replacing any previous session.
func (m *sessionManager) Await(chatID int64, batch *relay.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[chatID] = &Session{
		State:     StateAwaitingInstruction,
		Batch:     batch,
		UpdatedAt: m.now(),
	}
}

// Reset returns the chat to Idle, discarding any pending batch.
func (m *sessionManager) Reset(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
