// Package session is the process-wide registry of per-user chat state.
package session

import (
	"sync"
	"time"

	"accidentbot/internal/domain"
	"accidentbot/internal/report"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// Session is one user's state. Fields may only be touched while holding
// the lock obtained from Manager.Lock.
type Session struct {
	mu      sync.Mutex
	removed bool

	UserID          string
	Dialogue        report.Dialogue
	History         []Turn
	PendingEntities domain.Entities
	LastSeen        time.Time
}

// AppendTurns adds a user/assistant pair and trims history to at most
// maxTurns messages, dropping whole pairs from the front. maxTurns <= 0
// keeps everything.
func (s *Session) AppendTurns(user, assistant string, at time.Time, maxTurns int) {
	s.History = append(s.History,
		Turn{Role: RoleUser, Text: user, At: at},
		Turn{Role: RoleAssistant, Text: assistant, At: at},
	)
	if maxTurns <= 0 || len(s.History) <= maxTurns {
		return
	}
	drop := len(s.History) - maxTurns
	if drop%2 != 0 {
		drop++
	}
	s.History = append([]Turn(nil), s.History[drop:]...)
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{sessions: make(map[string]*Session), now: now}
}

// GetOrCreate returns the user's session, creating it on first use. The
// session is not locked.
func (m *Manager) GetOrCreate(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = &Session{UserID: userID, LastSeen: m.now()}
		m.sessions[userID] = s
	}
	return s
}

func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Lock returns the user's session with its lock held. The caller must call
// unlock when done. A session removed while the caller waited is replaced
// by a fresh one.
func (m *Manager) Lock(userID string) (*Session, func()) {
	for {
		s := m.GetOrCreate(userID)
		s.mu.Lock()
		if s.removed {
			s.mu.Unlock()
			continue
		}
		s.LastSeen = m.now()
		return s, s.mu.Unlock
	}
}

// Reset removes the user's session. It reports whether one existed and
// never creates a session.
func (m *Manager) Reset(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	s.removed = true
	s.Dialogue = report.Dialogue{}
	s.History = nil
	s.PendingEntities = nil
	s.mu.Unlock()
	return true
}

// Evict removes sessions last seen before cutoff. Sessions currently
// locked are skipped.
func (m *Manager) Evict(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.LastSeen.Before(cutoff) {
			s.removed = true
			delete(m.sessions, id)
			evicted++
		}
		s.mu.Unlock()
	}
	return evicted
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
