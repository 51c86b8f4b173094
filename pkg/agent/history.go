package agent

import "sync"

// SessionMemory keeps a bounded rolling conversation per session. Sessions
// are never evicted; each holds at most limit turns.
type SessionMemory struct {
	mu       sync.Mutex
	limit    int
	turns    map[string][]Turn
	hydrated map[string]bool
}

func NewSessionMemory(limit int) *SessionMemory {
	if limit <= 0 {
		limit = 40
	}
	return &SessionMemory{
		limit:    limit,
		turns:    make(map[string][]Turn),
		hydrated: make(map[string]bool),
	}
}

// Snapshot returns a copy of the session's turns, oldest first.
func (m *SessionMemory) Snapshot(key string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Turn(nil), m.turns[key]...)
}

func (m *SessionMemory) Len(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns[key])
}

func (m *SessionMemory) Append(key string, role Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[key] = trimTurns(append(m.turns[key], Turn{Role: role, Content: content}), m.limit)
}

// ClaimHydration returns true exactly once per session, and only while the
// session holds no turns. Callers that get true own the hydration attempt.
func (m *SessionMemory) ClaimHydration(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hydrated[key] || len(m.turns[key]) > 0 {
		m.hydrated[key] = true
		return false
	}
	m.hydrated[key] = true
	return true
}

// Seed installs turns as the session's starting history. It is a no-op
// when the session already holds turns.
func (m *SessionMemory) Seed(key string, turns []Turn) bool {
	if len(turns) == 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.turns[key]) > 0 {
		return false
	}
	m.turns[key] = trimTurns(append([]Turn(nil), turns...), m.limit)
	return true
}

// Sessions reports how many sessions hold at least one turn.
func (m *SessionMemory) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.turns {
		if len(t) > 0 {
			n++
		}
	}
	return n
}

func trimTurns(turns []Turn, limit int) []Turn {
	if len(turns) <= limit {
		return turns
	}
	return append([]Turn(nil), turns[len(turns)-limit:]...)
}
