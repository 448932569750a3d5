package realtime

import "sync"

// ScopeAvailableDrivers is the global scope every available driver joins.
const ScopeAvailableDrivers = "available-drivers"

// BookingScope names the per-booking scope riders and drivers join after
// learning a booking id.
func BookingScope(bookingID string) string { return "booking:" + bookingID }

// Session is a live connection the scope manager can deliver events to.
type Session interface {
	Send(event string, payload any) error
}

// ScopeManager owns the mapping from scope id to the set of live sessions.
// Join, Leave and Broadcast are its only mutators; membership is
// connection-lifetime-only and is never persisted. A session that joins
// after a broadcast fired never sees it.
type ScopeManager struct {
	mu      sync.RWMutex
	scopes  map[string]map[Session]struct{}
	members map[Session]map[string]struct{}
}

func NewScopeManager() *ScopeManager {
	return &ScopeManager{
		scopes:  make(map[string]map[Session]struct{}),
		members: make(map[Session]map[string]struct{}),
	}
}

func (m *ScopeManager) Join(scope string, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scopes[scope] == nil {
		m.scopes[scope] = make(map[Session]struct{})
	}
	m.scopes[scope][s] = struct{}{}
	if m.members[s] == nil {
		m.members[s] = make(map[string]struct{})
	}
	m.members[s][scope] = struct{}{}
}

func (m *ScopeManager) Leave(scope string, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detach(scope, s)
}

// Drop removes a session from every scope it joined. Called on disconnect;
// driver availability in the presence registry is deliberately untouched.
func (m *ScopeManager) Drop(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for scope := range m.members[s] {
		m.detach(scope, s)
	}
}

func (m *ScopeManager) detach(scope string, s Session) {
	if set, ok := m.scopes[scope]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(m.scopes, scope)
		}
	}
	if set, ok := m.members[s]; ok {
		delete(set, scope)
		if len(set) == 0 {
			delete(m.members, s)
		}
	}
}

// Broadcast delivers the event to every session currently joined to the
// scope. Send errors are per-session and do not stop the fan-out.
func (m *ScopeManager) Broadcast(scope, event string, payload any) {
	m.mu.RLock()
	sessions := make([]Session, 0, len(m.scopes[scope]))
	for s := range m.scopes[scope] {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		_ = s.Send(event, payload)
	}
}

// MemberCount reports how many sessions are joined to a scope.
func (m *ScopeManager) MemberCount(scope string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scopes[scope])
}
