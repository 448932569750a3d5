package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSession struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *recordingSession) Send(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Envelope{Event: event, Data: payload})
	return nil
}

func (r *recordingSession) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBroadcastReachesOnlyJoinedSessions(t *testing.T) {
	m := NewScopeManager()
	joined := &recordingSession{}
	other := &recordingSession{}

	m.Join(ScopeAvailableDrivers, joined)
	m.Broadcast(ScopeAvailableDrivers, "new-booking", map[string]string{"booking_id": "b1"})

	require.Equal(t, 1, joined.count())
	require.Zero(t, other.count())
}

func TestJoinAfterBroadcastMissesIt(t *testing.T) {
	m := NewScopeManager()
	late := &recordingSession{}

	m.Broadcast(BookingScope("b1"), "status-update", nil)
	m.Join(BookingScope("b1"), late)

	require.Zero(t, late.count())
}

func TestLeaveStopsDelivery(t *testing.T) {
	m := NewScopeManager()
	s := &recordingSession{}
	m.Join(ScopeAvailableDrivers, s)
	m.Leave(ScopeAvailableDrivers, s)
	m.Broadcast(ScopeAvailableDrivers, "new-booking", nil)
	require.Zero(t, s.count())
}

func TestDropRemovesEveryMembership(t *testing.T) {
	m := NewScopeManager()
	s := &recordingSession{}
	m.Join(ScopeAvailableDrivers, s)
	m.Join(BookingScope("b1"), s)
	m.Join(BookingScope("b2"), s)

	m.Drop(s)

	require.Zero(t, m.MemberCount(ScopeAvailableDrivers))
	require.Zero(t, m.MemberCount(BookingScope("b1")))
	require.Zero(t, m.MemberCount(BookingScope("b2")))

	m.Broadcast(BookingScope("b1"), "location-update", nil)
	require.Zero(t, s.count())
}

func TestScopesAreIndependent(t *testing.T) {
	m := NewScopeManager()
	a := &recordingSession{}
	b := &recordingSession{}
	m.Join(BookingScope("a"), a)
	m.Join(BookingScope("b"), b)

	m.Broadcast(BookingScope("a"), "status-update", nil)
	require.Equal(t, 1, a.count())
	require.Zero(t, b.count())
}

func TestConcurrentJoinBroadcastDrop(t *testing.T) {
	m := NewScopeManager()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := &recordingSession{}
			m.Join(ScopeAvailableDrivers, s)
			m.Broadcast(ScopeAvailableDrivers, "new-booking", nil)
			m.Drop(s)
		}()
	}
	wg.Wait()
	require.Zero(t, m.MemberCount(ScopeAvailableDrivers))
}
