package presence

import (
	"sync"
	"time"

	"github.com/example/ambulance-dispatch/internal/models"
)

// Entry is a driver's current availability and last reported location.
type Entry struct {
	DriverID  string
	Available bool
	Location  *models.Coord
	Updated   time.Time
}

// Registry tracks which drivers are available and where they last were.
// Entries are created implicitly on the first announcement and never
// deleted; repeated announcements self-correct stale state.
type Registry interface {
	SetAvailability(driverID string, available bool)
	UpdateLocation(driverID string, loc models.Coord)
	Get(driverID string) (Entry, bool)
}

type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]Entry)}
}

func (r *MemoryRegistry) SetAvailability(driverID string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[driverID]
	e.DriverID = driverID
	e.Available = available
	e.Updated = time.Now()
	r.entries[driverID] = e
}

func (r *MemoryRegistry) UpdateLocation(driverID string, loc models.Coord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[driverID]
	e.DriverID = driverID
	e.Location = &loc
	e.Updated = time.Now()
	r.entries[driverID] = e
}

func (r *MemoryRegistry) Get(driverID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[driverID]
	return e, ok
}
