package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/example/ambulance-dispatch/internal/models"
)

// MemoryStore keeps bookings and users in process memory. Suitable for
// tests and local runs; the conditional update holds the store lock for the
// whole check-and-set so concurrent accepts serialize.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
	users    map[string]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]models.Booking),
		users:    make(map[string]models.User),
	}
}

func (m *MemoryStore) Insert(_ context.Context, b models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return models.Booking{}, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) FindOne(ctx context.Context, f BookingFilter) (models.Booking, error) {
	out, err := m.Find(ctx, f, true)
	if err != nil {
		return models.Booking{}, err
	}
	if len(out) == 0 {
		return models.Booking{}, ErrNotFound
	}
	return out[0], nil
}

func (m *MemoryStore) Find(_ context.Context, f BookingFilter, newestFirst bool) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0)
	for _, b := range m.bookings {
		if matches(b, f) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateConditional(_ context.Context, id string, expectStatus models.Status, expectNoDriver bool, upd BookingUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, nil
	}
	if b.Status != expectStatus {
		return false, nil
	}
	if expectNoDriver && b.DriverID != "" {
		return false, nil
	}
	applyUpdate(&b, upd)
	m.bookings[id] = b
	return true, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, upd BookingUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	applyUpdate(&b, upd)
	m.bookings[id] = b
	return nil
}

func applyUpdate(b *models.Booking, upd BookingUpdate) {
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	if upd.DriverID != nil {
		b.DriverID = *upd.DriverID
	}
}

func (m *MemoryStore) InsertUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) FindUserByID(_ context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) SetFCMToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FCMToken = token
	m.users[id] = u
	return nil
}

func (m *MemoryStore) SetAvailability(_ context.Context, id string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Available = available
	m.users[id] = u
	return nil
}

func (m *MemoryStore) SetUserLocation(_ context.Context, id string, loc models.Coord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Location = &loc
	m.users[id] = u
	return nil
}
