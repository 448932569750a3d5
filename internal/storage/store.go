package storage

import (
	"context"
	"errors"

	"github.com/example/ambulance-dispatch/internal/models"
)

var ErrNotFound = errors.New("not found")

// BookingFilter narrows Find queries. Zero fields are ignored.
type BookingFilter struct {
	RiderID         string
	DriverID        string
	Statuses        []models.Status
	ExcludeStatuses []models.Status
}

// BookingUpdate lists the mutable booking fields. Nil pointers leave the
// stored value untouched.
type BookingUpdate struct {
	Status   *models.Status
	DriverID *string
}

// BookingStore defines persistence operations for bookings. UpdateConditional
// is the primitive that makes accept atomic: it applies the update only if
// the stored booking still matches the expected prior state, and reports
// whether it did.
type BookingStore interface {
	Insert(ctx context.Context, b models.Booking) error
	FindByID(ctx context.Context, id string) (models.Booking, error)
	FindOne(ctx context.Context, f BookingFilter) (models.Booking, error)
	Find(ctx context.Context, f BookingFilter, newestFirst bool) ([]models.Booking, error)
	UpdateConditional(ctx context.Context, id string, expectStatus models.Status, expectNoDriver bool, upd BookingUpdate) (bool, error)
	Update(ctx context.Context, id string, upd BookingUpdate) error
}

// UserStore holds user records: public profile, device token, and the
// durable half of driver presence.
type UserStore interface {
	InsertUser(ctx context.Context, u models.User) error
	FindUserByID(ctx context.Context, id string) (models.User, error)
	SetFCMToken(ctx context.Context, id, token string) error
	SetAvailability(ctx context.Context, id string, available bool) error
	SetUserLocation(ctx context.Context, id string, loc models.Coord) error
}

func matches(b models.Booking, f BookingFilter) bool {
	if f.RiderID != "" && b.RiderID != f.RiderID {
		return false
	}
	if f.DriverID != "" && b.DriverID != f.DriverID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, b.Status) {
		return false
	}
	if containsStatus(f.ExcludeStatuses, b.Status) {
		return false
	}
	return true
}

func containsStatus(set []models.Status, s models.Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
