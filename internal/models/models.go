package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Pickup is a coordinate plus the free-text address riders type in.
type Pickup struct {
	Coord
	Address string `json:"address,omitempty"`
}

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// Profile is the public slice of a user shared over broadcasts and in
// enriched booking reads. The full user record (device token, availability)
// stays in the user store.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role"`
	FCMToken  string `json:"fcm_token,omitempty"`
	Available bool   `json:"available"`
	Location  *Coord `json:"location,omitempty"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Phone: u.Phone}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusEnRoute   Status = "en-route"
	StatusArrived   Status = "arrived"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var allowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusEnRoute, StatusCancelled},
	StatusEnRoute:  {StatusArrived},
	StatusArrived:  {StatusCompleted},
}

// CanTransitionTo reports whether next is a legal successor. Terminal
// statuses have no successors.
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusEnRoute, StatusArrived, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Booking struct {
	ID        string    `json:"id"`
	RiderID   string    `json:"rider_id"`
	DriverID  string    `json:"driver_id,omitempty"` // empty until assigned, then immutable
	Pickup    Pickup    `json:"pickup"`
	Notes     string    `json:"notes,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// LocationReport is the payload drivers stream in; mirrored to the kafka
// location topic by the ingest producer.
type LocationReport struct {
	DriverID  string    `json:"driver_id"`
	Location  Coord     `json:"location"`
	BookingID string    `json:"booking_id,omitempty"`
	At        time.Time `json:"at"`
}
