package booking

import (
	"time"

	"github.com/example/ambulance-dispatch/internal/models"
)

// Event names delivered over the realtime channel.
const (
	EventNewBooking     = "new-booking"
	EventAssigned       = "booking-assigned"
	EventStatusUpdate   = "status-update"
	EventLocationUpdate = "location-update"
)

// NotificationTitle heads every push sent by the engine.
const NotificationTitle = "Ambulance Alert"

var statusNotificationBody = map[models.Status]string{
	models.StatusAssigned:  "An ambulance has been assigned to you",
	models.StatusEnRoute:   "The ambulance is on its way",
	models.StatusArrived:   "The ambulance has arrived at your location",
	models.StatusCompleted: "Your booking has been completed",
}

// ProximityBody is pushed when an en-route driver closes within the
// configured radius of the pickup point.
const ProximityBody = "The ambulance is almost at your location"

// Broadcast is a realtime event addressed to one scope.
type Broadcast struct {
	Scope   string
	Event   string
	Payload any
}

// Push is a best-effort device notification.
type Push struct {
	Token string
	Title string
	Body  string
}

// Charge is a best-effort fare capture issued when a booking completes.
type Charge struct {
	BookingID   string
	RiderID     string
	AmountCents int64
	Currency    string
}

// Effects lists the side effects an engine operation wants executed after
// its state change has committed. The engine never performs I/O fan-out
// itself; a dispatcher runs these, and their failures never undo the
// committed change.
type Effects struct {
	Broadcasts []Broadcast
	Pushes     []Push
	Charges    []Charge
}

func (e *Effects) broadcast(scope, event string, payload any) {
	e.Broadcasts = append(e.Broadcasts, Broadcast{Scope: scope, Event: event, Payload: payload})
}

func (e *Effects) push(token, body string) {
	if token == "" {
		return
	}
	e.Pushes = append(e.Pushes, Push{Token: token, Title: NotificationTitle, Body: body})
}

// NewBookingEvent fans out to every available driver when a rider requests
// a pickup.
type NewBookingEvent struct {
	BookingID string         `json:"booking_id"`
	Pickup    models.Pickup  `json:"pickup"`
	Rider     models.Profile `json:"rider"`
	Status    models.Status  `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// DriverInfo is the driver's public profile plus last known location.
type DriverInfo struct {
	models.Profile
	Location *models.Coord `json:"location,omitempty"`
}

type AssignedEvent struct {
	BookingID string     `json:"booking_id"`
	Driver    DriverInfo `json:"driver"`
}

type StatusUpdateEvent struct {
	BookingID string        `json:"booking_id"`
	Status    models.Status `json:"status"`
}

type LocationUpdateEvent struct {
	DriverID string       `json:"driver_id"`
	Location models.Coord `json:"location"`
}
