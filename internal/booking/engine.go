package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ambulance-dispatch/internal/geo"
	"github.com/example/ambulance-dispatch/internal/models"
	"github.com/example/ambulance-dispatch/internal/observability"
	"github.com/example/ambulance-dispatch/internal/presence"
	"github.com/example/ambulance-dispatch/internal/realtime"
	"github.com/example/ambulance-dispatch/internal/storage"
)

// LocationPublisher mirrors driver location reports to the ingest stream.
type LocationPublisher interface {
	PublishLocation(report models.LocationReport) error
}

// Engine is the booking lifecycle state machine. It owns every booking
// mutation, decides which transitions are legal, and describes the side
// effects of each transition as Effects values instead of performing the
// fan-out itself.
type Engine struct {
	store    storage.BookingStore
	users    storage.UserStore
	presence presence.Registry
	ingest   LocationPublisher // optional
	logger   *slog.Logger

	// ProximityKm is the alert radius around the pickup point.
	ProximityKm float64
	// FareCents, when > 0, makes completion emit a fare charge.
	FareCents int64
	Currency  string

	now func() time.Time
}

func NewEngine(store storage.BookingStore, users storage.UserStore, reg presence.Registry, ingest LocationPublisher, logger *slog.Logger) *Engine {
	return &Engine{
		store:       store,
		users:       users,
		presence:    reg,
		ingest:      ingest,
		logger:      logger,
		ProximityKm: 0.5,
		Currency:    "usd",
		now:         time.Now,
	}
}

// Create persists a new pending booking and announces it to every available
// driver. No driver is chosen here; available drivers race to accept.
func (e *Engine) Create(ctx context.Context, riderID string, pickup models.Pickup, notes string) (models.Booking, Effects, error) {
	rider, err := e.users.FindUserByID(ctx, riderID)
	if err != nil {
		return models.Booking{}, Effects{}, mapStoreErr(err)
	}

	b := models.Booking{
		ID:        uuid.NewString(),
		RiderID:   riderID,
		Pickup:    pickup,
		Notes:     notes,
		Status:    models.StatusPending,
		CreatedAt: e.now(),
	}
	if err := e.store.Insert(ctx, b); err != nil {
		return models.Booking{}, Effects{}, fmt.Errorf("insert booking: %w", err)
	}
	observability.BookingsCreated.Inc()

	var fx Effects
	fx.broadcast(realtime.ScopeAvailableDrivers, EventNewBooking, NewBookingEvent{
		BookingID: b.ID,
		Pickup:    b.Pickup,
		Rider:     rider.Profile(),
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	})
	return b, fx, nil
}

// Accept assigns the calling driver to a pending booking. The check-and-set
// runs as a single conditional update at the store; of two concurrent
// accepts exactly one sees the update apply and the other gets ErrConflict
// with nothing mutated.
func (e *Engine) Accept(ctx context.Context, bookingID, driverID string) (models.Booking, Effects, error) {
	assigned := models.StatusAssigned
	ok, err := e.store.UpdateConditional(ctx, bookingID, models.StatusPending, true, storage.BookingUpdate{
		Status:   &assigned,
		DriverID: &driverID,
	})
	if err != nil {
		return models.Booking{}, Effects{}, fmt.Errorf("accept booking: %w", err)
	}
	if !ok {
		observability.AcceptConflicts.Inc()
		return models.Booking{}, Effects{}, ErrConflict
	}
	observability.BookingsAccepted.Inc()

	b, err := e.store.FindByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, Effects{}, mapStoreErr(err)
	}

	var fx Effects
	fx.broadcast(realtime.BookingScope(bookingID), EventAssigned, AssignedEvent{
		BookingID: bookingID,
		Driver:    e.driverInfo(ctx, driverID),
	})
	if rider, err := e.users.FindUserByID(ctx, b.RiderID); err == nil {
		fx.push(rider.FCMToken, statusNotificationBody[models.StatusAssigned])
	}
	return b, fx, nil
}

// UpdateStatus moves a booking along the lifecycle graph. A booking with an
// assigned driver only accepts updates from that driver. Transitioning into
// assigned with no driver set assigns the requester directly, a fallback
// path distinct from Accept.
func (e *Engine) UpdateStatus(ctx context.Context, bookingID, requesterID string, next models.Status) (models.Booking, Effects, error) {
	if !next.Valid() {
		return models.Booking{}, Effects{}, ErrInvalidTransition
	}
	b, err := e.store.FindByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, Effects{}, mapStoreErr(err)
	}
	if b.DriverID != "" && b.DriverID != requesterID {
		return models.Booking{}, Effects{}, ErrForbidden
	}
	if !b.Status.CanTransitionTo(next) {
		return models.Booking{}, Effects{}, ErrInvalidTransition
	}

	upd := storage.BookingUpdate{Status: &next}
	if next == models.StatusAssigned && b.DriverID == "" {
		upd.DriverID = &requesterID
		b.DriverID = requesterID
	}
	if err := e.store.Update(ctx, bookingID, upd); err != nil {
		return models.Booking{}, Effects{}, mapStoreErr(err)
	}
	b.Status = next

	var fx Effects
	fx.broadcast(realtime.BookingScope(bookingID), EventStatusUpdate, StatusUpdateEvent{
		BookingID: bookingID,
		Status:    next,
	})
	if body, ok := statusNotificationBody[next]; ok {
		if rider, err := e.users.FindUserByID(ctx, b.RiderID); err == nil {
			fx.push(rider.FCMToken, body)
		}
	}
	if next == models.StatusCompleted && e.FareCents > 0 {
		fx.Charges = append(fx.Charges, Charge{
			BookingID:   bookingID,
			RiderID:     b.RiderID,
			AmountCents: e.FareCents,
			Currency:    e.Currency,
		})
	}
	return b, fx, nil
}

// ReportLocation records a driver's position. With a booking id it also
// broadcasts the position to the booking scope, and while the booking is
// en-route fires a proximity alert every time the driver reports within the
// alert radius of the pickup. There is no debounce; repeated reports in
// range repeat the alert.
func (e *Engine) ReportLocation(ctx context.Context, driverID string, loc models.Coord, bookingID string) (Effects, error) {
	e.presence.UpdateLocation(driverID, loc)
	if err := e.users.SetUserLocation(ctx, driverID, loc); err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.logger.Warn("persist driver location failed", "driver_id", driverID, "error", err)
	}
	if e.ingest != nil {
		report := models.LocationReport{DriverID: driverID, Location: loc, BookingID: bookingID, At: e.now()}
		if err := e.ingest.PublishLocation(report); err != nil {
			e.logger.Warn("location ingest publish failed", "driver_id", driverID, "error", err)
		}
	}

	var fx Effects
	if bookingID == "" {
		return fx, nil
	}
	fx.broadcast(realtime.BookingScope(bookingID), EventLocationUpdate, LocationUpdateEvent{
		DriverID: driverID,
		Location: loc,
	})

	b, err := e.store.FindByID(ctx, bookingID)
	if err != nil {
		// Unknown booking: the location event still went to an empty scope.
		return fx, nil
	}
	if b.Status != models.StatusEnRoute {
		return fx, nil
	}
	rider, err := e.users.FindUserByID(ctx, b.RiderID)
	if err != nil || rider.FCMToken == "" {
		return fx, nil
	}
	if geo.DistanceKm(b.Pickup.Coord, loc) <= e.ProximityKm {
		fx.push(rider.FCMToken, ProximityBody)
		observability.ProximityAlerts.Inc()
	}
	return fx, nil
}

// SetAvailability upserts the driver's presence entry. Scope membership for
// the available-drivers broadcast is handled by the realtime layer, which
// calls this alongside Join/Leave.
func (e *Engine) SetAvailability(ctx context.Context, driverID string, available bool) {
	e.presence.SetAvailability(driverID, available)
	if err := e.users.SetAvailability(ctx, driverID, available); err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.logger.Warn("persist availability failed", "driver_id", driverID, "error", err)
	}
	if available {
		observability.DriversAvailable.Inc()
	} else {
		observability.DriversAvailable.Dec()
	}
}

// ListDriverActive returns the driver's bookings that are still in flight.
func (e *Engine) ListDriverActive(ctx context.Context, driverID string) ([]models.Booking, error) {
	return e.store.Find(ctx, storage.BookingFilter{
		DriverID:        driverID,
		ExcludeStatuses: []models.Status{models.StatusCompleted, models.StatusCancelled},
	}, true)
}

// ListRiderHistory returns all of the rider's bookings, newest first.
func (e *Engine) ListRiderHistory(ctx context.Context, riderID string) ([]models.Booking, error) {
	return e.store.Find(ctx, storage.BookingFilter{RiderID: riderID}, true)
}

// Enriched is a booking joined with the public profiles of its parties.
type Enriched struct {
	models.Booking
	Rider  models.Profile `json:"rider"`
	Driver *DriverInfo    `json:"driver,omitempty"`
}

// GetByID returns the enriched booking. Only the rider or the assigned
// driver may read it.
func (e *Engine) GetByID(ctx context.Context, bookingID, requesterID string) (Enriched, error) {
	b, err := e.store.FindByID(ctx, bookingID)
	if err != nil {
		return Enriched{}, mapStoreErr(err)
	}
	if requesterID != b.RiderID && (b.DriverID == "" || requesterID != b.DriverID) {
		return Enriched{}, ErrForbidden
	}
	out := Enriched{Booking: b}
	if rider, err := e.users.FindUserByID(ctx, b.RiderID); err == nil {
		out.Rider = rider.Profile()
	}
	if b.DriverID != "" {
		info := e.driverInfo(ctx, b.DriverID)
		out.Driver = &info
	}
	return out, nil
}

// driverInfo joins the driver's profile with the freshest location we have:
// the presence registry first, then the durable user record.
func (e *Engine) driverInfo(ctx context.Context, driverID string) DriverInfo {
	info := DriverInfo{}
	if u, err := e.users.FindUserByID(ctx, driverID); err == nil {
		info.Profile = u.Profile()
		info.Location = u.Location
	} else {
		info.Profile = models.Profile{ID: driverID}
	}
	if entry, ok := e.presence.Get(driverID); ok && entry.Location != nil {
		info.Location = entry.Location
	}
	return info
}

func mapStoreErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
