package dispatch

import (
	"context"
	"log/slog"

	"github.com/example/ambulance-dispatch/internal/booking"
	"github.com/example/ambulance-dispatch/internal/notify"
	"github.com/example/ambulance-dispatch/internal/observability"
	"github.com/example/ambulance-dispatch/internal/payments"
)

// Broadcaster fans an event out to one scope's current members.
type Broadcaster interface {
	Broadcast(scope, event string, payload any)
}

// Dispatcher executes the Effects values the lifecycle engine emits, after
// the engine's state change has committed. Broadcast, push and charge
// failures are logged and swallowed; they never propagate to the operation
// that triggered them.
type Dispatcher struct {
	Broadcaster Broadcaster
	Notifier    notify.Notifier  // optional
	Charger     payments.Charger // optional
	Logger      *slog.Logger
}

func New(b Broadcaster, n notify.Notifier, c payments.Charger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{Broadcaster: b, Notifier: n, Charger: c, Logger: logger}
}

func (d *Dispatcher) Run(ctx context.Context, fx booking.Effects) {
	for _, b := range fx.Broadcasts {
		d.Broadcaster.Broadcast(b.Scope, b.Event, b.Payload)
		observability.EventsBroadcast.WithLabelValues(b.Event).Inc()
	}
	for _, p := range fx.Pushes {
		if d.Notifier == nil {
			continue
		}
		observability.PushesSent.Inc()
		if err := d.Notifier.Send(ctx, p.Token, p.Title, p.Body); err != nil {
			observability.PushFailures.Inc()
			d.Logger.Warn("push delivery failed", "title", p.Title, "error", err)
		}
	}
	for _, c := range fx.Charges {
		if d.Charger == nil {
			continue
		}
		if _, err := d.Charger.Charge(ctx, c.AmountCents, c.Currency, c.RiderID); err != nil {
			d.Logger.Warn("fare charge failed", "booking_id", c.BookingID, "error", err)
		}
	}
}
