package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ambulance-dispatch/internal/auth"
	"github.com/example/ambulance-dispatch/internal/booking"
	"github.com/example/ambulance-dispatch/internal/config"
	"github.com/example/ambulance-dispatch/internal/dispatch"
	"github.com/example/ambulance-dispatch/internal/ingest"
	"github.com/example/ambulance-dispatch/internal/models"
	"github.com/example/ambulance-dispatch/internal/notify"
	"github.com/example/ambulance-dispatch/internal/payments"
	"github.com/example/ambulance-dispatch/internal/presence"
	"github.com/example/ambulance-dispatch/internal/realtime"
	"github.com/example/ambulance-dispatch/internal/storage"
)

type Server struct {
	engine     *booking.Engine
	gate       *auth.Gate
	scopes     *realtime.ScopeManager
	dispatcher *dispatch.Dispatcher
	users      storage.UserStore
	logger     *slog.Logger
	mux        *mux.Router
}

// NewServer wires the dispatch service from config. External collaborators
// (postgres, redis, kafka, FCM, stripe) are optional; each falls back to an
// in-process or no-op stand-in when unconfigured so the binary runs locally
// without setup.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var bookings storage.BookingStore
	var users storage.UserStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		bookings, users = ps, ps
	} else {
		ms := storage.NewMemoryStore()
		bookings, users = ms, ms
	}

	var reg presence.Registry
	if cfg.RedisAddr != "" {
		reg = presence.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		reg = presence.NewMemoryRegistry()
	}

	var producer booking.LocationPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	engine := booking.NewEngine(bookings, users, reg, producer, logger)
	engine.ProximityKm = cfg.ProximityKm
	engine.FareCents = cfg.BaseFareCents
	engine.Currency = cfg.FareCurrency

	var notifier notify.Notifier
	if cfg.FCMKey != "" {
		notifier = notify.NewFCMNotifier(cfg.FCMEndpoint, cfg.FCMKey)
	}
	var charger payments.Charger
	if cfg.StripeAPIKey != "" {
		charger = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	scopes := realtime.NewScopeManager()
	dispatcher := dispatch.New(scopes, notifier, charger, logger)
	gate := auth.NewGate(cfg.JWTSecret, users, cfg.TokenTTL)

	s := &Server{
		engine:     engine,
		gate:       gate,
		scopes:     scopes,
		dispatcher: dispatcher,
		users:      users,
		logger:     logger,
		mux:        mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/bookings", s.authenticated(s.handleCreateBooking, models.RoleRider)).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/driver/active", s.authenticated(s.handleDriverActive, models.RoleDriver)).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/rider/history", s.authenticated(s.handleRiderHistory, models.RoleRider)).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/{id}", s.authenticated(s.handleGetBooking)).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/{id}/status", s.authenticated(s.handleUpdateStatus)).Methods("PATCH")
	s.mux.HandleFunc("/api/v1/auth/fcm-token", s.authenticated(s.handleFCMToken)).Methods("POST")
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
