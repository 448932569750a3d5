package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ambulance-dispatch/internal/booking"
	"github.com/example/ambulance-dispatch/internal/models"
	"github.com/example/ambulance-dispatch/internal/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	authTimeout  = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// wsMessage is the inbound realtime frame. Type selects the operation;
// the other fields are read per type.
type wsMessage struct {
	Type      string        `json:"type"`
	Token     string        `json:"token,omitempty"`
	Available *bool         `json:"available,omitempty"`
	BookingID string        `json:"booking_id,omitempty"`
	Location  *models.Coord `json:"location,omitempty"`
}

// handleWS serves the realtime channel. The first frame must carry a valid
// token; after that the connection handles availability announcements,
// booking-scope joins, accepts and location reports until it drops. On
// disconnect every scope membership is removed; presence availability is
// deliberately left as the driver last announced it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	identity, ok := s.wsAuthenticate(conn, r)
	if !ok {
		return
	}
	session := realtime.NewWSSession(conn)
	defer s.scopes.Drop(session)

	_ = session.Send("authenticated", map[string]string{"user_id": identity.UserID})
	s.logger.Info("ws connected", "user_id", identity.UserID, "role", identity.Role)

	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	go pingLoop(conn, stop)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.logger.Info("ws closed", "user_id", identity.UserID, "error", err)
			return
		}
		s.handleWSMessage(r, session, identity.UserID, identity.Role, msg)
	}
}

func (s *Server) wsAuthenticate(conn *websocket.Conn, r *http.Request) (id wsIdentity, ok bool) {
	conn.SetReadDeadline(time.Now().Add(authTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"auth_timeout"}`))
		return wsIdentity{}, false
	}
	var msg wsMessage
	_ = json.Unmarshal(raw, &msg)
	if msg.Type != "auth" {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid_auth_message"}`))
		return wsIdentity{}, false
	}
	verified, err := s.gate.Verify(r.Context(), msg.Token)
	if err != nil {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid_token"}`))
		return wsIdentity{}, false
	}
	return wsIdentity{UserID: verified.UserID, Role: verified.Role}, true
}

type wsIdentity struct {
	UserID string
	Role   models.Role
}

func (s *Server) handleWSMessage(r *http.Request, session *realtime.WSSession, userID string, role models.Role, msg wsMessage) {
	ctx := r.Context()
	switch msg.Type {
	case "driver-availability":
		if role != models.RoleDriver || msg.Available == nil {
			s.wsError(session, "driver availability requires driver role")
			return
		}
		s.engine.SetAvailability(ctx, userID, *msg.Available)
		if *msg.Available {
			s.scopes.Join(realtime.ScopeAvailableDrivers, session)
		} else {
			s.scopes.Leave(realtime.ScopeAvailableDrivers, session)
		}

	case "join-booking":
		if msg.BookingID == "" {
			s.wsError(session, "booking_id required")
			return
		}
		s.scopes.Join(realtime.BookingScope(msg.BookingID), session)

	case "accept-booking":
		if role != models.RoleDriver {
			s.wsError(session, "accept requires driver role")
			return
		}
		_, fx, err := s.engine.Accept(ctx, msg.BookingID, userID)
		if err != nil {
			if errors.Is(err, booking.ErrConflict) {
				s.wsError(session, "Booking is no longer available")
			} else {
				s.logger.Error("accept failed", "booking_id", msg.BookingID, "error", err)
				s.wsError(session, "Server error")
			}
			return
		}
		s.dispatcher.Run(ctx, fx)

	case "update-location":
		if role != models.RoleDriver || msg.Location == nil {
			s.wsError(session, "location update requires driver role")
			return
		}
		fx, err := s.engine.ReportLocation(ctx, userID, *msg.Location, msg.BookingID)
		if err != nil {
			s.logger.Error("location report failed", "driver_id", userID, "error", err)
			return
		}
		s.dispatcher.Run(ctx, fx)

	default:
		s.wsError(session, "unknown message type")
	}
}

func (s *Server) wsError(session *realtime.WSSession, message string) {
	_ = session.Send("booking-error", map[string]string{"message": message})
}

func pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
