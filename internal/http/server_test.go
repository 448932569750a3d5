package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/example/ambulance-dispatch/internal/config"
	"github.com/example/ambulance-dispatch/internal/logging"
	"github.com/example/ambulance-dispatch/internal/models"
	"github.com/example/ambulance-dispatch/internal/realtime"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
		ProximityKm:  0.5,
		FareCurrency: "usd",
	}
}

type env struct {
	srv         *Server
	ts          *httptest.Server
	riderToken  string
	driverToken string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv, err := NewServer(testConfig(), logging.NewNopLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, srv.users.InsertUser(ctx, models.User{
		ID: "rider-1", Name: "Asha", Phone: "555-0101", Role: models.RoleRider, FCMToken: "rider-token",
	}))
	require.NoError(t, srv.users.InsertUser(ctx, models.User{
		ID: "driver-1", Name: "Ravi", Phone: "555-0202", Role: models.RoleDriver,
	}))

	riderToken, err := srv.gate.Issue("rider-1", models.RoleRider)
	require.NoError(t, err)
	driverToken, err := srv.gate.Issue("driver-1", models.RoleDriver)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &env{srv: srv, ts: ts, riderToken: riderToken, driverToken: driverToken}
}

func (e *env) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBooking(t *testing.T, resp *http.Response) models.Booking {
	t.Helper()
	defer resp.Body.Close()
	var out struct {
		Booking models.Booking `json:"booking"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Booking
}

func TestCreateBookingRequiresRiderRole(t *testing.T) {
	e := newEnv(t)
	body := map[string]any{"pickup": map[string]any{"lat": 12.97, "lon": 77.59}}

	resp := e.request(t, http.MethodPost, "/api/v1/bookings", "", body)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodPost, "/api/v1/bookings", e.driverToken, body)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodPost, "/api/v1/bookings", e.riderToken, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	b := decodeBooking(t, resp)
	require.Equal(t, models.StatusPending, b.Status)
	require.Empty(t, b.DriverID)
}

func TestGetBookingGuardsParties(t *testing.T) {
	e := newEnv(t)
	resp := e.request(t, http.MethodPost, "/api/v1/bookings", e.riderToken,
		map[string]any{"pickup": map[string]any{"lat": 12.97, "lon": 77.59}})
	b := decodeBooking(t, resp)

	resp = e.request(t, http.MethodGet, "/api/v1/bookings/"+b.ID, e.riderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// an unassigned driver is not a party yet
	resp = e.request(t, http.MethodGet, "/api/v1/bookings/"+b.ID, e.driverToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodGet, "/api/v1/bookings/unknown-id", e.riderToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateStatusFlow(t *testing.T) {
	e := newEnv(t)
	resp := e.request(t, http.MethodPost, "/api/v1/bookings", e.riderToken,
		map[string]any{"pickup": map[string]any{"lat": 12.97, "lon": 77.59}})
	b := decodeBooking(t, resp)

	// direct assignment fallback via status update
	resp = e.request(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", e.driverToken,
		map[string]string{"status": "assigned"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBooking(t, resp)
	require.Equal(t, models.StatusAssigned, updated.Status)
	require.Equal(t, "driver-1", updated.DriverID)

	// skipping en-route is rejected
	resp = e.request(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", e.driverToken,
		map[string]string{"status": "arrived"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", e.driverToken,
		map[string]string{"status": "en-route"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// the rider is not the assigned driver
	resp = e.request(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", e.riderToken,
		map[string]string{"status": "arrived"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestListEndpointsEnforceRoles(t *testing.T) {
	e := newEnv(t)

	resp := e.request(t, http.MethodGet, "/api/v1/bookings/driver/active", e.riderToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodGet, "/api/v1/bookings/driver/active", e.driverToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodGet, "/api/v1/bookings/rider/history", e.driverToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodGet, "/api/v1/bookings/rider/history", e.riderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestFCMTokenUpdate(t *testing.T) {
	e := newEnv(t)
	resp := e.request(t, http.MethodPost, "/api/v1/auth/fcm-token", e.driverToken,
		map[string]string{"fcm_token": "new-token"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	u, err := e.srv.users.FindUserByID(context.Background(), "driver-1")
	require.NoError(t, err)
	require.Equal(t, "new-token", u.FCMToken)
}

func wsDial(t *testing.T, e *env, token string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": token}))
	var ack realtime.Envelope
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "authenticated", ack.Event)
	return conn
}

func TestWSRejectsBadToken(t *testing.T) {
	e := newEnv(t)
	url := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "garbage"}))
	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "invalid_token", reply["error"])
}

// End-to-end: rider creates a booking, the available driver sees it and
// accepts over the realtime channel, and the rider's booking scope receives
// the assignment with the driver's profile.
func TestBookingAssignmentEndToEnd(t *testing.T) {
	e := newEnv(t)

	driverConn := wsDial(t, e, e.driverToken)
	require.NoError(t, driverConn.WriteJSON(map[string]any{"type": "driver-availability", "available": true}))
	require.Eventually(t, func() bool {
		return e.srv.scopes.MemberCount(realtime.ScopeAvailableDrivers) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := e.request(t, http.MethodPost, "/api/v1/bookings", e.riderToken,
		map[string]any{"pickup": map[string]any{"lat": 12.9716, "lon": 77.5946, "address": "MG Road"}, "notes": "hurry"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	b := decodeBooking(t, resp)

	var offer realtime.Envelope
	require.NoError(t, driverConn.ReadJSON(&offer))
	require.Equal(t, "new-booking", offer.Event)
	data, ok := offer.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, b.ID, data["booking_id"])

	riderConn := wsDial(t, e, e.riderToken)
	require.NoError(t, riderConn.WriteJSON(map[string]any{"type": "join-booking", "booking_id": b.ID}))
	require.Eventually(t, func() bool {
		return e.srv.scopes.MemberCount(realtime.BookingScope(b.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, driverConn.WriteJSON(map[string]any{"type": "accept-booking", "booking_id": b.ID}))

	var assigned realtime.Envelope
	require.NoError(t, riderConn.ReadJSON(&assigned))
	require.Equal(t, "booking-assigned", assigned.Event)
	payload, ok := assigned.Data.(map[string]any)
	require.True(t, ok)
	driverInfo, ok := payload["driver"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Ravi", driverInfo["name"])

	final, err := e.srv.engine.GetByID(context.Background(), b.ID, "rider-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, final.Status)
	require.Equal(t, "driver-1", final.DriverID)
}

type recordingNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (r *recordingNotifier) Send(_ context.Context, token, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func (r *recordingNotifier) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bodies) == 0 {
		return ""
	}
	return r.bodies[len(r.bodies)-1]
}

// End-to-end: an en-route driver reporting outside the alert radius sends no
// proximity push; inside the radius the push fires.
func TestProximityAlertEndToEnd(t *testing.T) {
	e := newEnv(t)
	recorder := &recordingNotifier{}
	e.srv.dispatcher.Notifier = recorder

	resp := e.request(t, http.MethodPost, "/api/v1/bookings", e.riderToken,
		map[string]any{"pickup": map[string]any{"lat": 12.9716, "lon": 77.5946}})
	b := decodeBooking(t, resp)

	driverConn := wsDial(t, e, e.driverToken)
	require.NoError(t, driverConn.WriteJSON(map[string]any{"type": "accept-booking", "booking_id": b.ID}))

	require.Eventually(t, func() bool {
		got, err := e.srv.engine.GetByID(context.Background(), b.ID, "driver-1")
		return err == nil && got.Status == models.StatusAssigned
	}, 2*time.Second, 10*time.Millisecond)

	resp = e.request(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", e.driverToken,
		map[string]string{"status": "en-route"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	riderConn := wsDial(t, e, e.riderToken)
	require.NoError(t, riderConn.WriteJSON(map[string]any{"type": "join-booking", "booking_id": b.ID}))
	require.Eventually(t, func() bool {
		return e.srv.scopes.MemberCount(realtime.BookingScope(b.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// accept and en-route already pushed two status notifications
	require.Eventually(t, func() bool { return recorder.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	// ~600 m north of pickup: broadcast only, no proximity push
	require.NoError(t, driverConn.WriteJSON(map[string]any{
		"type": "update-location", "booking_id": b.ID,
		"location": map[string]float64{"lat": 12.9770, "lon": 77.5946},
	}))
	var ev realtime.Envelope
	require.NoError(t, riderConn.ReadJSON(&ev))
	require.Equal(t, "location-update", ev.Event)
	require.Equal(t, 2, recorder.count())

	// ~300 m: the proximity alert fires
	require.NoError(t, driverConn.WriteJSON(map[string]any{
		"type": "update-location", "booking_id": b.ID,
		"location": map[string]float64{"lat": 12.9743, "lon": 77.5946},
	}))
	require.NoError(t, riderConn.ReadJSON(&ev))
	require.Equal(t, "location-update", ev.Event)
	require.Eventually(t, func() bool { return recorder.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "The ambulance is almost at your location", recorder.last())
}
