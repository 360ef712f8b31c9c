package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	httptransport "weride/internal/http"
	"weride/internal/mirror"
	"weride/internal/modules/ivr"
	"weride/internal/modules/notify"
	"weride/internal/modules/rating"
	"weride/internal/modules/ride"
	"weride/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemory()
	rides := ride.NewService(st, ride.Deps{
		Dispatcher: notify.NewDispatcher(st, notify.DemoChannel{}, quiet),
		Planner:    notify.Planner{DriversTopic: "drivers", SafetyDesk: "+923000009999"},
		Log:        quiet,
	})
	ratings := rating.NewService(st, quiet)
	return httptransport.NewRouter(httptransport.Deps{
		Rides:          rides,
		Ratings:        ratings,
		IVR:            ivr.NewService(rides, ratings, quiet),
		Hub:            mirror.NewHub(),
		Log:            quiet,
		NearbyRadiusKm: 3,
	})
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func mustStatus(t *testing.T, w *httptest.ResponseRecorder, want int) map[string]any {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
	return decode(t, w)
}

func createRide(t *testing.T, r *gin.Engine) string {
	t.Helper()
	out := mustStatus(t, doRequest(r, http.MethodPost, "/api/rides", map[string]any{
		"passenger_phone": "+923000000001",
		"passenger_name":  "Ayesha",
		"pickup":          "Gulberg",
		"destination":     "DHA Phase 5",
		"price_offer":     500,
	}), http.StatusCreated)
	return out["ride_id"].(string)
}

func submitOffer(t *testing.T, r *gin.Engine, rideID, phone string, price int) string {
	t.Helper()
	out := mustStatus(t, doRequest(r, http.MethodPost, "/api/rides/"+rideID+"/offers", map[string]any{
		"driver_phone": phone, "driver_name": "Bilal", "price": price, "eta_minutes": 4,
	}), http.StatusCreated)
	return out["offer_id"].(string)
}

func TestRideLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	rideID := createRide(t, r)
	offerID := submitOffer(t, r, rideID, "+923000000002", 450)

	accepted := mustStatus(t, doRequest(r, http.MethodPost, "/api/offers/"+offerID+"/accept", nil), http.StatusOK)
	if accepted["final_price"].(float64) != 450 || accepted["driver_name"] != "Bilal" {
		t.Fatalf("unexpected accept response %v", accepted)
	}
	for _, step := range []string{"enroute", "arrive", "start", "complete"} {
		mustStatus(t, doRequest(r, http.MethodPost, "/api/rides/"+rideID+"/"+step, nil), http.StatusOK)
	}
	got := mustStatus(t, doRequest(r, http.MethodGet, "/api/rides/"+rideID, nil), http.StatusOK)
	if got["status"] != "completed" || got["final_price"].(float64) != 450 || got["driver_id"] == nil {
		t.Fatalf("unexpected ride %v", got)
	}

	events := mustStatus(t, doRequest(r, http.MethodGet, "/api/rides/"+rideID+"/events", nil), http.StatusOK)
	if n := len(events["events"].([]any)); n < 6 {
		t.Fatalf("expected at least 6 events, got %d", n)
	}
	log := mustStatus(t, doRequest(r, http.MethodGet, "/api/rides/"+rideID+"/dispatches", nil), http.StatusOK)
	for _, d := range log["dispatches"].([]any) {
		if d.(map[string]any)["status"] != "skipped-demo-mode" {
			t.Fatalf("demo mode dispatch not skipped: %v", d)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	r := newTestRouter(t)
	rideID := createRide(t, r)
	submitOffer(t, r, rideID, "+923000000002", 450)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed id", http.MethodGet, "/api/rides/not-an-id", nil, http.StatusBadRequest},
		{"unknown ride", http.MethodGet, "/api/rides/0123456789abcdef0123456789abcdef", nil, http.StatusNotFound},
		{"complete from pending", http.MethodPost, "/api/rides/" + rideID + "/complete", nil, http.StatusConflict},
		{"duplicate offer", http.MethodPost, "/api/rides/" + rideID + "/offers", map[string]any{"driver_phone": "+923000000002", "price": 400}, http.StatusConflict},
		{"missing fields", http.MethodPost, "/api/rides", map[string]any{"pickup": "A"}, http.StatusBadRequest},
		{"negative price", http.MethodPost, "/api/rides/" + rideID + "/offers", map[string]any{"driver_phone": "+923000000005", "price": -1}, http.StatusBadRequest},
		{"unknown call kind", http.MethodPost, "/api/rides/" + rideID + "/calls/survey", nil, http.StatusBadRequest},
		{"rating a pending ride", http.MethodPost, "/api/rides/" + rideID + "/rating", map[string]any{"rater_id": "a", "rated_id": "b", "score": 5}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if _, ok := decode(t, w)["error"]; !ok {
				t.Fatal("error body missing")
			}
		})
	}
}

func TestDriverEndpoints(t *testing.T) {
	r := newTestRouter(t)
	mustStatus(t, doRequest(r, http.MethodPost, "/api/drivers/online", map[string]any{
		"driver_phone": "+923000000002", "driver_name": "Bilal", "vehicle": "Corolla", "license_plate": "LEB-1234", "online": true,
	}), http.StatusOK)
	mustStatus(t, doRequest(r, http.MethodPut, "/api/drivers/location", map[string]any{
		"driver_phone": "+923000000002", "lat": 31.5204, "lng": 74.3587,
	}), http.StatusOK)

	online := mustStatus(t, doRequest(r, http.MethodGet, "/api/drivers/online", nil), http.StatusOK)
	if n := len(online["drivers"].([]any)); n != 1 {
		t.Fatalf("expected one online driver, got %d", n)
	}
	nearby := mustStatus(t, doRequest(r, http.MethodGet, "/api/drivers/nearby?lat=31.5210&lng=74.3590", nil), http.StatusOK)
	if n := len(nearby["drivers"].([]any)); n != 1 {
		t.Fatalf("expected one nearby driver, got %d", n)
	}
	far := mustStatus(t, doRequest(r, http.MethodGet, "/api/drivers/nearby?lat=24.8607&lng=67.0011&radius_km=5", nil), http.StatusOK)
	if n := len(far["drivers"].([]any)); n != 0 {
		t.Fatalf("driver in Lahore found near Karachi: %d", n)
	}

	createRide(t, r)
	board := mustStatus(t, doRequest(r, http.MethodGet, "/api/drivers/rides", nil), http.StatusOK)
	if n := len(board["rides"].([]any)); n != 1 {
		t.Fatalf("expected one available ride, got %d", n)
	}
}

func TestIVRWebhookAnswersTwiML(t *testing.T) {
	r := newTestRouter(t)
	rideID := createRide(t, r)
	offerID := submitOffer(t, r, rideID, "+923000000002", 450)
	mustStatus(t, doRequest(r, http.MethodPost, "/api/offers/"+offerID+"/accept", nil), http.StatusOK)
	mustStatus(t, doRequest(r, http.MethodPost, "/api/rides/"+rideID+"/arrive", nil), http.StatusOK)
	mustStatus(t, doRequest(r, http.MethodPost, "/api/rides/"+rideID+"/start", nil), http.StatusOK)

	q := url.Values{"context": {"safety"}, "ride_id": {rideID}}
	req := httptest.NewRequest(http.MethodPost, "/ivr/digits?"+q.Encode(), strings.NewReader("Digits=9"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Say") || !strings.Contains(body, "emergency protocol") || strings.Contains(body, "<Gather") {
		t.Fatalf("unexpected TwiML %s", body)
	}

	events := mustStatus(t, doRequest(r, http.MethodGet, "/api/rides/"+rideID+"/events", nil), http.StatusOK)
	escalated := false
	for _, e := range events["events"].([]any) {
		if e.(map[string]any)["trigger"] == "emergency_escalated" {
			escalated = true
		}
	}
	if !escalated {
		t.Fatal("emergency digit did not escalate")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("health: %d %q", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "weride_http_requests_total") {
		t.Fatalf("metrics endpoint missing request counter")
	}
}
