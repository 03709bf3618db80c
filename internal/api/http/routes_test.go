package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-offline-sync/internal/favorites"
	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/scheduler"
	"github.com/i474232898/weather-offline-sync/internal/store"
	"github.com/i474232898/weather-offline-sync/internal/store/kv"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

type stubGateway struct {
	snap    weather.Snapshot
	results []location.Identity
	err     error
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) FetchCurrent(_ context.Context, lat, lon float64, _ weather.Preferences) (weather.Snapshot, error) {
	if g.err != nil {
		return weather.Snapshot{}, &weather.GatewayError{Gateway: "stub", Operation: "current weather", Err: g.err}
	}
	s := g.snap
	s.Coordinates = weather.Coordinates{Lat: lat, Lon: lon}
	return s, nil
}

func (g *stubGateway) FetchForecast(context.Context, float64, float64, weather.Preferences) (weather.Forecast, error) {
	if g.err != nil {
		return nil, &weather.GatewayError{Gateway: "stub", Operation: "forecast", Err: g.err}
	}
	return weather.Forecast{}, nil
}

func (g *stubGateway) SearchByName(context.Context, string, int) ([]location.Identity, error) {
	return g.results, g.err
}

type testEnv struct {
	app     *fiber.App
	gateway *stubGateway
	store   *store.Store
	sched   *scheduler.Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	st := store.New(func() (kv.Substrate, error) { return kv.NewMemory(), nil }, logger)
	gw := &stubGateway{snap: weather.Snapshot{LocationLabel: "Warsaw", Temperature: 20, IconID: "01d"}}
	coord := weather.NewCoordinator(gw, st, st, logger)
	sched := scheduler.New(coord, scheduler.Options{Clock: clockwork.NewFakeClock(), Logger: logger})
	t.Cleanup(sched.Stop)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, Deps{
		Weather:   coord,
		Favorites: favorites.NewRegistry(st, logger),
		Store:     st,
		Lifecycle: sched,
	})
	return &testEnv{app: app, gateway: gw, store: st, sched: sched}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

const warsawKey = "Warsaw||PL|52.23|21.01"

var warsawQuery = url.QueryEscape(warsawKey)

// TestForecastDaysValidation verifies that the forecast endpoint enforces the
// 1-5 range for the `days` query parameter.
func TestForecastDaysValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing days", "/api/v1/weather/forecast?key=" + warsawQuery, http.StatusBadRequest},
		{"zero days", "/api/v1/weather/forecast?days=0&key=" + warsawQuery, http.StatusBadRequest},
		{"too many days", "/api/v1/weather/forecast?days=6&key=" + warsawQuery, http.StatusBadRequest},
		{"not a number", "/api/v1/weather/forecast?days=abc&key=" + warsawQuery, http.StatusBadRequest},
		{"valid", "/api/v1/weather/forecast?days=5&key=" + warsawQuery, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodGet, tc.target, "")
			if resp.StatusCode != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestCurrentWeatherWithoutCity(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/weather/current", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["message"] != "no city selected" {
		t.Fatalf("unexpected message %v", body["message"])
	}

	resp, _ = env.do(t, http.MethodPost, "/api/v1/weather/refresh", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 from refresh, got %d", resp.StatusCode)
	}
}

func TestCurrentWeatherFallsBackOffline(t *testing.T) {
	env := newTestEnv(t)
	target := "/api/v1/weather/current?key=" + warsawQuery

	resp, body := env.do(t, http.MethodGet, target, "")
	if resp.StatusCode != http.StatusOK || body["offline"] != false {
		t.Fatalf("expected live response, got %d %v", resp.StatusCode, body)
	}

	env.gateway.err = errors.New("network down")
	resp, body = env.do(t, http.MethodGet, target, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected cached response, got %d", resp.StatusCode)
	}
	if body["offline"] != true || body["fetchError"] == nil {
		t.Fatalf("expected offline flag and fetch error, got %v", body)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/v1/weather/current?name=Oslo&lat=59.9&lon=10.7", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 without cache, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/v1/weather/current?lat=123&lon=10", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid latitude, got %d", resp.StatusCode)
	}
}

func TestForecastFailureReportsOffline(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/weather/current?key="+warsawQuery, "")
	env.gateway.err = errors.New("timeout")

	resp, body := env.do(t, http.MethodGet, "/api/v1/weather/forecast?days=3&key="+warsawQuery, "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if body["offline"] != true {
		t.Fatalf("expected offline flag with cached current weather, got %v", body)
	}
}

func TestSearchAutoSelectsSingleResult(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.results = []location.Identity{location.New("Warsaw", "", "PL", 52.23, 21.01)}

	resp, body := env.do(t, http.MethodGet, "/api/v1/locations/search?q=Warsaw", "")
	if resp.StatusCode != http.StatusOK || body["selected"] != true {
		t.Fatalf("expected auto-selection, got %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/v1/locations/active", "")
	if resp.StatusCode != http.StatusOK || body["key"] != warsawKey {
		t.Fatalf("expected active location %s, got %v", warsawKey, body)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/v1/locations/search?q=", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/v1/locations/search?q=x&limit=11", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit above 10, got %d", resp.StatusCode)
	}
}

func TestSetActiveLocation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/locations/active", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without active location, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPut, "/api/v1/locations/active", `{"name":"Oslo"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without coordinates, got %d", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPut, "/api/v1/locations/active", `{"name":"Oslo","country":"NO","lat":59.91,"lon":10.75}`)
	if resp.StatusCode != http.StatusOK || body["key"] != "Oslo||NO|59.91|10.75" {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/v1/weather/refresh", "")
	if resp.StatusCode != http.StatusOK || body["label"] != "Oslo, NO [59.91, 10.75]" {
		t.Fatalf("expected refresh of the active location, got %d %v", resp.StatusCode, body)
	}
}

func TestToggleFavoriteAndReset(t *testing.T) {
	env := newTestEnv(t)
	payload := `{"key":"` + warsawKey + `"}`

	resp, body := env.do(t, http.MethodPost, "/api/v1/favorites/toggle", payload)
	if resp.StatusCode != http.StatusOK || body["favorite"] != true {
		t.Fatalf("expected favorite added, got %d %v", resp.StatusCode, body)
	}
	if _, ok := env.store.Weather(warsawKey); !ok {
		t.Fatalf("expected current weather stored with favorite")
	}

	resp, body = env.do(t, http.MethodGet, "/api/v1/favorites", "")
	list, _ := body["favorites"].([]any)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Fatalf("expected one favorite, got %v", body)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/favorites", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if len(env.store.Favorites()) != 0 {
		t.Fatalf("expected favorites cleared")
	}

	resp, _ = env.do(t, http.MethodPost, "/api/v1/favorites/toggle", `{"key":"Nowhere||||"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for key without coordinates, got %d", resp.StatusCode)
	}
}

func TestToggleFavoriteTrimsNameBeforeEncoding(t *testing.T) {
	env := newTestEnv(t)
	payload := `{"name":"  Paris ","country":"FR","lat":48.85,"lon":2.35}`
	const key = "Paris||FR|48.85|2.35"

	resp, body := env.do(t, http.MethodPost, "/api/v1/favorites/toggle", payload)
	if resp.StatusCode != http.StatusOK || body["favorite"] != true || body["key"] != key {
		t.Fatalf("expected %s added, got %d %v", key, resp.StatusCode, body)
	}
	if _, ok := env.store.Weather(key); !ok {
		t.Fatalf("expected weather stored under the trimmed key")
	}

	resp, body = env.do(t, http.MethodPost, "/api/v1/favorites/toggle", payload)
	if resp.StatusCode != http.StatusOK || body["favorite"] != false {
		t.Fatalf("expected favorite removed, got %d %v", resp.StatusCode, body)
	}
	if _, ok := env.store.Weather(key); ok {
		t.Fatalf("expected weather removed with the favorite")
	}
}

func TestToggleFavoriteOfflineAddsWithoutSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.err = errors.New("offline")

	resp, body := env.do(t, http.MethodPost, "/api/v1/favorites/toggle", `{"key":"`+warsawKey+`"}`)
	if resp.StatusCode != http.StatusOK || body["favorite"] != true {
		t.Fatalf("expected favorite added while offline, got %d %v", resp.StatusCode, body)
	}
	if _, ok := env.store.Weather(warsawKey); ok {
		t.Fatalf("expected no stored weather")
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/settings", "")
	if resp.StatusCode != http.StatusOK || body["units"] != "metric" || body["language"] != "en" {
		t.Fatalf("unexpected defaults %v", body)
	}

	resp, _ = env.do(t, http.MethodPut, "/api/v1/settings", `{"units":"kelvin"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid units, got %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodPut, "/api/v1/settings", `{"units":"imperial","language":"pl"}`)
	if resp.StatusCode != http.StatusOK || body["units"] != "imperial" || body["language"] != "pl" {
		t.Fatalf("unexpected settings %d %v", resp.StatusCode, body)
	}
}

func TestLifecycle(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/api/v1/lifecycle/foreground", "")
	if body["state"] != "running" || env.sched.State() != scheduler.Running {
		t.Fatalf("expected running, got %v", body)
	}
	env.do(t, http.MethodPost, "/api/v1/lifecycle/foreground", "")

	_, body = env.do(t, http.MethodPost, "/api/v1/lifecycle/background", "")
	if body["state"] != "idle" || env.sched.State() != scheduler.Idle {
		t.Fatalf("expected idle, got %v", body)
	}
}

func TestExtraInfo(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.snap.VisibilityMeters = 7000

	resp, body := env.do(t, http.MethodGet, "/api/v1/weather/extra?key="+warsawQuery, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["visibilityKm"] != 7.0 {
		t.Fatalf("expected 7 km visibility, got %v", body["visibilityKm"])
	}
}
