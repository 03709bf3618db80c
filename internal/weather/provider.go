package weather

import (
	"context"

	"github.com/i474232898/weather-offline-sync/internal/location"
)

// Gateway abstracts the remote weather and geocoding service
// (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Gateway interface {
	Name() string
	FetchCurrent(ctx context.Context, lat, lon float64, prefs Preferences) (Snapshot, error)
	FetchForecast(ctx context.Context, lat, lon float64, prefs Preferences) (Forecast, error)
	SearchByName(ctx context.Context, query string, limit int) ([]location.Identity, error)
}

// SnapshotStore is the part of the persistent store the coordinator needs.
type SnapshotStore interface {
	SaveWeather(key string, snapshot Snapshot) error
	// Weather reports false for a missing or unreadable entry.
	Weather(key string) (Snapshot, bool)
}

// Settings supplies the user's current preferences and active location.
type Settings interface {
	Units() string
	Language() string
	ActiveLocation() string
}
