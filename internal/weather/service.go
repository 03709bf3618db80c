package weather

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/i474232898/weather-offline-sync/internal/location"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 10
)

// ErrEmptyQuery is returned by Search for a blank query.
var ErrEmptyQuery = errors.New("search query is empty")

// Current is the outcome of resolving current weather for a location.
//
// Offline is true when the live fetch failed and Snapshot is the last stored
// one. FetchErr then carries the gateway failure for diagnostics.
type Current struct {
	Location location.Identity `json:"location"`
	Snapshot *Snapshot         `json:"snapshot,omitempty"`
	Offline  bool              `json:"offline"`
	FetchErr error             `json:"-"`
}

// ForecastResult is the outcome of resolving a forecast. Forecasts have no
// stored fallback; Offline only tells the caller that a current snapshot for
// the same location is cached and can still be shown.
type ForecastResult struct {
	Location location.Identity `json:"location"`
	Forecast Forecast          `json:"forecast,omitempty"`
	Offline  bool              `json:"offline"`
}

// Coordinator serves weather for a location: live from the gateway when it is
// reachable, otherwise from the last stored snapshot.
type Coordinator struct {
	gateway  Gateway
	store    SnapshotStore
	settings Settings
	logger   *log.Logger
	status   statusTracker
}

// NewCoordinator creates a Coordinator. A nil logger uses log.Default().
func NewCoordinator(gateway Gateway, store SnapshotStore, settings Settings, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		gateway:  gateway,
		store:    store,
		settings: settings,
		logger:   logger,
	}
}

// Resolve fetches current weather for loc and stores it. When the fetch fails
// the stored snapshot is returned with Offline set and a nil error. Without a
// stored snapshot the gateway failure is returned.
//
// Live data always wins; there is no freshness comparison with the stored copy.
func (c *Coordinator) Resolve(ctx context.Context, loc location.Identity) (Current, error) {
	lat, lon, ok := loc.Coordinates()
	if !ok {
		return Current{Location: loc}, ErrNoLocationSelected
	}
	key := location.Encode(loc)

	snap, err := c.gateway.FetchCurrent(ctx, lat, lon, c.preferences())
	if err == nil {
		if snap.LocationLabel == "" {
			snap.LocationLabel = loc.Name
		}
		if saveErr := c.store.SaveWeather(key, snap); saveErr != nil {
			c.logger.Printf("ERROR: saving snapshot for %s: %v", key, saveErr)
		}
		c.status.success()
		return Current{Location: loc, Snapshot: &snap}, nil
	}

	gwErr := c.gatewayError("current weather", err)
	cached, found := c.store.Weather(key)
	c.status.failure(gwErr, found)
	if !found {
		c.logger.Printf("ERROR: no live or cached weather for %s: %v", key, gwErr)
		return Current{Location: loc}, gwErr
	}

	c.logger.Printf("INFO: serving cached weather for %s: %v", key, gwErr)
	return Current{
		Location: loc,
		Snapshot: &cached,
		Offline:  true,
		FetchErr: gwErr,
	}, nil
}

// ResolveActive resolves the location currently selected in settings.
func (c *Coordinator) ResolveActive(ctx context.Context) (Current, error) {
	return c.Resolve(ctx, c.Active())
}

// Active decodes the active location from settings. The result may lack
// coordinates.
func (c *Coordinator) Active() location.Identity {
	return location.Decode(c.settings.ActiveLocation())
}

// ResolveForecast fetches the forecast for loc. On failure the error is
// returned together with a result whose Offline field reports whether current
// weather for loc is cached.
func (c *Coordinator) ResolveForecast(ctx context.Context, loc location.Identity) (ForecastResult, error) {
	lat, lon, ok := loc.Coordinates()
	if !ok {
		return ForecastResult{Location: loc}, ErrNoLocationSelected
	}

	forecast, err := c.gateway.FetchForecast(ctx, lat, lon, c.preferences())
	if err == nil {
		return ForecastResult{Location: loc, Forecast: forecast}, nil
	}

	gwErr := c.gatewayError("forecast", err)
	_, cached := c.store.Weather(location.Encode(loc))
	c.logger.Printf("ERROR: forecast failed for %s (cached current: %t): %v", location.Encode(loc), cached, gwErr)
	return ForecastResult{Location: loc, Offline: cached}, gwErr
}

// Search looks up locations by free text. limit <= 0 uses the default of 5.
func (c *Coordinator) Search(ctx context.Context, query string, limit int) ([]location.Identity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := c.gateway.SearchByName(ctx, query, limit)
	if err != nil {
		return nil, c.gatewayError("search", err)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Status returns a copy of the offline bookkeeping.
func (c *Coordinator) Status() Status {
	return c.status.snapshot()
}

func (c *Coordinator) preferences() Preferences {
	return Preferences{
		Units:    Units(c.settings.Units()),
		Language: c.settings.Language(),
	}
}

func (c *Coordinator) gatewayError(op string, err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	return &GatewayError{Gateway: c.gateway.Name(), Operation: op, Err: err}
}
