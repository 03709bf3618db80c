package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-offline-sync/internal/favorites"
	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/scheduler"
	"github.com/i474232898/weather-offline-sync/internal/store"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

var validate = validator.New()

// Weather is the coordinator surface the handlers use.
type Weather interface {
	Resolve(ctx context.Context, loc location.Identity) (weather.Current, error)
	ResolveActive(ctx context.Context) (weather.Current, error)
	ResolveForecast(ctx context.Context, loc location.Identity) (weather.ForecastResult, error)
	Search(ctx context.Context, query string, limit int) ([]location.Identity, error)
	Active() location.Identity
	Status() weather.Status
}

// Favorites is implemented by *favorites.Registry.
type Favorites interface {
	Toggle(loc location.Identity, current *weather.Snapshot) (bool, error)
	IsFavorite(loc location.Identity) bool
	List() []favorites.Entry
}

// Store is the persisted state the handlers read and write directly.
type Store interface {
	Units() string
	Language() string
	SetUnits(units string) error
	SetLanguage(language string) error
	SetActiveLocation(key string) error
	Weather(key string) (weather.Snapshot, bool)
	ClearAll() error
}

// Lifecycle starts and stops background refresh.
type Lifecycle interface {
	Start()
	Stop()
	State() scheduler.State
}

type Deps struct {
	Weather   Weather
	Favorites Favorites
	Store     Store
	Lifecycle Lifecycle
}

type handlers struct {
	Deps
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := handlers{Deps: deps}
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", h.currentWeather)
	v1.Get("/weather/forecast", h.forecast)
	v1.Get("/weather/extra", h.extraInfo)
	v1.Post("/weather/refresh", h.refresh)

	v1.Get("/locations/search", h.search)
	v1.Get("/locations/active", h.activeLocation)
	v1.Put("/locations/active", h.setActiveLocation)

	v1.Get("/favorites", h.listFavorites)
	v1.Post("/favorites/toggle", h.toggleFavorite)
	v1.Delete("/favorites", h.resetFavorites)

	v1.Get("/settings", h.settings)
	v1.Put("/settings", h.updateSettings)

	v1.Get("/lifecycle", h.lifecycle)
	v1.Post("/lifecycle/foreground", h.foreground)
	v1.Post("/lifecycle/background", h.background)
}

// ErrorHandler renders errors as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// mapError turns domain errors into HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, weather.ErrNoLocationSelected):
		return fiber.NewError(fiber.StatusBadRequest, "no city selected")
	case errors.Is(err, weather.ErrEmptyQuery),
		errors.Is(err, store.ErrInvalidKey),
		errors.Is(err, store.ErrInvalidPreference):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage unavailable")
	case weather.IsGatewayFailure(err):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// locationBody identifies a place either by its encoded key or by its parts.
type locationBody struct {
	Key     string   `json:"key"`
	Name    string   `json:"name" validate:"required_without=Key"`
	State   string   `json:"state"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat" validate:"required_without=Key,omitempty,latitude"`
	Lon     *float64 `json:"lon" validate:"required_without=Key,omitempty,longitude"`
}

func (b locationBody) identity() (location.Identity, error) {
	if b.Key != "" {
		loc := location.Decode(b.Key)
		if !loc.Valid() {
			return loc, errors.New("key has no usable coordinates")
		}
		return loc, nil
	}
	return location.Identity{
		Name:    strings.TrimSpace(b.Name),
		State:   strings.TrimSpace(b.State),
		Country: strings.TrimSpace(b.Country),
		Lat:     b.Lat,
		Lon:     b.Lon,
	}, nil
}

func parseLocationBody(c *fiber.Ctx) (location.Identity, error) {
	var body locationBody
	if err := c.BodyParser(&body); err != nil {
		return location.Identity{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(body); err != nil {
		return location.Identity{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	loc, err := body.identity()
	if err != nil {
		return loc, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return loc, nil
}

// coordQuery holds explicit coordinates passed as query parameters.
type coordQuery struct {
	Lat float64 `validate:"latitude"`
	Lon float64 `validate:"longitude"`
}

// parseLocationQuery resolves ?key=, ?name=&lat=&lon= or, with neither, the
// active location.
func (h handlers) parseLocationQuery(c *fiber.Ctx) (location.Identity, error) {
	if key := c.Query("key"); key != "" {
		return location.Decode(key), nil
	}

	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" && lonStr == "" {
		return h.Weather.Active(), nil
	}

	var q coordQuery
	var err error
	if q.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return location.Identity{}, fiber.NewError(fiber.StatusBadRequest, "invalid lat")
	}
	if q.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return location.Identity{}, fiber.NewError(fiber.StatusBadRequest, "invalid lon")
	}
	if err := validate.Struct(q); err != nil {
		return location.Identity{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return location.New(
		strings.TrimSpace(c.Query("name")),
		strings.TrimSpace(c.Query("state")),
		strings.TrimSpace(c.Query("country")),
		q.Lat, q.Lon,
	), nil
}
