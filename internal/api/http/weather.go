package httpapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

type currentResponse struct {
	Location   location.Identity `json:"location"`
	Label      string            `json:"label"`
	Snapshot   *weather.Snapshot `json:"snapshot,omitempty"`
	Condition  weather.Condition `json:"condition,omitempty"`
	IconURL    string            `json:"iconUrl,omitempty"`
	Offline    bool              `json:"offline"`
	Favorite   bool              `json:"favorite"`
	FetchError string            `json:"fetchError,omitempty"`
}

func (h handlers) currentResponse(cur weather.Current) currentResponse {
	resp := currentResponse{
		Location: cur.Location,
		Label:    cur.Location.Label(),
		Snapshot: cur.Snapshot,
		Offline:  cur.Offline,
		Favorite: h.Favorites.IsFavorite(cur.Location),
	}
	if cur.Snapshot != nil {
		resp.Condition = cur.Snapshot.Condition()
		resp.IconURL = cur.Snapshot.IconURL()
	}
	if cur.FetchErr != nil {
		resp.FetchError = cur.FetchErr.Error()
	}
	return resp
}

func (h handlers) currentWeather(c *fiber.Ctx) error {
	loc, err := h.parseLocationQuery(c)
	if err != nil {
		return err
	}
	cur, err := h.Weather.Resolve(c.UserContext(), loc)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(h.currentResponse(cur))
}

func (h handlers) refresh(c *fiber.Ctx) error {
	cur, err := h.Weather.ResolveActive(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(h.currentResponse(cur))
}

// forecastQuery holds the validated days parameter.
type forecastQuery struct {
	Days int `validate:"required,min=1,max=5"`
}

func (h handlers) forecast(c *fiber.Ctx) error {
	var q forecastQuery
	daysStr := c.Query("days")
	if daysStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "days query parameter is required")
	}
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "days must be an integer")
	}
	q.Days = days
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	loc, err := h.parseLocationQuery(c)
	if err != nil {
		return err
	}

	res, err := h.Weather.ResolveForecast(c.UserContext(), loc)
	if err != nil {
		if weather.IsGatewayFailure(err) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
				"offline": res.Offline,
			})
		}
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"location": res.Location,
		"label":    res.Location.Label(),
		"days":     weather.SummarizeDays(res.Forecast, q.Days),
		"entries":  res.Forecast,
	})
}

type extraResponse struct {
	Location      location.Identity `json:"location"`
	Offline       bool              `json:"offline"`
	WindSpeed     float64           `json:"windSpeed"`
	WindDirection int               `json:"windDirection"`
	Pressure      float64           `json:"pressure"`
	Humidity      int               `json:"humidity"`
	VisibilityKm  float64           `json:"visibilityKm"`
	Sunrise       *time.Time        `json:"sunrise,omitempty"`
	Sunset        *time.Time        `json:"sunset,omitempty"`
	DayLength     string            `json:"dayLength,omitempty"`
}

func (h handlers) extraInfo(c *fiber.Ctx) error {
	loc, err := h.parseLocationQuery(c)
	if err != nil {
		return err
	}
	cur, err := h.Weather.Resolve(c.UserContext(), loc)
	if err != nil {
		return mapError(err)
	}
	if cur.Snapshot == nil {
		return fiber.NewError(fiber.StatusNotFound, "no weather data")
	}

	snap := cur.Snapshot
	resp := extraResponse{
		Location:      cur.Location,
		Offline:       cur.Offline,
		WindSpeed:     snap.WindSpeed,
		WindDirection: snap.WindDirection,
		Pressure:      snap.Pressure,
		Humidity:      snap.Humidity,
		VisibilityKm:  snap.VisibilityKm(),
	}
	if lat, lon, ok := cur.Location.Coordinates(); ok {
		d := weather.Daylight(lat, lon, time.Now())
		if !d.Sunrise.IsZero() {
			resp.Sunrise = &d.Sunrise
		}
		if !d.Sunset.IsZero() {
			resp.Sunset = &d.Sunset
		}
		if l := d.DayLength(); l > 0 {
			resp.DayLength = l.Round(time.Minute).String()
		}
	}
	return c.JSON(resp)
}
