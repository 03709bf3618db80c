package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-offline-sync/internal/common"
	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

const (
	openMeteoForecastDays = 5
	openMeteoTimeLayout   = "2006-01-02T15:04"
)

var errNoGeocodeResult = errors.New("no geocoding result")

// geocoder keeps its API key in a package variable.
var geocoderMu sync.Mutex

// OpenMeteoProvider implements weather.Gateway for Open-Meteo. Open-Meteo has
// no name search, so SearchByName goes through Google geocoding.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	geocode func(query string) (location.Identity, error)
}

func NewOpenMeteoProvider(client *http.Client, geocoderAPIKey string) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openmeteo"),
		geocode: googleGeocode(geocoderAPIKey),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchCurrent(ctx context.Context, lat, lon float64, prefs weather.Preferences) (weather.Snapshot, error) {
	var payload struct {
		Current struct {
			Temperature   float64 `json:"temperature_2m"`
			Humidity      int     `json:"relative_humidity_2m"`
			Pressure      float64 `json:"surface_pressure"`
			WindSpeed     float64 `json:"wind_speed_10m"`
			WindDirection int     `json:"wind_direction_10m"`
			Visibility    float64 `json:"visibility"`
			WeatherCode   int     `json:"weather_code"`
			IsDay         int     `json:"is_day"`
		} `json:"current"`
	}

	values := p.values(lat, lon, prefs)
	values.Set("current", "temperature_2m,relative_humidity_2m,surface_pressure,wind_speed_10m,wind_direction_10m,visibility,weather_code,is_day")
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint(values), &payload); err != nil {
		return weather.Snapshot{}, gatewayError(p.name, "current weather", err)
	}

	cur := payload.Current
	desc, icon := mapOpenMeteoCode(cur.WeatherCode, cur.IsDay == 1)
	return weather.Snapshot{
		Coordinates:      weather.Coordinates{Lat: lat, Lon: lon},
		Temperature:      fromCelsius(prefs.Units, cur.Temperature),
		Pressure:         cur.Pressure,
		Humidity:         cur.Humidity,
		WindSpeed:        cur.WindSpeed,
		WindDirection:    cur.WindDirection,
		VisibilityMeters: int(cur.Visibility),
		Description:      desc,
		IconID:           icon,
	}, nil
}

func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, lat, lon float64, prefs weather.Preferences) (weather.Forecast, error) {
	var payload struct {
		Hourly struct {
			Time        []string  `json:"time"`
			Temperature []float64 `json:"temperature_2m"`
			Humidity    []int     `json:"relative_humidity_2m"`
			Pressure    []float64 `json:"surface_pressure"`
			WeatherCode []int     `json:"weather_code"`
			IsDay       []int     `json:"is_day"`
		} `json:"hourly"`
	}

	values := p.values(lat, lon, prefs)
	values.Set("hourly", "temperature_2m,relative_humidity_2m,surface_pressure,weather_code,is_day")
	values.Set("forecast_days", fmt.Sprint(openMeteoForecastDays))
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint(values), &payload); err != nil {
		return nil, gatewayError(p.name, "forecast", err)
	}

	h := payload.Hourly
	n := len(h.Time)
	if len(h.Temperature) != n || len(h.Humidity) != n || len(h.Pressure) != n || len(h.WeatherCode) != n || len(h.IsDay) != n {
		return nil, gatewayError(p.name, "forecast", errors.New("hourly series have different lengths"))
	}

	forecast := make(weather.Forecast, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.ParseInLocation(openMeteoTimeLayout, h.Time[i], time.UTC)
		if err != nil {
			return nil, gatewayError(p.name, "forecast", fmt.Errorf("parse time %q: %w", h.Time[i], err))
		}
		temp := fromCelsius(prefs.Units, h.Temperature[i])
		desc, icon := mapOpenMeteoCode(h.WeatherCode[i], h.IsDay[i] == 1)
		forecast = append(forecast, weather.ForecastEntry{
			Timestamp:   ts,
			MinTemp:     temp,
			MaxTemp:     temp,
			Pressure:    h.Pressure[i],
			Humidity:    h.Humidity[i],
			Description: desc,
			IconID:      icon,
		})
	}
	return forecast, nil
}

// SearchByName geocodes query to a single place. The geocoder client does
// not take a context, so a cancelled ctx abandons the call rather than
// stopping it.
func (p *OpenMeteoProvider) SearchByName(ctx context.Context, query string, limit int) ([]location.Identity, error) {
	type result struct {
		loc location.Identity
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := p.geocode(query)
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, gatewayError(p.name, "search", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, gatewayError(p.name, "search", r.err)
		}
		if limit <= 0 {
			return nil, nil
		}
		return []location.Identity{r.loc}, nil
	}
}

func (p *OpenMeteoProvider) values(lat, lon float64, prefs weather.Preferences) url.Values {
	values := url.Values{}
	values.Set("latitude", formatCoord(lat))
	values.Set("longitude", formatCoord(lon))
	values.Set("timezone", "GMT")
	if unitsOrDefault(prefs.Units) == weather.UnitsImperial {
		values.Set("wind_speed_unit", "mph")
	} else {
		values.Set("wind_speed_unit", "ms")
	}
	return values
}

func (p *OpenMeteoProvider) endpoint(values url.Values) string {
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

func fromCelsius(units weather.Units, c float64) float64 {
	return celsiusTo(unitsOrDefault(units), c, c*9/5+32)
}

// mapOpenMeteoCode turns a WMO weather code into a description and an
// OpenWeather-style icon id.
func mapOpenMeteoCode(code int, day bool) (string, string) {
	var desc, family string
	switch {
	case code == 0:
		desc, family = "clear sky", "01"
	case code == 1:
		desc, family = "mainly clear", "02"
	case code == 2:
		desc, family = "partly cloudy", "03"
	case code == 3:
		desc, family = "overcast", "04"
	case code == 45 || code == 48:
		desc, family = "fog", "50"
	case code >= 51 && code <= 57:
		desc, family = "drizzle", "09"
	case code >= 61 && code <= 67:
		desc, family = "rain", "10"
	case code >= 71 && code <= 77:
		desc, family = "snow", "13"
	case code >= 80 && code <= 82:
		desc, family = "rain showers", "09"
	case code == 85 || code == 86:
		desc, family = "snow showers", "13"
	case code >= 95:
		desc, family = "thunderstorm", "11"
	default:
		return "", ""
	}
	return desc, family + dayNightSuffix(day)
}

func googleGeocode(apiKey string) func(string) (location.Identity, error) {
	return func(query string) (location.Identity, error) {
		if apiKey == "" {
			return location.Identity{}, errMissingAPIKey
		}

		geocoderMu.Lock()
		defer geocoderMu.Unlock()
		geocoder.ApiKey = apiKey

		point, err := geocoder.Geocoding(geocoder.Address{City: query})
		if err != nil {
			return location.Identity{}, err
		}
		if point.Latitude == 0 && point.Longitude == 0 {
			return location.Identity{}, errNoGeocodeResult
		}

		name, state, country := query, "", ""
		if addresses, err := geocoder.GeocodingReverse(point); err == nil && len(addresses) > 0 {
			a := addresses[0]
			name = common.FirstNonEmpty(a.City, a.District, query)
			state = a.State
			country = a.Country
		}
		return location.New(name, state, country, point.Latitude, point.Longitude), nil
	}
}
