package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

// OpenWeatherProvider implements weather.Gateway for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmCondition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, lat, lon float64, prefs weather.Preferences) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, gatewayError(p.name, "current weather", errMissingAPIKey)
	}

	var payload struct {
		Name  string `json:"name"`
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Main struct {
			Temp     float64 `json:"temp"`
			Pressure float64 `json:"pressure"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
			Deg   int     `json:"deg"`
		} `json:"wind"`
		Visibility int            `json:"visibility"`
		Weather    []owmCondition `json:"weather"`
	}

	u := p.endpoint("/data/2.5/weather", p.coordValues(lat, lon, prefs))
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return weather.Snapshot{}, gatewayError(p.name, "current weather", err)
	}

	cond := firstCondition(payload.Weather)
	return weather.Snapshot{
		LocationLabel:    payload.Name,
		Coordinates:      weather.Coordinates{Lat: lat, Lon: lon},
		Temperature:      payload.Main.Temp,
		Pressure:         payload.Main.Pressure,
		Humidity:         payload.Main.Humidity,
		WindSpeed:        payload.Wind.Speed,
		WindDirection:    payload.Wind.Deg,
		VisibilityMeters: payload.Visibility,
		Description:      cond.Description,
		IconID:           cond.Icon,
	}, nil
}

func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, lat, lon float64, prefs weather.Preferences) (weather.Forecast, error) {
	if p.apiKey == "" {
		return nil, gatewayError(p.name, "forecast", errMissingAPIKey)
	}

	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				TempMin  float64 `json:"temp_min"`
				TempMax  float64 `json:"temp_max"`
				Pressure float64 `json:"pressure"`
				Humidity int     `json:"humidity"`
			} `json:"main"`
			Weather []owmCondition `json:"weather"`
		} `json:"list"`
	}

	u := p.endpoint("/data/2.5/forecast", p.coordValues(lat, lon, prefs))
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, gatewayError(p.name, "forecast", err)
	}

	forecast := make(weather.Forecast, 0, len(payload.List))
	for _, item := range payload.List {
		cond := firstCondition(item.Weather)
		forecast = append(forecast, weather.ForecastEntry{
			Timestamp:   time.Unix(item.Dt, 0).UTC(),
			MinTemp:     item.Main.TempMin,
			MaxTemp:     item.Main.TempMax,
			Pressure:    item.Main.Pressure,
			Humidity:    item.Main.Humidity,
			Description: cond.Description,
			IconID:      cond.Icon,
		})
	}
	return forecast, nil
}

func (p *OpenWeatherProvider) SearchByName(ctx context.Context, query string, limit int) ([]location.Identity, error) {
	if p.apiKey == "" {
		return nil, gatewayError(p.name, "search", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("limit", strconv.Itoa(limit))
	values.Set("appid", p.apiKey)

	var payload []struct {
		Name    string  `json:"name"`
		State   string  `json:"state"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("/geo/1.0/direct", values), &payload); err != nil {
		return nil, gatewayError(p.name, "search", err)
	}

	results := make([]location.Identity, 0, len(payload))
	for _, r := range payload {
		results = append(results, location.New(r.Name, r.State, r.Country, r.Lat, r.Lon))
	}
	return results, nil
}

func (p *OpenWeatherProvider) coordValues(lat, lon float64, prefs weather.Preferences) url.Values {
	values := url.Values{}
	values.Set("lat", formatCoord(lat))
	values.Set("lon", formatCoord(lon))
	values.Set("appid", p.apiKey)
	values.Set("units", string(unitsOrDefault(prefs.Units)))
	if prefs.Language != "" {
		values.Set("lang", prefs.Language)
	}
	return values
}

func (p *OpenWeatherProvider) endpoint(path string, values url.Values) string {
	return fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
}

func firstCondition(items []owmCondition) owmCondition {
	if len(items) == 0 {
		return owmCondition{}
	}
	return items[0]
}
