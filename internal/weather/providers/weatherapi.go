package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-offline-sync/internal/common"
	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

const weatherAPIForecastDays = 5

// WeatherAPIProvider implements weather.Gateway for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPICondition struct {
	Text string `json:"text"`
}

func (p *WeatherAPIProvider) FetchCurrent(ctx context.Context, lat, lon float64, prefs weather.Preferences) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, gatewayError(p.name, "current weather", errMissingAPIKey)
	}

	var payload struct {
		Location struct {
			Name    string `json:"name"`
			Country string `json:"country"`
		} `json:"location"`
		Current struct {
			TempC      float64             `json:"temp_c"`
			TempF      float64             `json:"temp_f"`
			PressureMb float64             `json:"pressure_mb"`
			Humidity   int                 `json:"humidity"`
			WindKph    float64             `json:"wind_kph"`
			WindMph    float64             `json:"wind_mph"`
			WindDegree int                 `json:"wind_degree"`
			VisKm      float64             `json:"vis_km"`
			IsDay      int                 `json:"is_day"`
			Condition  weatherAPICondition `json:"condition"`
		} `json:"current"`
	}

	values := p.values(lat, lon, prefs)
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("/current.json", values), &payload); err != nil {
		return weather.Snapshot{}, gatewayError(p.name, "current weather", err)
	}

	units := unitsOrDefault(prefs.Units)
	cur := payload.Current

	// Metric and standard report wind in m/s, imperial in mph.
	wind := cur.WindKph / 3.6
	if units == weather.UnitsImperial {
		wind = cur.WindMph
	}

	return weather.Snapshot{
		LocationLabel:    payload.Location.Name,
		Coordinates:      weather.Coordinates{Lat: lat, Lon: lon},
		Temperature:      celsiusTo(units, cur.TempC, cur.TempF),
		Pressure:         cur.PressureMb,
		Humidity:         cur.Humidity,
		WindSpeed:        wind,
		WindDirection:    cur.WindDegree,
		VisibilityMeters: int(math.Round(cur.VisKm * 1000)),
		Description:      cur.Condition.Text,
		IconID:           weatherAPIIcon(cur.Condition.Text, cur.IsDay == 1),
	}, nil
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, lat, lon float64, prefs weather.Preferences) (weather.Forecast, error) {
	if p.apiKey == "" {
		return nil, gatewayError(p.name, "forecast", errMissingAPIKey)
	}

	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Hour []struct {
					TimeEpoch  int64               `json:"time_epoch"`
					TempC      float64             `json:"temp_c"`
					TempF      float64             `json:"temp_f"`
					PressureMb float64             `json:"pressure_mb"`
					Humidity   int                 `json:"humidity"`
					IsDay      int                 `json:"is_day"`
					Condition  weatherAPICondition `json:"condition"`
				} `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	values := p.values(lat, lon, prefs)
	values.Set("days", fmt.Sprint(weatherAPIForecastDays))
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("/forecast.json", values), &payload); err != nil {
		return nil, gatewayError(p.name, "forecast", err)
	}

	units := unitsOrDefault(prefs.Units)
	var forecast weather.Forecast
	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			temp := celsiusTo(units, h.TempC, h.TempF)
			forecast = append(forecast, weather.ForecastEntry{
				Timestamp:   time.Unix(h.TimeEpoch, 0).UTC(),
				MinTemp:     temp,
				MaxTemp:     temp,
				Pressure:    h.PressureMb,
				Humidity:    h.Humidity,
				Description: h.Condition.Text,
				IconID:      weatherAPIIcon(h.Condition.Text, h.IsDay == 1),
			})
		}
	}
	return forecast, nil
}

func (p *WeatherAPIProvider) SearchByName(ctx context.Context, query string, limit int) ([]location.Identity, error) {
	if p.apiKey == "" {
		return nil, gatewayError(p.name, "search", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", query)

	var payload []struct {
		Name    string  `json:"name"`
		Region  string  `json:"region"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("/search.json", values), &payload); err != nil {
		return nil, gatewayError(p.name, "search", err)
	}

	results := make([]location.Identity, 0, len(payload))
	for _, r := range payload {
		if len(results) >= limit {
			break
		}
		results = append(results, location.New(r.Name, r.Region, r.Country, r.Lat, r.Lon))
	}
	return results, nil
}

func (p *WeatherAPIProvider) values(lat, lon float64, prefs weather.Preferences) url.Values {
	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI takes "lat,lon" in q.
	values.Set("q", formatCoord(lat)+","+formatCoord(lon))
	if prefs.Language != "" {
		values.Set("lang", prefs.Language)
	}
	return values
}

func (p *WeatherAPIProvider) endpoint(path string, values url.Values) string {
	return fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
}

// weatherAPIIcon maps condition text onto the OpenWeather icon families so
// snapshots render the same regardless of gateway.
func weatherAPIIcon(text string, day bool) string {
	var family string
	switch {
	case text == "":
		return ""
	case common.HasAny(text, "thunder", "storm"):
		family = "11"
	case common.HasAny(text, "snow", "sleet", "blizzard", "ice pellets"):
		family = "13"
	case common.HasAny(text, "rain", "shower", "drizzle"):
		family = "10"
	case common.HasAny(text, "mist", "fog", "haze"):
		family = "50"
	case common.HasAny(text, "overcast"):
		family = "04"
	case common.HasAny(text, "partly"):
		family = "02"
	case common.HasAny(text, "cloud"):
		family = "03"
	case common.HasAny(text, "sunny", "clear"):
		family = "01"
	default:
		return ""
	}
	return family + dayNightSuffix(day)
}

func dayNightSuffix(day bool) string {
	if day {
		return "d"
	}
	return "n"
}
