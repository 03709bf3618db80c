package weather

import (
	"fmt"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

const iconURLFormat = "https://openweathermap.org/img/wn/%s@4x.png"

// Coordinates is the point a snapshot was captured for.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Snapshot is the current weather for one location as last fetched. A stored
// snapshot is never modified; a newer fetch replaces it.
type Snapshot struct {
	LocationLabel    string      `json:"locationLabel"`
	Coordinates      Coordinates `json:"coordinates"`
	Temperature      float64     `json:"temperature"`
	Pressure         float64     `json:"pressure"`
	Humidity         int         `json:"humidity"`
	WindSpeed        float64     `json:"windSpeed"`
	WindDirection    int         `json:"windDirection"`
	VisibilityMeters int         `json:"visibilityMeters"`
	Description      string      `json:"conditionDescription"`
	IconID           string      `json:"conditionIconId"`
}

// Condition maps the OpenWeather-style icon id to a normalized condition.
func (s Snapshot) Condition() Condition {
	return conditionFromIcon(s.IconID)
}

// IconURL returns the image URL for the snapshot's icon, or "" without one.
func (s Snapshot) IconURL() string {
	return iconURL(s.IconID)
}

// VisibilityKm is the visibility in kilometres, as the extra-information view shows it.
func (s Snapshot) VisibilityKm() float64 {
	return float64(s.VisibilityMeters) / 1000.0
}

// ForecastEntry is one step of a multi-day forecast.
type ForecastEntry struct {
	Timestamp   time.Time `json:"timestamp"` // always UTC
	MinTemp     float64   `json:"minTemp"`
	MaxTemp     float64   `json:"maxTemp"`
	Pressure    float64   `json:"pressure"`
	Humidity    int       `json:"humidity"`
	Description string    `json:"conditionDescription"`
	IconID      string    `json:"conditionIconId"`
}

// Forecast entries are expected to be ordered by Timestamp ascending.
type Forecast []ForecastEntry

// DailySummary collapses a day's forecast entries into one row.
type DailySummary struct {
	Date        string    `json:"date"` // YYYY-MM-DD, UTC
	MinTemp     float64   `json:"minTemp"`
	MaxTemp     float64   `json:"maxTemp"`
	Description string    `json:"conditionDescription"`
	IconID      string    `json:"conditionIconId"`
	Condition   Condition `json:"condition"`
}

// Units selects the measurement system passed to gateways.
type Units string

const (
	UnitsStandard Units = "standard"
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// Preferences are the per-request options a gateway honours.
type Preferences struct {
	Units    Units
	Language string
}

func iconURL(id string) string {
	if id == "" {
		return ""
	}
	return fmt.Sprintf(iconURLFormat, id)
}

// conditionFromIcon uses the OpenWeather icon families (01d, 10n, ...).
func conditionFromIcon(id string) Condition {
	if len(id) < 2 {
		return ConditionUnknown
	}
	switch id[:2] {
	case "01":
		return ConditionClear
	case "02", "03", "04":
		return ConditionCloudy
	case "09", "10":
		return ConditionRain
	case "11":
		return ConditionStorm
	case "13":
		return ConditionSnow
	case "50":
		return ConditionMist
	default:
		return ConditionUnknown
	}
}
