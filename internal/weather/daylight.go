package weather

import (
	"time"

	"github.com/sixdouglas/suncalc"
)

// DaylightTimes holds sunrise and sunset for a location and date. Either may
// be zero near the poles.
type DaylightTimes struct {
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// Daylight computes sunrise and sunset for the day containing t.
func Daylight(lat, lon float64, t time.Time) DaylightTimes {
	times := suncalc.GetTimes(t, lat, lon)
	return DaylightTimes{
		Sunrise: times["sunrise"].Value,
		Sunset:  times["sunset"].Value,
	}
}

// DayLength returns the time between sunrise and sunset, or zero when unknown.
func (d DaylightTimes) DayLength() time.Duration {
	if d.Sunrise.IsZero() || d.Sunset.IsZero() || d.Sunset.Before(d.Sunrise) {
		return 0
	}
	return d.Sunset.Sub(d.Sunrise)
}
