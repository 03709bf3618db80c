// Package location defines the identity of a tracked place and its durable
// string key.
//
// The key is a fixed-order, pipe-delimited string:
//
//	name|state|country|lat|lon
//
// Two places share a cache entry only when their keys are byte-equal. No case
// or numeric normalisation happens here; callers normalise before encoding.
package location

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	separator  = "|"
	fieldCount = 5
)

// Identity is a geographic point plus the display metadata it was found with.
// Lat and Lon are nil when absent.
type Identity struct {
	Name    string   `json:"name"`
	State   string   `json:"state,omitempty"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// New builds an Identity with both coordinates set.
func New(name, state, country string, lat, lon float64) Identity {
	return Identity{
		Name:    name,
		State:   state,
		Country: country,
		Lat:     &lat,
		Lon:     &lon,
	}
}

// Encode returns the durable key for loc. It never fails.
func Encode(loc Identity) string {
	fields := [fieldCount]string{
		loc.Name,
		loc.State,
		loc.Country,
		formatCoord(loc.Lat),
		formatCoord(loc.Lon),
	}
	return strings.Join(fields[:], separator)
}

// Key is shorthand for Encode(l).
func (l Identity) Key() string {
	return Encode(l)
}

// Decode parses a key produced by Encode. Missing trailing fields decode as
// empty strings or nil coordinates, and so do coordinates that are not
// numbers. Decode never fails; use Coordinates before fetching.
func Decode(s string) Identity {
	if s == "" {
		return Identity{}
	}
	parts := strings.Split(s, separator)
	field := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}
	return Identity{
		Name:    field(0),
		State:   field(1),
		Country: field(2),
		Lat:     parseCoord(field(3)),
		Lon:     parseCoord(field(4)),
	}
}

// CoordinatesOf decodes s and reports its coordinates. ok is false when
// either one is missing or not numeric.
func CoordinatesOf(s string) (lat, lon float64, ok bool) {
	return Decode(s).Coordinates()
}

// Coordinates reports the latitude and longitude of l.
func (l Identity) Coordinates() (lat, lon float64, ok bool) {
	if l.Lat == nil || l.Lon == nil {
		return 0, 0, false
	}
	return *l.Lat, *l.Lon, true
}

// Valid reports whether l can be used for a network fetch.
func (l Identity) Valid() bool {
	_, _, ok := l.Coordinates()
	return ok
}

// Label renders l the way the favorites list shows it, e.g.
// "Warsaw, Masovian Voivodeship, PL [52.2297, 21.0122]".
func (l Identity) Label() string {
	var b strings.Builder
	b.WriteString(l.Name)
	if strings.TrimSpace(l.State) != "" {
		b.WriteString(", ")
		b.WriteString(l.State)
	}
	b.WriteString(", ")
	b.WriteString(l.Country)
	fmt.Fprintf(&b, " [%s, %s]", formatCoord(l.Lat), formatCoord(l.Lon))
	return b.String()
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
