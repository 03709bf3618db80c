package favorites

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/store"
	"github.com/i474232898/weather-offline-sync/internal/store/kv"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	mem := kv.NewMemory()
	st := store.New(func() (kv.Substrate, error) { return mem, nil }, log.New(io.Discard, "", 0))
	return NewRegistry(st, log.New(io.Discard, "", 0)), st
}

func TestToggleRoundTrip(t *testing.T) {
	reg, st := newTestRegistry(t)
	loc := location.New("Kraków", "Lesser Poland", "PL", 50.06, 19.94)
	snap := &weather.Snapshot{LocationLabel: "Kraków", Temperature: 14}

	on, err := reg.Toggle(loc, snap)
	if err != nil || !on {
		t.Fatalf("expected favorite added, got %v, %v", on, err)
	}
	if !reg.IsFavorite(loc) {
		t.Fatalf("expected IsFavorite after toggle on")
	}
	if got, ok := st.Weather(loc.Key()); !ok || got.Temperature != 14 {
		t.Fatalf("expected snapshot stored with favorite, got %+v ok=%v", got, ok)
	}

	off, err := reg.Toggle(loc, snap)
	if err != nil || off {
		t.Fatalf("expected favorite removed, got %v, %v", off, err)
	}
	if reg.IsFavorite(loc) {
		t.Fatalf("expected not favorite after second toggle")
	}
	if _, ok := st.Weather(loc.Key()); ok {
		t.Fatalf("expected weather removed with favorite")
	}
}

func TestToggleWithoutSnapshot(t *testing.T) {
	reg, st := newTestRegistry(t)
	loc := location.New("Nowhere", "", "XX", 1, 2)

	on, err := reg.Toggle(loc, nil)
	if err != nil || !on {
		t.Fatalf("expected favorite added without snapshot, got %v, %v", on, err)
	}
	if _, ok := st.Weather(loc.Key()); ok {
		t.Fatalf("expected no weather entry")
	}
}

func TestIsFavoriteMatchesExactKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	loc := location.New("Warsaw", "", "PL", 52.2, 21)
	if _, err := reg.Toggle(loc, nil); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	if reg.IsFavorite(location.New("warsaw", "", "PL", 52.2, 21)) {
		t.Fatalf("keys differing in case must not match")
	}
	if reg.IsFavorite(location.New("Warsaw", "", "PL", 52.2, 21.0001)) {
		t.Fatalf("keys differing in coordinates must not match")
	}
}

func TestListOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	locs := []location.Identity{
		location.New("Oslo", "", "NO", 59.91, 10.75),
		location.New("Lima", "", "PE", -12.05, -77.04),
	}
	for _, l := range locs {
		if _, err := reg.Toggle(l, nil); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}

	got := reg.List()
	if len(got) != 2 || got[0].Location.Name != "Oslo" || got[1].Location.Name != "Lima" {
		t.Fatalf("unexpected list %+v", got)
	}
	if got[1].Label != "Lima, PE [-12.05, -77.04]" {
		t.Fatalf("unexpected label %q", got[1].Label)
	}
}

func TestToggleRejectsCommaKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Toggle(location.New("Washington, D.C.", "", "US", 38.9, -77), nil)
	if !errors.Is(err, store.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestTogglePaddedNameIsRejected(t *testing.T) {
	reg, st := newTestRegistry(t)
	loc := location.New(" Paris", "", "FR", 48.85, 2.35)
	snap := &weather.Snapshot{LocationLabel: "Paris", Temperature: 12}

	for i := 0; i < 2; i++ {
		on, err := reg.Toggle(loc, snap)
		if !errors.Is(err, store.ErrInvalidKey) || on {
			t.Fatalf("toggle %d: expected ErrInvalidKey, got %v, %v", i+1, on, err)
		}
	}
	if favs := st.Favorites(); len(favs) != 0 {
		t.Fatalf("expected no favorites, got %v", favs)
	}
	if _, ok := st.Weather(loc.Key()); ok {
		t.Fatalf("expected no orphaned weather entry")
	}
}
