// Package favorites keeps the set of locations the user follows together with
// the snapshot that was current when each one was added.
package favorites

import (
	"log"
	"sync"

	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

// Store is the persistence the registry needs.
type Store interface {
	Favorites() []string
	Favorite(key string, snapshot *weather.Snapshot) error
	Unfavorite(key string) error
}

// Entry is a favorite ready for display.
type Entry struct {
	Key      string            `json:"key"`
	Label    string            `json:"label"`
	Location location.Identity `json:"location"`
}

type Registry struct {
	mu     sync.Mutex
	store  Store
	logger *log.Logger
}

func NewRegistry(store Store, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{store: store, logger: logger}
}

// Toggle adds loc to the favorites (storing current as its weather entry) or,
// when it already is one, removes it together with its weather entry. It
// reports whether loc is a favorite afterwards.
//
// A nil current still adds the favorite; it then has no stored weather until
// the next successful fetch.
func (r *Registry) Toggle(loc location.Identity, current *weather.Snapshot) (bool, error) {
	key := loc.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isFavorite(key) {
		if err := r.store.Unfavorite(key); err != nil {
			return true, err
		}
		r.logger.Printf("INFO: removed favorite %s", key)
		return false, nil
	}

	if current == nil {
		r.logger.Printf("INFO: adding favorite %s without weather data", key)
	}
	if err := r.store.Favorite(key, current); err != nil {
		return false, err
	}
	r.logger.Printf("INFO: added favorite %s", key)
	return true, nil
}

// IsFavorite compares encoded keys exactly.
func (r *Registry) IsFavorite(loc location.Identity) bool {
	return r.isFavorite(loc.Key())
}

func (r *Registry) isFavorite(key string) bool {
	for _, f := range r.store.Favorites() {
		if f == key {
			return true
		}
	}
	return false
}

// List decodes the favorites in the order they were added.
func (r *Registry) List() []Entry {
	keys := r.store.Favorites()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		loc := location.Decode(k)
		entries = append(entries, Entry{Key: k, Label: loc.Label(), Location: loc})
	}
	return entries
}
