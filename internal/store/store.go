// Package store persists user preferences, the active location, favorites
// and the last weather snapshot per favorite on top of a kv.Substrate.
//
// Reads never fail: a missing, unreadable or malformed entry yields the
// default (or a miss for weather). Writes report ErrUnavailable when the
// substrate cannot be opened or written.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-offline-sync/internal/store/kv"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

const (
	keyUnits          = "units"
	keyLanguage       = "language"
	keyActiveLocation = "activeLocation"
	keyFavorites      = "favorites"
	weatherKeyPrefix  = "weather_"

	favoritesSeparator = ","
)

const (
	DefaultUnits    = string(weather.UnitsMetric)
	DefaultLanguage = "en"
)

var (
	// ErrUnavailable is returned by writes when the substrate cannot be used.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvalidKey is returned for location keys that cannot be stored in the
	// favorites list: empty, padded with whitespace or containing a comma.
	ErrInvalidKey = errors.New("invalid location key")
	// ErrInvalidPreference is returned for units or language values that fail validation.
	ErrInvalidPreference = errors.New("invalid preference")
)

var validate = validator.New()

// Opener creates the substrate on first use.
type Opener func() (kv.Substrate, error)

// Option configures a Store.
type Option func(*Store)

// WithDefaultUnits overrides the units returned when none are stored.
func WithDefaultUnits(units string) Option {
	return func(s *Store) {
		if validate.Var(units, "oneof=standard metric imperial") == nil {
			s.defaultUnits = units
		}
	}
}

// WithDefaultLanguage overrides the language returned when none is stored.
func WithDefaultLanguage(language string) Option {
	return func(s *Store) {
		if validate.Var(language, "required,max=8") == nil {
			s.defaultLanguage = language
		}
	}
}

// Store is safe for concurrent use.
type Store struct {
	open    Opener
	once    sync.Once
	sub     kv.Substrate
	openErr error
	opened  bool

	// favMu serialises read-modify-write cycles on the favorites list.
	favMu sync.Mutex

	logger          *log.Logger
	defaultUnits    string
	defaultLanguage string
}

// New creates a Store. The substrate is opened lazily; a nil logger uses log.Default().
func New(open Opener, logger *log.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{
		open:            open,
		logger:          logger,
		defaultUnits:    DefaultUnits,
		defaultLanguage: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) substrate() (kv.Substrate, error) {
	s.once.Do(func() {
		s.opened = true
		s.sub, s.openErr = s.open()
		if s.openErr != nil {
			s.logger.Printf("ERROR: opening store: %v", s.openErr)
		}
	})
	return s.sub, s.openErr
}

// Close releases the substrate if it was opened. A store that was never used
// is not opened just to be closed.
func (s *Store) Close() error {
	s.once.Do(func() { s.openErr = kv.ErrClosed })
	if !s.opened || s.openErr != nil {
		return nil
	}
	return s.sub.Close()
}

func (s *Store) get(key string) (string, bool) {
	sub, err := s.substrate()
	if err != nil {
		return "", false
	}
	v, ok, err := sub.Get(key)
	if err != nil {
		s.logger.Printf("ERROR: reading %q: %v", key, err)
		return "", false
	}
	return v, ok
}

func (s *Store) apply(ops ...kv.Op) error {
	sub, err := s.substrate()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := sub.Apply(ops...); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Units returns the stored unit system or the default.
func (s *Store) Units() string {
	if v, ok := s.get(keyUnits); ok && v != "" {
		return v
	}
	return s.defaultUnits
}

// SetUnits stores one of standard, metric or imperial.
func (s *Store) SetUnits(units string) error {
	if err := validate.Var(units, "oneof=standard metric imperial"); err != nil {
		return fmt.Errorf("%w: units %q", ErrInvalidPreference, units)
	}
	return s.apply(kv.Put(keyUnits, units))
}

// Language returns the stored language code or the default.
func (s *Store) Language() string {
	if v, ok := s.get(keyLanguage); ok && v != "" {
		return v
	}
	return s.defaultLanguage
}

func (s *Store) SetLanguage(language string) error {
	if err := validate.Var(language, "required,max=8"); err != nil {
		return fmt.Errorf("%w: language %q", ErrInvalidPreference, language)
	}
	return s.apply(kv.Put(keyLanguage, language))
}

// ActiveLocation returns the encoded active location, or "" when none is set.
func (s *Store) ActiveLocation() string {
	v, _ := s.get(keyActiveLocation)
	return v
}

// SetActiveLocation stores key as the active location. An empty key clears it.
func (s *Store) SetActiveLocation(key string) error {
	if key == "" {
		return s.apply(kv.Delete(keyActiveLocation))
	}
	return s.apply(kv.Put(keyActiveLocation, key))
}

// Favorites returns the favorite keys in insertion order without duplicates.
func (s *Store) Favorites() []string {
	raw, _ := s.get(keyFavorites)
	return parseFavorites(raw)
}

// SaveFavorites replaces the favorites list.
func (s *Store) SaveFavorites(keys []string) error {
	for _, k := range keys {
		if err := checkKey(k); err != nil {
			return err
		}
	}
	return s.apply(kv.Put(keyFavorites, joinFavorites(keys)))
}

// AddFavorite appends key unless it is already present.
func (s *Store) AddFavorite(key string) error {
	return s.Favorite(key, nil)
}

// RemoveFavorite drops key from the list. Its weather entry is left alone.
func (s *Store) RemoveFavorite(key string) error {
	s.favMu.Lock()
	defer s.favMu.Unlock()

	return s.apply(s.withoutFavorite(key))
}

// Favorite adds key to the favorites and, when snapshot is not nil, stores it
// as the key's weather entry in the same write.
func (s *Store) Favorite(key string, snapshot *weather.Snapshot) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.favMu.Lock()
	defer s.favMu.Unlock()

	favs := s.Favorites()
	ops := make([]kv.Op, 0, 2)
	if !contains(favs, key) {
		ops = append(ops, kv.Put(keyFavorites, joinFavorites(append(favs, key))))
	}
	if snapshot != nil {
		op, err := weatherOp(key, *snapshot)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil
	}
	return s.apply(ops...)
}

// Unfavorite removes key from the favorites and deletes its weather entry in
// one write.
func (s *Store) Unfavorite(key string) error {
	s.favMu.Lock()
	defer s.favMu.Unlock()

	return s.apply(s.withoutFavorite(key), kv.Delete(weatherKey(key)))
}

// withoutFavorite must be called with favMu held.
func (s *Store) withoutFavorite(key string) kv.Op {
	favs := s.Favorites()
	kept := favs[:0]
	for _, f := range favs {
		if f != key {
			kept = append(kept, f)
		}
	}
	return kv.Put(keyFavorites, joinFavorites(kept))
}

// SaveWeather stores snapshot as the latest weather for key.
func (s *Store) SaveWeather(key string, snapshot weather.Snapshot) error {
	op, err := weatherOp(key, snapshot)
	if err != nil {
		return err
	}
	return s.apply(op)
}

// RemoveWeather deletes the weather entry for key. The favorites list is
// left alone.
func (s *Store) RemoveWeather(key string) error {
	return s.apply(kv.Delete(weatherKey(key)))
}

// Weather returns the stored snapshot for key. Missing or malformed entries
// report false.
func (s *Store) Weather(key string) (weather.Snapshot, bool) {
	raw, ok := s.get(weatherKey(key))
	if !ok {
		return weather.Snapshot{}, false
	}
	var snap weather.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Printf("ERROR: decoding weather for %q: %v", key, err)
		return weather.Snapshot{}, false
	}
	return snap, true
}

// ClearAll removes every favorite with its weather entry and the active
// location. Units and language are kept.
func (s *Store) ClearAll() error {
	s.favMu.Lock()
	defer s.favMu.Unlock()

	favs := s.Favorites()
	ops := make([]kv.Op, 0, len(favs)+2)
	for _, f := range favs {
		ops = append(ops, kv.Delete(weatherKey(f)))
	}
	ops = append(ops, kv.Delete(keyFavorites), kv.Delete(keyActiveLocation))
	return s.apply(ops...)
}

func weatherKey(key string) string {
	return weatherKeyPrefix + key
}

func weatherOp(key string, snapshot weather.Snapshot) (kv.Op, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return kv.Op{}, fmt.Errorf("encode weather for %q: %w", key, err)
	}
	return kv.Put(weatherKey(key), string(data)), nil
}

func checkKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" || trimmed != key || strings.Contains(key, favoritesSeparator) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func parseFavorites(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, favoritesSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		k := strings.TrimSpace(p)
		if k == "" || contains(out, k) {
			continue
		}
		out = append(out, k)
	}
	return out
}

func joinFavorites(keys []string) string {
	return strings.Join(parseFavorites(strings.Join(keys, favoritesSeparator)), favoritesSeparator)
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
