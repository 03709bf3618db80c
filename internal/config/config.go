package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-offline-sync/internal/store/kv"
)

var validate = validator.New()

type AppConfig struct {
	// Gateway selects the weather source: openweather, weatherapi, openmeteo
	// or chain (all configured sources in that order).
	Gateway           string `validate:"oneof=openweather weatherapi openmeteo chain"`
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	HTTPTimeout time.Duration `validate:"gt=0"`

	// Background refresh.
	RefreshInterval time.Duration `validate:"gt=0"`
	RefreshTimeout  time.Duration `validate:"gt=0"`

	StoreBackend string `validate:"oneof=file postgres memory"`
	StatePath    string
	DatabaseURL  string `validate:"required_if=StoreBackend postgres"`

	DefaultUnits    string `validate:"oneof=standard metric imperial"`
	DefaultLanguage string `validate:"required,max=8"`

	Port       string `validate:"required,numeric"`
	EventsPort int    `validate:"gte=0,lte=65535"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Gateway = strings.ToLower(getenvDefault("GATEWAY", "openweather"))
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.RefreshTimeout, err = getenvDuration("REFRESH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", "file"))
	cfg.StatePath = getenvDefault("STATE_PATH", kv.DefaultFilePath)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.DefaultUnits = getenvDefault("DEFAULT_UNITS", "metric")
	cfg.DefaultLanguage = getenvDefault("DEFAULT_LANGUAGE", "en")

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.EventsPort = getenvInt("EVENTS_PORT", 0)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
