package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-offline-sync/internal/api/http"
	"github.com/i474232898/weather-offline-sync/internal/config"
	"github.com/i474232898/weather-offline-sync/internal/events"
	"github.com/i474232898/weather-offline-sync/internal/favorites"
	"github.com/i474232898/weather-offline-sync/internal/scheduler"
	"github.com/i474232898/weather-offline-sync/internal/store"
	"github.com/i474232898/weather-offline-sync/internal/store/kv"
	"github.com/i474232898/weather-offline-sync/internal/weather"
	"github.com/i474232898/weather-offline-sync/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	appLog := log.Default()

	// Shared HTTP client for outbound gateway calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	st := store.New(opener(cfg), appLog,
		store.WithDefaultUnits(cfg.DefaultUnits),
		store.WithDefaultLanguage(cfg.DefaultLanguage),
	)
	defer st.Close()

	gateway := buildGateway(cfg, httpClient, appLog)
	coord := weather.NewCoordinator(gateway, st, st, appLog)
	registry := favorites.NewRegistry(st, appLog)

	hub := events.NewHub(cfg.EventsPort, appLog)
	var notifier scheduler.Notifier
	if hub != nil {
		notifier = hub
	}
	hub.Start()

	sched := scheduler.New(coord, scheduler.Options{
		Interval:    cfg.RefreshInterval,
		CallTimeout: cfg.RefreshTimeout,
		Notifier:    notifier,
		Logger:      appLog,
	})
	// The service starts in the foreground.
	sched.Start()
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-offline-sync",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-offline-sync",
			"gateway": gateway.Name(),
			"refresh": sched.State().String(),
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Weather:   coord,
		Favorites: registry,
		Store:     st,
		Lifecycle: sched,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s (gateway %s, store %s)", cfg.Port, gateway.Name(), cfg.StoreBackend)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	if err := hub.Stop(shutdownCtx); err != nil {
		log.Printf("error stopping events hub: %v", err)
	}
}

func opener(cfg *config.AppConfig) store.Opener {
	return func() (kv.Substrate, error) {
		switch cfg.StoreBackend {
		case "memory":
			return kv.NewMemory(), nil
		case "postgres":
			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
			defer cancel()
			return kv.OpenPostgres(ctx, cfg.DatabaseURL, cfg.HTTPTimeout)
		case "file":
			return kv.OpenFile(cfg.StatePath)
		default:
			return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
		}
	}
}

// buildGateway puts the selected gateway first; "chain" falls back through
// every gateway that can run with the configured keys.
func buildGateway(cfg *config.AppConfig, client *http.Client, logger *log.Logger) weather.Gateway {
	openWeather := providers.NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey)
	weatherAPI := providers.NewWeatherAPIProvider(client, cfg.WeatherAPIKey)
	openMeteo := providers.NewOpenMeteoProvider(client, cfg.GeocoderAPIKey)

	switch cfg.Gateway {
	case "weatherapi":
		return weatherAPI
	case "openmeteo":
		return openMeteo
	case "chain":
		var chain []weather.Gateway
		if cfg.OpenWeatherAPIKey != "" {
			chain = append(chain, openWeather)
		}
		if cfg.WeatherAPIKey != "" {
			chain = append(chain, weatherAPI)
		}
		chain = append(chain, openMeteo)
		return providers.NewChain(logger, chain...)
	default:
		return openWeather
	}
}
