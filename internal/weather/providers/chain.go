package providers

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

// Chain is a weather.Gateway that tries its gateways in order and returns
// the first success.
type Chain struct {
	gateways []weather.Gateway
	logger   *log.Logger
}

func NewChain(logger *log.Logger, gateways ...weather.Gateway) *Chain {
	if logger == nil {
		logger = log.Default()
	}
	return &Chain{gateways: gateways, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.gateways))
	for _, g := range c.gateways {
		names = append(names, g.Name())
	}
	return strings.Join(names, "+")
}

func (c *Chain) FetchCurrent(ctx context.Context, lat, lon float64, prefs weather.Preferences) (weather.Snapshot, error) {
	return firstSuccess(ctx, c, "current weather", func(g weather.Gateway) (weather.Snapshot, error) {
		return g.FetchCurrent(ctx, lat, lon, prefs)
	})
}

func (c *Chain) FetchForecast(ctx context.Context, lat, lon float64, prefs weather.Preferences) (weather.Forecast, error) {
	return firstSuccess(ctx, c, "forecast", func(g weather.Gateway) (weather.Forecast, error) {
		return g.FetchForecast(ctx, lat, lon, prefs)
	})
}

func (c *Chain) SearchByName(ctx context.Context, query string, limit int) ([]location.Identity, error) {
	return firstSuccess(ctx, c, "search", func(g weather.Gateway) ([]location.Identity, error) {
		return g.SearchByName(ctx, query, limit)
	})
}

func firstSuccess[T any](ctx context.Context, c *Chain, op string, call func(weather.Gateway) (T, error)) (T, error) {
	var zero T
	if len(c.gateways) == 0 {
		return zero, gatewayError("chain", op, errors.New("no gateways configured"))
	}

	var errs []error
	for _, g := range c.gateways {
		if err := ctx.Err(); err != nil {
			errs = append(errs, gatewayError(g.Name(), op, err))
			break
		}
		v, err := call(g)
		if err == nil {
			return v, nil
		}
		c.logger.Printf("DEBUG: %s %s failed, trying next gateway: %v", g.Name(), op, err)
		errs = append(errs, err)
	}
	return zero, errors.Join(errs...)
}
