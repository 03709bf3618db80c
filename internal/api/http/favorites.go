package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-offline-sync/internal/favorites"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

type favoriteResponse struct {
	favorites.Entry
	Snapshot *weather.Snapshot `json:"snapshot,omitempty"`
}

// listFavorites returns each favorite with its stored snapshot, if any.
func (h handlers) listFavorites(c *fiber.Ctx) error {
	entries := h.Favorites.List()
	out := make([]favoriteResponse, 0, len(entries))
	for _, e := range entries {
		fr := favoriteResponse{Entry: e}
		if snap, ok := h.Store.Weather(e.Key); ok {
			fr.Snapshot = &snap
		}
		out = append(out, fr)
	}
	return c.JSON(fiber.Map{"favorites": out})
}

// toggleFavorite stores the location's current weather with a new favorite.
// When that weather cannot be obtained the favorite is added without it.
func (h handlers) toggleFavorite(c *fiber.Ctx) error {
	loc, err := parseLocationBody(c)
	if err != nil {
		return err
	}

	var current *weather.Snapshot
	if !h.Favorites.IsFavorite(loc) {
		if cur, err := h.Weather.Resolve(c.UserContext(), loc); err == nil {
			current = cur.Snapshot
		}
	}

	favorite, err := h.Favorites.Toggle(loc, current)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"key":      loc.Key(),
		"favorite": favorite,
	})
}

// resetFavorites clears favorites, their weather and the active location.
func (h handlers) resetFavorites(c *fiber.Ctx) error {
	if err := h.Store.ClearAll(); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
