package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-offline-sync/internal/location"
)

type locationResponse struct {
	Key      string            `json:"key"`
	Label    string            `json:"label"`
	Location location.Identity `json:"location"`
	Valid    bool              `json:"valid"`
}

func newLocationResponse(loc location.Identity) locationResponse {
	return locationResponse{
		Key:      loc.Key(),
		Label:    loc.Label(),
		Location: loc,
		Valid:    loc.Valid(),
	}
}

type searchQuery struct {
	Query string `validate:"required,max=100"`
	Limit int    `validate:"omitempty,min=1,max=10"`
}

// search looks up places by name. A single match becomes the active location.
func (h handlers) search(c *fiber.Ctx) error {
	q := searchQuery{Query: c.Query("q")}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
		}
		q.Limit = limit
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	results, err := h.Weather.Search(c.UserContext(), q.Query, q.Limit)
	if err != nil {
		return mapError(err)
	}

	out := make([]locationResponse, 0, len(results))
	for _, r := range results {
		out = append(out, newLocationResponse(r))
	}

	selected := false
	if len(results) == 1 {
		if err := h.Store.SetActiveLocation(results[0].Key()); err != nil {
			return mapError(err)
		}
		selected = true
	}

	return c.JSON(fiber.Map{
		"results":  out,
		"selected": selected,
	})
}

func (h handlers) activeLocation(c *fiber.Ctx) error {
	loc := h.Weather.Active()
	if loc == (location.Identity{}) {
		return fiber.NewError(fiber.StatusNotFound, "no city selected")
	}
	return c.JSON(newLocationResponse(loc))
}

func (h handlers) setActiveLocation(c *fiber.Ctx) error {
	loc, err := parseLocationBody(c)
	if err != nil {
		return err
	}
	if err := h.Store.SetActiveLocation(loc.Key()); err != nil {
		return mapError(err)
	}
	return c.JSON(newLocationResponse(loc))
}
