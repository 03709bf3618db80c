package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

type settingsBody struct {
	Units    string `json:"units" validate:"omitempty,oneof=standard metric imperial"`
	Language string `json:"language" validate:"omitempty,max=8"`
}

func (h handlers) settings(c *fiber.Ctx) error {
	return c.JSON(settingsBody{
		Units:    h.Store.Units(),
		Language: h.Store.Language(),
	})
}

func (h handlers) updateSettings(c *fiber.Ctx) error {
	var body settingsBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if body.Units != "" {
		if err := h.Store.SetUnits(body.Units); err != nil {
			return mapError(err)
		}
	}
	if body.Language != "" {
		if err := h.Store.SetLanguage(body.Language); err != nil {
			return mapError(err)
		}
	}
	return h.settings(c)
}

func (h handlers) lifecycle(c *fiber.Ctx) error {
	st := h.Weather.Status()
	resp := fiber.Map{
		"state":               h.Lifecycle.State().String(),
		"offline":             st.IsOffline(),
		"servedFromCache":     st.ServedFromCache,
		"consecutiveFailures": st.ConsecutiveFailures,
	}
	if !st.LastSuccess.IsZero() {
		resp["lastSuccess"] = st.LastSuccess
	}
	if st.LastError != nil {
		resp["lastError"] = st.LastError.Error()
	}
	return c.JSON(resp)
}

// foreground starts background refresh; the app is visible again.
func (h handlers) foreground(c *fiber.Ctx) error {
	h.Lifecycle.Start()
	return h.lifecycle(c)
}

func (h handlers) background(c *fiber.Ctx) error {
	h.Lifecycle.Stop()
	return h.lifecycle(c)
}
