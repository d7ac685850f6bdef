package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/metrics"
)

// TokenHeader carries the shared secret on scheduler callbacks.
const TokenHeader = "X-Scheduler-Token"

// scheduleCallback lets an external scheduler trigger a schedule. Each
// accepted request runs the schedule exactly once.
func (h *Handler) scheduleCallback(c echo.Context) error {
	if h.token == "" {
		h.rejected(metrics.ReasonNoSecret)
		return &domain.Error{Code: domain.CodeServiceUnavailable, Description: "Scheduler callback token is not configured"}
	}

	got := c.Request().Header.Get(TokenHeader)
	if got == "" || !tokenMatches(got, h.token) {
		h.rejected(metrics.ReasonBadToken)
		h.logger.Warn("api: callback rejected", "schedule_id", c.Param("id"), "remote_addr", c.RealIP())
		return &domain.Error{Code: domain.CodeForbidden, Description: "Invalid scheduler token"}
	}

	run, err := h.dispatcher.RunSchedule(c.Request().Context(), c.Param("id"), domain.TriggerCallback)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, run)
}

func (h *Handler) rejected(reason string) {
	if h.metrics != nil {
		h.metrics.CallbackRejected(reason)
	}
}
