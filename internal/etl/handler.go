package etl

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinsight/clinsight/internal/platform/auth"
)

// Runner starts a pipeline run.
type Runner interface {
	Run(ctx context.Context) (*RunSummary, error)
}

// Handler exposes the ETL trigger endpoint.
type Handler struct {
	runner Runner
	log    zerolog.Logger
}

func NewHandler(runner Runner, log zerolog.Logger) *Handler {
	return &Handler{runner: runner, log: log}
}

// Register mounts the ETL routes on the given group. Running a load is
// restricted to admins; superadmins pass the role check implicitly.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/etl/run", h.Run, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Run(c echo.Context) error {
	summary, err := h.runner.Run(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			return echo.NewHTTPError(http.StatusConflict, "an etl run is already in progress")
		}
		h.log.Error().Err(err).Msg("etl run failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "etl run failed")
	}
	return c.JSON(http.StatusOK, summary)
}
