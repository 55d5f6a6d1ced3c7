package analytics

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinsight/clinsight/internal/platform/auth"
)

// Dashboarder computes a dashboard report.
type Dashboarder interface {
	Dashboard(ctx context.Context, scope Scope, filters Filters) (*Report, error)
}

// Handler exposes the dashboard query surface.
type Handler struct {
	svc Dashboarder
	log zerolog.Logger
}

func NewHandler(svc Dashboarder, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/analytics/dashboard", h.Dashboard)
}

func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	scope, err := scopeFromContext(ctx)
	if err != nil {
		return err
	}

	filters, err := ParseFilters(
		c.QueryParam("start_date"),
		c.QueryParam("end_date"),
		c.QueryParam("specialty"),
		c.QueryParam("doctor"),
		c.QueryParam("sexo_medico"),
	)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := h.svc.Dashboard(ctx, scope, filters)
	if err != nil {
		h.log.Error().Err(err).Msg("dashboard query failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "dashboard query failed")
	}

	return c.JSON(http.StatusOK, report)
}

// scopeFromContext maps the caller's claims to a tenant scope. Superadmins
// see all tenants; everyone else is confined to their own, and a caller
// with no tenant at all is rejected.
func scopeFromContext(ctx context.Context) (Scope, error) {
	if auth.HasRole(ctx, auth.RoleSuperAdmin) {
		return Scope{AllTenants: true}, nil
	}
	tenantID := auth.TenantFromContext(ctx)
	if tenantID == 0 {
		return Scope{}, echo.NewHTTPError(http.StatusForbidden, "no tenant assigned")
	}
	return Scope{TenantID: tenantID}, nil
}
