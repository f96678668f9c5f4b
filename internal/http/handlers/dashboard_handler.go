package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/youth-governance-backend/internal/http/handlers/common"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

// DashboardHandler serves the aggregated dashboards.
type DashboardHandler struct {
	dashboards *service.DashboardService
}

func NewDashboardHandler(dashboards *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// AdminSummary handles GET /admin/dashboard.
func (h *DashboardHandler) AdminSummary(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	summary, err := h.dashboards.AdminSummary(c.Request.Context(), actor)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// MySummary handles GET /me/dashboard.
func (h *DashboardHandler) MySummary(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	summary, err := h.dashboards.MySummary(c.Request.Context(), actor)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
