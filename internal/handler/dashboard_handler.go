package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coordoffice/cdms-api/internal/service"
	"github.com/coordoffice/cdms-api/pkg/response"
)

// DashboardHandler serves the office landing counts.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs a new DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Counts godoc
// @Summary Dashboard counts
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Counts(c *gin.Context) {
	counts, err := h.dashboard.Counts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}
