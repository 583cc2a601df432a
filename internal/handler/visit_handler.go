package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coordoffice/cdms-api/internal/service"
	appErrors "github.com/coordoffice/cdms-api/pkg/errors"
	"github.com/coordoffice/cdms-api/pkg/response"
)

// VisitHandler wires visit scheduling to HTTP routes.
type VisitHandler struct {
	visits *service.VisitService
}

// NewVisitHandler constructs a new VisitHandler.
func NewVisitHandler(visits *service.VisitService) *VisitHandler {
	return &VisitHandler{visits: visits}
}

// List godoc
// @Summary List visits
// @Tags Visits
// @Produce json
// @Param school_id query string false "Filter by school"
// @Param date_from query string false "Earliest visit date (YYYY-MM-DD)"
// @Param date_to query string false "Latest visit date (YYYY-MM-DD)"
// @Param status query string false "Filter by status (SCHEDULED/COMPLETED)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /visits [get]
func (h *VisitHandler) List(c *gin.Context) {
	query := service.VisitListQuery{
		SchoolID: strings.TrimSpace(c.Query("school_id")),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Status:   c.Query("status"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = size
	}

	visits, pagination, err := h.visits.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visits, pagination)
}

// Get godoc
// @Summary Get visit detail
// @Tags Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} response.Envelope
// @Router /visits/{id} [get]
func (h *VisitHandler) Get(c *gin.Context) {
	visit, err := h.visits.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// Schedule godoc
// @Summary Schedule a visit
// @Tags Visits
// @Accept json
// @Produce json
// @Param payload body service.VisitForm true "Visit payload"
// @Success 201 {object} response.Envelope
// @Router /visits [post]
func (h *VisitHandler) Schedule(c *gin.Context) {
	var form service.VisitForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid visit payload"))
		return
	}
	visit, err := h.visits.Schedule(c.Request.Context(), form)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, visit)
}

type updateVisitStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus godoc
// @Summary Update visit status
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body updateVisitStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /visits/{id}/status [patch]
func (h *VisitHandler) UpdateStatus(c *gin.Context) {
	var req updateVisitStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	visit, err := h.visits.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// Cancel godoc
// @Summary Cancel a visit
// @Tags Visits
// @Param id path string true "Visit ID"
// @Success 204
// @Router /visits/{id} [delete]
func (h *VisitHandler) Cancel(c *gin.Context) {
	if err := h.visits.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
