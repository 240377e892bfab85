package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/middleware"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/response"
)

type dashboardService interface {
	Stats(ctx context.Context, admin *models.Admin) (*dto.DashboardStats, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Stats returns the counters for the admin's departments and reports cache
// hits in the X-Cache header.
func (h *DashboardHandler) Stats(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, cacheHit, err := h.service.Stats(c.Request.Context(), admin)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, stats)
}
