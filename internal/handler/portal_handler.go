package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/response"
)

// PortalHandler serves the student app screens.
type PortalHandler struct {
	service *service.PortalService
}

// NewPortalHandler constructs the handler.
func NewPortalHandler(svc *service.PortalService) *PortalHandler {
	return &PortalHandler{service: svc}
}

// Dashboard returns score, latest comment and stage outcomes.
func (h *PortalHandler) Dashboard(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Dashboard(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Score returns the score summary with the latest changes.
func (h *PortalHandler) Score(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Score(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// History pages through every score change.
func (h *PortalHandler) History(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.History(c.Request.Context(), userID, queryInt(c, "page", 1), queryInt(c, "per_page", dto.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Profile returns personal data, english scores and achievements.
func (h *PortalHandler) Profile(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Profile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
