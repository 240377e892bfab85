package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/response"
)

// AdminHandler manages console operators and first-run initialisation.
type AdminHandler struct {
	service *service.AdminService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{service: svc}
}

// List returns one page of admins, optionally filtered by role.
func (h *AdminHandler) List(c *gin.Context) {
	res, err := h.service.List(c.Request.Context(), strings.TrimSpace(c.Query("role")), queryInt(c, "page", 1), queryInt(c, "per_page", dto.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Get returns one admin.
func (h *AdminHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Create adds an admin.
func (h *AdminHandler) Create(c *gin.Context) {
	var req dto.AdminRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, res)
}

// Update changes the provided fields of an admin.
func (h *AdminHandler) Update(c *gin.Context) {
	current, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AdminUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Update(c.Request.Context(), current, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Delete removes an admin other than the caller.
func (h *AdminHandler) Delete(c *gin.Context) {
	current, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Delete(c.Request.Context(), current, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// InitStatus reports whether a super admin exists.
func (h *AdminHandler) InitStatus(c *gin.Context) {
	res, err := h.service.InitStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Initialize creates the first super admin.
func (h *AdminHandler) Initialize(c *gin.Context) {
	var req dto.InitializeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Initialize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, res)
}
