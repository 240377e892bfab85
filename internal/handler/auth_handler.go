package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// PublicKey serves the PEM key clients encrypt passwords with. Both key
// spellings are sent for older student app builds.
func (h *AuthHandler) PublicKey(c *gin.Context) {
	key := h.service.PublicKey()
	response.OK(c, gin.H{"public_key": key, "publicKey": key})
}

// AdminLogin exchanges username and encrypted password for a token.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.AdminLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// AdminInfo returns the admin behind the token.
func (h *AuthHandler) AdminInfo(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ids := admin.DepartmentIDs
	if ids == nil {
		ids = []int{}
	}
	response.OK(c, dto.AdminInfoResponse{Admin: *admin, DepartmentIDs: ids})
}

// StudentLogin exchanges id card number and encrypted password for a token.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req models.StudentLoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.StudentLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// StudentProfile returns the logged in student record.
func (h *AuthHandler) StudentProfile(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.service.StudentProfile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.UserResponse{User: *student})
}
