package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/response"
)

// DepartmentHandler manages departments and certificate types.
type DepartmentHandler struct {
	departments *service.DepartmentService
	types       *service.CertificateTypeService
}

// NewDepartmentHandler constructs the handler.
func NewDepartmentHandler(departments *service.DepartmentService, types *service.CertificateTypeService) *DepartmentHandler {
	return &DepartmentHandler{departments: departments, types: types}
}

// List returns every department.
func (h *DepartmentHandler) List(c *gin.Context) {
	res, err := h.departments.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Get returns one department.
func (h *DepartmentHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.departments.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Create stores a department, answering 200 with the existing one when the
// name parts are already taken.
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req dto.DepartmentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, created, err := h.departments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !created {
		res.Message = "部门已存在"
		response.OK(c, res)
		return
	}
	res.Message = "部门创建成功"
	response.JSON(c, http.StatusCreated, res)
}

// Update changes a department.
func (h *DepartmentHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.DepartmentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.departments.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Delete removes a department without students.
func (h *DepartmentHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.departments.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// BindCertificateTypes replaces the department's required certificate types.
func (h *DepartmentHandler) BindCertificateTypes(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BindCertificatesRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.departments.BindCertificateTypes(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// ListTypes returns every certificate type.
func (h *DepartmentHandler) ListTypes(c *gin.Context) {
	res, err := h.types.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// CreateType adds a certificate type.
func (h *DepartmentHandler) CreateType(c *gin.Context) {
	var req dto.CertificateTypeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.types.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// DeleteType removes a certificate type.
func (h *DepartmentHandler) DeleteType(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.types.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
