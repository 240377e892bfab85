package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/service"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/response"
)

// uploadField is the multipart field carrying uploaded files.
const uploadField = "file"

// CertificateHandler serves certificate review for admins and certificate
// submission for students.
type CertificateHandler struct {
	service *service.CertificateService
	images  *service.ImageService
}

// NewCertificateHandler constructs the handler.
func NewCertificateHandler(svc *service.CertificateService, images *service.ImageService) *CertificateHandler {
	return &CertificateHandler{service: svc, images: images}
}

// List returns a page of certificates visible to the admin.
func (h *CertificateHandler) List(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := queryStatus(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := h.service.List(c.Request.Context(), admin, status, queryInt(c, "page", 1), queryInt(c, "per_page", dto.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// Get returns one certificate with its student.
func (h *CertificateHandler) Get(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Get(c.Request.Context(), admin, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Audit approves or rejects a certificate.
func (h *CertificateHandler) Audit(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AuditRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Audit(c.Request.Context(), admin, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Types lists the certificate types the student may submit.
func (h *CertificateHandler) Types(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	types, err := h.service.TypesForStudent(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, types)
}

// Mine lists the student's own certificates.
func (h *CertificateHandler) Mine(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := queryStatus(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.ListForStudent(c.Request.Context(), userID, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Detail returns one of the student's own certificates.
func (h *CertificateHandler) Detail(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.GetForStudent(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// UploadImage stores a certificate image sent as multipart field "file".
func (h *CertificateHandler) UploadImage(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	header, err := c.FormFile(uploadField)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "未找到上传文件"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "读取上传文件失败"))
		return
	}
	defer file.Close() //nolint:errcheck

	res, err := h.images.Upload(c.Request.Context(), userID, header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Submit registers an uploaded image as a pending certificate.
func (h *CertificateHandler) Submit(c *gin.Context) {
	userID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CertificateUploadRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Submit(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, res)
}
