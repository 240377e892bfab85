package handler

import (
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/service"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/response"
)

// maxRosterBytes caps uploaded import workbooks.
const maxRosterBytes = 20 << 20

// StudentHandler serves the admin student archive endpoints.
type StudentHandler struct {
	service *service.StudentService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// List returns one page of students. classId is accepted as the legacy
// name of department_id.
func (h *StudentHandler) List(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	dept := queryInt(c, "department_id", 0)
	if dept <= 0 {
		dept = queryInt(c, "classId", 0)
	}
	q := service.StudentListQuery{
		Page:         queryInt(c, "page", 1),
		PerPage:      queryInt(c, "per_page", dto.DefaultPerPage),
		DepartmentID: dept,
		Filter:       strings.TrimSpace(c.Query("filter")),
		Keyword:      c.Query("keyword"),
		StatusStage:  strings.TrimSpace(c.Query("status_stage")),
		StatusValue:  strings.TrimSpace(c.Query("status_value")),
	}
	page, err := h.service.List(c.Request.Context(), admin, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// Detail returns a student with comments and certificates.
func (h *StudentHandler) Detail(c *gin.Context) {
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
	res, err := h.service.Detail(c.Request.Context(), admin, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// UpdateStatus sets one stage outcome.
func (h *StudentHandler) UpdateStatus(c *gin.Context) {
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
	var req dto.StatusUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.UpdateStatus(c.Request.Context(), admin, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// UpdateArchive applies profile edits, stage outcomes and a comment.
func (h *StudentHandler) UpdateArchive(c *gin.Context) {
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
	var req dto.ArchiveUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.UpdateArchive(c.Request.Context(), admin, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// ScoreLogs pages a student's score changes.
func (h *StudentHandler) ScoreLogs(c *gin.Context) {
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
	typeCode := 0
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		typeCode, err = strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "无效的类型参数，支持的值：1（人工调整）或 2（系统自动）"))
			return
		}
	}
	res, err := h.service.ScoreLogs(c.Request.Context(), admin, id, queryInt(c, "page", 1), queryInt(c, "limit", dto.DefaultPerPage), typeCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// AdjustScore records a manual score change.
func (h *StudentHandler) AdjustScore(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ScoreAdjustRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.AdjustScore(c.Request.Context(), admin, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// AddComment leaves an evaluation on a student.
func (h *StudentHandler) AddComment(c *gin.Context) {
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
	var req dto.CommentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.AddComment(c.Request.Context(), admin, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Import reads an uploaded .xlsx roster. department_id comes from the form
// or the query string.
func (h *StudentHandler) Import(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	header, err := c.FormFile(uploadField)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "未找到上传文件"))
		return
	}
	raw := strings.TrimSpace(c.PostForm("department_id"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("department_id"))
	}
	deptID, _ := strconv.Atoi(raw)

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "读取上传文件失败"))
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, maxRosterBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "读取上传文件失败"))
		return
	}
	if len(data) > maxRosterBytes {
		response.Error(c, appErrors.Clonef(appErrors.ErrValidation, "文件大小不能超过 %dMB", maxRosterBytes>>20))
		return
	}

	res, err := h.service.Import(c.Request.Context(), admin, deptID, header.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
