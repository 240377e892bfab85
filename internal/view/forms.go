package view

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/validation"
)

var validate = validation.New()

// FormError is a rejected form. Message is what the screen shows; Fields
// holds every failing field.
type FormError struct {
	Message string
	Fields  map[string]string
}

func (e *FormError) Error() string { return e.Message }

// check validates form and replaces the first failing field's message with
// the screen wording from messages when one is set.
func check(form interface{}, order []string, messages map[string]string) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return validation.Error(err)
	}
	fields := validation.Translate(err)
	for _, name := range order {
		if _, ok := fields[name]; !ok {
			continue
		}
		msg := fields[name]
		if custom, ok := messages[name]; ok {
			msg = custom
		}
		return &FormError{Message: msg, Fields: fields}
	}
	return &FormError{Message: ve[0].Error(), Fields: fields}
}

// CertificateForm is what a student submits.
type CertificateForm struct {
	Name     string `json:"name" validate:"required"`
	ImageURL string `json:"image_url" validate:"required"`
}

// Validate checks the name first, then the uploaded image.
func (f CertificateForm) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	return check(f, []string{"name", "image_url"}, map[string]string{
		"name":      "请选择证书名称",
		"image_url": "请上传证书凭证",
	})
}

// Request builds the submit payload.
func (f CertificateForm) Request() dto.CertificateUploadRequest {
	return dto.CertificateUploadRequest{Name: strings.TrimSpace(f.Name), ImageURL: f.ImageURL}
}

// DepartmentForm creates or edits a department.
type DepartmentForm struct {
	College        string `json:"college" validate:"required"`
	Grade          string `json:"grade" validate:"required"`
	Major          string `json:"major" validate:"required"`
	ClassName      string `json:"class_name" validate:"required"`
	BonusStartDate string `json:"bonus_start_date" validate:"omitempty,datetime=2006-01-02"`
	BaseScore      int    `json:"base_score" validate:"gte=0"`
}

// Validate requires all four name parts.
func (f DepartmentForm) Validate() error {
	f.trim()
	return check(f, []string{"college", "grade", "major", "class_name", "bonus_start_date", "base_score"}, map[string]string{
		"college":          "学院不能为空",
		"grade":            "年级不能为空",
		"major":            "专业不能为空",
		"class_name":       "班级不能为空",
		"bonus_start_date": "加分开始日期格式应为 YYYY-MM-DD",
		"base_score":       "基础分不能为负数",
	})
}

func (f *DepartmentForm) trim() {
	f.College = strings.TrimSpace(f.College)
	f.Grade = strings.TrimSpace(f.Grade)
	f.Major = strings.TrimSpace(f.Major)
	f.ClassName = strings.TrimSpace(f.ClassName)
}

// Request builds the payload. A zero base score becomes the default.
func (f DepartmentForm) Request() dto.DepartmentRequest {
	f.trim()
	score := f.BaseScore
	if score == 0 {
		score = models.DefaultBaseScore
	}
	return dto.DepartmentRequest{
		College:        f.College,
		Grade:          f.Grade,
		Major:          f.Major,
		ClassName:      f.ClassName,
		BonusStartDate: f.BonusStartDate,
		BaseScore:      &score,
	}
}

// AdminForm creates an admin account.
type AdminForm struct {
	Username      string           `json:"username" validate:"required"`
	Password      string           `json:"password" validate:"required,min=6"`
	Name          string           `json:"name" validate:"required"`
	Role          models.AdminRole `json:"role" validate:"omitempty,oneof=super normal"`
	DepartmentIDs []int            `json:"department_ids"`
}

// ErrDepartmentsRequired is returned for a normal admin without departments.
var ErrDepartmentsRequired = &FormError{Message: "普通管理员至少需要分配一个部门"}

// Validate checks the account fields in screen order, then that a normal
// admin manages at least one department.
func (f AdminForm) Validate() error {
	f.Username = strings.TrimSpace(f.Username)
	f.Name = strings.TrimSpace(f.Name)
	err := check(f, []string{"username", "password", "name", "role"}, map[string]string{
		"username": "用户名不能为空",
		"password": "密码至少 6 位",
		"name":     "姓名不能为空",
		"role":     "角色只能是 super 或 normal",
	})
	if err != nil {
		return err
	}
	if f.Role != models.RoleSuper && len(f.DepartmentIDs) == 0 {
		return ErrDepartmentsRequired
	}
	return nil
}
