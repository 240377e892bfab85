package dto

import "github.com/noah-isme/contrail/internal/models"

// DepartmentRequest captures create and update payloads.
type DepartmentRequest struct {
	College        string `json:"college"`
	Grade          string `json:"grade"`
	Major          string `json:"major"`
	ClassName      string `json:"class_name"`
	BonusStartDate string `json:"bonus_start_date,omitempty"`
	BaseScore      *int   `json:"base_score,omitempty"`
}

// DepartmentResponse wraps one department.
type DepartmentResponse struct {
	Message    string            `json:"message,omitempty"`
	Department models.Department `json:"department"`
}

// BindCertificatesRequest replaces the certificate types bound to a department.
type BindCertificatesRequest struct {
	CertificateTypeIDs []int `json:"certificate_type_ids"`
}

// AdminRequest captures admin create payloads; Password is RSA encrypted.
type AdminRequest struct {
	Username      string           `json:"username"`
	Password      string           `json:"password"`
	Name          string           `json:"name"`
	Role          models.AdminRole `json:"role"`
	DepartmentIDs []int            `json:"department_ids"`
}

// AdminUpdateRequest only carries the fields being changed.
type AdminUpdateRequest struct {
	Name          *string           `json:"name,omitempty"`
	Password      *string           `json:"password,omitempty"`
	Role          *models.AdminRole `json:"role,omitempty"`
	DepartmentIDs *[]int            `json:"department_ids,omitempty"`
}

// AdminResponse wraps one admin.
type AdminResponse struct {
	Message string       `json:"message,omitempty"`
	Admin   models.Admin `json:"admin"`
}

// AdminInfoResponse is returned by GET /auth/info.
type AdminInfoResponse struct {
	Admin         models.Admin `json:"admin"`
	DepartmentIDs []int        `json:"department_ids"`
}

// InitStatusResponse reports whether a super admin exists.
type InitStatusResponse struct {
	Initialized bool `json:"initialized"`
}

// InitializeRequest creates the first super admin.
type InitializeRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// DashboardStats aggregates the admin dashboard counters.
type DashboardStats struct {
	StudentTotal        int                                         `json:"student_total"`
	DepartmentTotal     int                                         `json:"department_total"`
	CertificatePending  int                                         `json:"certificate_pending"`
	CertificateApproved int                                         `json:"certificate_approved"`
	CertificateRejected int                                         `json:"certificate_rejected"`
	StatusSummary       map[models.Stage]map[models.StageStatus]int `json:"status_summary"`
}
