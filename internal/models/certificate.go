package models

import "time"

// CertificateStatus is the review state of an uploaded certificate.
type CertificateStatus int

const (
	CertificatePending  CertificateStatus = 0
	CertificateApproved CertificateStatus = 1
	CertificateRejected CertificateStatus = 2
)

// Text returns the review state label.
func (s CertificateStatus) Text() string {
	switch s {
	case CertificatePending:
		return "待审核"
	case CertificateApproved:
		return "通过"
	case CertificateRejected:
		return "驳回"
	default:
		return "未知"
	}
}

// Valid reports whether s is a known state.
func (s CertificateStatus) Valid() bool {
	return s >= CertificatePending && s <= CertificateRejected
}

// Audit actions.
const (
	AuditApprove = "approve"
	AuditReject  = "reject"
)

// Certificate is a credential uploaded by a student.
type Certificate struct {
	ID           int                    `json:"id"`
	UserID       int                    `json:"user_id"`
	Name         string                 `json:"name"`
	ImageURL     string                 `json:"image_url"`
	Status       CertificateStatus      `json:"status"`
	StatusText   string                 `json:"status_text"`
	RejectReason string                 `json:"reject_reason"`
	UploadTime   time.Time              `json:"upload_time"`
	ReviewTime   *time.Time             `json:"review_time"`
	ExtraData    map[string]interface{} `json:"extra_data,omitempty"`
}

// CertificateView is the admin representation with the owning student.
type CertificateView struct {
	Certificate
	CertName string        `json:"certName"`
	ImgURL   string        `json:"imgUrl"`
	Student  *StudentBrief `json:"student,omitempty"`
}

// CertificateFilter narrows certificate listings.
type CertificateFilter struct {
	UserIDs []int
	UserID  int
	Status  *CertificateStatus
	Page    int
	PerPage int
}

// CertificateType is a credential category a department may require.
type CertificateType struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsRequired  bool      `json:"is_required"`
	CreateTime  time.Time `json:"create_time"`
}
