package dto

import "github.com/noah-isme/contrail/internal/models"

// AuditRequest captures POST /certificates/:id/audit payload.
type AuditRequest struct {
	Action       string `json:"action"`
	RejectReason string `json:"reject_reason,omitempty"`
}

// AuditResponse is returned after a review decision.
type AuditResponse struct {
	Message     string                 `json:"message"`
	Certificate models.CertificateView `json:"certificate"`
}

// CertificateViewResponse wraps one admin certificate view. Warning is set
// when the image link could not be signed.
type CertificateViewResponse struct {
	Certificate models.CertificateView `json:"certificate"`
	Warning     string                 `json:"warning,omitempty"`
}

// CertificateUploadRequest registers an uploaded certificate image.
type CertificateUploadRequest struct {
	Name      string                 `json:"name"`
	ImageURL  string                 `json:"image_url"`
	ExtraData map[string]interface{} `json:"extra_data,omitempty"`
}

// CertificateResponse wraps a single certificate.
type CertificateResponse struct {
	Message     string             `json:"message,omitempty"`
	Certificate models.Certificate `json:"certificate"`
}

// CertificateListResponse lists a student's certificates.
type CertificateListResponse struct {
	Certificates []models.Certificate `json:"certificates"`
}

// ImageUploadResponse describes a stored certificate image.
type ImageUploadResponse struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// CertificateTypeRequest captures POST /certificate-types payload.
type CertificateTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"is_required"`
}

// CertificateTypeResponse wraps one certificate type.
type CertificateTypeResponse struct {
	Message         string                 `json:"message,omitempty"`
	CertificateType models.CertificateType `json:"certificate_type"`
}

// CertificatePage is the admin review list. Warning is set when some image
// links could not be signed.
type CertificatePage struct {
	Page[models.CertificateView]
	Warning string `json:"warning,omitempty"`
}
