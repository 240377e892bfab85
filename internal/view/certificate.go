package view

import (
	"strings"

	"github.com/noah-isme/contrail/internal/models"
)

// CertificateOptions is the default name picker list.
var CertificateOptions = []string{
	"英语四级证书 (CET-4)",
	"英语六级证书 (CET-6)",
	"计算机二级证书 (NCRE-2)",
	"计算机三级证书 (NCRE-3)",
	"普通话一级乙等",
	"普通话二级甲等",
	"教师资格证",
	"初级会计职称",
	"中级会计职称",
	"法律职业资格证书",
}

// Picker filters certificate names as the student types.
type Picker struct {
	Options []string
}

// NewPicker uses the given names, or CertificateOptions when none are given.
func NewPicker(names ...string) Picker {
	if len(names) == 0 {
		names = CertificateOptions
	}
	return Picker{Options: append([]string(nil), names...)}
}

// Filter returns the options containing keyword, ignoring case. An empty
// keyword returns every option.
func (p Picker) Filter(keyword string) []string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	out := make([]string, 0, len(p.Options))
	for _, opt := range p.Options {
		if keyword == "" || strings.Contains(strings.ToLower(opt), keyword) {
			out = append(out, opt)
		}
	}
	return out
}

// DefaultRejectReason is shown when a rejection carries no reason.
const DefaultRejectReason = "图片质量不符合要求"

// CertificateRow is one entry of the student certificate list.
type CertificateRow struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	StatusText string `json:"status_text"`
	Reason     string `json:"reason,omitempty"`
	UploadTime string `json:"upload_time"`
	Editable   bool   `json:"editable"`
}

// Row status keys.
const (
	RowPassed   = "passed"
	RowAuditing = "auditing"
	RowRejected = "rejected"
)

// CertificateRows formats the student's certificates. Only rejected
// entries can be reopened for editing.
func CertificateRows(certs []models.Certificate) []CertificateRow {
	rows := make([]CertificateRow, 0, len(certs))
	for _, c := range certs {
		row := CertificateRow{ID: c.ID, Name: c.Name, UploadTime: FormatTime(c.UploadTime)}
		switch c.Status {
		case models.CertificateApproved:
			row.Status, row.StatusText = RowPassed, "已通过"
		case models.CertificateRejected:
			row.Status, row.StatusText = RowRejected, "已驳回"
			row.Reason = RejectReason(c.RejectReason)
			row.Editable = true
		default:
			row.Status, row.StatusText = RowAuditing, "审核中"
		}
		rows = append(rows, row)
	}
	return rows
}

// RejectReason falls back to DefaultRejectReason.
func RejectReason(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return DefaultRejectReason
	}
	return reason
}

// CertificateEdit is the submit screen state. Resubmitting a rejected
// certificate locks the name.
type CertificateEdit struct {
	Form         CertificateForm `json:"form"`
	NameLocked   bool            `json:"name_locked"`
	RejectReason string          `json:"reject_reason,omitempty"`
}

// NewCertificateEdit starts an empty submission.
func NewCertificateEdit() CertificateEdit {
	return CertificateEdit{}
}

// EditRejected reopens a rejected certificate with its name fixed.
func EditRejected(c models.Certificate) CertificateEdit {
	return CertificateEdit{
		Form:         CertificateForm{Name: c.Name},
		NameLocked:   true,
		RejectReason: RejectReason(c.RejectReason),
	}
}

// SetName picks a name unless the screen is locked.
func (e *CertificateEdit) SetName(name string) {
	if e.NameLocked {
		return
	}
	e.Form.Name = strings.TrimSpace(name)
}
