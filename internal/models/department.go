package models

import "time"

// Department is a class cohort students belong to.
type Department struct {
	ID                 int       `json:"id"`
	College            string    `json:"college"`
	Grade              string    `json:"grade"`
	Major              string    `json:"major"`
	ClassName          string    `json:"class_name"`
	DisplayName        string    `json:"display_name"`
	BonusStartDate     string    `json:"bonus_start_date,omitempty"`
	BaseScore          int       `json:"base_score"`
	StudentCount       int       `json:"student_count"`
	CertificateTypeIDs []int     `json:"certificate_type_ids"`
	CreateTime         time.Time `json:"create_time"`
}

// Name joins the four name parts.
func (d Department) Name() string {
	return d.College + d.Grade + d.Major + d.ClassName
}
