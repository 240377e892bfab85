package dto

import (
	"time"

	"github.com/noah-isme/contrail/internal/models"
)

// StudentItem is a student row with its department.
type StudentItem struct {
	models.Student
	Department *models.Department `json:"department,omitempty"`
}

// StudentDetail is returned by GET /students/:id.
type StudentDetail struct {
	Student      StudentItem              `json:"student"`
	Comments     []models.Comment         `json:"comments"`
	Certificates []models.CertificateView `json:"certificates"`
}

// StatusUpdateRequest changes one stage outcome.
type StatusUpdateRequest struct {
	Stage  models.Stage       `json:"stage"`
	Status models.StageStatus `json:"status"`
}

// StatusUpdateResponse returns the updated student.
type StatusUpdateResponse struct {
	Message string      `json:"message"`
	Student StudentItem `json:"student"`
}

// ArchiveBaseInfo lists the editable profile fields; nil fields are left as is.
type ArchiveBaseInfo struct {
	Name                 *string  `json:"name,omitempty"`
	StudentID            *string  `json:"student_id,omitempty"`
	DepartmentID         *int     `json:"department_id,omitempty"`
	BaseScore            *int     `json:"base_score,omitempty"`
	Credits              *float64 `json:"credits,omitempty"`
	GPA                  *float64 `json:"gpa,omitempty"`
	Birthplace           *string  `json:"birthplace,omitempty"`
	Phone                *string  `json:"phone,omitempty"`
	Ethnicity            *string  `json:"ethnicity,omitempty"`
	PoliticalAffiliation *string  `json:"political_affiliation,omitempty"`
}

// ArchiveUpdateRequest updates profile, stage outcomes and adds a comment in
// one call.
type ArchiveUpdateRequest struct {
	BaseInfo      *ArchiveBaseInfo                    `json:"base_info,omitempty"`
	ProcessStatus map[models.Stage]models.StageStatus `json:"process_status,omitempty"`
	NewComment    string                              `json:"new_comment,omitempty"`
}

// ScoreLogItem is one score change with the running total around it.
// Type is 1 for manual and 2 for system changes.
type ScoreLogItem struct {
	ID           int       `json:"id"`
	OldScore     int       `json:"old_score"`
	NewScore     int       `json:"new_score"`
	ChangeAmount int       `json:"change_amount"`
	Reason       string    `json:"reason"`
	Type         int       `json:"type"`
	CreateTime   time.Time `json:"create_time"`
	OperatorName string    `json:"operator_name"`
}

// ScoreLogPage is the data block of the score log listing.
type ScoreLogPage struct {
	Items []ScoreLogItem `json:"items"`
	Total int            `json:"total"`
}

// ScoreLogResponse wraps ScoreLogPage.
type ScoreLogResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    ScoreLogPage `json:"data"`
}

// ScoreAdjustRequest captures POST /score/adjust payload.
type ScoreAdjustRequest struct {
	UserID *int   `json:"user_id"`
	Delta  *int   `json:"delta"`
	Reason string `json:"reason"`
}

// ScoreAdjustResponse returns the new log entry and total.
type ScoreAdjustResponse struct {
	Message       string          `json:"message"`
	ScoreLog      models.ScoreLog `json:"score_log"`
	NewTotalScore int             `json:"new_total_score"`
}

// CommentRequest captures POST /students/:id/comment payload.
type CommentRequest struct {
	Content string `json:"content"`
}

// CommentResponse returns the stored comment.
type CommentResponse struct {
	Message string         `json:"message"`
	Comment models.Comment `json:"comment"`
}

// ImportError describes one rejected spreadsheet row.
type ImportError struct {
	Row       int    `json:"row"`
	StudentID string `json:"student_id,omitempty"`
	Error     string `json:"error"`
}

// ImportResult summarises a roster import.
type ImportResult struct {
	SuccessCount int           `json:"success_count"`
	SkipCount    int           `json:"skip_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []ImportError `json:"errors"`
}

// ImportResponse wraps ImportResult.
type ImportResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    ImportResult `json:"data"`
}
