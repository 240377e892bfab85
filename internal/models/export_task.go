package models

import "time"

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportPending    ExportStatus = "pending"
	ExportProcessing ExportStatus = "processing"
	ExportCompleted  ExportStatus = "completed"
	ExportFailed     ExportStatus = "failed"
)

// Finished reports whether the task reached a terminal state.
func (s ExportStatus) Finished() bool {
	return s == ExportCompleted || s == ExportFailed
}

// ExportTask tracks one department archive export.
type ExportTask struct {
	TaskID       string       `json:"task_id"`
	AdminID      int          `json:"admin_id"`
	DepartmentID int          `json:"department_id"`
	Status       ExportStatus `json:"status"`
	Progress     int          `json:"progress"`
	Total        int          `json:"total"`
	Error        string       `json:"error,omitempty"`
	DownloadURL  string       `json:"download_url,omitempty"`
	FileName     string       `json:"file_name,omitempty"`
	FilePath     string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}
