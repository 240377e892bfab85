package dto

import "github.com/noah-isme/contrail/internal/models"

// ExportStartResponse is returned after enqueueing a department export.
type ExportStartResponse struct {
	Code   int    `json:"code"`
	TaskID string `json:"task_id"`
}

// ExportStatusResponse exposes job progress metadata. It is also the frame
// pushed over the progress websocket.
type ExportStatusResponse struct {
	Code        int                 `json:"code"`
	TaskID      string              `json:"task_id"`
	Status      models.ExportStatus `json:"status"`
	Progress    int                 `json:"progress"`
	Total       int                 `json:"total"`
	Error       *string             `json:"error"`
	DownloadURL *string             `json:"download_url"`
}

// Percent reports progress as 0..100.
func (r ExportStatusResponse) Percent() int {
	if r.Status == models.ExportCompleted {
		return 100
	}
	if r.Total <= 0 {
		return 0
	}
	pct := r.Progress * 100 / r.Total
	if pct > 100 {
		pct = 100
	}
	return pct
}
