// Package view turns API payloads into what each console screen shows and
// validates the screen forms before anything is sent.
package view

import (
	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
)

// StatusItem is one stage of the admission pipeline as displayed.
type StatusItem struct {
	Stage  models.Stage       `json:"stage"`
	Name   string             `json:"name"`
	Status models.StageStatus `json:"status"`
	Label  string             `json:"label"`
}

// StatusList lists every stage in pipeline order. Missing or unknown
// outcomes read as pending.
func StatusList(ps models.ProcessStatus) []StatusItem {
	items := make([]StatusItem, 0, len(models.Stages))
	for _, stage := range models.Stages {
		status := ps.Get(stage)
		if !status.Valid() {
			status = models.StatusPending
		}
		items = append(items, StatusItem{Stage: stage, Name: stage.Label(), Status: status, Label: status.Label()})
	}
	return items
}

// Home is the student landing screen.
type Home struct {
	Score    int          `json:"score"`
	Comment  string       `json:"comment"`
	Statuses []StatusItem `json:"statuses"`
}

// NoComment is shown when no evaluation has been written yet.
const NoComment = "暂无评语"

// NewHome builds the landing screen from the dashboard payload.
func NewHome(d *dto.StudentDashboard) Home {
	if d == nil {
		return Home{Statuses: StatusList(models.ProcessStatus{})}
	}
	return Home{Score: d.Score, Comment: d.Comment, Statuses: StatusList(d.ProcessStatus)}
}

// CommentText returns the comment or the empty placeholder.
func (h Home) CommentText() string {
	if h.Comment == "" {
		return NoComment
	}
	return h.Comment
}
