package models

import "time"

// ScoreType says who produced a score change.
type ScoreType string

const (
	ScoreManual ScoreType = "manual"
	ScoreSystem ScoreType = "system"
)

// Label returns the display text for the change source.
func (t ScoreType) Label() string {
	if t == ScoreSystem {
		return "系统自动"
	}
	return "人工调整"
}

// ScoreTypeFromCode maps the query filter 1 (manual) / 2 (system).
func ScoreTypeFromCode(code int) (ScoreType, bool) {
	switch code {
	case 1:
		return ScoreManual, true
	case 2:
		return ScoreSystem, true
	}
	return "", false
}

// ScoreLog records one change to a student's score.
type ScoreLog struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	Delta      int       `json:"delta"`
	Reason     string    `json:"reason"`
	Type       ScoreType `json:"type"`
	CreateTime time.Time `json:"create_time"`
}

// Comment is an evaluation left by an admin.
type Comment struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	AdminID    int       `json:"admin_id"`
	AdminName  string    `json:"admin_name"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
}
