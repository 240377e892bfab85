package view

import (
	"strconv"
	"time"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
)

// TimeLayout is how timestamps are printed on every screen.
const TimeLayout = "2006-01-02 15:04"

// ScoreRow is one line of the score detail screen.
type ScoreRow struct {
	Delta     string `json:"delta"`
	Positive  bool   `json:"positive"`
	Reason    string `json:"reason"`
	TypeLabel string `json:"type_label"`
	Time      string `json:"time"`
}

// ScoreDetail is the score screen.
type ScoreDetail struct {
	BaseScore  int        `json:"base_score"`
	TotalScore int        `json:"total_score"`
	Rows       []ScoreRow `json:"rows"`
}

// NewScoreDetail builds the score screen.
func NewScoreDetail(s *dto.StudentScore) ScoreDetail {
	if s == nil {
		return ScoreDetail{Rows: []ScoreRow{}}
	}
	return ScoreDetail{BaseScore: s.BaseScore, TotalScore: s.TotalScore, Rows: ScoreRows(s.ScoreLogs)}
}

// ScoreRows formats score changes in the order given.
func ScoreRows(logs []models.ScoreLog) []ScoreRow {
	rows := make([]ScoreRow, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, ScoreRow{
			Delta:     SignedDelta(l.Delta),
			Positive:  l.Delta > 0,
			Reason:    l.Reason,
			TypeLabel: l.Type.Label(),
			Time:      FormatTime(l.CreateTime),
		})
	}
	return rows
}

// SignedDelta prefixes positive changes with "+".
func SignedDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// FormatTime renders t in local time; the zero time is blank.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeLayout)
}
