package view

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/contrail/internal/dto"
)

const unset = "未设置"

var idCardPattern = regexp.MustCompile(`^(.{6})(?:\d+)(.{4})$`)

// MaskIDCard keeps the first six and last four characters of an id card
// number. Values that do not fit the pattern are returned unchanged.
func MaskIDCard(idCard string) string {
	return idCardPattern.ReplaceAllString(idCard, "$1********$2")
}

// TableRow is a titled header/value block.
type TableRow struct {
	Title   string   `json:"title"`
	Headers []string `json:"headers"`
	Values  []string `json:"values"`
}

// PositionRow is one student position.
type PositionRow struct {
	Role             string `json:"role"`
	Organization     string `json:"organization"`
	Period           string `json:"period"`
	Level            string `json:"level"`
	CollectiveAwards string `json:"collective_awards"`
}

// ProfileInfo is the personal section with placeholders filled in.
type ProfileInfo struct {
	Name                 string `json:"name"`
	StudentID            string `json:"student_id"`
	IDCard               string `json:"id_card"`
	Phone                string `json:"phone"`
	Birthplace           string `json:"birthplace"`
	Ethnicity            string `json:"ethnicity"`
	PoliticalAffiliation string `json:"political_affiliation"`
	Gender               string `json:"gender"`
	BirthDate            string `json:"birth_date"`
	College              string `json:"college"`
	Grade                string `json:"grade"`
	Major                string `json:"major"`
	Class                string `json:"class"`
	Credits              string `json:"credits"`
	GPA                  string `json:"gpa"`
	BaseScore            string `json:"base_score"`
	TotalScore           string `json:"total_score"`
}

// Profile is the student archive screen.
type Profile struct {
	Info      ProfileInfo   `json:"info"`
	English   []string      `json:"english"`
	IELTS     []TableRow    `json:"ielts"`
	Positions []PositionRow `json:"positions"`
	Awards    []TableRow    `json:"awards"`
}

// NewProfile builds the archive screen.
func NewProfile(p *dto.StudentProfile) Profile {
	if p == nil {
		p = &dto.StudentProfile{}
	}
	u := p.UserInfo
	out := Profile{
		Info: ProfileInfo{
			Name:                 orUnset(u.Name),
			StudentID:            orUnset(u.StudentID),
			IDCard:               unset,
			Phone:                orUnset(u.Phone),
			Birthplace:           orUnset(u.Birthplace),
			Ethnicity:            orUnset(u.Ethnicity),
			PoliticalAffiliation: orUnset(u.PoliticalAffiliation),
			Gender:               orUnset(u.Gender),
			BirthDate:            orUnset(u.BirthDate),
			College:              orUnset(u.College),
			Grade:                orUnset(u.Grade),
			Major:                orUnset(u.Major),
			Class:                orUnset(u.ClassName),
			Credits:              floatOr(u.Credits, "0"),
			GPA:                  floatOr(u.GPA, "0.0"),
			BaseScore:            intOr(u.BaseScore, "0"),
			TotalScore:           intOr(u.TotalScore, "0"),
		},
		English:   englishRows(p.EnglishScores),
		IELTS:     ieltsRows(p.EnglishScores.IELTS),
		Positions: positionRows(p.Achievements.Positions),
		Awards:    awardRows(p.Achievements.Awards),
	}
	if u.IDCardNo != "" {
		out.Info.IDCard = MaskIDCard(u.IDCardNo)
	}
	return out
}

func englishRows(e dto.EnglishScores) []string {
	rows := []string{}
	if e.CET4 != "" {
		rows = append(rows, "CET-4: "+e.CET4)
	}
	if e.CET6 != "" {
		rows = append(rows, "CET-6: "+e.CET6)
	}
	return rows
}

func ieltsRows(items []dto.IELTSScore) []TableRow {
	rows := make([]TableRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, TableRow{
			Title:   fmt.Sprintf("雅思 (%s)", it.Date),
			Headers: []string{"总分", "听力", "阅读", "写作", "口语"},
			Values:  []string{dash(it.Overall), dash(it.Listening), dash(it.Reading), dash(it.Writing), dash(it.Speaking)},
		})
	}
	return rows
}

// Period renders a start/end pair: "a 至 b", "a 起" or "至 b".
func Period(start, end string) string {
	switch {
	case start != "" && end != "":
		return start + " 至 " + end
	case start != "":
		return start + " 起"
	case end != "":
		return "至 " + end
	}
	return ""
}

func positionRows(items []dto.Position) []PositionRow {
	rows := make([]PositionRow, 0, len(items))
	for _, it := range items {
		role := it.Role
		if role == "" {
			role = "未填写"
		}
		awards := strings.TrimSpace(it.CollectiveAwards)
		if awards == "无" {
			awards = ""
		}
		rows = append(rows, PositionRow{
			Role:             role,
			Organization:     it.Organization,
			Period:           Period(it.StartTime, it.EndTime),
			Level:            it.Level,
			CollectiveAwards: awards,
		})
	}
	return rows
}

func awardRows(items []dto.Award) []TableRow {
	rows := make([]TableRow, 0, len(items))
	for _, it := range items {
		title := it.Name
		if it.Date != "" {
			title = "获奖时间: " + it.Date
		} else if title == "" {
			title = "获奖记录"
		}
		name := it.Name
		if name == "" {
			name = "未知奖项"
		}
		row := TableRow{Title: title, Headers: []string{"奖励名称"}, Values: []string{name}}
		if it.Level != "" {
			row.Headers = append(row.Headers, "级别")
			row.Values = append(row.Values, it.Level)
		}
		if it.Rank != "" {
			row.Headers = append(row.Headers, "等次")
			row.Values = append(row.Values, it.Rank)
		}
		if it.Organizer != "" {
			row.Headers = append(row.Headers, "主办单位")
			row.Values = append(row.Values, it.Organizer)
		}
		rows = append(rows, row)
	}
	return rows
}

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return unset
	}
	return s
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func floatOr(v *float64, fallback string) string {
	if v == nil || *v == 0 {
		return fallback
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intOr(v int, fallback string) string {
	if v == 0 {
		return fallback
	}
	return strconv.Itoa(v)
}
