package models

import "time"

// Stage names one step of the admission pipeline.
type Stage string

const (
	StagePreliminary Stage = "preliminary"
	StageMedical     Stage = "medical"
	StagePolitical   Stage = "political"
	StageAdmission   Stage = "admission"
)

// Stages lists the pipeline in display order.
var Stages = []Stage{StagePreliminary, StageMedical, StagePolitical, StageAdmission}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the display name of the stage.
func (s Stage) Label() string {
	switch s {
	case StagePreliminary:
		return "初试"
	case StageMedical:
		return "体检"
	case StagePolitical:
		return "政审"
	case StageAdmission:
		return "录取"
	}
	return string(s)
}

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StatusPending     StageStatus = "pending"
	StatusQualified   StageStatus = "qualified"
	StatusUnqualified StageStatus = "unqualified"
)

// Valid reports whether s is a known outcome.
func (s StageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusQualified, StatusUnqualified:
		return true
	}
	return false
}

// Label returns the display text; anything but qualified or unqualified reads
// as pending.
func (s StageStatus) Label() string {
	switch s {
	case StatusQualified:
		return "合格"
	case StatusUnqualified:
		return "不合格"
	}
	return "待处理"
}

// ProcessStatus holds the outcome of every stage.
type ProcessStatus struct {
	Preliminary StageStatus `json:"preliminary"`
	Medical     StageStatus `json:"medical"`
	Political   StageStatus `json:"political"`
	Admission   StageStatus `json:"admission"`
}

// NewProcessStatus returns every stage pending.
func NewProcessStatus() ProcessStatus {
	return ProcessStatus{
		Preliminary: StatusPending,
		Medical:     StatusPending,
		Political:   StatusPending,
		Admission:   StatusPending,
	}
}

// Get returns the outcome for stage; unknown or empty values read as pending.
func (p ProcessStatus) Get(stage Stage) StageStatus {
	var value StageStatus
	switch stage {
	case StagePreliminary:
		value = p.Preliminary
	case StageMedical:
		value = p.Medical
	case StagePolitical:
		value = p.Political
	case StageAdmission:
		value = p.Admission
	}
	if value == "" {
		return StatusPending
	}
	return value
}

// Set stores status for stage and reports whether the stage is known.
func (p *ProcessStatus) Set(stage Stage, status StageStatus) bool {
	switch stage {
	case StagePreliminary:
		p.Preliminary = status
	case StageMedical:
		p.Medical = status
	case StagePolitical:
		p.Political = status
	case StageAdmission:
		p.Admission = status
	default:
		return false
	}
	return true
}

// DefaultBaseScore is assigned to students and departments without one.
const DefaultBaseScore = 80

// Student is a candidate tracked through the pipeline.
type Student struct {
	ID                   int           `json:"id"`
	StudentID            string        `json:"student_id"`
	Name                 string        `json:"name"`
	IDCardNo             string        `json:"id_card_no"`
	DepartmentID         int           `json:"department_id"`
	ClassInfo            string        `json:"class_info"`
	BaseScore            int           `json:"base_score"`
	TotalScore           int           `json:"total_score"`
	ProcessStatus        ProcessStatus `json:"process_status"`
	Phone                string        `json:"phone,omitempty"`
	Gender               string        `json:"gender,omitempty"`
	BirthDate            string        `json:"birth_date,omitempty"`
	Birthplace           string        `json:"birthplace,omitempty"`
	Ethnicity            string        `json:"ethnicity,omitempty"`
	PoliticalAffiliation string        `json:"political_affiliation,omitempty"`
	GPA                  *float64      `json:"gpa,omitempty"`
	Credits              *float64      `json:"credits,omitempty"`
	CreateTime           time.Time     `json:"create_time"`
	PasswordHash         string        `json:"-"`
}

// StudentBrief is embedded in certificate views.
type StudentBrief struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	StudentID  string      `json:"student_id"`
	IDCardNo   string      `json:"id_card_no"`
	Department *Department `json:"department"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	DepartmentIDs []int
	Filter        string
	Keyword       string
	StatusStage   Stage
	StatusValue   StageStatus
	Page          int
	PerPage       int
}

// Student list filter kinds.
const (
	FilterName      = "name"
	FilterStudentID = "student_id"
	FilterClassName = "class_name"
)

// BirthAndGender derives the birth month (YYYY年MM月) and gender from an 18
// character id card number. Other lengths yield empty strings.
func BirthAndGender(idCardNo string) (birth, gender string) {
	if len(idCardNo) != 18 {
		return "", ""
	}
	birth = idCardNo[6:10] + "年" + idCardNo[10:12] + "月"
	if c := idCardNo[16]; c >= '0' && c <= '9' {
		if (c-'0')%2 == 1 {
			gender = "男"
		} else {
			gender = "女"
		}
	}
	return birth, gender
}
