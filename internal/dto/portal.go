package dto

import "github.com/noah-isme/contrail/internal/models"

// StudentDashboard is the home screen payload of the student app.
type StudentDashboard struct {
	Score         int                  `json:"score"`
	Comment       string               `json:"comment"`
	ProcessStatus models.ProcessStatus `json:"process_status"`
}

// StudentScore is the score summary with the latest 50 changes.
type StudentScore struct {
	BaseScore  int               `json:"base_score"`
	TotalScore int               `json:"total_score"`
	ScoreLogs  []models.ScoreLog `json:"score_logs"`
}

// UserResponse wraps the student record.
type UserResponse struct {
	User models.Student `json:"user"`
}

// ProfileUserInfo is the personal block of the profile screen.
type ProfileUserInfo struct {
	Name                 string   `json:"name"`
	StudentID            string   `json:"student_id"`
	IDCardNo             string   `json:"id_card_no"`
	Phone                string   `json:"phone"`
	Birthplace           string   `json:"birthplace"`
	Ethnicity            string   `json:"ethnicity"`
	PoliticalAffiliation string   `json:"political_affiliation"`
	Gender               string   `json:"gender"`
	BirthDate            string   `json:"birth_date"`
	College              string   `json:"college"`
	Grade                string   `json:"grade"`
	Major                string   `json:"major"`
	ClassName            string   `json:"class_name"`
	Credits              *float64 `json:"credits"`
	GPA                  *float64 `json:"gpa"`
	BaseScore            int      `json:"base_score"`
	TotalScore           int      `json:"total_score"`
}

// IELTSScore is one IELTS sitting.
type IELTSScore struct {
	Date      string `json:"date"`
	Overall   string `json:"overall"`
	Listening string `json:"listening"`
	Reading   string `json:"reading"`
	Writing   string `json:"writing"`
	Speaking  string `json:"speaking"`
}

// EnglishScores collects approved language certificates.
type EnglishScores struct {
	CET4  string       `json:"cet4"`
	CET6  string       `json:"cet6"`
	IELTS []IELTSScore `json:"ielts"`
}

// Position is one student leadership role.
type Position struct {
	Role             string `json:"role"`
	Organization     string `json:"organization"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Level            string `json:"level"`
	CollectiveAwards string `json:"collective_awards"`
}

// Award is one competition or honour.
type Award struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Level     string `json:"level"`
	Rank      string `json:"rank"`
	Organizer string `json:"organizer"`
}

// Achievements groups positions and awards.
type Achievements struct {
	Positions []Position `json:"positions"`
	Awards    []Award    `json:"awards"`
}

// StudentProfile is the profile screen payload.
type StudentProfile struct {
	UserInfo      ProfileUserInfo `json:"user_info"`
	EnglishScores EnglishScores   `json:"english_scores"`
	Achievements  Achievements    `json:"achievements"`
}
