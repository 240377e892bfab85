package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
)

const (
	certKindCET4     = "cet4"
	certKindCET6     = "cet6"
	certKindIELTS    = "ielts"
	certKindPosition = "position"
	certKindAward    = "award"
)

// certificateKind sorts an approved certificate into the profile section it
// feeds, based on its name and the optional extra_data.type.
func certificateKind(cert models.Certificate) string {
	name := strings.TrimSpace(cert.Name)
	upper := strings.ToUpper(name)
	switch {
	case name == "英语四级" || strings.Contains(upper, "CET-4") || strings.Contains(name, "四级"):
		return certKindCET4
	case name == "英语六级" || strings.Contains(upper, "CET-6") || strings.Contains(name, "六级"):
		return certKindCET6
	case strings.Contains(upper, "IELTS") || strings.Contains(name, "雅思"):
		return certKindIELTS
	case name == "任职情况" || name == "任职经历" || strings.Contains(name, "任职") ||
		strings.EqualFold(extraString(cert.ExtraData, "type"), "position"):
		return certKindPosition
	}
	return certKindAward
}

// classifyAchievements builds the language and achievement blocks from a
// student's certificates. Only approved certificates count; certs are
// expected newest first so the first CET match wins.
func classifyAchievements(certs []models.Certificate) (dto.EnglishScores, dto.Achievements) {
	english := dto.EnglishScores{IELTS: []dto.IELTSScore{}}
	achievements := dto.Achievements{Positions: []dto.Position{}, Awards: []dto.Award{}}
	var cet4Seen, cet6Seen bool

	for _, cert := range certs {
		if cert.Status != models.CertificateApproved {
			continue
		}
		extra := cert.ExtraData
		switch certificateKind(cert) {
		case certKindCET4:
			if !cet4Seen {
				cet4Seen = true
				english.CET4 = extraString(extra, "score")
			}
		case certKindCET6:
			if !cet6Seen {
				cet6Seen = true
				english.CET6 = extraString(extra, "score")
			}
		case certKindIELTS:
			english.IELTS = append(english.IELTS, dto.IELTSScore{
				Date:      firstNonEmpty(extraString(extra, "date"), uploadDate(cert)),
				Overall:   firstNonEmpty(extraString(extra, "total"), extraString(extra, "overall")),
				Listening: extraString(extra, "listening"),
				Reading:   extraString(extra, "reading"),
				Writing:   extraString(extra, "writing"),
				Speaking:  extraString(extra, "speaking"),
			})
		case certKindPosition:
			achievements.Positions = append(achievements.Positions, positionFrom(extra))
		default:
			achievements.Awards = append(achievements.Awards, dto.Award{
				Date:      firstNonEmpty(extraString(extra, "date"), uploadDate(cert)),
				Name:      firstNonEmpty(extraString(extra, "name"), cert.Name),
				Level:     extraString(extra, "level"),
				Rank:      extraString(extra, "rank"),
				Organizer: extraString(extra, "organizer"),
			})
		}
	}
	return english, achievements
}

func positionFrom(extra map[string]interface{}) dto.Position {
	start := extraString(extra, "start_time")
	end := extraString(extra, "end_time")
	if start == "" && end == "" {
		if parts := strings.Split(extraString(extra, "date"), "至"); len(parts) == 2 {
			start, end = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		}
	}
	awards := joinAwards(extra["collective_awards"])
	if awards == "" {
		awards = joinAwards(extra["collectiveAwards"])
	}
	if awards == "" {
		awards = joinAwards(extra["award"])
	}
	return dto.Position{
		Role:             firstNonEmpty(extraString(extra, "role"), extraString(extra, "position")),
		Organization:     firstNonEmpty(extraString(extra, "organization"), extraString(extra, "org")),
		StartTime:        start,
		EndTime:          end,
		Level:            extraString(extra, "level"),
		CollectiveAwards: awards,
	}
}

func joinAwards(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []string:
		return joinNonEmpty(val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if item != nil {
				parts = append(parts, fmt.Sprint(item))
			}
		}
		return joinNonEmpty(parts)
	}
	return ""
}

func joinNonEmpty(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "；")
}

// extraString renders extra[key] as text; JSON numbers lose their trailing zeros.
func extraString(extra map[string]interface{}, key string) string {
	v, ok := extra[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func uploadDate(cert models.Certificate) string {
	if cert.UploadTime.IsZero() {
		return ""
	}
	return cert.UploadTime.Format("2006-01-02")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
