package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

const recentScoreLogs = 50

type portalStudentRepository interface {
	FindByID(ctx context.Context, id int) (*models.Student, error)
}

type portalScoreLogRepository interface {
	ListByUser(ctx context.Context, userID int) ([]models.ScoreLog, error)
}

type portalCommentRepository interface {
	ListByUser(ctx context.Context, userID int) ([]models.Comment, error)
}

type portalCertificateRepository interface {
	ListByUser(ctx context.Context, userID int) ([]models.Certificate, error)
}

// PortalServiceParams groups PortalService dependencies.
type PortalServiceParams struct {
	Students     portalStudentRepository
	ScoreLogs    portalScoreLogRepository
	Comments     portalCommentRepository
	Certificates portalCertificateRepository
	Departments  departmentFinder
	Logger       *zap.Logger
}

// PortalService serves the student mini-program screens.
type PortalService struct {
	students     portalStudentRepository
	scoreLogs    portalScoreLogRepository
	comments     portalCommentRepository
	certificates portalCertificateRepository
	departments  departmentFinder
	logger       *zap.Logger
}

// NewPortalService constructs a PortalService.
func NewPortalService(params PortalServiceParams) *PortalService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortalService{
		students:     params.Students,
		scoreLogs:    params.ScoreLogs,
		comments:     params.Comments,
		certificates: params.Certificates,
		departments:  params.Departments,
		logger:       logger,
	}
}

// Dashboard returns the total score, the latest comment and stage outcomes.
func (s *PortalService) Dashboard(ctx context.Context, userID int) (*dto.StudentDashboard, error) {
	student, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comments")
	}
	out := &dto.StudentDashboard{Score: student.TotalScore, ProcessStatus: student.ProcessStatus}
	if len(comments) > 0 {
		out.Comment = comments[0].Content
	}
	return out, nil
}

// Score returns the score summary with the most recent changes first.
func (s *PortalService) Score(ctx context.Context, userID int) (*dto.StudentScore, error) {
	student, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	logs, err := s.logsDesc(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(logs) > recentScoreLogs {
		logs = logs[:recentScoreLogs]
	}
	return &dto.StudentScore{BaseScore: student.BaseScore, TotalScore: student.TotalScore, ScoreLogs: logs}, nil
}

// History pages through every score change, newest first.
func (s *PortalService) History(ctx context.Context, userID, page, perPage int) (*dto.Page[models.ScoreLog], error) {
	if _, err := s.student(ctx, userID); err != nil {
		return nil, err
	}
	logs, err := s.logsDesc(ctx, userID)
	if err != nil {
		return nil, err
	}
	page, perPage = dto.Normalize(page, perPage)
	out := dto.NewPage(dto.Slice(logs, page, perPage), len(logs), page, perPage)
	return &out, nil
}

// Profile assembles personal data, language scores and achievements from
// approved certificates.
func (s *PortalService) Profile(ctx context.Context, userID int) (*dto.StudentProfile, error) {
	student, err := s.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	certs, err := s.certificates.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificates")
	}
	info := profileUserInfo(*student)
	if dept, err := s.departments.FindByID(ctx, student.DepartmentID); err == nil {
		info.College, info.Grade, info.Major, info.ClassName = dept.College, dept.Grade, dept.Major, dept.ClassName
	} else if !errors.Is(err, appErrors.ErrRecordNotFound) {
		s.logger.Warn("profile department lookup failed", zap.Int("user_id", userID), zap.Error(err))
	}
	english, achievements := classifyAchievements(certs)
	return &dto.StudentProfile{UserInfo: info, EnglishScores: english, Achievements: achievements}, nil
}

func (s *PortalService) student(ctx context.Context, userID int) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "用户不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *PortalService) logsDesc(ctx context.Context, userID int) ([]models.ScoreLog, error) {
	logs, err := s.scoreLogs.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score logs")
	}
	out := make([]models.ScoreLog, len(logs))
	for i, log := range logs {
		out[len(logs)-1-i] = log
	}
	return out, nil
}

func profileUserInfo(student models.Student) dto.ProfileUserInfo {
	birth, gender := models.BirthAndGender(student.IDCardNo)
	if student.BirthDate != "" {
		birth = student.BirthDate
	}
	if student.Gender != "" {
		gender = student.Gender
	}
	return dto.ProfileUserInfo{
		Name:                 student.Name,
		StudentID:            student.StudentID,
		IDCardNo:             student.IDCardNo,
		Phone:                student.Phone,
		Birthplace:           student.Birthplace,
		Ethnicity:            student.Ethnicity,
		PoliticalAffiliation: student.PoliticalAffiliation,
		Gender:               gender,
		BirthDate:            birth,
		Credits:              student.Credits,
		GPA:                  student.GPA,
		BaseScore:            student.BaseScore,
		TotalScore:           student.TotalScore,
	}
}
