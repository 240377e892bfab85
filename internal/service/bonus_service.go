package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// BonusRule grants Delta to every student without a deduction during the
// trailing Window. A student receives a rule's bonus at most once per Window.
type BonusRule struct {
	Name   string
	Delta  int
	Reason string
	Window time.Duration
	// Next returns the first scheduled run strictly after t.
	Next func(t time.Time) time.Time
}

// Attendance bonuses: weekly on Monday 02:00, monthly on the 1st at 03:00.
var (
	WeeklyBonus = BonusRule{
		Name:   "weekly",
		Delta:  1,
		Reason: "每周全勤奖励",
		Window: 7 * 24 * time.Hour,
		Next:   weekdayAt(time.Monday, 2),
	}
	MonthlyBonus = BonusRule{
		Name:   "monthly",
		Delta:  2,
		Reason: "每月全勤奖励",
		Window: 30 * 24 * time.Hour,
		Next:   monthDayAt(1, 3),
	}
)

func weekdayAt(day time.Weekday, hour int) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		next := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
		next = next.AddDate(0, 0, (int(day)-int(next.Weekday())+7)%7)
		if !next.After(t) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	}
}

func monthDayAt(day, hour int) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		next := time.Date(t.Year(), t.Month(), day, hour, 0, 0, 0, t.Location())
		if !next.After(t) {
			next = time.Date(t.Year(), t.Month()+1, day, hour, 0, 0, 0, t.Location())
		}
		return next
	}
}

type bonusStudentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

// BonusServiceParams groups constructor dependencies.
type BonusServiceParams struct {
	Students    bonusStudentLister
	ScoreLogs   scoreLogRepository
	Departments departmentFinder
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// BonusService writes the system score changes for attendance bonuses.
type BonusService struct {
	students    bonusStudentLister
	scoreLogs   scoreLogRepository
	departments departmentFinder
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewBonusService constructs a BonusService.
func NewBonusService(p BonusServiceParams) *BonusService {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BonusService{
		students:    p.Students,
		scoreLogs:   p.ScoreLogs,
		departments: p.Departments,
		metrics:     p.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Start runs each rule at its scheduled times until ctx is done.
func (s *BonusService) Start(ctx context.Context, rules ...BonusRule) {
	for _, rule := range rules {
		go s.schedule(ctx, rule)
	}
}

func (s *BonusService) schedule(ctx context.Context, rule BonusRule) {
	for {
		now := s.now()
		timer := time.NewTimer(rule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if _, err := s.Sweep(ctx, rule, s.now()); err != nil {
			s.logger.Warn("score bonus sweep failed", zap.String("rule", rule.Name), zap.Error(err))
		}
	}
}

// Sweep grants rule to every eligible student as of now and returns how
// many students received it. Students whose department bonus start date is
// still ahead are skipped.
func (s *BonusService) Sweep(ctx context.Context, rule BonusRule, now time.Time) (int, error) {
	students, _, err := s.students.List(ctx, models.StudentFilter{})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	cutoff := now.Add(-rule.Window)
	starts := make(map[int]time.Time)

	granted := 0
	for _, student := range students {
		if start, ok := s.bonusStart(ctx, student.DepartmentID, starts, now.Location()); ok && start.After(now) {
			continue
		}
		logs, err := s.scoreLogs.ListByUser(ctx, student.ID)
		if err != nil {
			return granted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score logs")
		}
		if !eligibleForBonus(logs, rule, cutoff) {
			continue
		}
		entry := &models.ScoreLog{
			UserID:     student.ID,
			Delta:      rule.Delta,
			Reason:     rule.Reason,
			Type:       models.ScoreSystem,
			CreateTime: now.UTC(),
		}
		if err := s.scoreLogs.Create(ctx, entry); err != nil {
			return granted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record bonus")
		}
		granted++
	}

	s.metrics.RecordBonus(rule.Name, granted)
	s.logger.Info("score bonus sweep finished",
		zap.String("rule", rule.Name),
		zap.Int("students", len(students)),
		zap.Int("granted", granted),
	)
	return granted, nil
}

// eligibleForBonus is false when logs since cutoff hold a deduction or the
// rule's own bonus.
func eligibleForBonus(logs []models.ScoreLog, rule BonusRule, cutoff time.Time) bool {
	for _, log := range logs {
		if log.CreateTime.Before(cutoff) {
			continue
		}
		if log.Delta < 0 {
			return false
		}
		if log.Type == models.ScoreSystem && log.Delta == rule.Delta && log.Reason == rule.Reason {
			return false
		}
	}
	return true
}

func (s *BonusService) bonusStart(ctx context.Context, departmentID int, seen map[int]time.Time, loc *time.Location) (time.Time, bool) {
	if start, ok := seen[departmentID]; ok {
		return start, !start.IsZero()
	}
	var start time.Time
	if s.departments != nil {
		if dept, err := s.departments.FindByID(ctx, departmentID); err == nil && dept.BonusStartDate != "" {
			if parsed, err := time.ParseInLocation("2006-01-02", dept.BonusStartDate, loc); err == nil {
				start = parsed
			}
		}
	}
	seen[departmentID] = start
	return start, !start.IsZero()
}
