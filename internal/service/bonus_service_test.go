package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/models"
)

func (r *repos) bonusService() *BonusService {
	return NewBonusService(BonusServiceParams{
		Students:    r.students,
		ScoreLogs:   r.scoreLogs,
		Departments: r.departments,
	})
}

func addBonusStudent(t *testing.T, r *repos, deptID int, idCard string) *models.Student {
	t.Helper()
	s := &models.Student{Name: idCard, IDCardNo: idCard, DepartmentID: deptID, BaseScore: 80, ProcessStatus: models.NewProcessStatus()}
	require.NoError(t, r.students.Create(context.Background(), s))
	return s
}

func systemBonuses(t *testing.T, r *repos, userID int) []models.ScoreLog {
	t.Helper()
	logs, err := r.scoreLogs.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	out := make([]models.ScoreLog, 0)
	for _, l := range logs {
		if l.Type == models.ScoreSystem {
			out = append(out, l)
		}
	}
	return out
}

func TestBonusSweepGrantsOncePerWindow(t *testing.T) {
	r := newRepos(t, false)
	svc := r.bonusService()
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 2, 0, 0, 0, time.UTC)

	dept := &models.Department{College: "飞行技术学院", Grade: "2023级", Major: "飞行技术", ClassName: "2301班", BaseScore: 80, BonusStartDate: "2024-01-01"}
	require.NoError(t, r.departments.Create(ctx, dept))
	clean := addBonusStudent(t, r, dept.ID, "510100200001010001")
	recent := addBonusStudent(t, r, dept.ID, "510100200001010002")
	older := addBonusStudent(t, r, dept.ID, "510100200001010003")
	require.NoError(t, r.scoreLogs.Create(ctx, &models.ScoreLog{UserID: recent.ID, Delta: -2, Reason: "迟到", Type: models.ScoreManual, CreateTime: now.Add(-72 * time.Hour)}))
	require.NoError(t, r.scoreLogs.Create(ctx, &models.ScoreLog{UserID: older.ID, Delta: -1, Reason: "着装", Type: models.ScoreManual, CreateTime: now.Add(-10 * 24 * time.Hour)}))

	granted, err := svc.Sweep(ctx, WeeklyBonus, now)
	require.NoError(t, err)
	assert.Equal(t, 2, granted)

	granted, err = svc.Sweep(ctx, WeeklyBonus, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, granted, "same window")

	granted, err = svc.Sweep(ctx, MonthlyBonus, now)
	require.NoError(t, err)
	assert.Equal(t, 1, granted, "only the student without deductions in 30 days")

	bonuses := systemBonuses(t, r, clean.ID)
	require.Len(t, bonuses, 2)
	assert.Equal(t, 1, bonuses[0].Delta)
	assert.Equal(t, "每周全勤奖励", bonuses[0].Reason)
	assert.Equal(t, 2, bonuses[1].Delta)
	assert.Equal(t, "每月全勤奖励", bonuses[1].Reason)
	assert.Empty(t, systemBonuses(t, r, recent.ID))

	granted, err = svc.Sweep(ctx, WeeklyBonus, now.Add(7*24*time.Hour+time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, granted, "next window, the old deduction has aged out")

	s, err := r.students.FindByID(ctx, clean.ID)
	require.NoError(t, err)
	assert.Equal(t, 84, s.TotalScore)
}

func TestBonusSweepWaitsForDepartmentStart(t *testing.T) {
	r := newRepos(t, false)
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 2, 0, 0, 0, time.UTC)

	dept := &models.Department{College: "理学院", Grade: "2024级", Major: "物理", ClassName: "1班", BaseScore: 80, BonusStartDate: "2024-09-01"}
	require.NoError(t, r.departments.Create(ctx, dept))
	student := addBonusStudent(t, r, dept.ID, "510100200001010009")

	granted, err := r.bonusService().Sweep(ctx, WeeklyBonus, now)
	require.NoError(t, err)
	assert.Zero(t, granted)
	assert.Empty(t, systemBonuses(t, r, student.ID))
}

func TestBonusScheduleTimes(t *testing.T) {
	at := func(y int, m time.Month, d, h, minute int) time.Time { return time.Date(y, m, d, h, minute, 0, 0, time.UTC) }

	assert.Equal(t, at(2024, 6, 3, 2, 0), WeeklyBonus.Next(at(2024, 6, 3, 1, 0)))
	assert.Equal(t, at(2024, 6, 10, 2, 0), WeeklyBonus.Next(at(2024, 6, 3, 2, 0)))
	assert.Equal(t, at(2024, 6, 10, 2, 0), WeeklyBonus.Next(at(2024, 6, 9, 23, 0)))

	assert.Equal(t, at(2024, 6, 1, 3, 0), MonthlyBonus.Next(at(2024, 6, 1, 2, 59)))
	assert.Equal(t, at(2024, 7, 1, 3, 0), MonthlyBonus.Next(at(2024, 6, 1, 3, 0)))
	assert.Equal(t, at(2025, 1, 1, 3, 0), MonthlyBonus.Next(at(2024, 12, 20, 8, 0)))
}
