package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/models"
)

func (r *repos) portalService() *PortalService {
	return NewPortalService(PortalServiceParams{
		Students:     r.students,
		ScoreLogs:    r.scoreLogs,
		Comments:     r.comments,
		Certificates: r.certificates,
		Departments:  r.departments,
	})
}

func TestPortalDashboardAndScore(t *testing.T) {
	r := newRepos(t, true)
	svc := r.portalService()
	ctx := context.Background()

	dash, err := svc.Dashboard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 85, dash.Score)
	assert.Equal(t, "该生在校表现良好，积极参与班级活动。", dash.Comment)
	assert.Equal(t, models.StatusQualified, dash.ProcessStatus.Preliminary)

	quiet, err := svc.Dashboard(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, quiet.Comment)
	assert.Equal(t, 80, quiet.Score)

	score, err := svc.Score(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 80, score.BaseScore)
	assert.Equal(t, 85, score.TotalScore)
	require.Len(t, score.ScoreLogs, 7)
	assert.Equal(t, 107, score.ScoreLogs[0].ID)
	assert.Equal(t, 101, score.ScoreLogs[6].ID)

	_, err = svc.Score(ctx, 9999)
	requireAppError(t, err, http.StatusNotFound, "用户不存在")
}

func TestPortalScoreKeepsLatestFifty(t *testing.T) {
	r := newRepos(t, true)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		require.NoError(t, r.scoreLogs.Create(ctx, &models.ScoreLog{
			UserID:     3,
			Delta:      1,
			Reason:     "出勤",
			Type:       models.ScoreSystem,
			CreateTime: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	score, err := r.portalService().Score(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 140, score.TotalScore)
	require.Len(t, score.ScoreLogs, recentScoreLogs)
	assert.True(t, score.ScoreLogs[0].CreateTime.After(score.ScoreLogs[1].CreateTime))

	history, err := r.portalService().History(ctx, 3, 4, 20)
	require.NoError(t, err)
	assert.Equal(t, 60, history.Total)
	assert.Equal(t, 3, history.Pages)
	assert.Empty(t, history.Items)

	last, err := r.portalService().History(ctx, 3, 3, 20)
	require.NoError(t, err)
	require.Len(t, last.Items, 20)
	assert.Equal(t, base, last.Items[19].CreateTime.UTC())
}

func TestPortalProfile(t *testing.T) {
	r := newRepos(t, true)
	svc := r.portalService()
	ctx := context.Background()

	profile, err := svc.Profile(ctx, 1)
	require.NoError(t, err)
	info := profile.UserInfo
	assert.Equal(t, "张三", info.Name)
	assert.Equal(t, "13800000001", info.Phone)
	assert.Equal(t, "民航与航空学院", info.College)
	assert.Equal(t, "241班", info.ClassName)
	assert.Equal(t, "2000年01月", info.BirthDate)
	assert.Equal(t, "女", info.Gender)
	assert.Equal(t, 85, info.TotalScore)

	assert.Equal(t, "431", profile.EnglishScores.CET4)
	assert.Empty(t, profile.EnglishScores.CET6)
	assert.Empty(t, profile.EnglishScores.IELTS)
	assert.Empty(t, profile.Achievements.Positions)
	require.Len(t, profile.Achievements.Awards, 1)
	assert.Equal(t, "计算机二级", profile.Achievements.Awards[0].Name)
	assert.Equal(t, "2024-05-14", profile.Achievements.Awards[0].Date)
}
