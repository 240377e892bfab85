package service

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/jobs"
	"github.com/noah-isme/contrail/pkg/storage"
)

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exportFixture struct {
	repos   *repos
	queue   *recordingQueue
	hub     *ExportHub
	store   *storage.LocalStorage
	service *ExportService
	worker  *ExportWorker
	deptID  int
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	r := newRepos(t, true)
	ctx := context.Background()

	dept := &models.Department{College: "测试学院", Grade: "2025级", Major: "飞行技术", ClassName: "1班", BaseScore: 80}
	require.NoError(t, r.departments.Create(ctx, dept))
	require.NoError(t, r.students.Create(ctx,
		&models.Student{StudentID: "2025000001", Name: "甲", IDCardNo: "110101200102030011", DepartmentID: dept.ID, BaseScore: 80, ProcessStatus: models.NewProcessStatus()},
		&models.Student{StudentID: "", Name: "乙", IDCardNo: "110101200102030022", DepartmentID: dept.ID, BaseScore: 80, ProcessStatus: models.NewProcessStatus()},
	))

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	queue := &recordingQueue{}
	hub := NewExportHub()
	cfg := ExportConfig{ResultTTL: time.Hour}

	service := NewExportService(ExportServiceParams{
		Tasks:       r.exports,
		Departments: r.departments,
		Storage:     store,
		Queue:       queue,
		Hub:         hub,
		Config:      cfg,
	})
	worker := NewExportWorker(ExportWorkerParams{
		Tasks:        r.exports,
		Students:     r.students,
		Departments:  r.departments,
		Certificates: r.certificates,
		ScoreLogs:    r.scoreLogs,
		Storage:      store,
		Hub:          hub,
		Config:       cfg,
	})
	return &exportFixture{repos: r, queue: queue, hub: hub, store: store, service: service, worker: worker, deptID: dept.ID}
}

func drain(frames <-chan dto.ExportStatusResponse) []dto.ExportStatusResponse {
	var out []dto.ExportStatusResponse
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return out
			}
			out = append(out, frame)
		default:
			return out
		}
	}
}

func TestExportStartChecksDepartmentAndScope(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	_, err := f.service.Start(ctx, superAdmin(), 999)
	requireAppError(t, err, http.StatusNotFound, "部门不存在")

	_, err = f.service.Start(ctx, teacherAdmin(), f.deptID)
	requireAppError(t, err, http.StatusForbidden, "无权导出该部门学生档案")
	assert.Empty(t, f.queue.jobs)

	f.queue.err = errors.New("queue full")
	_, err = f.service.Start(ctx, superAdmin(), f.deptID)
	requireAppError(t, err, http.StatusInternalServerError, "")
}

func TestExportEndToEnd(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	started, err := f.service.Start(ctx, superAdmin(), f.deptID)
	require.NoError(t, err)
	assert.Equal(t, 200, started.Code)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, ExportJobType, f.queue.jobs[0].Kind)
	taskID := started.TaskID

	_, _, _, err = f.service.Watch(ctx, teacherAdmin(), taskID)
	requireAppError(t, err, http.StatusForbidden, "无权查询该导出任务")

	current, frames, cancel, err := f.service.Watch(ctx, superAdmin(), taskID)
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, models.ExportPending, current.Status)
	assert.Nil(t, current.DownloadURL)

	_, err = f.service.Download(ctx, superAdmin(), taskID)
	requireAppError(t, err, http.StatusBadRequest, "任务尚未完成")

	require.NoError(t, f.worker.Handle(ctx, f.queue.jobs[0]))

	got := drain(frames)
	require.NotEmpty(t, got)
	assert.Equal(t, models.ExportProcessing, got[0].Status)
	last := got[len(got)-1]
	assert.Equal(t, models.ExportCompleted, last.Status)
	require.NotNil(t, last.DownloadURL)
	assert.Equal(t, "/api/admin/export/download/"+taskID, *last.DownloadURL)
	assert.Equal(t, 100, last.Percent())

	status, err := f.service.Status(ctx, superAdmin(), taskID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Progress)
	assert.Equal(t, 2, status.Total)
	assert.Nil(t, status.Error)

	download, err := f.service.Download(ctx, superAdmin(), taskID)
	require.NoError(t, err)
	assert.Equal(t, "测试学院_1班_学生档案.zip", download.FileName)

	archive, err := zip.OpenReader(download.Path)
	require.NoError(t, err)
	names := make([]string, 0, len(archive.File))
	for _, file := range archive.File {
		names = append(names, file.Name)
	}
	require.NoError(t, archive.Close())
	assert.Contains(t, names, "测试学院_1班_学生名单.csv")
	assert.Contains(t, names, "测试学院_1班_学生名单.xlsx")
	assert.Contains(t, names, "测试学院_1班_甲_2025000001/甲_积分明细.xlsx")
	assert.Contains(t, names, "测试学院_1班_甲_2025000001/甲_送飞鉴定表.pdf")
	assert.Contains(t, names, "测试学院_1班_乙_110101200102030022/乙_送飞鉴定表.pdf")

	f.service.Release(ctx, taskID)
	_, err = os.Stat(download.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = f.service.Download(ctx, superAdmin(), taskID)
	requireAppError(t, err, http.StatusGone, "导出文件不存在或已被清理")
}

func TestExportCleanupRemovesExpiredTasks(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	started, err := f.service.Start(ctx, superAdmin(), f.deptID)
	require.NoError(t, err)
	require.NoError(t, f.worker.Handle(ctx, f.queue.jobs[0]))

	assert.Zero(t, f.service.CleanupExpired(ctx))
	_, err = f.service.Download(ctx, superAdmin(), started.TaskID)
	require.NoError(t, err)

	f.service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, f.service.CleanupExpired(ctx))
	assert.False(t, f.store.Exists(exportArchiveName(started.TaskID)))

	_, err = f.service.Status(ctx, superAdmin(), started.TaskID)
	requireAppError(t, err, http.StatusNotFound, "任务不存在")
}

func TestExportWorkerFailures(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.worker.Handle(ctx, jobs.Job{ID: "missing", Kind: ExportJobType}))

	started, err := f.service.Start(ctx, superAdmin(), f.deptID)
	require.NoError(t, err)
	f.worker.Fail(f.queue.jobs[0], errors.New("disk full"))

	status, err := f.service.Status(ctx, superAdmin(), started.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFailed, status.Status)
	require.NotNil(t, status.Error)
	assert.True(t, strings.HasPrefix(*status.Error, "导出过程发生异常"))
	assert.Nil(t, status.DownloadURL)
}

func TestExportHubDelivery(t *testing.T) {
	hub := NewExportHub()
	frames, cancel := hub.Subscribe("t1")
	other, cancelOther := hub.Subscribe("t2")
	defer cancelOther()
	assert.Equal(t, 1, hub.Subscribers("t1"))

	for i := 0; i < hubBuffer+3; i++ {
		hub.Publish(dto.ExportStatusResponse{TaskID: "t1", Status: models.ExportProcessing, Progress: i})
	}
	hub.Publish(dto.ExportStatusResponse{TaskID: "t1", Status: models.ExportCompleted})

	got := drain(frames)
	require.Len(t, got, hubBuffer)
	assert.Equal(t, models.ExportCompleted, got[len(got)-1].Status)
	assert.Empty(t, drain(other))

	cancel()
	cancel()
	assert.Zero(t, hub.Subscribers("t1"))
	_, open := <-frames
	assert.False(t, open)
}
