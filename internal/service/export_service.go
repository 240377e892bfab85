package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/jobs"
	"github.com/noah-isme/contrail/pkg/storage"
)

// ExportJobType tags department export jobs on the worker queue.
const ExportJobType = "department_export"

const (
	exportFilePrefix = "export_"
	exportDir        = "exports"
)

type exportTaskStore interface {
	Create(ctx context.Context, task *models.ExportTask) error
	FindByID(ctx context.Context, taskID string) (*models.ExportTask, error)
	Update(ctx context.Context, taskID string, fn func(*models.ExportTask)) (*models.ExportTask, error)
	FinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ExportTask, error)
	Delete(ctx context.Context, taskID string) error
}

type exportFileStore interface {
	Stage(name string) (*storage.Staged, error)
	Exists(name string) bool
	Path(name string) string
	Delete(name string) error
	Sweep(prefix string, ttl time.Duration) ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	DownloadPrefix  string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	// StepDelay pauses the worker after each student so progress can be
	// followed in development.
	StepDelay time.Duration
}

// ExportDownload points at a finished archive.
type ExportDownload struct {
	TaskID   string
	Path     string
	FileName string
}

// ExportServiceParams groups ExportService dependencies.
type ExportServiceParams struct {
	Tasks       exportTaskStore
	Departments departmentFinder
	Storage     exportFileStore
	Queue       jobDispatcher
	Hub         *ExportHub
	Logger      *zap.Logger
	Config      ExportConfig
}

// ExportService orchestrates department archive exports: enqueueing,
// ownership checked status and download, and cleanup of stale archives.
type ExportService struct {
	tasks       exportTaskStore
	departments departmentFinder
	storage     exportFileStore
	queue       jobDispatcher
	hub         *ExportHub
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	cfg := params.Config
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = "/api/admin/export/download"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := params.Hub
	if hub == nil {
		hub = NewExportHub()
	}
	return &ExportService{
		tasks:       params.Tasks,
		departments: params.Departments,
		storage:     params.Storage,
		queue:       params.Queue,
		hub:         hub,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Start enqueues an export of every student in departmentID.
func (s *ExportService) Start(ctx context.Context, admin *models.Admin, departmentID int) (*dto.ExportStartResponse, error) {
	if _, err := s.departments.FindByID(ctx, departmentID); err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "部门不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if !admin.Manages(departmentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "无权导出该部门学生档案")
	}

	task := &models.ExportTask{
		TaskID:       uuid.NewString(),
		AdminID:      admin.ID,
		DepartmentID: departmentID,
		Status:       models.ExportPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export task")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: task.TaskID, Kind: ExportJobType}); err != nil {
		now := s.now().UTC()
		_, _ = s.tasks.Update(ctx, task.TaskID, func(t *models.ExportTask) {
			t.Status = models.ExportFailed
			t.Error = "导出队列繁忙，请稍后重试"
			t.FinishedAt = &now
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export task")
	}
	s.logger.Info("export queued", zap.String("task_id", task.TaskID), zap.Int("department_id", departmentID), zap.Int("admin_id", admin.ID))
	return &dto.ExportStartResponse{Code: 200, TaskID: task.TaskID}, nil
}

// Status reports progress of a task owned by admin.
func (s *ExportService) Status(ctx context.Context, admin *models.Admin, taskID string) (*dto.ExportStatusResponse, error) {
	task, err := s.owned(ctx, admin, taskID, "无权查询该导出任务")
	if err != nil {
		return nil, err
	}
	status := exportStatus(*task)
	return &status, nil
}

// Watch subscribes admin to progress frames of taskID. The current state is
// returned alongside the stream so callers can send it first.
func (s *ExportService) Watch(ctx context.Context, admin *models.Admin, taskID string) (dto.ExportStatusResponse, <-chan dto.ExportStatusResponse, func(), error) {
	if _, err := s.owned(ctx, admin, taskID, "无权查询该导出任务"); err != nil {
		return dto.ExportStatusResponse{}, nil, nil, err
	}
	frames, cancel := s.hub.Subscribe(taskID)
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		cancel()
		return dto.ExportStatusResponse{}, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "任务不存在")
	}
	return exportStatus(*task), frames, cancel, nil
}

// Download resolves the archive of a completed task owned by admin.
func (s *ExportService) Download(ctx context.Context, admin *models.Admin, taskID string) (*ExportDownload, error) {
	task, err := s.owned(ctx, admin, taskID, "无权下载该导出文件")
	if err != nil {
		return nil, err
	}
	if task.Status != models.ExportCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "任务尚未完成，无法下载")
	}
	if task.FilePath == "" || !s.storage.Exists(task.FilePath) {
		return nil, appErrors.Clone(appErrors.ErrGone, "导出文件不存在或已被清理")
	}
	return &ExportDownload{TaskID: task.TaskID, Path: s.storage.Path(task.FilePath), FileName: task.FileName}, nil
}

// Release removes the archive of taskID once it has been served.
func (s *ExportService) Release(ctx context.Context, taskID string) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil || task.FilePath == "" {
		return
	}
	if err := s.storage.Delete(task.FilePath); err != nil {
		s.logger.Warn("export release failed", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	_, _ = s.tasks.Update(ctx, taskID, func(t *models.ExportTask) { t.FilePath = "" })
}

// StartCleanup purges stale tasks and archives every CleanupInterval until
// ctx is done.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

// CleanupExpired deletes tasks finished more than ResultTTL ago together with
// their archives, and any orphaned archive older than ResultTTL.
func (s *ExportService) CleanupExpired(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	expired, err := s.tasks.FinishedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Warn("export cleanup list failed", zap.Error(err))
		return 0
	}
	for _, task := range expired {
		if task.FilePath != "" {
			if err := s.storage.Delete(task.FilePath); err != nil {
				s.logger.Warn("export cleanup delete failed", zap.String("task_id", task.TaskID), zap.Error(err))
			}
		}
		if err := s.tasks.Delete(ctx, task.TaskID); err != nil && !errors.Is(err, appErrors.ErrRecordNotFound) {
			s.logger.Warn("export task delete failed", zap.String("task_id", task.TaskID), zap.Error(err))
		}
	}
	if _, err := s.storage.Sweep(exportFilePrefix, s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export filesystem cleanup failed", zap.Error(err))
	}
	if len(expired) > 0 {
		s.logger.Info("export tasks cleaned", zap.Int("count", len(expired)))
	}
	return len(expired)
}

func (s *ExportService) owned(ctx context.Context, admin *models.Admin, taskID, denied string) (*models.ExportTask, error) {
	task, err := s.tasks.FindByID(ctx, strings.TrimSpace(taskID))
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "任务不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export task")
	}
	if admin == nil || task.AdminID != admin.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, denied)
	}
	return task, nil
}

func exportStatus(task models.ExportTask) dto.ExportStatusResponse {
	out := dto.ExportStatusResponse{
		Code:     200,
		TaskID:   task.TaskID,
		Status:   task.Status,
		Progress: task.Progress,
		Total:    task.Total,
	}
	if task.Error != "" {
		msg := task.Error
		out.Error = &msg
	}
	if task.Status == models.ExportCompleted && task.DownloadURL != "" {
		url := task.DownloadURL
		out.DownloadURL = &url
	}
	return out
}

func exportArchiveName(taskID string) string {
	return fmt.Sprintf("%s/%s%s.zip", exportDir, exportFilePrefix, taskID)
}
