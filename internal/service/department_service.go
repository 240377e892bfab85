package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

type departmentRepository interface {
	List(ctx context.Context) ([]models.Department, error)
	FindByID(ctx context.Context, id int) (*models.Department, error)
	FindByNameParts(ctx context.Context, college, grade, major, className string) (*models.Department, error)
	Create(ctx context.Context, dept *models.Department) error
	Update(ctx context.Context, dept *models.Department) error
	Delete(ctx context.Context, id int) error
}

type certificateTypeChecker interface {
	Missing(ctx context.Context, ids []int) ([]int, error)
}

// DepartmentService manages departments and their required certificates.
type DepartmentService struct {
	repo   departmentRepository
	types  certificateTypeChecker
	cache  *CacheService
	logger *zap.Logger
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(repo departmentRepository, types certificateTypeChecker, cache *CacheService, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, types: types, cache: cache, logger: logger}
}

// List returns every department, newest first.
func (s *DepartmentService) List(ctx context.Context) (dto.List[models.Department], error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return dto.List[models.Department]{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return dto.NewList(items), nil
}

// Get returns one department.
func (s *DepartmentService) Get(ctx context.Context, id int) (*dto.DepartmentResponse, error) {
	dept, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.DepartmentResponse{Department: *dept}, nil
}

// Create stores a department. When one with the same name parts exists it
// is returned instead and created is false.
func (s *DepartmentService) Create(ctx context.Context, req dto.DepartmentRequest) (*dto.DepartmentResponse, bool, error) {
	parts, err := departmentParts(req)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.repo.FindByNameParts(ctx, parts[0], parts[1], parts[2], parts[3])
	if err == nil {
		return &dto.DepartmentResponse{Department: *existing}, false, nil
	}
	if !errors.Is(err, appErrors.ErrRecordNotFound) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up department")
	}
	bonus, err := bonusStartDate(req.BonusStartDate)
	if err != nil {
		return nil, false, err
	}

	dept := &models.Department{
		College:        parts[0],
		Grade:          parts[1],
		Major:          parts[2],
		ClassName:      parts[3],
		BonusStartDate: bonus,
		BaseScore:      models.DefaultBaseScore,
	}
	if req.BaseScore != nil {
		dept.BaseScore = *req.BaseScore
	}
	if err := s.repo.Create(ctx, dept); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "创建部门失败")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("department created", zap.Int("department_id", dept.ID), zap.String("name", dept.Name()))
	return &dto.DepartmentResponse{Department: *dept}, true, nil
}

// Update changes a department's name parts, start date or base score.
func (s *DepartmentService) Update(ctx context.Context, id int, req dto.DepartmentRequest) (*dto.DepartmentResponse, error) {
	dept, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	parts, err := departmentParts(req)
	if err != nil {
		return nil, err
	}
	if other, err := s.repo.FindByNameParts(ctx, parts[0], parts[1], parts[2], parts[3]); err == nil && other.ID != id {
		return nil, appErrors.Clone(appErrors.ErrConflict, "同名部门已存在")
	}
	bonus, err := bonusStartDate(req.BonusStartDate)
	if err != nil {
		return nil, err
	}

	dept.College, dept.Grade, dept.Major, dept.ClassName = parts[0], parts[1], parts[2], parts[3]
	if bonus != "" {
		dept.BonusStartDate = bonus
	}
	if req.BaseScore != nil {
		dept.BaseScore = *req.BaseScore
	}
	if err := s.repo.Update(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return &dto.DepartmentResponse{Message: "部门更新成功", Department: *dept}, nil
}

// Delete removes a department without students.
func (s *DepartmentService) Delete(ctx context.Context, id int) (*dto.Message, error) {
	dept, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if dept.StudentCount > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "部门下仍有学生，无法删除")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "部门不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("department deleted", zap.Int("department_id", id))
	return &dto.Message{Message: "部门删除成功"}, nil
}

// BindCertificateTypes replaces the certificate types a department requires.
func (s *DepartmentService) BindCertificateTypes(ctx context.Context, id int, req dto.BindCertificatesRequest) (*dto.DepartmentResponse, error) {
	dept, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := uniqueSorted(req.CertificateTypeIDs)
	missing, err := s.types.Missing(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check certificate types")
	}
	if len(missing) > 0 {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "以下证书类型ID不存在: %v", missing)
	}
	dept.CertificateTypeIDs = ids
	if err := s.repo.Update(ctx, dept); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind certificate types")
	}
	return &dto.DepartmentResponse{Message: "证书配置已保存", Department: *dept}, nil
}

func (s *DepartmentService) find(ctx context.Context, id int) (*models.Department, error) {
	dept, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "部门不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return dept, nil
}

func departmentParts(req dto.DepartmentRequest) ([4]string, error) {
	parts := [4]string{
		strings.TrimSpace(req.College),
		strings.TrimSpace(req.Grade),
		strings.TrimSpace(req.Major),
		strings.TrimSpace(req.ClassName),
	}
	for _, p := range parts {
		if p == "" {
			return parts, appErrors.Clone(appErrors.ErrValidation, "college/grade/major/class_name 均不能为空")
		}
	}
	return parts, nil
}

func bonusStartDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("bonus_start_date 格式错误: %s，应为 YYYY-MM-DD", raw))
	}
	return raw, nil
}

func uniqueSorted(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
