package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

type dashboardStudentRepository interface {
	StatusSummary(ctx context.Context, departmentIDs []int) (map[models.Stage]map[models.StageStatus]int, int, error)
	IDsByDepartments(ctx context.Context, departmentIDs []int) ([]int, error)
}

type dashboardCertificateRepository interface {
	CountByStatus(ctx context.Context, userIDs []int) (map[models.CertificateStatus]int, error)
}

type dashboardDepartmentRepository interface {
	List(ctx context.Context) ([]models.Department, error)
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Students     dashboardStudentRepository
	Certificates dashboardCertificateRepository
	Departments  dashboardDepartmentRepository
	Cache        *CacheService
	Logger       *zap.Logger
}

// DashboardService composes the admin dashboard counters.
type DashboardService struct {
	students     dashboardStudentRepository
	certificates dashboardCertificateRepository
	departments  dashboardDepartmentRepository
	cache        *CacheService
	logger       *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students:     params.Students,
		certificates: params.Certificates,
		departments:  params.Departments,
		cache:        params.Cache,
		logger:       logger,
	}
}

// Stats returns the counters visible to admin and whether they came from cache.
func (s *DashboardService) Stats(ctx context.Context, admin *models.Admin) (*dto.DashboardStats, bool, error) {
	scope := departmentScope(admin)
	if cached, ok := s.cache.Lookup(ctx, scope); ok {
		return cached, true, nil
	}

	stats, err := s.compose(ctx, scope)
	if err != nil {
		return nil, false, err
	}
	s.logger.Debug("dashboard stats recomputed", zap.Int("departments", len(scope)), zap.Int("students", stats.StudentTotal))
	s.cache.Store(ctx, scope, stats)
	return stats, false, nil
}

// Invalidate drops every cached dashboard.
func (s *DashboardService) Invalidate(ctx context.Context) {
	invalidateDashboard(ctx, s.cache)
}

func (s *DashboardService) compose(ctx context.Context, scope []int) (*dto.DashboardStats, error) {
	summary, total, err := s.students.StatusSummary(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise students")
	}

	var userIDs []int
	if scope != nil {
		userIDs, err = s.students.IDsByDepartments(ctx, scope)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve students")
		}
	}
	counts, err := s.certificates.CountByStatus(ctx, userIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count certificates")
	}

	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	deptTotal := 0
	for _, d := range departments {
		if scope == nil || containsID(scope, d.ID) {
			deptTotal++
		}
	}

	return &dto.DashboardStats{
		StudentTotal:        total,
		DepartmentTotal:     deptTotal,
		CertificatePending:  counts[models.CertificatePending],
		CertificateApproved: counts[models.CertificateApproved],
		CertificateRejected: counts[models.CertificateRejected],
		StatusSummary:       summary,
	}, nil
}

// invalidateDashboard is called after every write that changes a counter.
func invalidateDashboard(ctx context.Context, cache *CacheService) {
	cache.Flush(ctx)
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
