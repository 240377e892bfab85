package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

type certificateRepository interface {
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
	ListByUser(ctx context.Context, userID int) ([]models.Certificate, error)
	FindByID(ctx context.Context, id int) (*models.Certificate, error)
	Create(ctx context.Context, cert *models.Certificate) error
	UpdateReview(ctx context.Context, id int, status models.CertificateStatus, reason string, reviewedAt time.Time) (*models.Certificate, error)
}

type certificateStudentRepository interface {
	FindByID(ctx context.Context, id int) (*models.Student, error)
	IDsByDepartments(ctx context.Context, departmentIDs []int) ([]int, error)
}

type departmentFinder interface {
	FindByID(ctx context.Context, id int) (*models.Department, error)
}

type certificateTypeLister interface {
	List(ctx context.Context) ([]models.CertificateType, error)
}

// CertificateServiceParams groups constructor dependencies.
type CertificateServiceParams struct {
	Certificates certificateRepository
	Students     certificateStudentRepository
	Departments  departmentFinder
	Types        certificateTypeLister
	Images       *ImageService
	Metrics      *MetricsService
	Cache        *CacheService
	Logger       *zap.Logger
}

// CertificateService covers certificate review for admins and submission
// for students.
type CertificateService struct {
	certs       certificateRepository
	students    certificateStudentRepository
	departments departmentFinder
	types       certificateTypeLister
	images      *ImageService
	metrics     *MetricsService
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(params CertificateServiceParams) *CertificateService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		certs:       params.Certificates,
		students:    params.Students,
		departments: params.Departments,
		types:       params.Types,
		images:      params.Images,
		metrics:     params.Metrics,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns the certificates of the students admin manages.
func (s *CertificateService) List(ctx context.Context, admin *models.Admin, status *models.CertificateStatus, page, perPage int) (*dto.CertificatePage, error) {
	page, perPage = dto.Normalize(page, perPage)
	if status != nil && !status.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的状态: %d，支持: 0(待审)/1(通过)/2(驳回)", int(*status))
	}

	filter := models.CertificateFilter{Status: status, Page: page, PerPage: perPage}
	if scope := departmentScope(admin); scope != nil {
		ids, err := s.students.IDsByDepartments(ctx, scope)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve students")
		}
		if len(ids) == 0 {
			return &dto.CertificatePage{Page: dto.NewPage[models.CertificateView](nil, 0, page, perPage)}, nil
		}
		filter.UserIDs = ids
	}

	certs, total, err := s.certs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}

	views := make([]models.CertificateView, 0, len(certs))
	signFailed := false
	for i := range certs {
		view, ok := s.view(ctx, &certs[i], true)
		if !ok {
			signFailed = true
		}
		views = append(views, view)
	}

	out := &dto.CertificatePage{Page: dto.NewPage(views, total, page, perPage)}
	if signFailed {
		out.Warning = "部分图片链接生成失败，请稍后重试"
	}
	return out, nil
}

// Get returns one certificate if admin manages its student.
func (s *CertificateService) Get(ctx context.Context, admin *models.Admin, id int) (*dto.CertificateViewResponse, error) {
	cert, err := s.authorize(ctx, admin, id, "无权访问该证书")
	if err != nil {
		return nil, err
	}
	view, ok := s.view(ctx, cert, true)
	out := &dto.CertificateViewResponse{Certificate: view}
	if !ok {
		out.Warning = "图片链接生成失败，请稍后重试"
	}
	return out, nil
}

// Audit approves or rejects a certificate. Approval clears any previous
// reject reason; both stamp the review time.
func (s *CertificateService) Audit(ctx context.Context, admin *models.Admin, id int, req dto.AuditRequest) (*dto.AuditResponse, error) {
	action := strings.TrimSpace(req.Action)
	reason := strings.TrimSpace(req.RejectReason)
	var status models.CertificateStatus
	switch action {
	case "":
		return nil, appErrors.Clone(appErrors.ErrValidation, "action 不能为空")
	case models.AuditApprove:
		status = models.CertificateApproved
		reason = ""
	case models.AuditReject:
		if reason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "驳回时必须提供 reject_reason")
		}
		status = models.CertificateRejected
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的 action: %s，支持: approve/reject", action)
	}

	if _, err := s.authorize(ctx, admin, id, "无权审核该证书"); err != nil {
		return nil, err
	}

	updated, err := s.certs.UpdateReview(ctx, id, status, reason, s.now().UTC())
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "证书不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review")
	}
	s.metrics.RecordAudit(action)
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("certificate reviewed", zap.Int("certificate_id", id), zap.Int("admin_id", admin.ID), zap.String("action", action))

	view, _ := s.view(ctx, updated, true)
	return &dto.AuditResponse{Message: "审核成功", Certificate: view}, nil
}

// ListForStudent returns the student's own certificates, latest first.
func (s *CertificateService) ListForStudent(ctx context.Context, userID int, status *models.CertificateStatus) (*dto.CertificateListResponse, error) {
	filter := models.CertificateFilter{UserID: userID, Status: status}
	certs, _, err := s.certs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	for i := range certs {
		s.presentForStudent(&certs[i])
	}
	return &dto.CertificateListResponse{Certificates: certs}, nil
}

// GetForStudent returns one of the student's own certificates.
func (s *CertificateService) GetForStudent(ctx context.Context, userID, id int) (*dto.CertificateResponse, error) {
	cert, err := s.certs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "证书不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "证书不存在")
	}
	s.presentForStudent(cert)
	return &dto.CertificateResponse{Certificate: *cert}, nil
}

// Submit registers an uploaded image as a pending certificate.
func (s *CertificateService) Submit(ctx context.Context, userID int, req dto.CertificateUploadRequest) (*dto.CertificateResponse, error) {
	name := strings.TrimSpace(req.Name)
	imageURL := strings.TrimSpace(req.ImageURL)
	if name == "" || imageURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "证书名称和图片URL不能为空")
	}
	if _, err := s.students.FindByID(ctx, userID); err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "用户不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if s.images != nil {
		imageURL = s.images.Normalize(imageURL)
	}

	cert := &models.Certificate{
		UserID:     userID,
		Name:       name,
		ImageURL:   imageURL,
		Status:     models.CertificatePending,
		UploadTime: s.now().UTC(),
		ExtraData:  req.ExtraData,
	}
	if err := s.certs.Create(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "证书上传失败")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("certificate submitted", zap.Int("certificate_id", cert.ID), zap.Int("user_id", userID))

	s.presentForStudent(cert)
	return &dto.CertificateResponse{Message: "证书上传成功，等待审核", Certificate: *cert}, nil
}

// TypesForStudent lists the certificate types bound to the student's
// department, or every type when the department binds none.
func (s *CertificateService) TypesForStudent(ctx context.Context, userID int) (dto.List[models.CertificateType], error) {
	types, err := s.types.List(ctx)
	if err != nil {
		return dto.List[models.CertificateType]{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificate types")
	}
	student, err := s.students.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return dto.List[models.CertificateType]{}, appErrors.Clone(appErrors.ErrNotFound, "用户不存在")
		}
		return dto.List[models.CertificateType]{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	dept, err := s.departments.FindByID(ctx, student.DepartmentID)
	if err != nil || len(dept.CertificateTypeIDs) == 0 {
		return dto.NewList(types), nil
	}
	bound := make([]models.CertificateType, 0, len(dept.CertificateTypeIDs))
	for _, t := range types {
		if containsID(dept.CertificateTypeIDs, t.ID) {
			bound = append(bound, t)
		}
	}
	return dto.NewList(bound), nil
}

// ViewsForStudent returns the admin views of a student's certificates.
func (s *CertificateService) ViewsForStudent(ctx context.Context, userID int) ([]models.CertificateView, error) {
	certs, err := s.certs.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	views := make([]models.CertificateView, 0, len(certs))
	for i := range certs {
		view, _ := s.view(ctx, &certs[i], false)
		views = append(views, view)
	}
	return views, nil
}

func (s *CertificateService) authorize(ctx context.Context, admin *models.Admin, id int, denied string) (*models.Certificate, error) {
	cert, err := s.certs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "证书不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if admin.Role == models.RoleSuper {
		return cert, nil
	}
	student, err := s.students.FindByID(ctx, cert.UserID)
	if err != nil || !admin.Manages(student.DepartmentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, denied)
	}
	return cert, nil
}

// view builds the admin representation. ok is false when the image link
// could not be signed.
func (s *CertificateService) view(ctx context.Context, cert *models.Certificate, withStudent bool) (models.CertificateView, bool) {
	view := models.CertificateView{Certificate: *cert, CertName: cert.Name}
	ok := true
	if s.images != nil {
		url, err := s.images.Present(cert)
		if err != nil {
			s.logger.Warn("sign certificate image failed", zap.Int("certificate_id", cert.ID), zap.Error(err))
			ok = false
		}
		view.ImgURL = url
	} else {
		view.ImgURL = cert.ImageURL
	}
	if !withStudent {
		return view, ok
	}

	student, err := s.students.FindByID(ctx, cert.UserID)
	if err != nil {
		return view, ok
	}
	brief := &models.StudentBrief{
		ID:        student.ID,
		Name:      student.Name,
		StudentID: student.StudentID,
		IDCardNo:  student.IDCardNo,
	}
	if dept, err := s.departments.FindByID(ctx, student.DepartmentID); err == nil {
		brief.Department = dept
	}
	view.Student = brief
	return view, ok
}

func (s *CertificateService) presentForStudent(cert *models.Certificate) {
	if s.images == nil {
		return
	}
	if url, err := s.images.Present(cert); err == nil {
		cert.ImageURL = url
	}
}
