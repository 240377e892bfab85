package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

type certificateTypeRepository interface {
	List(ctx context.Context) ([]models.CertificateType, error)
	FindByID(ctx context.Context, id int) (*models.CertificateType, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, t *models.CertificateType) error
	Delete(ctx context.Context, id int) error
}

type certificateTypeUnbinder interface {
	UnbindCertificateType(ctx context.Context, typeID int) error
}

// CertificateTypeService manages the certificate catalogue.
type CertificateTypeService struct {
	repo        certificateTypeRepository
	departments certificateTypeUnbinder
	logger      *zap.Logger
}

// NewCertificateTypeService constructs a CertificateTypeService.
func NewCertificateTypeService(repo certificateTypeRepository, departments certificateTypeUnbinder, logger *zap.Logger) *CertificateTypeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateTypeService{repo: repo, departments: departments, logger: logger}
}

// List returns every certificate type.
func (s *CertificateTypeService) List(ctx context.Context) (dto.List[models.CertificateType], error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return dto.List[models.CertificateType]{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificate types")
	}
	return dto.NewList(items), nil
}

// Create adds a certificate type with a unique name.
func (s *CertificateTypeService) Create(ctx context.Context, req dto.CertificateTypeRequest) (*dto.CertificateTypeResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "证书类型名称不能为空")
	}
	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check certificate type")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "证书类型已存在")
	}
	t := &models.CertificateType{Name: name, Description: strings.TrimSpace(req.Description), IsRequired: req.IsRequired}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate type")
	}
	s.logger.Info("certificate type created", zap.Int("certificate_type_id", t.ID), zap.String("name", t.Name))
	return &dto.CertificateTypeResponse{Message: "证书类型创建成功", CertificateType: *t}, nil
}

// Delete removes a certificate type and unbinds it from every department.
func (s *CertificateTypeService) Delete(ctx context.Context, id int) (*dto.Message, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "证书类型不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate type")
	}
	if err := s.departments.UnbindCertificateType(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unbind certificate type")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "证书类型不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete certificate type")
	}
	return &dto.Message{Message: "证书类型删除成功"}, nil
}
