package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

const defaultSuperAdminName = "Super Admin"

type adminRepository interface {
	List(ctx context.Context, filter models.AdminFilter) ([]models.Admin, int, error)
	FindByID(ctx context.Context, id int) (*models.Admin, error)
	FindByUsername(ctx context.Context, username string) (*models.Admin, error)
	CountByRole(ctx context.Context, role models.AdminRole) (int, error)
	Create(ctx context.Context, admin *models.Admin) error
	Update(ctx context.Context, admin *models.Admin) error
	Delete(ctx context.Context, id int) error
}

type departmentChecker interface {
	Missing(ctx context.Context, ids []int) ([]int, error)
}

type passwordDecrypter interface {
	DecryptPassword(ciphertext string) (string, error)
}

// AdminServiceConfig tunes password hashing.
type AdminServiceConfig struct {
	PasswordCost int
}

// AdminService manages console operators and first-run initialization.
type AdminService struct {
	repo        adminRepository
	departments departmentChecker
	passwords   passwordDecrypter
	logger      *zap.Logger
	cfg         AdminServiceConfig

	initMu sync.Mutex
}

// NewAdminService constructs an AdminService.
func NewAdminService(repo adminRepository, departments departmentChecker, passwords passwordDecrypter, logger *zap.Logger, cfg AdminServiceConfig) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	return &AdminService{repo: repo, departments: departments, passwords: passwords, logger: logger, cfg: cfg}
}

// List pages through admins, optionally narrowed to one role.
func (s *AdminService) List(ctx context.Context, role string, page, perPage int) (*dto.Page[models.Admin], error) {
	filter := models.AdminFilter{}
	if role = strings.TrimSpace(role); role != "" {
		r := models.AdminRole(role)
		if !r.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "无效的角色，必须是 super 或 normal")
		}
		filter.Role = r
	}
	filter.Page, filter.PerPage = dto.Normalize(page, perPage)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admins")
	}
	out := dto.NewPage(items, total, filter.Page, filter.PerPage)
	return &out, nil
}

// Get returns one admin.
func (s *AdminService) Get(ctx context.Context, id int) (*dto.AdminResponse, error) {
	admin, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.AdminResponse{Admin: *admin}, nil
}

// Create adds an admin. The password arrives RSA encrypted.
func (s *AdminService) Create(ctx context.Context, req dto.AdminRequest) (*dto.AdminResponse, error) {
	username := strings.TrimSpace(req.Username)
	name := strings.TrimSpace(req.Name)
	if username == "" || req.Password == "" || name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "用户名、密码和姓名不能为空")
	}
	role := req.Role
	if role == "" {
		role = models.RoleNormal
	}
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "无效的角色，必须是 super 或 normal")
	}
	deptIDs := uniqueSorted(req.DepartmentIDs)
	if role == models.RoleNormal && len(deptIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "普通管理员必须指定至少一个管理的部门")
	}
	if role == models.RoleSuper {
		deptIDs = []int{}
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "该用户名已存在")
	} else if !errors.Is(err, appErrors.ErrRecordNotFound) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up admin")
	}
	if err := s.checkDepartments(ctx, deptIDs); err != nil {
		return nil, err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	admin := &models.Admin{Username: username, Name: name, Role: role, DepartmentIDs: deptIDs, PasswordHash: hash}
	if err := s.repo.Create(ctx, admin); err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "该用户名已存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin")
	}
	s.logger.Info("admin created", zap.Int("admin_id", admin.ID), zap.String("username", admin.Username), zap.String("role", string(admin.Role)))
	return &dto.AdminResponse{Message: "管理员创建成功", Admin: *admin}, nil
}

// Update changes only the provided fields. An admin cannot change their own role.
func (s *AdminService) Update(ctx context.Context, current *models.Admin, id int, req dto.AdminUpdateRequest) (*dto.AdminResponse, error) {
	admin, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Role != nil && *req.Role != admin.Role {
		if current != nil && current.ID == id {
			return nil, appErrors.Clone(appErrors.ErrValidation, "不能修改自己的角色")
		}
		if !req.Role.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "无效的角色，必须是 super 或 normal")
		}
		admin.Role = *req.Role
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "姓名不能为空")
		}
		admin.Name = name
	}
	if req.DepartmentIDs != nil {
		admin.DepartmentIDs = uniqueSorted(*req.DepartmentIDs)
	}
	if admin.Role == models.RoleSuper {
		admin.DepartmentIDs = []int{}
	} else {
		if len(admin.DepartmentIDs) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "普通管理员必须指定至少一个管理的部门")
		}
		if err := s.checkDepartments(ctx, admin.DepartmentIDs); err != nil {
			return nil, err
		}
	}
	admin.PasswordHash = ""
	if req.Password != nil && *req.Password != "" {
		hash, err := s.hash(*req.Password)
		if err != nil {
			return nil, err
		}
		admin.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, admin); err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "管理员不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admin")
	}
	return &dto.AdminResponse{Message: "管理员信息更新成功", Admin: *admin}, nil
}

// Delete removes an admin other than current.
func (s *AdminService) Delete(ctx context.Context, current *models.Admin, id int) (*dto.Message, error) {
	if current != nil && current.ID == id {
		return nil, appErrors.Clone(appErrors.ErrValidation, "不能删除自己的账号")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "管理员不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete admin")
	}
	s.logger.Info("admin deleted", zap.Int("admin_id", id))
	return &dto.Message{Message: "管理员删除成功"}, nil
}

// InitStatus reports whether a super admin exists.
func (s *AdminService) InitStatus(ctx context.Context) (*dto.InitStatusResponse, error) {
	n, err := s.repo.CountByRole(ctx, models.RoleSuper)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check initialization")
	}
	return &dto.InitStatusResponse{Initialized: n > 0}, nil
}

// Initialize creates the first super admin. It fails once any super admin exists.
func (s *AdminService) Initialize(ctx context.Context, req dto.InitializeRequest) (*dto.AdminResponse, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	status, err := s.InitStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status.Initialized {
		return nil, appErrors.ErrAlreadyInitialized
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultSuperAdminName
	}
	resp, err := s.Create(ctx, dto.AdminRequest{
		Username: req.Username,
		Password: req.Password,
		Name:     name,
		Role:     models.RoleSuper,
	})
	if err != nil {
		return nil, err
	}
	resp.Message = "系统初始化成功"
	return resp, nil
}

func (s *AdminService) find(ctx context.Context, id int) (*models.Admin, error) {
	admin, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "管理员不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin")
	}
	return admin, nil
}

func (s *AdminService) checkDepartments(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.departments.Missing(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check departments")
	}
	if len(missing) > 0 {
		return appErrors.Clonef(appErrors.ErrValidation, "以下部门ID不存在: %v", missing)
	}
	return nil
}

func (s *AdminService) hash(ciphertext string) (string, error) {
	plain, err := s.passwords.DecryptPassword(ciphertext)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.cfg.PasswordCost)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	return string(hash), nil
}
