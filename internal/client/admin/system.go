package admin

import (
	"context"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/httpclient"
)

// DefaultInitialAdminName names the first super admin when none is given.
const DefaultInitialAdminName = "Super Admin"

// ListDepartments returns every department.
func (c *Client) ListDepartments(ctx context.Context) (*dto.List[models.Department], error) {
	var resp dto.List[models.Department]
	if err := c.http.Get(ctx, prefix+"/departments", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDepartment returns one department.
func (c *Client) GetDepartment(ctx context.Context, id int) (*models.Department, error) {
	var resp dto.DepartmentResponse
	if err := c.http.Get(ctx, path("/departments/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Department, nil
}

// CreateDepartment creates a department, or returns the existing one with
// the same name parts. BaseScore defaults to 80.
func (c *Client) CreateDepartment(ctx context.Context, req dto.DepartmentRequest) (*models.Department, error) {
	if req.BaseScore == nil {
		score := models.DefaultBaseScore
		req.BaseScore = &score
	}
	var resp dto.DepartmentResponse
	if err := c.http.Post(ctx, prefix+"/departments", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Department, nil
}

// UpdateDepartment changes a department's name parts, start date or base score.
func (c *Client) UpdateDepartment(ctx context.Context, id int, req dto.DepartmentRequest) (*models.Department, error) {
	var resp dto.DepartmentResponse
	if err := c.http.Put(ctx, path("/departments/%d", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Department, nil
}

// DeleteDepartment removes an empty department.
func (c *Client) DeleteDepartment(ctx context.Context, id int) (*dto.Message, error) {
	var resp dto.Message
	if err := c.http.Delete(ctx, path("/departments/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BindCertificateTypes replaces the certificate types a department requires.
func (c *Client) BindCertificateTypes(ctx context.Context, id int, typeIDs []int) (*models.Department, error) {
	if typeIDs == nil {
		typeIDs = []int{}
	}
	var resp dto.DepartmentResponse
	req := dto.BindCertificatesRequest{CertificateTypeIDs: typeIDs}
	if err := c.http.Post(ctx, path("/department/%d/bind-certs", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Department, nil
}

// ListCertificateTypes returns every certificate type.
func (c *Client) ListCertificateTypes(ctx context.Context) (*dto.List[models.CertificateType], error) {
	var resp dto.List[models.CertificateType]
	if err := c.http.Get(ctx, prefix+"/certificate-types", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CertificateTypeInput describes a new certificate type. A nil Required
// means required.
type CertificateTypeInput struct {
	Name        string
	Description string
	Required    *bool
}

// CreateCertificateType adds a certificate type.
func (c *Client) CreateCertificateType(ctx context.Context, in CertificateTypeInput) (*models.CertificateType, error) {
	req := dto.CertificateTypeRequest{
		Name:        in.Name,
		Description: in.Description,
		IsRequired:  in.Required == nil || *in.Required,
	}
	var resp dto.CertificateTypeResponse
	if err := c.http.Post(ctx, prefix+"/certificate-types", req, &resp); err != nil {
		return nil, err
	}
	return &resp.CertificateType, nil
}

// DeleteCertificateType removes a certificate type and its bindings.
func (c *Client) DeleteCertificateType(ctx context.Context, id int) (*dto.Message, error) {
	var resp dto.Message
	if err := c.http.Delete(ctx, path("/certificate-types/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdminQuery filters the admin list.
type AdminQuery struct {
	Page    int
	PerPage int
	Role    models.AdminRole
}

// ListAdmins returns one page of admins.
func (c *Client) ListAdmins(ctx context.Context, q AdminQuery) (*dto.Page[models.Admin], error) {
	query := httpclient.Query{
		"page":     positive(q.Page),
		"per_page": positive(q.PerPage),
		"role":     string(q.Role),
	}
	var resp dto.Page[models.Admin]
	if err := c.http.Get(ctx, prefix+"/admins", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAdmin returns one admin.
func (c *Client) GetAdmin(ctx context.Context, id int) (*models.Admin, error) {
	var resp dto.AdminResponse
	if err := c.http.Get(ctx, path("/admins/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Admin, nil
}

// AdminInput describes a new admin. Password is plain text; it is encrypted
// with the server's public key before sending.
type AdminInput struct {
	Username      string
	Password      string
	Name          string
	Role          models.AdminRole
	DepartmentIDs []int
}

// CreateAdmin adds an admin. Role defaults to normal.
func (c *Client) CreateAdmin(ctx context.Context, in AdminInput) (*dto.AdminResponse, error) {
	encrypted, err := c.encryptPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}
	req := dto.AdminRequest{
		Username:      in.Username,
		Password:      encrypted,
		Name:          in.Name,
		Role:          in.Role,
		DepartmentIDs: in.DepartmentIDs,
	}
	if req.Role == "" {
		req.Role = models.RoleNormal
	}
	if req.DepartmentIDs == nil {
		req.DepartmentIDs = []int{}
	}
	var resp dto.AdminResponse
	if err := c.http.Post(ctx, prefix+"/admins", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdminUpdate carries the fields to change. An empty Password keeps the
// current one.
type AdminUpdate struct {
	Name          *string
	Password      string
	Role          *models.AdminRole
	DepartmentIDs *[]int
}

// UpdateAdmin sends only the provided fields.
func (c *Client) UpdateAdmin(ctx context.Context, id int, in AdminUpdate) (*dto.AdminResponse, error) {
	req := dto.AdminUpdateRequest{Name: in.Name, Role: in.Role, DepartmentIDs: in.DepartmentIDs}
	if in.Password != "" {
		encrypted, err := c.encryptPassword(ctx, in.Password)
		if err != nil {
			return nil, err
		}
		req.Password = &encrypted
	}
	var resp dto.AdminResponse
	if err := c.http.Put(ctx, path("/admins/%d", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteAdmin removes an admin other than the caller.
func (c *Client) DeleteAdmin(ctx context.Context, id int) (*dto.Message, error) {
	var resp dto.Message
	if err := c.http.Delete(ctx, path("/admins/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitStatus reports whether the first super admin exists.
func (c *Client) InitStatus(ctx context.Context) (bool, error) {
	var resp dto.InitStatusResponse
	if err := c.http.Get(ctx, prefix+"/system/init-status", nil, &resp, httpclient.WithoutAuth()); err != nil {
		return false, err
	}
	return resp.Initialized, nil
}

// Initialize creates the first super admin.
func (c *Client) Initialize(ctx context.Context, username, password, name string) (*dto.AdminResponse, error) {
	encrypted, err := c.encryptPassword(ctx, password)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultInitialAdminName
	}
	req := dto.InitializeRequest{Username: username, Password: encrypted, Name: name}
	var resp dto.AdminResponse
	if err := c.http.Post(ctx, prefix+"/system/initialize", req, &resp, httpclient.WithoutAuth()); err != nil {
		return nil, err
	}
	return &resp, nil
}
