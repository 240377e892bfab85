package models

import "time"

// AdminRole represents the available roles for the RBAC system.
type AdminRole string

const (
	RoleSuper  AdminRole = "super"
	RoleNormal AdminRole = "normal"
)

// Valid reports whether r is a known role.
func (r AdminRole) Valid() bool {
	return r == RoleSuper || r == RoleNormal
}

// Admin is a console operator. Normal admins are scoped to DepartmentIDs.
type Admin struct {
	ID            int       `json:"id"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	Role          AdminRole `json:"role"`
	DepartmentIDs []int     `json:"department_ids"`
	CreateTime    time.Time `json:"create_time"`
	PasswordHash  string    `json:"-"`
}

// Manages reports whether the admin may act on departmentID.
func (a *Admin) Manages(departmentID int) bool {
	if a == nil {
		return false
	}
	if a.Role == RoleSuper {
		return true
	}
	for _, id := range a.DepartmentIDs {
		if id == departmentID {
			return true
		}
	}
	return false
}

// AdminFilter narrows admin listings.
type AdminFilter struct {
	Role    AdminRole
	Page    int
	PerPage int
}
