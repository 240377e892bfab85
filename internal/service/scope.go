package service

import "github.com/noah-isme/contrail/internal/models"

// departmentScope returns the departments an admin may act on. Super admins
// get nil, which repositories read as every department. A normal admin
// without departments gets an empty, non-nil slice.
func departmentScope(admin *models.Admin) []int {
	if admin == nil {
		return []int{}
	}
	if admin.Role == models.RoleSuper {
		return nil
	}
	out := make([]int, len(admin.DepartmentIDs))
	copy(out, admin.DepartmentIDs)
	return out
}
