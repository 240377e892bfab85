package repository

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// AdminRepository manages console operators.
type AdminRepository struct {
	db *DB
}

// NewAdminRepository constructs an AdminRepository.
func NewAdminRepository(db *DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// List returns admins matching the filter, newest first, plus the total
// before pagination.
func (r *AdminRepository) List(ctx context.Context, filter models.AdminFilter) ([]models.Admin, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	matched := make([]models.Admin, 0)
	for _, a := range r.db.admins {
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		matched = append(matched, cloneAdmin(a))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return paginate(matched, filter.Page, filter.PerPage), len(matched), nil
}

// FindByID fetches an admin.
func (r *AdminRepository) FindByID(ctx context.Context, id int) (*models.Admin, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.admins[id]
	if !ok {
		return nil, appErrors.ErrRecordNotFound
	}
	a = cloneAdmin(a)
	return &a, nil
}

// FindByUsername fetches an admin by login name.
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, a := range r.db.admins {
		if a.Username == username {
			a = cloneAdmin(a)
			return &a, nil
		}
	}
	return nil, appErrors.ErrRecordNotFound
}

// CountByRole counts admins with role.
func (r *AdminRepository) CountByRole(ctx context.Context, role models.AdminRole) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, a := range r.db.admins {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

// Create stores an admin and assigns its id. It fails with ErrConflict when
// the username is taken.
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, a := range r.db.admins {
		if a.Username == admin.Username {
			return appErrors.ErrConflict
		}
	}
	if admin.ID == 0 {
		admin.ID = r.db.nextID(tableAdmins)
	} else {
		r.db.reserve(tableAdmins, admin.ID)
	}
	if admin.CreateTime.IsZero() {
		admin.CreateTime = time.Now().UTC()
	}
	if admin.DepartmentIDs == nil {
		admin.DepartmentIDs = []int{}
	}
	r.db.admins[admin.ID] = cloneAdmin(*admin)
	return nil
}

// Update replaces a stored admin. An empty PasswordHash keeps the current one.
func (r *AdminRepository) Update(ctx context.Context, admin *models.Admin) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.admins[admin.ID]
	if !ok {
		return appErrors.ErrRecordNotFound
	}
	next := cloneAdmin(*admin)
	next.CreateTime = current.CreateTime
	next.Username = current.Username
	if next.PasswordHash == "" {
		next.PasswordHash = current.PasswordHash
	}
	if next.DepartmentIDs == nil {
		next.DepartmentIDs = []int{}
	}
	r.db.admins[admin.ID] = next
	return nil
}

// Delete removes an admin.
func (r *AdminRepository) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.admins[id]; !ok {
		return appErrors.ErrRecordNotFound
	}
	delete(r.db.admins, id)
	return nil
}
