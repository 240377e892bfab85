package repository

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// DepartmentRepository manages departments and their certificate bindings.
type DepartmentRepository struct {
	db *DB
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(db *DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns every department, newest first, with student counts.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	counts := r.db.studentCounts()
	out := make([]models.Department, 0, len(r.db.departments))
	for _, d := range r.db.departments {
		d = cloneDepartment(d)
		d.StudentCount = counts[d.ID]
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// FindByID fetches a department with its student count.
func (r *DepartmentRepository) FindByID(ctx context.Context, id int) (*models.Department, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	d, ok := r.db.departments[id]
	if !ok {
		return nil, appErrors.ErrRecordNotFound
	}
	d = cloneDepartment(d)
	d.StudentCount = r.db.studentCounts()[id]
	return &d, nil
}

// FindByNameParts fetches the department with exactly these name parts.
func (r *DepartmentRepository) FindByNameParts(ctx context.Context, college, grade, major, className string) (*models.Department, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, id := range sortedKeys(r.db.departments) {
		d := r.db.departments[id]
		if d.College == college && d.Grade == grade && d.Major == major && d.ClassName == className {
			d = cloneDepartment(d)
			d.StudentCount = r.db.studentCounts()[id]
			return &d, nil
		}
	}
	return nil, appErrors.ErrRecordNotFound
}

// Missing returns the ids that do not name a department, in input order.
func (r *DepartmentRepository) Missing(ctx context.Context, ids []int) ([]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	missing := make([]int, 0)
	for _, id := range ids {
		if _, ok := r.db.departments[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Create stores a department and assigns its id.
func (r *DepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if dept.ID == 0 {
		dept.ID = r.db.nextID(tableDepartments)
	} else {
		r.db.reserve(tableDepartments, dept.ID)
	}
	if dept.CreateTime.IsZero() {
		dept.CreateTime = time.Now().UTC()
	}
	if dept.CertificateTypeIDs == nil {
		dept.CertificateTypeIDs = []int{}
	}
	dept.DisplayName = dept.Name()
	r.db.departments[dept.ID] = cloneDepartment(*dept)
	return nil
}

// Update replaces a stored department.
func (r *DepartmentRepository) Update(ctx context.Context, dept *models.Department) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.departments[dept.ID]
	if !ok {
		return appErrors.ErrRecordNotFound
	}
	next := cloneDepartment(*dept)
	next.CreateTime = current.CreateTime
	if next.CertificateTypeIDs == nil {
		next.CertificateTypeIDs = []int{}
	}
	r.db.departments[dept.ID] = next
	dept.DisplayName = next.DisplayName
	return nil
}

// Delete removes a department and drops it from every admin's scope.
func (r *DepartmentRepository) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.departments[id]; !ok {
		return appErrors.ErrRecordNotFound
	}
	delete(r.db.departments, id)
	for adminID, a := range r.db.admins {
		if containsInt(a.DepartmentIDs, id) {
			a.DepartmentIDs = without(a.DepartmentIDs, id)
			r.db.admins[adminID] = a
		}
	}
	return nil
}

// UnbindCertificateType removes a certificate type from every department.
func (r *DepartmentRepository) UnbindCertificateType(ctx context.Context, typeID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, d := range r.db.departments {
		if containsInt(d.CertificateTypeIDs, typeID) {
			d.CertificateTypeIDs = without(d.CertificateTypeIDs, typeID)
			r.db.departments[id] = d
		}
	}
	return nil
}

func without(ids []int, drop int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
