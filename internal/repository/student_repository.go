package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// StudentRepository manages student records.
type StudentRepository struct {
	db *DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the filter, newest id first, plus the total
// before pagination. A nil DepartmentIDs means every department.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	sums := r.db.scoreSums()
	keyword := strings.TrimSpace(filter.Keyword)
	matched := make([]models.Student, 0)
	for _, s := range r.db.students {
		if filter.DepartmentIDs != nil && !containsInt(filter.DepartmentIDs, s.DepartmentID) {
			continue
		}
		if filter.StatusStage != "" && filter.StatusValue != "" && s.ProcessStatus.Get(filter.StatusStage) != filter.StatusValue {
			continue
		}
		if keyword != "" && !r.matchesKeyword(s, filter.Filter, keyword) {
			continue
		}
		matched = append(matched, r.db.hydrate(s, sums))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	return paginate(matched, filter.Page, filter.PerPage), len(matched), nil
}

func (r *StudentRepository) matchesKeyword(s models.Student, kind, keyword string) bool {
	switch kind {
	case models.FilterName:
		return strings.Contains(s.Name, keyword)
	case models.FilterStudentID:
		return strings.Contains(s.StudentID, keyword)
	case models.FilterClassName:
		dept, ok := r.db.departments[s.DepartmentID]
		return ok && strings.Contains(dept.ClassName, keyword)
	}
	return true
}

// ListByDepartment returns every student of a department ordered by id.
func (r *StudentRepository) ListByDepartment(ctx context.Context, departmentID int) ([]models.Student, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	sums := r.db.scoreSums()
	out := make([]models.Student, 0)
	for _, id := range sortedKeys(r.db.students) {
		s := r.db.students[id]
		if s.DepartmentID == departmentID {
			out = append(out, r.db.hydrate(s, sums))
		}
	}
	return out, nil
}

// IDsByDepartments returns the ids of students in the given departments. A
// nil slice selects every student.
func (r *StudentRepository) IDsByDepartments(ctx context.Context, departmentIDs []int) ([]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	ids := make([]int, 0)
	for _, id := range sortedKeys(r.db.students) {
		if departmentIDs == nil || containsInt(departmentIDs, r.db.students[id].DepartmentID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FindByID fetches a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id int) (*models.Student, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.students[id]
	if !ok {
		return nil, appErrors.ErrRecordNotFound
	}
	out := r.db.hydrate(s, r.db.scoreSums())
	return &out, nil
}

// FindByIDCard fetches a student by id card number, ignoring case.
func (r *StudentRepository) FindByIDCard(ctx context.Context, idCardNo string) (*models.Student, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, s := range r.db.students {
		if strings.EqualFold(s.IDCardNo, idCardNo) {
			out := r.db.hydrate(s, r.db.scoreSums())
			return &out, nil
		}
	}
	return nil, appErrors.ErrRecordNotFound
}

// ExistsByStudentID reports whether another student already uses studentID.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID string, excludeID int) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for id, s := range r.db.students {
		if id != excludeID && s.StudentID != "" && s.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

// Identifiers returns the student numbers and id card numbers in use.
func (r *StudentRepository) Identifiers(ctx context.Context) (studentIDs, idCards map[string]struct{}, err error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	studentIDs = make(map[string]struct{}, len(r.db.students))
	idCards = make(map[string]struct{}, len(r.db.students))
	for _, s := range r.db.students {
		if s.StudentID != "" {
			studentIDs[s.StudentID] = struct{}{}
		}
		idCards[strings.ToUpper(s.IDCardNo)] = struct{}{}
	}
	return studentIDs, idCards, nil
}

// Create inserts students and assigns their ids.
func (r *StudentRepository) Create(ctx context.Context, students ...*models.Student) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now().UTC()
	for _, s := range students {
		if s.ID == 0 {
			s.ID = r.db.nextID(tableStudents)
		} else {
			r.db.reserve(tableStudents, s.ID)
		}
		if s.CreateTime.IsZero() {
			s.CreateTime = now
		}
		r.db.students[s.ID] = cloneStudent(*s)
	}
	return nil
}

// Update replaces a stored student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.students[student.ID]
	if !ok {
		return appErrors.ErrRecordNotFound
	}
	next := cloneStudent(*student)
	next.CreateTime = current.CreateTime
	if next.PasswordHash == "" {
		next.PasswordHash = current.PasswordHash
	}
	r.db.students[student.ID] = next
	return nil
}

// CountByDepartment returns the number of students per department.
func (r *StudentRepository) CountByDepartment(ctx context.Context) (map[int]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return r.db.studentCounts(), nil
}

// StatusSummary counts students per stage outcome within the departments. A
// nil slice covers every student.
func (r *StudentRepository) StatusSummary(ctx context.Context, departmentIDs []int) (map[models.Stage]map[models.StageStatus]int, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	summary := make(map[models.Stage]map[models.StageStatus]int, len(models.Stages))
	for _, stage := range models.Stages {
		summary[stage] = map[models.StageStatus]int{
			models.StatusPending:     0,
			models.StatusQualified:   0,
			models.StatusUnqualified: 0,
		}
	}
	total := 0
	for _, s := range r.db.students {
		if departmentIDs != nil && !containsInt(departmentIDs, s.DepartmentID) {
			continue
		}
		total++
		for _, stage := range models.Stages {
			summary[stage][s.ProcessStatus.Get(stage)]++
		}
	}
	return summary, total, nil
}

// studentCounts is shared with DepartmentRepository. Callers hold a lock.
func (db *DB) studentCounts() map[int]int {
	counts := make(map[int]int)
	for _, s := range db.students {
		counts[s.DepartmentID]++
	}
	return counts
}
