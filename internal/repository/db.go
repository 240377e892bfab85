package repository

import (
	"sort"
	"sync"

	"github.com/noah-isme/contrail/internal/models"
)

// Table names used for id sequences.
const (
	tableStudents     = "students"
	tableCertificates = "certificates"
	tableDepartments  = "departments"
	tableCertTypes    = "certificate_types"
	tableAdmins       = "admins"
	tableScoreLogs    = "score_logs"
	tableComments     = "comments"
)

// DB is the in-memory dataset shared by the repositories. Nothing is
// persisted: a restart resets it to whatever Seed loads.
type DB struct {
	mu sync.RWMutex

	students     map[int]models.Student
	certificates map[int]models.Certificate
	departments  map[int]models.Department
	certTypes    map[int]models.CertificateType
	admins       map[int]models.Admin
	scoreLogs    map[int]models.ScoreLog
	comments     map[int]models.Comment
	exports      map[string]models.ExportTask

	seq map[string]int
}

// NewDB returns an empty dataset.
func NewDB() *DB {
	return &DB{
		students:     make(map[int]models.Student),
		certificates: make(map[int]models.Certificate),
		departments:  make(map[int]models.Department),
		certTypes:    make(map[int]models.CertificateType),
		admins:       make(map[int]models.Admin),
		scoreLogs:    make(map[int]models.ScoreLog),
		comments:     make(map[int]models.Comment),
		exports:      make(map[string]models.ExportTask),
		seq:          make(map[string]int),
	}
}

// nextID allocates an id. Callers hold the write lock.
func (db *DB) nextID(table string) int {
	db.seq[table]++
	return db.seq[table]
}

// reserve moves the sequence past id so explicit fixture ids are never
// handed out again. Callers hold the write lock.
func (db *DB) reserve(table string, id int) {
	if id > db.seq[table] {
		db.seq[table] = id
	}
}

// scoreSums returns the delta total per user. Callers hold a lock.
func (db *DB) scoreSums() map[int]int {
	sums := make(map[int]int)
	for _, log := range db.scoreLogs {
		sums[log.UserID] += log.Delta
	}
	return sums
}

// hydrate fills the derived student fields. Callers hold a lock.
func (db *DB) hydrate(s models.Student, sums map[int]int) models.Student {
	s = cloneStudent(s)
	s.TotalScore = s.BaseScore + sums[s.ID]
	if dept, ok := db.departments[s.DepartmentID]; ok {
		s.ClassInfo = dept.Name()
	} else {
		s.ClassInfo = ""
	}
	s.BirthDate, s.Gender = models.BirthAndGender(s.IDCardNo)
	return s
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func paginate[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneInts(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneStudent(s models.Student) models.Student {
	s.GPA = cloneFloat(s.GPA)
	s.Credits = cloneFloat(s.Credits)
	return s
}

func cloneCertificate(c models.Certificate) models.Certificate {
	if c.ReviewTime != nil {
		t := *c.ReviewTime
		c.ReviewTime = &t
	}
	if c.ExtraData != nil {
		extra := make(map[string]interface{}, len(c.ExtraData))
		for k, v := range c.ExtraData {
			extra[k] = v
		}
		c.ExtraData = extra
	}
	c.StatusText = c.Status.Text()
	return c
}

func cloneDepartment(d models.Department) models.Department {
	d.CertificateTypeIDs = cloneInts(d.CertificateTypeIDs)
	d.DisplayName = d.Name()
	return d
}

func cloneAdmin(a models.Admin) models.Admin {
	a.DepartmentIDs = cloneInts(a.DepartmentIDs)
	return a
}

func cloneExport(t models.ExportTask) models.ExportTask {
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		t.FinishedAt = &f
	}
	return t
}
