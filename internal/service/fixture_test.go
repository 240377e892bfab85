package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/internal/repository"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/rsacrypt"
)

var (
	testKeysOnce sync.Once
	testKeys     *rsacrypt.KeyPair
	testKeysErr  error
)

func loginKeys(t *testing.T) *rsacrypt.KeyPair {
	t.Helper()
	testKeysOnce.Do(func() {
		testKeys, testKeysErr = rsacrypt.GenerateKeyPair(1024)
	})
	require.NoError(t, testKeysErr)
	return testKeys
}

func encrypt(t *testing.T, plain string) string {
	t.Helper()
	out, err := rsacrypt.EncryptWithPublicKey(plain, loginKeys(t).PublicKeyPEM())
	require.NoError(t, err)
	return out
}

type repos struct {
	db           *repository.DB
	students     *repository.StudentRepository
	certificates *repository.CertificateRepository
	departments  *repository.DepartmentRepository
	types        *repository.CertificateTypeRepository
	admins       *repository.AdminRepository
	scoreLogs    *repository.ScoreLogRepository
	comments     *repository.CommentRepository
	exports      *repository.ExportTaskRepository
}

func newRepos(t *testing.T, seed bool) *repos {
	t.Helper()
	db := repository.NewDB()
	if seed {
		require.NoError(t, repository.Seed(db, repository.SeedOptions{PasswordCost: bcrypt.MinCost}))
	}
	return &repos{
		db:           db,
		students:     repository.NewStudentRepository(db),
		certificates: repository.NewCertificateRepository(db),
		departments:  repository.NewDepartmentRepository(db),
		types:        repository.NewCertificateTypeRepository(db),
		admins:       repository.NewAdminRepository(db),
		scoreLogs:    repository.NewScoreLogRepository(db),
		comments:     repository.NewCommentRepository(db),
		exports:      repository.NewExportTaskRepository(db),
	}
}

func superAdmin() *models.Admin {
	return &models.Admin{ID: 1, Username: "admin", Name: "超级管理员", Role: models.RoleSuper, DepartmentIDs: []int{}}
}

func teacherAdmin() *models.Admin {
	return &models.Admin{ID: 2, Username: "teacher", Name: "王老师", Role: models.RoleNormal, DepartmentIDs: []int{101}}
}

func (r *repos) certificateService() *CertificateService {
	return NewCertificateService(CertificateServiceParams{
		Certificates: r.certificates,
		Students:     r.students,
		Departments:  r.departments,
		Types:        r.types,
	})
}

func (r *repos) studentService() *StudentService {
	return NewStudentService(StudentServiceParams{
		Students:     r.students,
		ScoreLogs:    r.scoreLogs,
		Comments:     r.comments,
		Departments:  r.departments,
		Certificates: r.certificateService(),
		Config:       StudentServiceConfig{PasswordCost: bcrypt.MinCost},
	})
}

func (r *repos) authService(t *testing.T) *AuthService {
	return NewAuthService(r.admins, r.students, loginKeys(t), nil, nil, AuthConfig{AccessTokenSecret: "test-secret"})
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func requireAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, appErr.Status)
	if message != "" {
		assert.Contains(t, appErr.Message, message)
	}
}
