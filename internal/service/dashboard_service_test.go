package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func (r *repos) dashboardService(cache *CacheService) *DashboardService {
	return NewDashboardService(DashboardServiceParams{
		Students:     r.students,
		Certificates: r.certificates,
		Departments:  r.departments,
		Cache:        cache,
	})
}

func TestDashboardStatsWithoutCache(t *testing.T) {
	r := newRepos(t, true)
	svc := r.dashboardService(nil)
	ctx := context.Background()

	stats, cached, err := svc.Stats(ctx, superAdmin())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 200, stats.StudentTotal)
	assert.Equal(t, 4, stats.DepartmentTotal)
	assert.Equal(t, 3, stats.CertificatePending)
	assert.Equal(t, 4, stats.CertificateApproved)
	assert.Equal(t, 3, stats.CertificateRejected)
	assert.Equal(t, 20, stats.StatusSummary[models.StagePreliminary][models.StatusUnqualified])

	scoped, _, err := svc.Stats(ctx, teacherAdmin())
	require.NoError(t, err)
	assert.Equal(t, 50, scoped.StudentTotal)
	assert.Equal(t, 1, scoped.DepartmentTotal)
	assert.Equal(t, 2, scoped.CertificatePending)
	assert.Equal(t, 2, scoped.CertificateApproved)
	assert.Equal(t, 1, scoped.CertificateRejected)
}

func TestDashboardStatsCachedAndInvalidatedByWrites(t *testing.T) {
	r := newRepos(t, true)
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := r.dashboardService(cache)
	certs := NewCertificateService(CertificateServiceParams{
		Certificates: r.certificates,
		Students:     r.students,
		Departments:  r.departments,
		Types:        r.types,
		Cache:        cache,
	})
	ctx := context.Background()

	_, cached, err := svc.Stats(ctx, superAdmin())
	require.NoError(t, err)
	assert.False(t, cached)

	stats, cached, err := svc.Stats(ctx, superAdmin())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 3, stats.CertificatePending)

	_, err = certs.Audit(ctx, superAdmin(), 1, dto.AuditRequest{Action: models.AuditApprove})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.deletes)

	stats, cached, err = svc.Stats(ctx, superAdmin())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, stats.CertificatePending)
	assert.Equal(t, 5, stats.CertificateApproved)
}

func TestDashboardCacheKeys(t *testing.T) {
	assert.Equal(t, "dashboard:stats:all", statsKey(nil))
	assert.Equal(t, "dashboard:stats:none", statsKey([]int{}))
	assert.Equal(t, "dashboard:stats:101,103", statsKey([]int{103, 101}))
}
