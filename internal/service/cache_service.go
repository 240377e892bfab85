package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

const (
	statsKeyPrefix   = "dashboard:stats:"
	statsKeyPattern  = "dashboard:*"
	defaultStatsTTL  = time.Minute
	statsScopeAll    = "all"
	statsScopeNobody = "none"
)

// CacheRepository is the byte store behind the dashboard cache.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService keeps dashboard counters per department scope. A nil
// service, or one without a repository, behaves as an always-missing cache.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a dashboard cache.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled reports whether lookups can ever hit.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Lookup returns the cached counters for scope. Backend errors count as a miss.
func (s *CacheService) Lookup(ctx context.Context, scope []int) (*dto.DashboardStats, bool) {
	if !s.Enabled() {
		return nil, false
	}
	key := statsKey(scope)
	started := time.Now()
	var stats dto.DashboardStats
	err := s.repo.Get(ctx, key, &stats)
	s.metrics.RecordCacheOperation(err == nil, time.Since(started))
	switch {
	case err == nil:
		return &stats, true
	case !errors.Is(err, appErrors.ErrCacheMiss):
		s.logger.Debug("dashboard cache unavailable", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

// Store saves counters for scope. Failures are logged and swallowed since the
// caller already holds a fresh value.
func (s *CacheService) Store(ctx context.Context, scope []int, stats *dto.DashboardStats) {
	if !s.Enabled() || stats == nil {
		return
	}
	key := statsKey(scope)
	started := time.Now()
	err := s.repo.Set(ctx, key, stats, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(started))
	if err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Flush drops every scope. Writes that move a counter call it.
func (s *CacheService) Flush(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, statsKeyPattern); err != nil {
		s.logger.Warn("dashboard cache flush failed", zap.Error(err))
	}
}

// statsKey is stable for a scope regardless of department order. nil means
// every department; empty means none.
func statsKey(scope []int) string {
	switch {
	case scope == nil:
		return statsKeyPrefix + statsScopeAll
	case len(scope) == 0:
		return statsKeyPrefix + statsScopeNobody
	}
	ids := append([]int(nil), scope...)
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return statsKeyPrefix + strings.Join(parts, ",")
}
