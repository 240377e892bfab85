package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// scanBatch bounds both the SCAN hint and the keys per UNLINK.
const scanBatch = 100

// CacheRepository keeps JSON documents in Redis under a namespace. Without a
// client every read misses and every write is dropped, which lets the mock
// server run with the cache switched on but no Redis around.
type CacheRepository struct {
	client    redis.UniversalClient
	namespace string
	logger    *zap.Logger
}

// NewCacheRepository binds the repository to client. The client stays owned
// by the caller.
func NewCacheRepository(client redis.UniversalClient, namespace string, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, namespace: namespace, logger: logger}
}

func (r *CacheRepository) key(name string) string { return r.namespace + name }

// Get decodes the document at name into dest. Missing and corrupt documents
// both surface as ErrCacheMiss; corrupt ones are removed on the way.
func (r *CacheRepository) Get(ctx context.Context, name string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, r.key(name)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn("discarding corrupt cache document", zap.String("name", name), zap.Error(err))
		r.client.Unlink(ctx, r.key(name))
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set encodes value and stores it for ttl.
func (r *CacheRepository) Set(ctx context.Context, name string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	doc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := r.client.Set(ctx, r.key(name), doc, ttl).Err(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// DeleteByPattern unlinks every document whose name matches the glob.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}
	var (
		batch   = make([]string, 0, scanBatch)
		removed int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("unlink %d keys: %w", len(batch), err)
		}
		removed += len(batch)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, r.key(pattern), scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return err
	}
	r.logger.Debug("cache documents removed", zap.String("pattern", pattern), zap.Int("count", removed))
	return nil
}
