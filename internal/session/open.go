package session

import (
	"context"
	"fmt"

	"github.com/noah-isme/contrail/pkg/cache"
	"github.com/noah-isme/contrail/pkg/config"
)

// Open builds the configured backend. The returned closer releases the Redis
// connection when one was opened.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		return NewMemoryStore(), noop, nil
	case config.SessionBackendRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, fmt.Errorf("open redis session store: %w", err)
		}
		return NewRedisStore(client, cfg.Session.Namespace, cfg.Session.TTL), client.Close, nil
	case config.SessionBackendFile, "":
		return NewFileStore(cfg.Session.File), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
