package deployment

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
)

const (
	enabledValue  = "1"
	disabledValue = "0"
)

// RedisStore keeps enablement in Redis under <prefix>app:<name>:enabled so
// every runtime instance sees the same state.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisClient builds a client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
}

// NewRedisStore creates a store using client.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + "app:" + name + ":enabled"
}

// Enabled implements StatusStore.
func (s *RedisStore) Enabled(ctx context.Context, name string) (bool, bool, error) {
	v, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}

	if err != nil {
		return false, false, domain.NewUnavailableError("redis", err.Error())
	}

	switch v {
	case enabledValue:
		return true, true, nil
	case disabledValue:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("unexpected status %q for application %q", v, name)
	}
}

// SetEnabled implements StatusStore.
func (s *RedisStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	v := disabledValue
	if enabled {
		v = enabledValue
	}

	if err := s.client.Set(ctx, s.key(name), v, 0).Err(); err != nil {
		return domain.NewUnavailableError("redis", err.Error())
	}

	return nil
}

// Forget implements StatusStore.
func (s *RedisStore) Forget(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return domain.NewUnavailableError("redis", err.Error())
	}

	return nil
}

// RedisHealthChecker reports whether the shared status store is reachable.
type RedisHealthChecker struct {
	client redis.Cmdable
}

// NewRedisHealthChecker creates a checker for client.
func NewRedisHealthChecker(client redis.Cmdable) *RedisHealthChecker {
	return &RedisHealthChecker{client: client}
}

// Name implements ports.HealthChecker.
func (r *RedisHealthChecker) Name() string {
	return "deployment-store"
}

// Check implements ports.HealthChecker.
func (r *RedisHealthChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}

	return r.client.Ping(ctx).Err()
}
