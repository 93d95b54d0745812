package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockRepository implements a single-instance Redis lock keyed per resource.
type LockRepository struct {
	client *redis.Client
	prefix string
}

// NewLockRepository constructs the lock repository. Keys share the cache prefix.
func NewLockRepository(client *redis.Client, prefix string) *LockRepository {
	return &LockRepository{client: client, prefix: prefix}
}

func (r *LockRepository) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// TryAcquire sets key to token if absent. It returns false when another holder owns it.
func (r *LockRepository) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes key only when it still holds token.
func (r *LockRepository) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(key)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}
