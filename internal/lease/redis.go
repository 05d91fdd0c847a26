package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes the key only while it still holds the caller's token,
// so an expired holder cannot release a lease taken over by someone else.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Redis is a Locker shared by every indexer process pointed at the same server.
type Redis struct {
	rdb    *redis.Client
	unlock *redis.Script
}

// NewRedis connects to addr and verifies it with a PING.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Redis{rdb: rdb, unlock: redis.NewScript(unlockLua)}, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func leaseKey(key string) string {
	return "lease:" + key
}

// Acquire takes the lease with SET NX and a TTL, so a crashed holder frees it on expiry.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := leaseKey(key)

	ok, err := r.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.unlock.Run(releaseCtx, r.rdb, []string{lk}, token).Err()
		})
	}
	return release, nil
}

var _ Locker = (*Redis)(nil)
