package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coino/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const scopeLockPrefix = "coino:scope-lock:"

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisScopeLock is a best-effort cross-process claim on round creation for a
// scope. Correctness never depends on it; Postgres remains the arbiter.
type RedisScopeLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.WithField("addr", addr).Info("Connected to Redis")
	return client, nil
}

// NewRedisScopeLock creates a scope lock whose claims expire after ttl
func NewRedisScopeLock(client *redis.Client, ttl time.Duration) *RedisScopeLock {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisScopeLock{client: client, ttl: ttl}
}

// Claim tries to take the scope. ok is false when another process holds it.
// The returned release function is safe to call more than once.
func (l *RedisScopeLock) Claim(ctx context.Context, scope models.Scope) (release func(), ok bool, err error) {
	key := scopeLockPrefix + string(scope)
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim scope %s: %w", scope, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	released := false
	release = func() {
		if released {
			return
		}
		released = true

		// Release with a fresh context; the caller's may be done by now.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.WithFields(log.Fields{
				"scope": scope,
				"error": err,
			}).Warn("Failed to release scope lock")
		}
	}
	return release, true, nil
}

// Close closes the underlying client
func (l *RedisScopeLock) Close() error {
	return l.client.Close()
}
