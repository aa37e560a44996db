package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache is a read-through optimization. Callers treat every error as a miss.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func AssessmentKey(conversationID uuid.UUID) string {
	return "assessment:conversation:" + conversationID.String()
}

func ProgressKey(userID uuid.UUID) string {
	return "progress:user:" + userID.String()
}

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error { return nil }

// Redis stores JSON values under "<prefix>:<key>". Every call is bounded by opTimeout so
// a slow Redis cannot stall a request.
type Redis struct {
	rdb       *goredis.Client
	prefix    string
	opTimeout time.Duration
}

func NewRedis(rdb *goredis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "negotiator"
	}
	return &Redis{rdb: rdb, prefix: prefix + ":cache:", opTimeout: 250 * time.Millisecond}
}

func (c *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, fmt.Errorf("redis cache not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Redis) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis cache not initialized")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err()
}

func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis cache not initialized")
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.rdb.Del(ctx, full...).Err()
}
