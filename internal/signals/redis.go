package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisVelocityCounter counts per-user transactions in fixed window
// buckets backed by Redis INCR + EXPIRE. Counts are shared across
// processes, at the cost of bucket-boundary granularity.
type RedisVelocityCounter struct {
	client *redis.Client
	window time.Duration
}

// NewRedisVelocityCounter connects to Redis and verifies the connection.
func NewRedisVelocityCounter(addr, password string, db int, window time.Duration) (*RedisVelocityCounter, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if window <= 0 {
		window = time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisVelocityCounter{client: client, window: window}, nil
}

// Observe increments the user's current window bucket and returns the new
// count. The bucket expires two windows after its first increment.
func (c *RedisVelocityCounter) Observe(ctx context.Context, userID string) (int64, error) {
	key := c.bucketKey(userID)

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment velocity counter: %w", err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, 2*c.window).Err(); err != nil {
			return count, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}
	return count, nil
}

// Count returns the user's current window bucket without incrementing.
func (c *RedisVelocityCounter) Count(ctx context.Context, userID string) (int64, error) {
	count, err := c.client.Get(ctx, c.bucketKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read velocity counter: %w", err)
	}
	return count, nil
}

// Close releases the Redis connection.
func (c *RedisVelocityCounter) Close() error {
	return c.client.Close()
}

func (c *RedisVelocityCounter) bucketKey(userID string) string {
	bucket := time.Now().Unix() / int64(c.window.Seconds())
	return fmt.Sprintf("kestrel:velocity:%s:%d", userID, bucket)
}
