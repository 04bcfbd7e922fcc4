package suppress

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisMarkerPrefix string = "suppress/"

// Redis-backed registry, for running multiple gateway consumers against the
// same communities. SETNX gives first-write-wins marks, GETDEL gives
// single-winner consumes, and the TTL bounds marker lifetime server-side.
type RedisRegistry struct {
	Client *redis.Client
	Window time.Duration
}

var _ Registry = (*RedisRegistry)(nil)

func NewRedisRegistry(redisURL string, window time.Duration) (*RedisRegistry, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisRegistry{
		Client: rdb,
		Window: window,
	}, nil
}

func (r *RedisRegistry) Mark(ctx context.Context, kind EventKind, communityID, userID string) error {
	key := redisMarkerPrefix + markerKey(kind, communityID, userID)
	err := r.Client.SetNX(ctx, key, "1", r.Window).Err()
	if err != nil {
		return err
	}
	markedCount.WithLabelValues(string(kind)).Inc()
	return nil
}

func (r *RedisRegistry) Consume(ctx context.Context, kind EventKind, communityID, userID string) (bool, error) {
	key := redisMarkerPrefix + markerKey(kind, communityID, userID)
	_, err := r.Client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	consumedCount.WithLabelValues(string(kind)).Inc()
	return true, nil
}
