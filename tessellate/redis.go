package tessellate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/security-somanos/blockchain-center/internal/logging"
)

// RedisCache shares layers between processes. Each density is stored as
// two binary blobs, <prefix>:<key>:edge and <prefix>:<key>:fill. Redis
// errors are logged and reported as misses.
type RedisCache struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
	log    logging.Logger
}

// NewRedisCache wraps rc. A zero ttl keeps entries until evicted by the
// server.
func NewRedisCache(rc *redis.Client, prefix string, ttl time.Duration, log logging.Logger) *RedisCache {
	if prefix == "" {
		prefix = "globe:layers"
	}
	if log == nil {
		log = logging.Noop()
	}
	return &RedisCache{rc: rc, prefix: prefix, ttl: ttl, log: log}
}

func (c *RedisCache) keys(key float64) (string, string) {
	k := c.prefix + ":" + strconv.FormatFloat(normalizeKey(key), 'g', -1, 64)
	return k + ":edge", k + ":fill"
}

// Get fetches both blobs in one round trip.
func (c *RedisCache) Get(ctx context.Context, key float64) (Layers, bool) {
	if c == nil || c.rc == nil {
		return Layers{}, false
	}
	edgeKey, fillKey := c.keys(key)

	pipe := c.rc.Pipeline()
	edgeCmd := pipe.Get(ctx, edgeKey)
	fillCmd := pipe.Get(ctx, fillKey)
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn(ctx, "redis layer lookup failed", logging.Float("tile_deg", key), logging.Err(err))
		}
		return Layers{}, false
	}

	var l Layers
	for _, part := range []struct {
		cmd *redis.StringCmd
		dst *Buffer
	}{{edgeCmd, &l.Edge}, {fillCmd, &l.Fill}} {
		data, err := part.cmd.Bytes()
		if err != nil {
			return Layers{}, false
		}
		if err := part.dst.UnmarshalBinary(data); err != nil {
			c.log.Warn(ctx, "discarding corrupt cached layer", logging.Float("tile_deg", key), logging.Err(err))
			return Layers{}, false
		}
	}
	return l, true
}

// Put writes both blobs atomically.
func (c *RedisCache) Put(ctx context.Context, key float64, l Layers) {
	if c == nil || c.rc == nil {
		return
	}
	edgeKey, fillKey := c.keys(key)
	edge, _ := l.Edge.MarshalBinary()
	fill, _ := l.Fill.MarshalBinary()

	_, err := c.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, edgeKey, edge, c.ttl)
		pipe.Set(ctx, fillKey, fill, c.ttl)
		return nil
	})
	if err != nil {
		c.log.Warn(ctx, "redis layer store failed", logging.Float("tile_deg", key), logging.Err(err))
	}
}
