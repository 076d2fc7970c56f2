package geo

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by a Cache that does not hold the key.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores raw layer bytes.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// RedisCache is a Cache over go-redis.
type RedisCache struct {
	Client *redis.Client
}

// OpenRedis returns nil when addr is empty.
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

func (c RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.Client.Set(ctx, key, val, ttl).Err()
}

// CachedSource serves layers from Cache, falling back to Inner and filling the
// cache on success. Cache failures never fail a fetch.
type CachedSource struct {
	Inner  RawSource
	Cache  Cache
	TTL    time.Duration
	Prefix string
	Log    *zap.Logger
}

// decode is swapped in tests to count parses.
var decode = Decode

// cachedLayer is one lookup. fc and decodeErr are only set when the bytes came
// from Inner and were parsed to decide whether to cache them.
type cachedLayer struct {
	raw       []byte
	fc        *geojson.FeatureCollection
	decodeErr error
}

func (s CachedSource) load(ctx context.Context, name string) (cachedLayer, error) {
	key := s.Prefix + name
	if b, err := s.Cache.Get(ctx, key); err == nil {
		return cachedLayer{raw: b}, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger().Warn("geo cache read failed", zap.String("key", key), zap.Error(err))
	}

	b, err := s.Inner.FetchRaw(ctx, name)
	if err != nil {
		return cachedLayer{}, err
	}
	fc, derr := decode(b)
	if derr != nil {
		// Undecodable bytes are returned but not cached.
		return cachedLayer{raw: b, decodeErr: derr}, nil
	}
	if err := s.Cache.Set(ctx, key, b, s.TTL); err != nil {
		s.logger().Warn("geo cache write failed", zap.String("key", key), zap.Error(err))
	}
	return cachedLayer{raw: b, fc: fc}, nil
}

func (s CachedSource) FetchRaw(ctx context.Context, name string) ([]byte, error) {
	l, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	return l.raw, nil
}

// Fetch parses each layer once, whether it came from the cache or Inner.
func (s CachedSource) Fetch(ctx context.Context, name string) (*geojson.FeatureCollection, error) {
	l, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if l.fc != nil || l.decodeErr != nil {
		return l.fc, l.decodeErr
	}
	return decode(l.raw)
}

func (s CachedSource) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
