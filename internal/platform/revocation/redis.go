package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var isRevokedDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "signature_service_revocation_check_duration_ms",
	Help:    "Latency of revocation list checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
}, []string{"prefix"})

// Key prefixes in the shared Redis keyspace.
const (
	// AccessTokenPrefix matches the keys the auth-service writes on logout.
	AccessTokenPrefix = "trl:jti:"
	InvitationPrefix  = "sig:inv:"
)

// RedisList is the Redis-backed list used when several instances must share state.
type RedisList struct {
	client *redis.Client
	prefix string
}

// RedisListOption configures a RedisList.
type RedisListOption func(*RedisList)

// WithKeyPrefix namespaces keys. Defaults to AccessTokenPrefix.
func WithKeyPrefix(prefix string) RedisListOption {
	return func(l *RedisList) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisListOption) *RedisList {
	l := &RedisList{client: client, prefix: AccessTokenPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Revoke marks key as revoked with SET ... EX.
func (l *RedisList) Revoke(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	return l.client.Set(ctx, l.prefix+key, "1", ttl).Err()
}

// RevokeMany pipelines one SET per key.
func (l *RedisList) RevokeMany(ctx context.Context, keys []string, ttl time.Duration) error {
	if len(keys) == 0 {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	pipe := l.client.Pipeline()
	for _, key := range keys {
		if key != "" {
			pipe.Set(ctx, l.prefix+key, "1", ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// IsRevoked returns false when the key is absent or has expired.
func (l *RedisList) IsRevoked(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	defer func() {
		isRevokedDurationMs.WithLabelValues(l.prefix).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if key == "" {
		return false, nil
	}
	_, err := l.client.Get(ctx, l.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
