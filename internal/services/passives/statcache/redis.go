package statcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
)

const defaultPrefix = "hollowspire:passives:stats:"

// Redis caches one vector per character, guarded by the digest of the
// inputs that produced it. A stored entry whose digest no longer matches
// reads as a miss.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// Option adjusts a Redis cache.
type Option func(*Redis)

// WithTTL bounds how long a cached vector survives without invalidation.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithLogger sets the logger for swallowed cache faults.
func WithLogger(log *slog.Logger) Option {
	return func(r *Redis) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRedis connects a cache to the given address.
func NewRedis(addr string, opts ...Option) *Redis {
	client := backend.NewClient(&backend.Options{Addr: addr})
	return NewRedisFromClient(client, opts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, opts ...Option) *Redis {
	cache := &Redis{
		client: client,
		prefix: defaultPrefix,
		ttl:    15 * time.Minute,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

type entry struct {
	Digest string       `json:"digest"`
	Vector stats.Vector `json:"vector"`
}

func (r *Redis) key(characterID string) string {
	return r.prefix + characterID
}

// Get returns the cached vector when the stored digest matches.
func (r *Redis) Get(ctx context.Context, characterID, digest string) (stats.Vector, bool) {
	raw, err := r.client.Get(ctx, r.key(characterID)).Result()
	if err != nil {
		if !errors.Is(err, backend.Nil) {
			r.log.Warn("stat cache read failed", "character_id", characterID, "error", err)
		}
		return stats.Vector{}, false
	}

	var stored entry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		r.log.Warn("stat cache entry corrupt, dropped", "character_id", characterID, "error", err)
		return stats.Vector{}, false
	}
	if stored.Digest != digest {
		return stats.Vector{}, false
	}
	return stored.Vector, true
}

// Put stores the vector under the character's key.
func (r *Redis) Put(ctx context.Context, characterID, digest string, vector stats.Vector) {
	data, err := json.Marshal(entry{Digest: digest, Vector: vector})
	if err != nil {
		r.log.Warn("stat cache encode failed", "character_id", characterID, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.key(characterID), data, r.ttl).Err(); err != nil {
		r.log.Warn("stat cache write failed", "character_id", characterID, "error", err)
	}
}

// Invalidate drops the character's cached vector.
func (r *Redis) Invalidate(ctx context.Context, characterID string) {
	if err := r.client.Del(ctx, r.key(characterID)).Err(); err != nil {
		r.log.Warn("stat cache invalidate failed", "character_id", characterID, "error", err)
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
