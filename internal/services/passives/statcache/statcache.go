// Package statcache memoizes calculated stat vectors between mutations.
package statcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
	"github.com/louisbranch/hollowspire.game/internal/passives/tree"
)

// Cache memoizes calculated stat vectors. Implementations are best-effort:
// a miss is always an acceptable answer, and write failures are swallowed
// after logging. Correctness comes from the digest, not the store.
type Cache interface {
	Get(ctx context.Context, characterID, digest string) (stats.Vector, bool)
	Put(ctx context.Context, characterID, digest string, vector stats.Vector)
	Invalidate(ctx context.Context, characterID string)
	Close() error
}

// Digest fingerprints every input that feeds the stat pipeline. Identical
// inputs produce identical digests regardless of allocation order.
func Digest(graphVersion string, allocated []string, base stats.Vector, equipment []graph.Effect, character tree.CharacterContext) string {
	sorted := append([]string(nil), allocated...)
	sort.Strings(sorted)

	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(graphVersion)
	_ = enc.Encode(sorted)
	_ = enc.Encode(base)
	_ = enc.Encode(equipment)
	_ = enc.Encode(character)
	return hex.EncodeToString(h.Sum(nil))
}

// Noop is a Cache that stores nothing. It serves when Redis is not
// configured.
type Noop struct{}

// NewNoop returns a cache that never hits.
func NewNoop() Noop { return Noop{} }

// Get always misses.
func (Noop) Get(context.Context, string, string) (stats.Vector, bool) {
	return stats.Vector{}, false
}

// Put discards the vector.
func (Noop) Put(context.Context, string, string, stats.Vector) {}

// Invalidate does nothing.
func (Noop) Invalidate(context.Context, string) {}

// Close does nothing.
func (Noop) Close() error { return nil }

var _ Cache = Noop{}
