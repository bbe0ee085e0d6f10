package keystone

import (
	"log/slog"
	"sort"
	"sync"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"

	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
)

// Registry holds keystone effects in registration order. Order is part of
// the contract: stacking keystones that touch the same stat compound in
// the order they were registered, and callers rely on that for reproducible
// results.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Effect
	log   *slog.Logger
}

// NewRegistry builds an empty registry. A nil logger falls back to
// slog.Default.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byID: make(map[string]Effect),
		log:  log,
	}
}

// Register adds a keystone effect. Registering the same node id twice is an
// error so a graph reload cannot silently double a behavior.
func (r *Registry) Register(e Effect) error {
	if err := e.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[e.NodeID]; ok {
		return apperrors.WithMetadata(apperrors.CodeKeystoneDuplicate,
			"keystone already registered",
			map[string]string{"NodeID": e.NodeID})
	}
	r.byID[e.NodeID] = e
	r.order = append(r.order, e.NodeID)
	return nil
}

// Get returns the effect registered for a node id.
func (r *Registry) Get(nodeID string) (Effect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[nodeID]
	return e, ok
}

// List returns all registered effects in registration order.
func (r *Registry) List() []Effect {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Effect, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// ApplyKeystones runs every registered effect whose node id is active, in
// registration order. Active ids with no registered behavior and scripts
// that fail are skipped with a warning; a broken keystone must degrade a
// build, not crash a calculation.
func (r *Registry) ApplyKeystones(v stats.Vector, active []string, allocatedCount int) stats.Vector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activeSet := make(map[string]bool, len(active))
	for _, id := range active {
		activeSet[id] = true
	}
	for _, id := range r.order {
		if !activeSet[id] {
			continue
		}
		delete(activeSet, id)
		next, err := r.byID[id].Apply(v, allocatedCount)
		if err != nil {
			r.log.Warn("keystone script failed, skipped", "node_id", id, "error", err)
			continue
		}
		v = next
	}
	if len(activeSet) > 0 {
		leftover := make([]string, 0, len(activeSet))
		for id := range activeSet {
			leftover = append(leftover, id)
		}
		sort.Strings(leftover)
		for _, id := range leftover {
			r.log.Warn("keystone has no registered behavior", "node_id", id)
		}
	}
	return v
}

var _ stats.KeystoneApplier = (*Registry)(nil)
