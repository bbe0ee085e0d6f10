// Package sessions serializes passive tree mutations per character.
//
// The tree core is single-goroutine by design. The manager keeps one live
// session per character behind its own mutex, so two concurrent allocations
// of the same character can never interleave validation and mutation. State
// is loaded from storage on first touch and persisted after every
// successful mutation.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
	"github.com/louisbranch/hollowspire.game/internal/passives/tree"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/observability"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/statcache"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/storage"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/telemetry"
)

const defaultMaxSessions = 1024

// MutationEvent is pushed to watchers after each successful mutation.
type MutationEvent struct {
	Event           string             `json:"event"`
	NodeID          string             `json:"nodeId,omitempty"`
	AvailablePoints int                `json:"availablePoints"`
	Stats           map[string]float64 `json:"stats"`
}

// TreeSnapshot is a read-only view of one character's tree.
type TreeSnapshot struct {
	CharacterID     string
	AllocatedNodes  []string
	AvailablePoints int
	Spent           int
	ActiveKeystones []string
	Character       tree.CharacterContext
}

// StatsResult carries a computed vector and any ignored override names.
type StatsResult struct {
	Vector  stats.Vector
	Ignored []string
	Cached  bool
}

// Config wires a Manager. Graph and Calculator are required; everything
// else degrades to an in-memory, unobserved deployment.
type Config struct {
	Graph       *graph.Graph
	Calculator  *stats.Calculator
	Store       storage.TreeStore
	Cache       statcache.Cache
	Journal     *telemetry.Emitter
	Metrics     *observability.Metrics
	Log         *slog.Logger
	MaxSessions int
}

// Manager owns the live sessions and the serialization discipline around
// them.
type Manager struct {
	graph       *graph.Graph
	calc        *stats.Calculator
	store       storage.TreeStore
	cache       statcache.Cache
	journal     *telemetry.Emitter
	metrics     *observability.Metrics
	log         *slog.Logger
	maxSessions int

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	characterID string

	// Guarded by Manager.mu.
	lastActive time.Time
	watcherN   int

	mu       sync.Mutex
	loaded   bool
	session  *tree.Session
	watchers map[chan MutationEvent]struct{}
}

// NewManager validates the config and returns an empty manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Graph == nil {
		return nil, errors.New("graph is required")
	}
	if cfg.Calculator == nil {
		return nil, errors.New("calculator is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = statcache.NewNoop()
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &Manager{
		graph:       cfg.Graph,
		calc:        cfg.Calculator,
		store:       cfg.Store,
		cache:       cache,
		journal:     cfg.Journal,
		metrics:     cfg.Metrics,
		log:         log,
		maxSessions: maxSessions,
	}, nil
}

// entryFor returns the live entry for a character, creating one when
// needed. Sessions beyond the cap are evicted stalest-first, but only when
// a store can revive them and no watcher is attached.
func (m *Manager) entryFor(characterID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[characterID]
	if ok {
		ent.lastActive = time.Now()
		return ent
	}

	if m.entries == nil {
		m.entries = make(map[string]*entry)
	}
	if m.store != nil && len(m.entries) >= m.maxSessions {
		m.evictStalest()
	}

	ent = &entry{
		characterID: characterID,
		lastActive:  time.Now(),
		watchers:    make(map[chan MutationEvent]struct{}),
	}
	m.entries[characterID] = ent
	return ent
}

func (m *Manager) evictStalest() {
	var victim *entry
	for _, candidate := range m.entries {
		if candidate.watcherN > 0 {
			continue
		}
		if victim == nil || candidate.lastActive.Before(victim.lastActive) {
			victim = candidate
		}
	}
	if victim != nil {
		delete(m.entries, victim.characterID)
	}
}

// ensureLoaded populates the entry's session from storage. Callers hold
// ent.mu.
func (m *Manager) ensureLoaded(ctx context.Context, ent *entry) error {
	if ent.loaded {
		return nil
	}

	session, err := tree.NewSession(m.graph, m.calc, m.log)
	if err != nil {
		return err
	}

	if m.store != nil {
		record, err := m.store.GetTreeState(ctx, ent.characterID)
		switch {
		case err == nil:
			available := record.AvailablePoints
			session.Restore(tree.SaveData{
				AllocatedNodes:  record.AllocatedNodes,
				AvailablePoints: &available,
				ActiveKeystones: record.ActiveKeystones,
			})
		case errors.Is(err, storage.ErrNotFound):
			// First touch: a fresh tree.
		default:
			return fmt.Errorf("load tree state: %w", err)
		}
	}

	ent.session = session
	ent.loaded = true
	return nil
}

func (m *Manager) persist(ctx context.Context, ent *entry) error {
	if m.store == nil {
		return nil
	}
	record := storage.TreeStateRecord{
		CharacterID:     ent.characterID,
		AllocatedNodes:  ent.session.AllocatedNodes(),
		AvailablePoints: ent.session.AvailablePoints(),
		ActiveKeystones: ent.session.ActiveKeystones(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := m.store.PutTreeState(ctx, record); err != nil {
		return fmt.Errorf("persist tree state: %w", err)
	}
	return nil
}

// Snapshot returns the character's current tree. A character never seen
// before reads as a fresh tree.
func (m *Manager) Snapshot(ctx context.Context, characterID string) (TreeSnapshot, error) {
	ent := m.entryFor(characterID)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := m.ensureLoaded(ctx, ent); err != nil {
		return TreeSnapshot{}, err
	}
	return TreeSnapshot{
		CharacterID:     characterID,
		AllocatedNodes:  ent.session.AllocatedNodes(),
		AvailablePoints: ent.session.AvailablePoints(),
		Spent:           ent.session.Spent(),
		ActiveKeystones: ent.session.ActiveKeystones(),
		Character:       ent.session.CharacterContext(),
	}, nil
}

// SetCharacterContext updates the level and class used by requirement
// checks. The context lives with the session, not the save data.
func (m *Manager) SetCharacterContext(ctx context.Context, characterID string, character tree.CharacterContext) error {
	ent := m.entryFor(characterID)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := m.ensureLoaded(ctx, ent); err != nil {
		return err
	}
	ent.session.SetCharacterContext(character)
	return nil
}

// Allocate spends one point on a node.
func (m *Manager) Allocate(ctx context.Context, characterID, nodeID string) (MutationEvent, error) {
	return m.mutate(ctx, characterID, string(storage.ActionAllocate), nodeID, func(session *tree.Session) error {
		return session.Allocate(nodeID)
	})
}

// Refund returns one point from a node.
func (m *Manager) Refund(ctx context.Context, characterID, nodeID string) (MutationEvent, error) {
	return m.mutate(ctx, characterID, string(storage.ActionRefund), nodeID, func(session *tree.Session) error {
		return session.Refund(nodeID)
	})
}

// Reset refunds the whole tree. Grant verification happens at the
// transport layer; by the time a reset reaches the manager it is earned.
func (m *Manager) Reset(ctx context.Context, characterID string) (MutationEvent, error) {
	return m.mutate(ctx, characterID, string(storage.ActionReset), "", func(session *tree.Session) error {
		session.Reset()
		return nil
	})
}

func (m *Manager) mutate(ctx context.Context, characterID, action, nodeID string, op func(*tree.Session) error) (MutationEvent, error) {
	ent := m.entryFor(characterID)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := m.ensureLoaded(ctx, ent); err != nil {
		m.record(action, observability.ResultError)
		return MutationEvent{}, err
	}

	// Snapshot before mutating so a failed persist can roll the session
	// back instead of letting memory and disk diverge.
	before := ent.session.Save()

	if err := op(ent.session); err != nil {
		m.record(action, observability.ResultFor(err))
		return MutationEvent{}, err
	}

	if err := m.persist(ctx, ent); err != nil {
		ent.session.Restore(before)
		m.record(action, observability.ResultError)
		return MutationEvent{}, err
	}
	m.record(action, observability.ResultOK)

	m.cache.Invalidate(ctx, characterID)

	vector := m.timedCalculate(ent.session)
	m.cache.Put(ctx, characterID, m.digest(ent.session), vector)

	m.appendJournal(ctx, characterID, action, nodeID, ent.session.AvailablePoints())

	event := MutationEvent{
		Event:           action,
		NodeID:          nodeID,
		AvailablePoints: ent.session.AvailablePoints(),
		Stats:           vector.Map(),
	}
	m.notify(ent, event)
	return event, nil
}

func (m *Manager) record(action, result string) {
	switch action {
	case string(storage.ActionAllocate):
		m.metrics.RecordAllocation(result)
	case string(storage.ActionRefund):
		m.metrics.RecordRefund(result)
	case string(storage.ActionReset):
		if result == observability.ResultOK {
			m.metrics.RecordReset()
		}
	}
}

func (m *Manager) appendJournal(ctx context.Context, characterID, action, nodeID string, pointsAfter int) {
	var err error
	switch action {
	case string(storage.ActionAllocate):
		err = m.journal.Allocation(ctx, characterID, nodeID, pointsAfter)
	case string(storage.ActionRefund):
		err = m.journal.Refund(ctx, characterID, nodeID, pointsAfter)
	case string(storage.ActionReset):
		err = m.journal.Reset(ctx, characterID, pointsAfter)
	}
	if err != nil {
		// The mutation already committed; the journal must not unwind it.
		m.log.Warn("allocation journal append failed",
			"character_id", characterID,
			"action", action,
			"error", err,
		)
	}
}

func (m *Manager) timedCalculate(session *tree.Session) stats.Vector {
	started := time.Now()
	vector := session.CalculateStats()
	m.metrics.ObserveStatCalc(time.Since(started))
	return vector
}

func (m *Manager) digest(session *tree.Session) string {
	return statcache.Digest(
		m.graph.Metadata().Version,
		session.AllocatedNodes(),
		session.BaseStats(),
		session.Equipment(),
		session.CharacterContext(),
	)
}

// CalculateStats computes the character's derived vector. Passing base or
// equipment overrides bypasses the cache; the common sheet-read path is
// memoized under the input digest.
func (m *Manager) CalculateStats(ctx context.Context, characterID string, base map[string]float64, equipment []graph.Effect) (StatsResult, error) {
	ent := m.entryFor(characterID)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if err := m.ensureLoaded(ctx, ent); err != nil {
		return StatsResult{}, err
	}

	if base == nil && equipment == nil {
		digest := m.digest(ent.session)
		if vector, ok := m.cache.Get(ctx, characterID, digest); ok {
			m.metrics.RecordCacheLookup(observability.CacheHit)
			return StatsResult{Vector: vector, Cached: true}, nil
		}
		m.metrics.RecordCacheLookup(observability.CacheMiss)

		vector := m.timedCalculate(ent.session)
		m.cache.Put(ctx, characterID, digest, vector)
		return StatsResult{Vector: vector}, nil
	}

	baseVector := ent.session.BaseStats()
	var ignored []string
	if base != nil {
		baseVector, ignored = stats.BaseFrom(base)
	}
	gear := equipment
	if gear == nil {
		gear = ent.session.Equipment()
	}

	started := time.Now()
	vector := ent.session.CalculateStatsWith(baseVector, gear)
	m.metrics.ObserveStatCalc(time.Since(started))
	return StatsResult{Vector: vector, Ignored: ignored}, nil
}

// History lists the character's journal entries, newest first.
func (m *Manager) History(ctx context.Context, characterID string, limit int) ([]storage.AllocationEvent, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.ListAllocationEvents(ctx, characterID, limit)
}

// Watch subscribes to the character's mutation feed. The returned cancel
// function is idempotent and must be called to release the subscription.
func (m *Manager) Watch(ctx context.Context, characterID string) (<-chan MutationEvent, func(), error) {
	ent := m.entryFor(characterID)

	ent.mu.Lock()
	if err := m.ensureLoaded(ctx, ent); err != nil {
		ent.mu.Unlock()
		return nil, nil, err
	}
	ch := make(chan MutationEvent, 8)
	ent.watchers[ch] = struct{}{}
	ent.mu.Unlock()

	m.mu.Lock()
	ent.watcherN++
	m.mu.Unlock()
	m.metrics.WatcherConnected()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ent.mu.Lock()
			delete(ent.watchers, ch)
			close(ch)
			ent.mu.Unlock()

			m.mu.Lock()
			ent.watcherN--
			m.mu.Unlock()
			m.metrics.WatcherDisconnected()
		})
	}
	return ch, cancel, nil
}

// notify fans the event out to watchers. Slow consumers drop frames rather
// than stall the mutation path. Callers hold ent.mu.
func (m *Manager) notify(ent *entry, event MutationEvent) {
	for ch := range ent.watchers {
		select {
		case ch <- event:
		default:
			m.log.Debug("watch frame dropped", "character_id", ent.characterID)
		}
	}
}
