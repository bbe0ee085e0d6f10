// Package tree owns per-character passive-tree state: the allocated set,
// the point budget, and the allocation, refund, and reset rules that guard
// them. All mutations are all-or-nothing; a failed validation leaves state
// untouched and returns a coded error the API layer can translate for the
// player.
package tree

import (
	"log/slog"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
)

// CharacterContext carries the character facts that level and class
// requirements evaluate against.
type CharacterContext struct {
	Level int    `json:"level"`
	Class string `json:"class"`
}

// Session is one character's view of the shared passive graph: allocated
// nodes, remaining points, and the inputs stat calculation needs. A Session
// is not safe for concurrent use; the service layer serializes access per
// character.
type Session struct {
	graph *graph.Graph
	calc  *stats.Calculator
	log   *slog.Logger

	allocated map[string]bool
	available int
	spent     int
	keystones map[string]bool

	charCtx   CharacterContext
	base      stats.Vector
	equipment []graph.Effect
}

// NewSession builds a fresh session on a loaded graph: only the start node
// allocated and the full point seed available. A nil logger falls back to
// slog.Default.
func NewSession(g *graph.Graph, calc *stats.Calculator, log *slog.Logger) (*Session, error) {
	if g == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "session requires a graph")
	}
	if calc == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "session requires a calculator")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		graph: g,
		calc:  calc,
		log:   log,
		base:  stats.DefaultBase(),
	}
	s.fresh()
	return s, nil
}

func (s *Session) fresh() {
	s.allocated = map[string]bool{s.graph.StartID(): true}
	s.available = s.graph.PointSeed()
	s.spent = 0
	s.keystones = make(map[string]bool)
}

// SetCharacterContext replaces the level/class facts used by requirement
// evaluation.
func (s *Session) SetCharacterContext(cc CharacterContext) {
	s.charCtx = cc
}

// CharacterContext returns the current level/class facts.
func (s *Session) CharacterContext() CharacterContext {
	return s.charCtx
}

// SetBaseStats replaces the base vector from a partial name→value map
// merged over the documented defaults. It returns the names it ignored
// (unknown stats, non-finite values).
func (s *Session) SetBaseStats(partial map[string]float64) []string {
	base, ignored := stats.BaseFrom(partial)
	s.base = base
	return ignored
}

// SetEquipment replaces the equipment effect list. Equipment effects join
// allocated-node effects in the additive through more/less stages.
func (s *Session) SetEquipment(effects []graph.Effect) {
	s.equipment = append([]graph.Effect(nil), effects...)
}

// Equipment returns a copy of the current equipment effects.
func (s *Session) Equipment() []graph.Effect {
	return append([]graph.Effect(nil), s.equipment...)
}

// BaseStats returns the current base vector.
func (s *Session) BaseStats() stats.Vector {
	return s.base
}

// AvailablePoints returns the unspent point budget.
func (s *Session) AvailablePoints() int {
	return s.available
}

// Spent returns the number of points spent on allocations.
func (s *Session) Spent() int {
	return s.spent
}

// IsAllocated reports whether the node id is in the allocated set.
func (s *Session) IsAllocated(id string) bool {
	return s.allocated[id]
}

// AllocatedNodes returns the allocated node ids in graph document order.
func (s *Session) AllocatedNodes() []string {
	out := make([]string, 0, len(s.allocated))
	for _, n := range s.graph.Nodes() {
		if s.allocated[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// ActiveKeystones returns the allocated keystone ids in graph document
// order.
func (s *Session) ActiveKeystones() []string {
	out := make([]string, 0, len(s.keystones))
	for _, n := range s.graph.Nodes() {
		if s.keystones[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// CanAllocate reports whether the node could be allocated right now. A nil
// return means yes; otherwise the coded error names the first violated
// rule.
func (s *Session) CanAllocate(id string) error {
	_, err := s.canAllocate(id)
	return err
}

// Allocate spends one point on the node. Validation runs first and the
// mutation happens only when every rule passes, so a failure leaves the
// session exactly as it was.
func (s *Session) Allocate(id string) error {
	node, err := s.canAllocate(id)
	if err != nil {
		return err
	}
	s.allocated[id] = true
	s.available--
	s.spent++
	if node.Type == graph.NodeTypeKeystone {
		s.keystones[id] = true
	}
	return nil
}

// CanRefund reports whether the node could be refunded right now. Refund
// eligibility follows the requirement lists of the other allocated nodes,
// not the presentation edges: a node is locked in place exactly while
// something allocated requires it.
func (s *Session) CanRefund(id string) error {
	return s.canRefund(id)
}

// Refund returns the node's point to the budget and removes it from the
// allocated set. Fails without touching state when the node is the start
// anchor, is not allocated, or has allocated dependents.
func (s *Session) Refund(id string) error {
	if err := s.canRefund(id); err != nil {
		return err
	}
	delete(s.allocated, id)
	s.available++
	s.spent--
	delete(s.keystones, id)
	return nil
}

// Reset returns every spent point to the budget and restores the allocated
// set to the start anchor alone. Points granted beyond the seed survive.
func (s *Session) Reset() {
	s.available += s.spent
	s.spent = 0
	s.allocated = map[string]bool{s.graph.StartID(): true}
	s.keystones = make(map[string]bool)
}

// CalculateStats runs the full pipeline for the session's current state.
func (s *Session) CalculateStats() stats.Vector {
	return s.calc.Calculate(s.base, s.equipment, s.AllocatedNodes(), s.graph)
}

// CalculateStatsWith runs the pipeline for the session's allocated set but
// with caller-supplied base and equipment, for what-if tooling. The session
// is not modified.
func (s *Session) CalculateStatsWith(base stats.Vector, equipment []graph.Effect) stats.Vector {
	return s.calc.Calculate(base, equipment, s.AllocatedNodes(), s.graph)
}

func (s *Session) canRefund(id string) error {
	if !s.allocated[id] {
		return apperrors.WithMetadata(apperrors.CodePassivesNotAllocated,
			"passive node is not allocated",
			map[string]string{"NodeID": id})
	}
	if id == s.graph.StartID() {
		return apperrors.WithMetadata(apperrors.CodePassivesStartImmutable,
			"the starting node cannot be refunded",
			map[string]string{"NodeID": id})
	}
	for _, n := range s.graph.Nodes() {
		if n.ID == id || !s.allocated[n.ID] {
			continue
		}
		for _, req := range n.Requires {
			if req.Kind == graph.RequirementNode && req.NodeID == id {
				return apperrors.WithMetadata(apperrors.CodePassivesRefundBlocked,
					"another allocated passive depends on this node",
					map[string]string{"NodeID": id, "DependentNode": n.ID})
			}
		}
	}
	return nil
}
