package tree

import "github.com/louisbranch/hollowspire.game/internal/passives/graph"

// SaveData is the persisted wire form of a tree state. AvailablePoints is a
// pointer so a legacy record that never stored a budget decodes as nil
// rather than zero; Restore treats the two very differently.
type SaveData struct {
	AllocatedNodes  []string `json:"allocatedNodes"`
	AvailablePoints *int     `json:"availablePoints,omitempty"`
	ActiveKeystones []string `json:"activeKeystones,omitempty"`
}

// Save snapshots the session for persistence. Node and keystone ids are in
// graph document order, so identical states always serialize identically.
func (s *Session) Save() SaveData {
	points := s.available
	return SaveData{
		AllocatedNodes:  s.AllocatedNodes(),
		AvailablePoints: &points,
		ActiveKeystones: s.ActiveKeystones(),
	}
}

// Restore replaces the session state from persisted save data. The load is
// defensive: saves written against older graph revisions must come back
// playable, never wedged.
//
//   - An empty allocated list restores a fresh state at the full seed.
//   - Ids unknown to the current graph are dropped with a warning and their
//     point refunded.
//   - The surviving set is re-closed under node requirements; nodes whose
//     prerequisites were dropped are dropped and refunded too.
//   - A present AvailablePoints is trusted verbatim (quest rewards may
//     grant points beyond the seed); a nil one is derived from the seed and
//     the surviving set.
//   - ActiveKeystones is ignored and re-derived from the surviving set.
func (s *Session) Restore(data SaveData) {
	s.fresh()
	if len(data.AllocatedNodes) == 0 {
		return
	}

	refunded := 0
	known := make(map[string]bool, len(data.AllocatedNodes))
	for _, id := range data.AllocatedNodes {
		if known[id] {
			s.log.Warn("duplicate node in save data, ignored", "node_id", id)
			continue
		}
		if !s.graph.HasNode(id) {
			s.log.Warn("saved node missing from graph, dropped", "node_id", id)
			refunded++
			continue
		}
		known[id] = true
	}
	start := s.graph.StartID()
	known[start] = true

	// Iterate to a fixpoint: dropping one node can orphan another.
	for changed := true; changed; {
		changed = false
		for _, n := range s.graph.Nodes() {
			if !known[n.ID] || n.ID == start {
				continue
			}
			for _, req := range n.Requires {
				if req.Kind == graph.RequirementNode && !known[req.NodeID] {
					s.log.Warn("saved node lost its prerequisite, dropped",
						"node_id", n.ID, "requires", req.NodeID)
					delete(known, n.ID)
					refunded++
					changed = true
					break
				}
			}
		}
	}

	s.allocated = known
	s.spent = len(known) - 1
	if data.AvailablePoints != nil {
		s.available = *data.AvailablePoints + refunded
	} else {
		s.available = s.graph.PointSeed() - s.spent
	}
	if s.available < 0 {
		s.log.Warn("save data implies a negative budget, clamped", "points", s.available)
		s.available = 0
	}

	s.keystones = make(map[string]bool)
	for id := range known {
		if n, ok := s.graph.Node(id); ok && n.Type == graph.NodeTypeKeystone {
			s.keystones[id] = true
		}
	}
}
