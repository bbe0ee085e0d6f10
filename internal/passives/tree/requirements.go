package tree

import (
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
)

// attempt scopes one allocation check. Attribute requirements read the
// derived stat vector; it is computed at most once per attempt and shared
// across every requirement of that attempt, which also keeps requirement
// evaluation from re-entering the calculator per check.
type attempt struct {
	session *Session
	vector  *stats.Vector
}

func (a *attempt) stats() stats.Vector {
	if a.vector == nil {
		v := a.session.CalculateStats()
		a.vector = &v
	}
	return *a.vector
}

// canAllocate checks, in order: the node exists, is not already allocated,
// budget remains, and every requirement holds. Read-only.
func (s *Session) canAllocate(id string) (*graph.Node, error) {
	node, ok := s.graph.Node(id)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodePassivesUnknownNode,
			"passive node does not exist",
			map[string]string{"NodeID": id})
	}
	if s.allocated[id] {
		return nil, apperrors.WithMetadata(apperrors.CodePassivesAlreadyAllocated,
			"passive node is already allocated",
			map[string]string{"NodeID": id})
	}
	if s.available <= 0 {
		return nil, apperrors.New(apperrors.CodePassivesNoPointsAvailable,
			"no passive points available")
	}
	a := &attempt{session: s}
	for _, req := range node.Requires {
		if err := a.check(node.ID, req); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (a *attempt) check(nodeID string, req graph.Requirement) error {
	switch req.Kind {
	case graph.RequirementNode:
		if !a.session.allocated[req.NodeID] {
			return apperrors.WithMetadata(apperrors.CodePassivesRequirementNotMet,
				"required passive is not allocated",
				map[string]string{"NodeID": nodeID, "RequiredNode": req.NodeID})
		}
	case graph.RequirementAttribute:
		current, ok := a.stats().Value(req.Stat)
		if !ok {
			// The loader only validates overlap, not stat names; an
			// unknown stat can never be satisfied, so it fails closed.
			return apperrors.WithMetadata(apperrors.CodePassivesUnknownRequirement,
				"attribute requirement references an unknown stat",
				map[string]string{"NodeID": nodeID, "Stat": req.Stat})
		}
		if current < req.Threshold {
			return apperrors.WithMetadata(apperrors.CodePassivesRequirementNotMet,
				"attribute below required threshold",
				map[string]string{
					"NodeID":    nodeID,
					"Stat":      req.Stat,
					"Threshold": strconv.FormatFloat(req.Threshold, 'f', -1, 64),
					"Current":   strconv.FormatFloat(current, 'f', -1, 64),
				})
		}
	case graph.RequirementLevel:
		if a.session.charCtx.Level <= 0 {
			return apperrors.WithMetadata(apperrors.CodePassivesInvalidCharacterCtx,
				"character level is not set",
				map[string]string{"NodeID": nodeID})
		}
		if a.session.charCtx.Level < req.MinLevel {
			return apperrors.WithMetadata(apperrors.CodePassivesRequirementNotMet,
				"character level below requirement",
				map[string]string{
					"NodeID":   nodeID,
					"MinLevel": strconv.Itoa(req.MinLevel),
					"Level":    strconv.Itoa(a.session.charCtx.Level),
				})
		}
	case graph.RequirementClass:
		if a.session.charCtx.Class == "" {
			return apperrors.WithMetadata(apperrors.CodePassivesInvalidCharacterCtx,
				"character class is not set",
				map[string]string{"NodeID": nodeID})
		}
		if !strings.EqualFold(a.session.charCtx.Class, req.Class) {
			return apperrors.WithMetadata(apperrors.CodePassivesRequirementNotMet,
				"character class does not match",
				map[string]string{
					"NodeID": nodeID,
					"Class":  req.Class,
				})
		}
	default:
		// Unrecognized kinds fail closed: an old binary must refuse a
		// requirement it cannot evaluate rather than wave it through.
		return apperrors.WithMetadata(apperrors.CodePassivesUnknownRequirement,
			"unrecognized requirement kind",
			map[string]string{"NodeID": nodeID, "Kind": req.RawKind})
	}
	return nil
}
