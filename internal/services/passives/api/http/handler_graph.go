package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
)

type graphSummary struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	NodeCount   int    `json:"nodeCount"`
	EdgeCount   int    `json:"edgeCount"`
	PointSeed   int    `json:"pointSeed"`
	StartNode   string `json:"startNode"`
}

type nodeSummary struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Type string   `json:"type"`
	Tags []string `json:"tags,omitempty"`
}

type nodeListing struct {
	Nodes []nodeSummary `json:"nodes"`
	Count int           `json:"count"`
}

type effectPayload struct {
	Stat      string  `json:"stat"`
	Op        string  `json:"op"`
	Value     float64 `json:"value"`
	Condition string  `json:"condition,omitempty"`
}

type requirementPayload struct {
	Kind      string  `json:"kind"`
	RawKind   string  `json:"rawKind,omitempty"`
	NodeID    string  `json:"nodeId,omitempty"`
	Stat      string  `json:"stat,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Level     int     `json:"level,omitempty"`
	Class     string  `json:"class,omitempty"`
}

type nodeDetail struct {
	nodeSummary
	Position   graph.Position       `json:"position"`
	Effects    []effectPayload      `json:"effects,omitempty"`
	Requires   []requirementPayload `json:"requires,omitempty"`
	Neighbors  []string             `json:"neighbors,omitempty"`
	Dependents []string             `json:"dependents,omitempty"`
}

type keystoneSummary struct {
	NodeID      string `json:"nodeId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Scripted    bool   `json:"scripted"`
}

func (h *Handler) handleGraphSummary(w http.ResponseWriter, r *http.Request) {
	meta := h.graph.Metadata()
	h.writeJSON(w, http.StatusOK, graphSummary{
		Version:     meta.Version,
		LastUpdated: meta.LastUpdated,
		NodeCount:   h.graph.NodeCount(),
		EdgeCount:   len(h.graph.Edges()),
		PointSeed:   h.graph.PointSeed(),
		StartNode:   h.graph.StartID(),
	})
}

func (h *Handler) handleGraphNodes(w http.ResponseWriter, r *http.Request) {
	var typeFilter graph.NodeType
	filterByType := false
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		parsed, ok := graph.ParseNodeType(raw)
		if !ok {
			h.writeError(w, r, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
				"unknown node type filter", map[string]string{"Field": "type"}))
			return
		}
		typeFilter = parsed
		filterByType = true
	}
	tagFilter := strings.TrimSpace(r.URL.Query().Get("tag"))

	nodes := h.graph.Nodes()
	listing := nodeListing{Nodes: make([]nodeSummary, 0, len(nodes))}
	for _, node := range nodes {
		if filterByType && node.Type != typeFilter {
			continue
		}
		if tagFilter != "" && !hasTag(node, tagFilter) {
			continue
		}
		listing.Nodes = append(listing.Nodes, summarizeNode(node))
	}
	listing.Count = len(listing.Nodes)
	h.writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleGraphNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	node, ok := h.graph.Node(nodeID)
	if !ok {
		h.writeError(w, r, apperrors.WithMetadata(apperrors.CodeNotFound,
			"node not found", map[string]string{"NodeID": nodeID}))
		return
	}

	detail := nodeDetail{
		nodeSummary: summarizeNode(node),
		Position:    node.Position,
		Neighbors:   h.graph.Neighbors(node.ID),
		Dependents:  h.graph.Dependents(node.ID),
	}
	for _, effect := range node.Effects {
		detail.Effects = append(detail.Effects, effectPayload{
			Stat:      effect.Stat,
			Op:        effect.Op.String(),
			Value:     effect.Value,
			Condition: effect.Condition,
		})
	}
	for _, req := range node.Requires {
		payload := requirementPayload{
			Kind:      req.Kind.String(),
			NodeID:    req.NodeID,
			Stat:      req.Stat,
			Threshold: req.Threshold,
			Level:     req.MinLevel,
			Class:     req.Class,
		}
		if req.Kind == graph.RequirementUnknown {
			payload.RawKind = req.RawKind
		}
		detail.Requires = append(detail.Requires, payload)
	}
	h.writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleKeystones(w http.ResponseWriter, r *http.Request) {
	listing := struct {
		Keystones []keystoneSummary `json:"keystones"`
	}{Keystones: []keystoneSummary{}}

	if h.keystones != nil {
		for _, effect := range h.keystones.List() {
			listing.Keystones = append(listing.Keystones, keystoneSummary{
				NodeID:      effect.NodeID,
				Name:        effect.Name,
				Description: effect.Description,
				Scripted:    strings.TrimSpace(effect.Script) != "",
			})
		}
	}
	h.writeJSON(w, http.StatusOK, listing)
}

func summarizeNode(node *graph.Node) nodeSummary {
	return nodeSummary{
		ID:   node.ID,
		Name: node.Name,
		Type: node.Type.String(),
		Tags: node.Tags,
	}
}

func hasTag(node *graph.Node, tag string) bool {
	for _, candidate := range node.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}
