package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
)

// Document is the wire shape of a passive graph dataset.
type Document struct {
	Metadata Metadata   `json:"metadata" yaml:"metadata"`
	Nodes    []NodeDoc  `json:"nodes" yaml:"nodes"`
	Edges    [][]string `json:"edges" yaml:"edges"`
}

// NodeDoc is the wire shape of one node. Grants is the legacy shorthand for
// flat additive effects; the loader folds it into Effects so the rest of the
// system sees a single representation.
type NodeDoc struct {
	ID       string             `json:"id" yaml:"id"`
	Name     string             `json:"name" yaml:"name"`
	Type     string             `json:"type" yaml:"type"`
	Position Position           `json:"position" yaml:"position"`
	Effects  []EffectDoc        `json:"effects" yaml:"effects"`
	Grants   map[string]float64 `json:"grants" yaml:"grants"`
	Requires []map[string]any   `json:"requires" yaml:"requires"`
	Tags     []string           `json:"tags" yaml:"tags"`
}

// EffectDoc is the wire shape of one effect.
type EffectDoc struct {
	Stat      string  `json:"stat" yaml:"stat"`
	Op        string  `json:"op" yaml:"op"`
	Value     float64 `json:"value" yaml:"value"`
	Condition string  `json:"condition" yaml:"condition"`
}

// Load parses a JSON graph document and builds the graph.
func Load(r io.Reader) (*Graph, error) {
	var doc Document
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGraphInvalidDocument, "decode graph document", err)
	}
	return Decode(doc)
}

// LoadYAML parses a YAML graph document and builds the graph.
func LoadYAML(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGraphInvalidDocument, "read graph document", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGraphInvalidDocument, "decode graph document", err)
	}
	return Decode(doc)
}

// LoadFile loads a graph document from disk, switching parser on extension.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGraphInvalidDocument, "open graph document", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return Load(f)
	}
}

// Decode validates the document and builds an immutable Graph. Structural
// problems (missing start node, duplicate ids, dangling references, missing
// point seed) are fatal; presentation oddities are collected as warnings.
func Decode(doc Document) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]*Node, len(doc.Nodes)),
		order:      make([]string, 0, len(doc.Nodes)),
		neighbors:  map[string][]string{},
		dependents: map[string][]string{},
		meta:       doc.Metadata,
	}

	for i, nd := range doc.Nodes {
		node, err := decodeNode(g, i, nd)
		if err != nil {
			return nil, err
		}
		if _, exists := g.nodes[node.ID]; exists {
			return nil, dataError(apperrors.CodeGraphDuplicateNode,
				fmt.Sprintf("duplicate node id %q", node.ID),
				map[string]string{"NodeID": node.ID})
		}
		if node.Type == NodeTypeStart {
			if g.start != "" {
				return nil, dataError(apperrors.CodeGraphDuplicateStart,
					fmt.Sprintf("start node already defined as %q, found second %q", g.start, node.ID),
					map[string]string{"NodeID": node.ID})
			}
			g.start = node.ID
		}
		g.nodes[node.ID] = node
		g.order = append(g.order, node.ID)
	}

	if g.start == "" {
		return nil, dataError(apperrors.CodeGraphMissingStart, "graph has no start node", nil)
	}

	if err := g.extractPointSeed(); err != nil {
		return nil, err
	}
	if err := g.linkEdges(doc.Edges); err != nil {
		return nil, err
	}
	if err := g.checkRequirements(); err != nil {
		return nil, err
	}

	if doc.Metadata.TotalNodes != 0 && doc.Metadata.TotalNodes != len(g.order) {
		g.warnf("metadata totalNodes=%d does not match %d nodes in document", doc.Metadata.TotalNodes, len(g.order))
	}

	return g, nil
}

func decodeNode(g *Graph, index int, nd NodeDoc) (*Node, error) {
	id := strings.TrimSpace(nd.ID)
	if id == "" {
		return nil, dataError(apperrors.CodeGraphInvalidDocument,
			fmt.Sprintf("node %d has no id", index), nil)
	}
	nodeType, ok := ParseNodeType(strings.TrimSpace(nd.Type))
	if !ok {
		return nil, dataError(apperrors.CodeGraphInvalidDocument,
			fmt.Sprintf("node %q has unrecognized type %q", id, nd.Type),
			map[string]string{"NodeID": id, "Type": nd.Type})
	}

	node := &Node{
		ID:       id,
		Name:     strings.TrimSpace(nd.Name),
		Type:     nodeType,
		Position: nd.Position,
		Tags:     append([]string(nil), nd.Tags...),
	}

	for i, ed := range nd.Effects {
		if math.IsNaN(ed.Value) || math.IsInf(ed.Value, 0) {
			return nil, dataError(apperrors.CodeGraphInvalidDocument,
				fmt.Sprintf("node %q effect %d has non-finite value", id, i),
				map[string]string{"NodeID": id, "Stat": ed.Stat})
		}
		op := ParseOp(strings.TrimSpace(ed.Op))
		if op == OpUnknown {
			g.warnf("node %q effect %d: unrecognized op %q will be ignored by the pipeline", id, i, ed.Op)
		}
		node.Effects = append(node.Effects, Effect{
			Stat:      strings.TrimSpace(ed.Stat),
			Op:        op,
			Value:     ed.Value,
			Condition: strings.TrimSpace(ed.Condition),
		})
	}

	// Legacy grants fold in as additive effects, sorted for determinism.
	if len(nd.Grants) > 0 {
		stats := make([]string, 0, len(nd.Grants))
		for stat := range nd.Grants {
			stats = append(stats, stat)
		}
		sort.Strings(stats)
		for _, stat := range stats {
			value := nd.Grants[stat]
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return nil, dataError(apperrors.CodeGraphInvalidDocument,
					fmt.Sprintf("node %q grants %q a non-finite value", id, stat),
					map[string]string{"NodeID": id, "Stat": stat})
			}
			node.Effects = append(node.Effects, Effect{Stat: strings.TrimSpace(stat), Op: OpAdd, Value: value})
		}
	}

	for i, raw := range nd.Requires {
		req, err := decodeRequirement(raw)
		if err != nil {
			return nil, dataError(apperrors.CodeGraphInvalidRequirement,
				fmt.Sprintf("node %q requirement %d: %v", id, i, err),
				map[string]string{"NodeID": id})
		}
		if req.Kind == RequirementUnknown {
			g.warnf("node %q requirement %d: unrecognized kind %q can never be satisfied", id, i, req.RawKind)
		}
		if req.Kind == RequirementNode && req.NodeID == id {
			g.warnf("node %q requires itself and can never be allocated", id)
		}
		node.Requires = append(node.Requires, req)
	}

	return node, nil
}

// decodeRequirement resolves the kind tag and decodes the kind-specific
// fields, tolerating the legacy key spellings older datasets used.
func decodeRequirement(raw map[string]any) (Requirement, error) {
	var head struct {
		Kind string `mapstructure:"kind"`
		Type string `mapstructure:"type"`
	}
	if err := weakDecode(raw, &head); err != nil {
		return Requirement{}, fmt.Errorf("decode requirement kind: %w", err)
	}
	kind := strings.ToLower(strings.TrimSpace(head.Kind))
	if kind == "" {
		kind = strings.ToLower(strings.TrimSpace(head.Type))
	}

	switch kind {
	case "node":
		var doc struct {
			ID    string `mapstructure:"id"`
			Node  string `mapstructure:"node"`
			Value string `mapstructure:"value"`
		}
		if err := weakDecode(raw, &doc); err != nil {
			return Requirement{}, fmt.Errorf("decode node requirement: %w", err)
		}
		id := firstNonEmpty(doc.ID, doc.Node, doc.Value)
		if id == "" {
			return Requirement{}, fmt.Errorf("node requirement has no target id")
		}
		return Requirement{Kind: RequirementNode, NodeID: id, RawKind: kind}, nil

	case "attribute":
		var doc struct {
			Stat      string  `mapstructure:"stat"`
			Attribute string  `mapstructure:"attribute"`
			Threshold float64 `mapstructure:"threshold"`
			Value     float64 `mapstructure:"value"`
		}
		if err := weakDecode(raw, &doc); err != nil {
			return Requirement{}, fmt.Errorf("decode attribute requirement: %w", err)
		}
		stat := firstNonEmpty(doc.Stat, doc.Attribute)
		if stat == "" {
			return Requirement{}, fmt.Errorf("attribute requirement has no stat")
		}
		threshold := doc.Threshold
		if threshold == 0 {
			threshold = doc.Value
		}
		if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
			return Requirement{}, fmt.Errorf("attribute requirement threshold is not finite")
		}
		return Requirement{Kind: RequirementAttribute, Stat: stat, Threshold: threshold, RawKind: kind}, nil

	case "level":
		var doc struct {
			Min   int `mapstructure:"min"`
			Level int `mapstructure:"level"`
			Value int `mapstructure:"value"`
		}
		if err := weakDecode(raw, &doc); err != nil {
			return Requirement{}, fmt.Errorf("decode level requirement: %w", err)
		}
		min := doc.Min
		if min == 0 {
			min = doc.Level
		}
		if min == 0 {
			min = doc.Value
		}
		if min <= 0 {
			return Requirement{}, fmt.Errorf("level requirement needs a positive minimum")
		}
		return Requirement{Kind: RequirementLevel, MinLevel: min, RawKind: kind}, nil

	case "class":
		var doc struct {
			Class string `mapstructure:"class"`
			Value string `mapstructure:"value"`
		}
		if err := weakDecode(raw, &doc); err != nil {
			return Requirement{}, fmt.Errorf("decode class requirement: %w", err)
		}
		class := firstNonEmpty(doc.Class, doc.Value)
		if class == "" {
			return Requirement{}, fmt.Errorf("class requirement has no class")
		}
		return Requirement{Kind: RequirementClass, Class: class, RawKind: kind}, nil

	default:
		return Requirement{Kind: RequirementUnknown, RawKind: kind}, nil
	}
}

func weakDecode(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// extractPointSeed consumes the start node's points effect as the budget and
// strips the reserved pseudo-stat from every node.
func (g *Graph) extractPointSeed() error {
	found := false
	for _, id := range g.order {
		node := g.nodes[id]
		kept := node.Effects[:0]
		for _, effect := range node.Effects {
			if effect.Stat != PointsStat {
				kept = append(kept, effect)
				continue
			}
			if id == g.start && effect.Op == OpAdd && !found {
				if effect.Value < 0 {
					return dataError(apperrors.CodeGraphMissingPointSeed,
						fmt.Sprintf("start node %q seeds a negative point budget", id), nil)
				}
				g.pointSeed = int(effect.Value)
				found = true
				continue
			}
			g.warnf("node %q carries a points effect outside the start seed; ignored", id)
		}
		node.Effects = kept
	}
	if !found {
		return dataError(apperrors.CodeGraphMissingPointSeed,
			fmt.Sprintf("start node %q has no additive points effect", g.start), nil)
	}
	return nil
}

func (g *Graph) linkEdges(edges [][]string) error {
	for i, edge := range edges {
		if len(edge) != 2 {
			return dataError(apperrors.CodeGraphInvalidDocument,
				fmt.Sprintf("edge %d must name exactly two nodes", i), nil)
		}
		a, b := strings.TrimSpace(edge[0]), strings.TrimSpace(edge[1])
		for _, id := range []string{a, b} {
			if !g.HasNode(id) {
				return dataError(apperrors.CodeGraphDanglingEdge,
					fmt.Sprintf("edge %d references unknown node %q", i, id),
					map[string]string{"NodeID": id})
			}
		}
		g.edges = append(g.edges, [2]string{a, b})
		g.neighbors[a] = append(g.neighbors[a], b)
		g.neighbors[b] = append(g.neighbors[b], a)
	}
	return nil
}

// checkRequirements verifies referential integrity, builds the dependents
// index, and rejects nodes whose attribute requirement collides with their
// own effects; allowing that would make requirement evaluation depend on
// the node being evaluated.
func (g *Graph) checkRequirements() error {
	for _, id := range g.order {
		node := g.nodes[id]
		for _, req := range node.Requires {
			switch req.Kind {
			case RequirementNode:
				if !g.HasNode(req.NodeID) {
					return dataError(apperrors.CodeGraphDanglingRequire,
						fmt.Sprintf("node %q requires unknown node %q", id, req.NodeID),
						map[string]string{"NodeID": req.NodeID})
				}
				g.dependents[req.NodeID] = append(g.dependents[req.NodeID], id)
			case RequirementAttribute:
				for _, effect := range node.Effects {
					if effect.Stat == req.Stat {
						return dataError(apperrors.CodeGraphAttributeConflict,
							fmt.Sprintf("node %q requires attribute %q and also modifies it", id, req.Stat),
							map[string]string{"NodeID": id, "Stat": req.Stat})
					}
				}
			}
		}
	}
	return nil
}
