// Package graph holds the immutable passive-skill graph: nodes, their
// effects and requirements, and the presentation edge list. A Graph is
// built once from a document and never mutated afterwards, so it is safe
// for concurrent readers.
package graph

import (
	"fmt"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
)

// PointsStat is the reserved pseudo-stat that seeds the allocation budget.
// The loader consumes it; it never reaches the stat pipeline.
const PointsStat = "points"

// NodeType classifies passive nodes.
type NodeType int

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeStart
	NodeTypeSmall
	NodeTypeNotable
	NodeTypeKeystone
	NodeTypeMastery
)

var nodeTypeNames = map[NodeType]string{
	NodeTypeStart:    "start",
	NodeTypeSmall:    "small",
	NodeTypeNotable:  "notable",
	NodeTypeKeystone: "keystone",
	NodeTypeMastery:  "mastery",
}

// String returns the canonical document name for the node type.
func (t NodeType) String() string {
	if name, ok := nodeTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseNodeType resolves a document node type name.
func ParseNodeType(name string) (NodeType, bool) {
	for t, n := range nodeTypeNames {
		if n == name {
			return t, true
		}
	}
	return NodeTypeUnknown, false
}

// Op identifies a stat effect operation.
type Op int

const (
	OpUnknown Op = iota
	OpAdd
	OpMul
	OpMore
	OpLess
	OpSet
	OpConvert
)

var opNames = map[Op]string{
	OpAdd:     "add",
	OpMul:     "mul",
	OpMore:    "more",
	OpLess:    "less",
	OpSet:     "set",
	OpConvert: "convert",
}

// String returns the canonical document name for the operation.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOp resolves a document operation name. Unrecognized names map to
// OpUnknown; the pipeline skips such effects rather than failing the load.
func ParseOp(name string) Op {
	for o, n := range opNames {
		if n == name {
			return o
		}
	}
	return OpUnknown
}

// Effect is one stat modification granted by a node or an equipment piece.
type Effect struct {
	Stat      string
	Op        Op
	Value     float64
	Condition string // opaque grouping tag, not evaluated by the pipeline
}

// RequirementKind tags requirement variants.
type RequirementKind int

const (
	RequirementUnknown RequirementKind = iota
	RequirementNode
	RequirementAttribute
	RequirementLevel
	RequirementClass
)

// String returns the canonical document name for the requirement kind.
func (k RequirementKind) String() string {
	switch k {
	case RequirementNode:
		return "node"
	case RequirementAttribute:
		return "attribute"
	case RequirementLevel:
		return "level"
	case RequirementClass:
		return "class"
	}
	return "unknown"
}

// Requirement is one allocation prerequisite. Only the fields of the tagged
// kind are meaningful. RawKind preserves the document spelling so unknown
// kinds can be reported; they are never satisfiable.
type Requirement struct {
	Kind      RequirementKind
	NodeID    string  // RequirementNode
	Stat      string  // RequirementAttribute
	Threshold float64 // RequirementAttribute
	MinLevel  int     // RequirementLevel
	Class     string  // RequirementClass
	RawKind   string
}

// Position is presentation-only placement for tree rendering.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one passive in the graph.
type Node struct {
	ID       string
	Name     string
	Type     NodeType
	Position Position
	Effects  []Effect
	Requires []Requirement
	Tags     []string
}

// Metadata describes the graph document.
type Metadata struct {
	Version     string `json:"version" yaml:"version"`
	TotalNodes  int    `json:"totalNodes" yaml:"totalNodes"`
	LastUpdated string `json:"lastUpdated" yaml:"lastUpdated"`
}

// Graph is the immutable node store. Returned nodes must not be modified.
type Graph struct {
	nodes      map[string]*Node
	order      []string
	edges      [][2]string
	neighbors  map[string][]string
	dependents map[string][]string
	start      string
	pointSeed  int
	meta       Metadata
	warnings   []string
}

// StartID returns the id of the start node.
func (g *Graph) StartID() string { return g.start }

// PointSeed returns the initial point budget seeded by the start node.
func (g *Graph) PointSeed() int { return g.pointSeed }

// Metadata returns the document metadata.
func (g *Graph) Metadata() Metadata { return g.meta }

// Warnings returns non-fatal findings collected while building the graph.
func (g *Graph) Warnings() []string {
	out := make([]string, len(g.warnings))
	copy(out, g.warnings)
	return out
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether the id exists in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes in document order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

// Edges returns the presentation edge list.
func (g *Graph) Edges() [][2]string {
	out := make([][2]string, len(g.edges))
	copy(out, g.edges)
	return out
}

// Neighbors returns edge-adjacent node ids. Adjacency is presentation
// data; allocation rules never consult it.
func (g *Graph) Neighbors(id string) []string {
	adj := g.neighbors[id]
	out := make([]string, len(adj))
	copy(out, adj)
	return out
}

// Dependents returns ids of nodes that name id in a node requirement.
// The index exists for diagnostics; refund checks scan the allocated set.
func (g *Graph) Dependents(id string) []string {
	dep := g.dependents[id]
	out := make([]string, len(dep))
	copy(out, dep)
	return out
}

func (g *Graph) warnf(format string, args ...any) {
	g.warnings = append(g.warnings, fmt.Sprintf(format, args...))
}

func dataError(code apperrors.Code, message string, metadata map[string]string) error {
	if metadata == nil {
		return apperrors.New(code, message)
	}
	return apperrors.WithMetadata(code, message, metadata)
}
