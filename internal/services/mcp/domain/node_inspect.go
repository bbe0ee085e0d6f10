package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// EffectSummary describes one stat effect carried by a node.
type EffectSummary struct {
	Stat      string  `json:"stat" jsonschema:"canonical stat name"`
	Op        string  `json:"op" jsonschema:"aggregation op (add, mul, more, less, set, convert)"`
	Value     float64 `json:"value" jsonschema:"effect magnitude"`
	Condition string  `json:"condition,omitempty" jsonschema:"optional activation condition tag"`
}

// NodeInspectInput represents the MCP tool input for node inspection.
type NodeInspectInput struct {
	NodeID string `json:"node_id" jsonschema:"passive node identifier"`
}

// NodeInspectResult represents the MCP tool output for node inspection.
type NodeInspectResult struct {
	ID         string          `json:"id" jsonschema:"node identifier"`
	Name       string          `json:"name" jsonschema:"display name"`
	Type       string          `json:"type" jsonschema:"node type (start, small, notable, keystone, mastery)"`
	Tags       []string        `json:"tags,omitempty" jsonschema:"search tags"`
	Effects    []EffectSummary `json:"effects,omitempty" jsonschema:"stat effects granted when allocated"`
	Requires   []string        `json:"requires,omitempty" jsonschema:"human-readable allocation requirements"`
	Neighbors  []string        `json:"neighbors,omitempty" jsonschema:"nodes connected by an edge"`
	Dependents []string        `json:"dependents,omitempty" jsonschema:"nodes that require this node"`
}

// NodeInspectTool defines the MCP tool schema for node inspection.
func NodeInspectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "passives_node_inspect",
		Description: "Describes a passive tree node: effects, requirements, and adjacency",
	}
}

// NodeInspectHandler answers node inspection requests from the graph.
func NodeInspectHandler(g *graph.Graph) mcp.ToolHandlerFor[NodeInspectInput, NodeInspectResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input NodeInspectInput) (*mcp.CallToolResult, NodeInspectResult, error) {
		if g == nil {
			return nil, NodeInspectResult{}, fmt.Errorf("graph is not configured")
		}
		id := strings.TrimSpace(input.NodeID)
		if id == "" {
			return nil, NodeInspectResult{}, fmt.Errorf("node_id is required")
		}
		node, ok := g.Node(id)
		if !ok {
			return nil, NodeInspectResult{}, fmt.Errorf("passive node %q does not exist", id)
		}

		result := NodeInspectResult{
			ID:         node.ID,
			Name:       node.Name,
			Type:       node.Type.String(),
			Tags:       node.Tags,
			Neighbors:  g.Neighbors(node.ID),
			Dependents: g.Dependents(node.ID),
		}
		for _, effect := range node.Effects {
			result.Effects = append(result.Effects, EffectSummary{
				Stat:      effect.Stat,
				Op:        effect.Op.String(),
				Value:     effect.Value,
				Condition: effect.Condition,
			})
		}
		for _, req := range node.Requires {
			result.Requires = append(result.Requires, describeRequirement(req))
		}
		return nil, result, nil
	}
}

// describeRequirement renders one requirement for human consumption.
func describeRequirement(req graph.Requirement) string {
	switch req.Kind {
	case graph.RequirementNode:
		return "node " + req.NodeID + " allocated"
	case graph.RequirementAttribute:
		return req.Stat + " >= " + strconv.FormatFloat(req.Threshold, 'f', -1, 64)
	case graph.RequirementLevel:
		return "character level >= " + strconv.Itoa(req.MinLevel)
	case graph.RequirementClass:
		return "class " + req.Class
	default:
		return "unrecognized requirement kind " + req.RawKind
	}
}
