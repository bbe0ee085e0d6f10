package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// EquipmentEffect is one equipment stat effect for what-if calculations.
type EquipmentEffect struct {
	Stat  string  `json:"stat" jsonschema:"canonical stat name"`
	Op    string  `json:"op" jsonschema:"aggregation op (add, mul, more, less, set, convert)"`
	Value float64 `json:"value" jsonschema:"effect magnitude"`
}

// StatsCalculateInput represents the MCP tool input for a what-if stat
// calculation over a proposed allocation set.
type StatsCalculateInput struct {
	Allocated []string           `json:"allocated,omitempty" jsonschema:"node ids to treat as allocated; the start node is always included"`
	BaseStats map[string]float64 `json:"base_stats,omitempty" jsonschema:"base stat overrides; unknown names are reported, not applied"`
	Equipment []EquipmentEffect  `json:"equipment,omitempty" jsonschema:"equipment effects folded into the calculation"`
}

// StatsCalculateResult represents the MCP tool output for a what-if stat
// calculation.
type StatsCalculateResult struct {
	Stats           map[string]float64 `json:"stats" jsonschema:"derived stat vector"`
	Ignored         []string           `json:"ignored,omitempty" jsonschema:"base stat names that were not recognized"`
	ActiveKeystones []string           `json:"active_keystones,omitempty" jsonschema:"keystone nodes active in the set"`
	PointsSpent     int                `json:"points_spent" jsonschema:"allocations beyond the start node"`
}

// StatsCalculateTool defines the MCP tool schema for what-if calculations.
func StatsCalculateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "passives_stats_calculate",
		Description: "Derives the stat vector for a proposed allocation set without touching character state",
	}
}

// StatsCalculateHandler runs the aggregation pipeline over a proposed set.
// Requirements are deliberately not checked here; planning wants to see the
// numbers for builds the character cannot reach yet.
func StatsCalculateHandler(g *graph.Graph, calc *stats.Calculator) mcp.ToolHandlerFor[StatsCalculateInput, StatsCalculateResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input StatsCalculateInput) (*mcp.CallToolResult, StatsCalculateResult, error) {
		if g == nil || calc == nil {
			return nil, StatsCalculateResult{}, fmt.Errorf("graph and calculator are not configured")
		}

		allocated := []string{g.StartID()}
		seen := map[string]bool{g.StartID(): true}
		for _, id := range input.Allocated {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			if !g.HasNode(id) {
				return nil, StatsCalculateResult{}, fmt.Errorf("passive node %q does not exist", id)
			}
			seen[id] = true
			allocated = append(allocated, id)
		}

		equipment := make([]graph.Effect, 0, len(input.Equipment))
		for i, item := range input.Equipment {
			op := graph.ParseOp(strings.TrimSpace(item.Op))
			if op == graph.OpUnknown {
				return nil, StatsCalculateResult{}, fmt.Errorf("equipment effect %d: unrecognized op %q", i, item.Op)
			}
			equipment = append(equipment, graph.Effect{Stat: item.Stat, Op: op, Value: item.Value})
		}

		base, ignored := stats.BaseFrom(input.BaseStats)
		vector := calc.Calculate(base, equipment, allocated, g)

		var keystones []string
		for _, id := range allocated {
			if node, ok := g.Node(id); ok && node.Type == graph.NodeTypeKeystone {
				keystones = append(keystones, id)
			}
		}

		return nil, StatsCalculateResult{
			Stats:           vector.Map(),
			Ignored:         ignored,
			ActiveKeystones: keystones,
			PointsSpent:     len(allocated) - 1,
		}, nil
	}
}
