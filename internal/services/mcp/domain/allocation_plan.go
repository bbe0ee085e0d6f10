package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AllocationPlanInput represents the MCP tool input for allocation planning.
type AllocationPlanInput struct {
	TargetNodeID string   `json:"target_node_id" jsonschema:"node the plan should reach"`
	Allocated    []string `json:"allocated,omitempty" jsonschema:"node ids already allocated; the start node is always included"`
}

// AllocationPlanResult represents the MCP tool output for allocation
// planning.
type AllocationPlanResult struct {
	Path  []string `json:"path" jsonschema:"nodes to allocate, in order, ending at the target"`
	Cost  int      `json:"cost" jsonschema:"points the plan spends"`
	Gates []string `json:"gates,omitempty" jsonschema:"requirements along the path that edges alone cannot satisfy"`
}

// AllocationPlanTool defines the MCP tool schema for allocation planning.
func AllocationPlanTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "passives_allocation_plan",
		Description: "Finds the cheapest edge path from the allocated frontier to a target node",
	}
}

// AllocationPlanHandler plans the cheapest route to a target node. The
// search walks edges only; attribute, level, and class requirements on the
// way are surfaced as gates for the caller to satisfy.
func AllocationPlanHandler(g *graph.Graph) mcp.ToolHandlerFor[AllocationPlanInput, AllocationPlanResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input AllocationPlanInput) (*mcp.CallToolResult, AllocationPlanResult, error) {
		if g == nil {
			return nil, AllocationPlanResult{}, fmt.Errorf("graph is not configured")
		}
		target := strings.TrimSpace(input.TargetNodeID)
		if target == "" {
			return nil, AllocationPlanResult{}, fmt.Errorf("target_node_id is required")
		}
		if !g.HasNode(target) {
			return nil, AllocationPlanResult{}, fmt.Errorf("passive node %q does not exist", target)
		}

		allocated := map[string]bool{g.StartID(): true}
		seeds := []string{g.StartID()}
		for _, id := range input.Allocated {
			id = strings.TrimSpace(id)
			if id == "" || allocated[id] {
				continue
			}
			if !g.HasNode(id) {
				return nil, AllocationPlanResult{}, fmt.Errorf("passive node %q does not exist", id)
			}
			allocated[id] = true
			seeds = append(seeds, id)
		}
		if allocated[target] {
			return nil, AllocationPlanResult{}, fmt.Errorf("passive node %q is already allocated", target)
		}

		path, ok := shortestExpansion(g, seeds, allocated, target)
		if !ok {
			return nil, AllocationPlanResult{}, fmt.Errorf("no edge path reaches %q from the allocated frontier", target)
		}

		return nil, AllocationPlanResult{
			Path:  path,
			Cost:  len(path),
			Gates: collectGates(g, allocated, path),
		}, nil
	}
}

// shortestExpansion runs a breadth-first search from every allocated node
// and returns the unallocated nodes of the first path found, in allocation
// order. Fewest nodes equals fewest points, so BFS depth is the cost.
func shortestExpansion(g *graph.Graph, seeds []string, allocated map[string]bool, target string) ([]string, bool) {
	parent := make(map[string]string, len(seeds))
	queue := make([]string, 0, len(seeds))
	for _, id := range seeds {
		parent[id] = ""
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.Neighbors(current) {
			if _, visited := parent[next]; visited {
				continue
			}
			parent[next] = current
			if next == target {
				var path []string
				for id := next; id != "" && !allocated[id]; id = parent[id] {
					path = append(path, id)
				}
				reverse(path)
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// collectGates reports requirements on path nodes that allocating the path
// in order does not itself satisfy.
func collectGates(g *graph.Graph, allocated map[string]bool, path []string) []string {
	covered := make(map[string]bool, len(allocated)+len(path))
	for id := range allocated {
		covered[id] = true
	}

	var gates []string
	for _, id := range path {
		node, ok := g.Node(id)
		if !ok {
			continue
		}
		for _, req := range node.Requires {
			if req.Kind == graph.RequirementNode && covered[req.NodeID] {
				continue
			}
			gates = append(gates, id+": "+describeRequirement(req))
		}
		covered[id] = true
	}
	return gates
}

func reverse(ids []string) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
