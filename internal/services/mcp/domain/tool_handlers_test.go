package domain

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/keystone"
	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// planGraph is a small tree with a gated spine and one island node:
//
//	root - a - b - notable - ks      side - root      orphan
func planGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Decode(graph.Document{
		Metadata: graph.Metadata{Version: "0.0.1"},
		Nodes: []graph.NodeDoc{
			{ID: "root", Name: "Root", Type: "start",
				Effects: []graph.EffectDoc{{Stat: "points", Op: "add", Value: 20}}},
			{ID: "a", Name: "A", Type: "small",
				Effects:  []graph.EffectDoc{{Stat: "str", Op: "add", Value: 5}},
				Requires: []map[string]any{{"kind": "node", "id": "root"}}},
			{ID: "b", Name: "B", Type: "small",
				Effects:  []graph.EffectDoc{{Stat: "str", Op: "add", Value: 5}},
				Requires: []map[string]any{{"kind": "node", "id": "a"}}},
			{ID: "notable", Name: "Notable", Type: "notable",
				Effects: []graph.EffectDoc{{Stat: "melee", Op: "add", Value: 10}},
				Requires: []map[string]any{
					{"kind": "node", "id": "b"},
					{"kind": "attribute", "stat": "str", "threshold": 20},
				},
				Tags: []string{"strength"}},
			{ID: "ks", Name: "Keystone", Type: "keystone",
				Requires: []map[string]any{
					{"kind": "node", "id": "notable"},
					{"kind": "level", "level": 10},
				}},
			{ID: "side", Name: "Side", Type: "small",
				Effects:  []graph.EffectDoc{{Stat: "dex", Op: "add", Value: 5}},
				Requires: []map[string]any{{"kind": "node", "id": "root"}}},
			{ID: "orphan", Name: "Orphan", Type: "small",
				Effects: []graph.EffectDoc{{Stat: "int", Op: "add", Value: 5}}},
		},
		Edges: [][]string{
			{"root", "a"},
			{"a", "b"},
			{"b", "notable"},
			{"notable", "ks"},
			{"root", "side"},
		},
	})
	if err != nil {
		t.Fatalf("decode graph: %v", err)
	}
	return g
}

func planCalculator(t *testing.T) *stats.Calculator {
	t.Helper()
	registry := keystone.NewRegistry(nopLogger())
	err := registry.Register(keystone.Effect{
		NodeID: "ks",
		Name:   "Test Keystone",
		Mutations: []keystone.Mutation{
			{Op: keystone.MutScale, Field: stats.FieldStrength, Value: 1.5},
		},
	})
	if err != nil {
		t.Fatalf("register keystone: %v", err)
	}
	return stats.NewCalculator(nopLogger(), registry)
}

func TestNodeInspectHandler(t *testing.T) {
	g := planGraph(t)
	handler := NodeInspectHandler(g)

	t.Run("success", func(t *testing.T) {
		_, result, err := handler(context.Background(), nil, NodeInspectInput{NodeID: "notable"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ID != "notable" || result.Type != "notable" {
			t.Errorf("unexpected identity: %+v", result)
		}
		wantEffects := []EffectSummary{{Stat: "melee", Op: "add", Value: 10}}
		if !reflect.DeepEqual(result.Effects, wantEffects) {
			t.Errorf("effects = %+v, want %+v", result.Effects, wantEffects)
		}
		wantRequires := []string{"node b allocated", "str >= 20"}
		if !reflect.DeepEqual(result.Requires, wantRequires) {
			t.Errorf("requires = %v, want %v", result.Requires, wantRequires)
		}
		if !reflect.DeepEqual(result.Neighbors, []string{"b", "ks"}) {
			t.Errorf("neighbors = %v", result.Neighbors)
		}
		if !reflect.DeepEqual(result.Dependents, []string{"ks"}) {
			t.Errorf("dependents = %v", result.Dependents)
		}
	})

	t.Run("unknown node", func(t *testing.T) {
		_, _, err := handler(context.Background(), nil, NodeInspectInput{NodeID: "nope"})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing id", func(t *testing.T) {
		_, _, err := handler(context.Background(), nil, NodeInspectInput{})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestStatsCalculateHandler(t *testing.T) {
	g := planGraph(t)
	handler := StatsCalculateHandler(g, planCalculator(t))

	t.Run("empty set uses defaults", func(t *testing.T) {
		_, result, err := handler(context.Background(), nil, StatsCalculateInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := result.Stats["str"]; got != 10 {
			t.Errorf("str = %v, want 10", got)
		}
		if result.PointsSpent != 0 {
			t.Errorf("points_spent = %d, want 0", result.PointsSpent)
		}
		if len(result.ActiveKeystones) != 0 {
			t.Errorf("active_keystones = %v, want none", result.ActiveKeystones)
		}
	})

	t.Run("allocation set folds in", func(t *testing.T) {
		_, result, err := handler(context.Background(), nil, StatsCalculateInput{
			Allocated: []string{"a", "b"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := result.Stats["str"]; got != 20 {
			t.Errorf("str = %v, want 20", got)
		}
		if result.PointsSpent != 2 {
			t.Errorf("points_spent = %d, want 2", result.PointsSpent)
		}
	})

	t.Run("keystone applies", func(t *testing.T) {
		_, result, err := handler(context.Background(), nil, StatsCalculateInput{
			Allocated: []string{"a", "b", "notable", "ks"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := result.Stats["str"]; got != 30 {
			t.Errorf("str = %v, want 30", got)
		}
		if !reflect.DeepEqual(result.ActiveKeystones, []string{"ks"}) {
			t.Errorf("active_keystones = %v, want [ks]", result.ActiveKeystones)
		}
	})

	t.Run("base and equipment overrides", func(t *testing.T) {
		_, result, err := handler(context.Background(), nil, StatsCalculateInput{
			BaseStats: map[string]float64{"str": 30, "luck": 7},
			Equipment: []EquipmentEffect{{Stat: "str", Op: "add", Value: 5}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := result.Stats["str"]; got != 35 {
			t.Errorf("str = %v, want 35", got)
		}
		if !reflect.DeepEqual(result.Ignored, []string{"luck"}) {
			t.Errorf("ignored = %v, want [luck]", result.Ignored)
		}
	})

	t.Run("unknown node", func(t *testing.T) {
		_, _, err := handler(context.Background(), nil, StatsCalculateInput{Allocated: []string{"nope"}})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown equipment op", func(t *testing.T) {
		_, _, err := handler(context.Background(), nil, StatsCalculateInput{
			Equipment: []EquipmentEffect{{Stat: "str", Op: "exponentiate", Value: 2}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestAllocationPlanHandler(t *testing.T) {
	g := planGraph(t)
	handler := AllocationPlanHandler(g)

	t.Run("full spine from start", func(t *testing.T) {
		_, result, err := handler(context.Background(), nil, AllocationPlanInput{TargetNodeID: "ks"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"a", "b", "notable", "ks"}
		if !reflect.DeepEqual(result.Path, want) {
			t.Errorf("path = %v, want %v", result.Path, want)
		}
		if result.Cost != 4 {
			t.Errorf("cost = %d, want 4", result.Cost)
		}
		wantGates := []string{"notable: str >= 20", "ks: character level >= 10"}
		if !reflect.DeepEqual(result.Gates, wantGates) {
			t.Errorf("gates = %v, want %v", result.Gates, wantGates)
		}
	})

	t.Run("frontier shortens the path", func(t *testing.T) {
		_, result, err := handler(context.Background(), nil, AllocationPlanInput{
			TargetNodeID: "ks",
			Allocated:    []string{"a", "b"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"notable", "ks"}
		if !reflect.DeepEqual(result.Path, want) {
			t.Errorf("path = %v, want %v", result.Path, want)
		}
		if result.Cost != 2 {
			t.Errorf("cost = %d, want 2", result.Cost)
		}
	})

	t.Run("adjacent target", func(t *testing.T) {
		_, result, err := handler(context.Background(), nil, AllocationPlanInput{TargetNodeID: "side"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(result.Path, []string{"side"}) {
			t.Errorf("path = %v, want [side]", result.Path)
		}
		if len(result.Gates) != 0 {
			t.Errorf("gates = %v, want none", result.Gates)
		}
	})

	t.Run("already allocated", func(t *testing.T) {
		_, _, err := handler(context.Background(), nil, AllocationPlanInput{
			TargetNodeID: "a",
			Allocated:    []string{"a"},
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unreachable island", func(t *testing.T) {
		_, _, err := handler(context.Background(), nil, AllocationPlanInput{TargetNodeID: "orphan"})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		_, _, err := handler(context.Background(), nil, AllocationPlanInput{TargetNodeID: "nope"})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestGraphResourceHandler(t *testing.T) {
	document := []byte(`{"metadata":{"version":"0.0.1"}}`)
	handler := GraphResourceHandler(func() []byte { return document })

	result, err := handler(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: GraphResourceURI},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("contents = %d entries, want 1", len(result.Contents))
	}
	content := result.Contents[0]
	if content.URI != GraphResourceURI {
		t.Errorf("uri = %q, want %q", content.URI, GraphResourceURI)
	}
	if content.MIMEType != "application/json" {
		t.Errorf("mime type = %q", content.MIMEType)
	}
	if content.Text != string(document) {
		t.Errorf("text = %q, want the document", content.Text)
	}
}

func TestNodeResourceHandler(t *testing.T) {
	g := planGraph(t)
	handler := NodeResourceHandler(g)

	t.Run("success", func(t *testing.T) {
		uri := "hollowspire://passives/nodes/notable"
		result, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: uri},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Contents) != 1 {
			t.Fatalf("contents = %d entries, want 1", len(result.Contents))
		}
		var detail NodeInspectResult
		if err := json.Unmarshal([]byte(result.Contents[0].Text), &detail); err != nil {
			t.Fatalf("content is not valid JSON: %v", err)
		}
		if detail.ID != "notable" {
			t.Errorf("detail id = %q, want notable", detail.ID)
		}
	})

	t.Run("bad prefix", func(t *testing.T) {
		_, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: "campaign://abc/participants"},
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("extra segment", func(t *testing.T) {
		_, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: "hollowspire://passives/nodes/notable/extra"},
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown node", func(t *testing.T) {
		_, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: "hollowspire://passives/nodes/nope"},
		})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing uri", func(t *testing.T) {
		if _, err := handler(context.Background(), nil); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestDescribeRequirement(t *testing.T) {
	cases := []struct {
		name string
		req  graph.Requirement
		want string
	}{
		{"node", graph.Requirement{Kind: graph.RequirementNode, NodeID: "a"}, "node a allocated"},
		{"attribute", graph.Requirement{Kind: graph.RequirementAttribute, Stat: "str", Threshold: 22.5}, "str >= 22.5"},
		{"level", graph.Requirement{Kind: graph.RequirementLevel, MinLevel: 12}, "character level >= 12"},
		{"class", graph.Requirement{Kind: graph.RequirementClass, Class: "warden"}, "class warden"},
		{"unknown", graph.Requirement{Kind: graph.RequirementUnknown, RawKind: "quest"}, "unrecognized requirement kind quest"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := describeRequirement(tc.req); got != tc.want {
				t.Fatalf("describeRequirement = %q, want %q", got, tc.want)
			}
		})
	}
}
