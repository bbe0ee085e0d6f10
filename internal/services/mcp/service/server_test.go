package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/hollowspire.game/internal/services/mcp/domain"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decodeStructuredContent decodes structured MCP content into the target type.
func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var output T
	if err := json.Unmarshal(data, &output); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return output
}

func callTool(t *testing.T, ctx context.Context, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if result == nil || result.IsError {
		t.Fatalf("%s failed: %+v", name, result)
	}
	return result
}

// TestServeWithTransportServesAndStops drives every registered tool and
// resource through a connected client, then checks cancellation stops the
// server cleanly.
func TestServeWithTransportServesAndStops(t *testing.T) {
	server, err := New(Config{Log: nopLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	clientCtx, clientCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer clientCancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	t.Run("node inspect", func(t *testing.T) {
		result := callTool(t, clientCtx, session, "passives_node_inspect", map[string]any{"node_id": "ascendant"})
		detail := decodeStructuredContent[domain.NodeInspectResult](t, result.StructuredContent)
		if detail.ID != "ascendant" || detail.Type != "start" {
			t.Errorf("unexpected detail: %+v", detail)
		}
	})

	t.Run("stats calculate", func(t *testing.T) {
		result := callTool(t, clientCtx, session, "passives_stats_calculate", map[string]any{
			"allocated": []string{"might_1", "might_2"},
		})
		calc := decodeStructuredContent[domain.StatsCalculateResult](t, result.StructuredContent)
		if calc.Stats["str"] != 20 {
			t.Errorf("str = %v, want 20", calc.Stats["str"])
		}
		if calc.PointsSpent != 2 {
			t.Errorf("points spent = %d, want 2", calc.PointsSpent)
		}
	})

	t.Run("allocation plan", func(t *testing.T) {
		result := callTool(t, clientCtx, session, "passives_allocation_plan", map[string]any{
			"target_node_id": "crushing_blows",
		})
		plan := decodeStructuredContent[domain.AllocationPlanResult](t, result.StructuredContent)
		wantPath := []string{"might_1", "might_2", "crushing_blows"}
		if !reflect.DeepEqual(plan.Path, wantPath) {
			t.Errorf("path = %v, want %v", plan.Path, wantPath)
		}
		if len(plan.Gates) != 0 {
			t.Errorf("unexpected gates: %v", plan.Gates)
		}
	})

	t.Run("graph resource", func(t *testing.T) {
		res, err := session.ReadResource(clientCtx, &mcp.ReadResourceParams{URI: domain.GraphResourceURI})
		if err != nil {
			t.Fatalf("read graph resource: %v", err)
		}
		if res == nil || len(res.Contents) == 0 || !json.Valid([]byte(res.Contents[0].Text)) {
			t.Fatal("graph resource did not return a JSON document")
		}
	})

	t.Run("node resource", func(t *testing.T) {
		res, err := session.ReadResource(clientCtx, &mcp.ReadResourceParams{URI: "hollowspire://passives/nodes/blood_pact"})
		if err != nil {
			t.Fatalf("read node resource: %v", err)
		}
		if res == nil || len(res.Contents) == 0 {
			t.Fatal("node resource response missing content")
		}
		var detail domain.NodeInspectResult
		if err := json.Unmarshal([]byte(res.Contents[0].Text), &detail); err != nil {
			t.Fatalf("unmarshal node detail: %v", err)
		}
		if detail.ID != "blood_pact" || detail.Type != "keystone" {
			t.Errorf("unexpected detail: %+v", detail)
		}
	})

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

// TestRunUnsupportedTransport ensures Run rejects unknown transport kinds.
func TestRunUnsupportedTransport(t *testing.T) {
	err := Run(context.Background(), Config{
		Transport: "websocket",
		Log:       nopLogger(),
	})
	if err == nil {
		t.Fatal("expected error for unsupported transport")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("expected 'not supported' in error, got: %v", err)
	}
}

func TestServeWithTransportNotConfigured(t *testing.T) {
	var nilServer *Server
	if err := nilServer.serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for nil server")
	}

	emptyServer := &Server{}
	if err := emptyServer.serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for missing mcp server")
	}
}

func TestNewRejectsBrokenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := os.WriteFile(path, []byte(`{"nodes": []}`), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	if _, err := New(Config{GraphPath: path, Log: nopLogger()}); err == nil {
		t.Fatal("expected error for document without a start node")
	}
}

func TestLoadGraph(t *testing.T) {
	const jsonDoc = `{"metadata":{"version":"9.9.9"},"nodes":[{"id":"root","type":"start","effects":[{"stat":"points","op":"add","value":3}]},{"id":"a","type":"small","grants":{"dex":5}}],"edges":[["root","a"]]}`
	const yamlDoc = `metadata:
  version: 2.0.0
nodes:
  - id: root
    type: start
    effects:
      - stat: points
        op: add
        value: 5
  - id: a
    type: small
    grants:
      str: 5
edges:
  - [root, a]
`

	t.Run("embedded default", func(t *testing.T) {
		g, document, err := loadGraph("")
		if err != nil {
			t.Fatalf("loadGraph: %v", err)
		}
		if g.StartID() != "ascendant" {
			t.Errorf("start = %q, want %q", g.StartID(), "ascendant")
		}
		if !json.Valid(document()) {
			t.Error("expected embedded document to be valid JSON")
		}
	})

	t.Run("json override serves file bytes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tree.json")
		if err := os.WriteFile(path, []byte(jsonDoc), 0o600); err != nil {
			t.Fatalf("write document: %v", err)
		}
		g, document, err := loadGraph(path)
		if err != nil {
			t.Fatalf("loadGraph: %v", err)
		}
		if g.Metadata().Version != "9.9.9" {
			t.Errorf("version = %q, want %q", g.Metadata().Version, "9.9.9")
		}
		if g.PointSeed() != 3 {
			t.Errorf("point seed = %d, want 3", g.PointSeed())
		}
		if string(document()) != jsonDoc {
			t.Error("expected document to match the file bytes")
		}
	})

	t.Run("yaml override re-encodes to json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tree.yaml")
		if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
			t.Fatalf("write document: %v", err)
		}
		g, document, err := loadGraph(path)
		if err != nil {
			t.Fatalf("loadGraph: %v", err)
		}
		if g.PointSeed() != 5 {
			t.Errorf("point seed = %d, want 5", g.PointSeed())
		}
		raw := document()
		if !json.Valid(raw) {
			t.Fatalf("expected re-encoded JSON, got: %s", raw)
		}
		var decoded struct {
			Metadata struct {
				Version string `json:"version"`
			} `json:"metadata"`
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("unmarshal re-encoded document: %v", err)
		}
		if decoded.Metadata.Version != "2.0.0" {
			t.Errorf("version = %q, want %q", decoded.Metadata.Version, "2.0.0")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := loadGraph(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Fatal("expected error for missing document")
		}
	})
}

func TestCompletionHandler(t *testing.T) {
	result, err := completionHandler(context.Background(), &mcp.CompleteRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if len(result.Completion.Values) != 0 {
		t.Errorf("expected empty values, got %v", result.Completion.Values)
	}
}
