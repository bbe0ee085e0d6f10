package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gopkg.in/yaml.v3"

	"github.com/louisbranch/hollowspire.game/internal/passives/dataset"
	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/keystone"
	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
	"github.com/louisbranch/hollowspire.game/internal/platform/branding"
	"github.com/louisbranch/hollowspire.game/internal/platform/timeouts"
	"github.com/louisbranch/hollowspire.game/internal/services/mcp/domain"
)

// serverVersion identifies the MCP server version.
const serverVersion = "0.1.0"

// serverName identifies this MCP server to clients.
var serverName = branding.AppName + " Passives MCP"

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over the SDK's streamable HTTP handler for
	// remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	// Transport selects stdio or HTTP. Empty means stdio.
	Transport TransportKind
	// HTTPAddr is the listen address for the HTTP transport. Defaults to
	// localhost:8091. The transport carries no authentication, so binding
	// beyond loopback must wait until it does.
	HTTPAddr string
	// GraphPath overrides the embedded tree with a document on disk.
	GraphPath string
	// Log receives skipped-data warnings from the calculator and keystone
	// registry. Defaults to slog.Default, which writes to stderr and stays
	// clear of the stdio protocol stream.
	Log *slog.Logger
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
}

// New creates a configured MCP server with every tool and resource bound to
// the tree document cfg names. The document is loaded once; handlers answer
// from memory for the life of the process.
func New(cfg Config) (*Server, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	g, document, err := loadGraph(cfg.GraphPath)
	if err != nil {
		return nil, err
	}
	registry, err := keystone.NewDefaultRegistry(log)
	if err != nil {
		return nil, fmt.Errorf("register builtin keystones: %w", err)
	}
	calc := stats.NewCalculator(log, registry)

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		CompletionHandler: completionHandler,
	})
	mcp.AddTool(mcpServer, domain.NodeInspectTool(), domain.NodeInspectHandler(g))
	mcp.AddTool(mcpServer, domain.StatsCalculateTool(), domain.StatsCalculateHandler(g, calc))
	mcp.AddTool(mcpServer, domain.AllocationPlanTool(), domain.AllocationPlanHandler(g))
	mcpServer.AddResource(domain.GraphResource(), domain.GraphResourceHandler(document))
	mcpServer.AddResourceTemplate(domain.NodeResourceTemplate(), domain.NodeResourceHandler(g))

	return &Server{mcpServer: mcpServer}, nil
}

// loadGraph resolves the tree document: the embedded dataset by default, a
// file override when a path is set. The returned func serves the graph
// resource and always yields JSON; YAML overrides are re-encoded so the
// resource MIME type holds.
func loadGraph(path string) (*graph.Graph, func() []byte, error) {
	if strings.TrimSpace(path) == "" {
		g, err := dataset.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load embedded tree: %w", err)
		}
		return g, dataset.RawDocument, nil
	}

	g, err := graph.LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load tree document %s: %w", path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read tree document %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc graph.Document
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("decode tree document %s: %w", path, err)
		}
		raw, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encode tree document %s: %w", path, err)
		}
	}
	document := func() []byte {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}
	return g, document, nil
}

// completionHandler answers completion/complete with empty results. The
// tools take node ids and stat names, which the server knows, but the
// argument being completed is not identified in a way the handlers can rely
// on yet.
// TODO: complete node_id and target_node_id arguments against the loaded graph.
func completionHandler(_ context.Context, _ *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	return &mcp.CompleteResult{
		Completion: mcp.CompletionResultDetails{
			Values: []string{},
		},
	}, nil
}

// Run is the service entrypoint for MCP and blocks until context
// cancellation. Transport selection stays here so startup can choose stdio
// for local agents and HTTP for remote ones.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		server, err := New(cfg)
		if err != nil {
			return err
		}
		return server.Serve(ctx)
	case TransportHTTP:
		return runWithHTTPTransport(ctx, cfg)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
// Context cancellation is the normal way to stop the server, so it is not
// reported as an error.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// runWithHTTPTransport serves the MCP server through the SDK's streamable
// HTTP handler with a graceful shutdown window.
func runWithHTTPTransport(ctx context.Context, cfg Config) error {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		// Loopback-only default until the transport authenticates callers.
		httpAddr = "localhost:8091"
	}

	server, err := New(cfg)
	if err != nil {
		return err
	}
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.mcpServer
	}, nil)

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           otelhttp.NewHandler(handler, "mcp"),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP http server: %w", err)
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP http: %w", err)
	}
}
