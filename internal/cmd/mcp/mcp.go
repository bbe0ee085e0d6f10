// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/hollowspire.game/internal/platform/cmd"
	"github.com/louisbranch/hollowspire.game/internal/services/mcp/service"
)

// Config holds MCP command configuration. GraphPath shares its variable with
// the passives service so both processes describe the same tree.
type Config struct {
	Transport string `env:"HOLLOWSPIRE_MCP_TRANSPORT"       envDefault:"stdio"`
	HTTPAddr  string `env:"HOLLOWSPIRE_MCP_HTTP_ADDR"       envDefault:"localhost:8091"`
	GraphPath string `env:"HOLLOWSPIRE_PASSIVES_GRAPH_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address (for http transport)")
	fs.StringVar(&cfg.GraphPath, "graph-path", cfg.GraphPath, "tree document overriding the embedded dataset")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(context.Context) error {
		return service.Run(ctx, service.Config{
			Transport: service.TransportKind(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
			GraphPath: cfg.GraphPath,
		})
	})
}
