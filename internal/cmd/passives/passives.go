// Package passives parses passives command flags and composes the service
// entrypoint.
package passives

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/hollowspire.game/internal/platform/cmd"
	server "github.com/louisbranch/hollowspire.game/internal/services/passives/app"
)

// Config holds passives command configuration.
type Config struct {
	HTTPAddr  string `env:"HOLLOWSPIRE_PASSIVES_HTTP_ADDR"  envDefault:":8088"`
	GraphPath string `env:"HOLLOWSPIRE_PASSIVES_GRAPH_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "passives HTTP listen address")
	fs.StringVar(&cfg.GraphPath, "graph-path", cfg.GraphPath, "tree document overriding the embedded dataset")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the passives app and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePassives, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:  cfg.HTTPAddr,
			GraphPath: cfg.GraphPath,
		}); err != nil {
			return fmt.Errorf("serve passives: %w", err)
		}
		return nil
	})
}
