package mcp

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.HTTPAddr != "localhost:8091" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.GraphPath != "" {
		t.Fatalf("expected empty graph path, got %q", cfg.GraphPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("HOLLOWSPIRE_MCP_TRANSPORT", "env-transport")
	t.Setenv("HOLLOWSPIRE_MCP_HTTP_ADDR", "env-http")
	t.Setenv("HOLLOWSPIRE_PASSIVES_GRAPH_PATH", "env-tree.json")

	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	args := []string{"-transport", "http", "-http-addr", "flag-http", "-graph-path", "flag-tree.json"}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport != "http" {
		t.Fatalf("expected transport http, got %q", cfg.Transport)
	}
	if cfg.HTTPAddr != "flag-http" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.GraphPath != "flag-tree.json" {
		t.Fatalf("expected flag graph path, got %q", cfg.GraphPath)
	}
}

func TestParseConfigEnvWithoutFlags(t *testing.T) {
	t.Setenv("HOLLOWSPIRE_MCP_TRANSPORT", "http")
	t.Setenv("HOLLOWSPIRE_MCP_HTTP_ADDR", "env-http")

	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport != "http" {
		t.Fatalf("expected env transport, got %q", cfg.Transport)
	}
	if cfg.HTTPAddr != "env-http" {
		t.Fatalf("expected env http addr, got %q", cfg.HTTPAddr)
	}
}
