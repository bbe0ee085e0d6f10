// Package graphlint checks passive tree documents before they ship.
package graphlint

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/louisbranch/hollowspire.game/internal/passives/dataset"
	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
)

// embeddedName labels the shipped dataset in lint output.
const embeddedName = "<embedded dataset>"

// Config holds configuration for a lint run.
type Config struct {
	// Stats prints node-type counts for documents that load.
	Stats bool
	// Paths are the documents to check. Empty means the embedded dataset.
	Paths []string
}

// ParseConfig parses flags into a Config. Positional arguments are document
// paths.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.BoolVar(&cfg.Stats, "stats", false, "print node-type counts for documents that load")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Paths = fs.Args()
	return cfg, nil
}

// Run lints every named document and reports findings to out. Documents
// that fail to load are reported and counted; the error summarizes the run
// so the command can exit non-zero.
func Run(cfg Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}

	paths := cfg.Paths
	if len(paths) == 0 {
		paths = []string{embeddedName}
	}

	failed := 0
	for _, path := range paths {
		g, err := loadDocument(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", path, err)
			continue
		}
		for _, warning := range g.Warnings() {
			fmt.Fprintf(out, "%s: warning: %s\n", path, warning)
		}
		fmt.Fprintf(out, "%s: ok (%d nodes, %d edges, %d points)\n", path, g.NodeCount(), len(g.Edges()), g.PointSeed())
		if cfg.Stats {
			printStats(out, g)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(paths))
	}
	return nil
}

func loadDocument(path string) (*graph.Graph, error) {
	if path == embeddedName {
		return dataset.Load()
	}
	return graph.LoadFile(path)
}

func printStats(out io.Writer, g *graph.Graph) {
	counts := make(map[graph.NodeType]int)
	for _, node := range g.Nodes() {
		counts[node.Type]++
	}
	order := []graph.NodeType{
		graph.NodeTypeStart,
		graph.NodeTypeSmall,
		graph.NodeTypeNotable,
		graph.NodeTypeKeystone,
		graph.NodeTypeMastery,
	}
	for _, t := range order {
		if counts[t] == 0 {
			continue
		}
		fmt.Fprintf(out, "  %-8s %d\n", t, counts[t])
	}
}
