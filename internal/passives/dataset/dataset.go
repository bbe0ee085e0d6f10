// Package dataset embeds the default passive tree shipped with the game.
//
// The document is the same JSON format accepted by graph.Load, so deployments
// can swap in their own tree file without touching this package.
package dataset

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
)

//go:embed data/passive_tree.v1.json
var treeJSON []byte

var (
	loadOnce sync.Once
	loaded   *graph.Graph
	loadErr  error
)

// RawDocument returns a copy of the embedded tree document bytes.
func RawDocument() []byte {
	out := make([]byte, len(treeJSON))
	copy(out, treeJSON)
	return out
}

// Load decodes the embedded document and returns the resulting graph. The
// decode runs once; the graph is immutable so the shared value is safe to
// hand out.
func Load() (*graph.Graph, error) {
	loadOnce.Do(func() {
		loaded, loadErr = graph.Load(bytes.NewReader(treeJSON))
	})
	return loaded, loadErr
}

// Validate confirms the embedded document decodes cleanly.
func Validate() error {
	_, err := Load()
	return err
}
