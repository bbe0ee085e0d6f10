package stats

import (
	"log/slog"
	"math"
	"sort"

	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
)

// KeystoneApplier applies build-defining keystone behavior at stage six.
// Implementations must be pure: same inputs, same output vector.
type KeystoneApplier interface {
	ApplyKeystones(v Vector, active []string, allocatedCount int) Vector
}

// Calculator folds allocated-node and equipment effects into a stat vector.
// Calculation is pure and deterministic; the logger only records skipped
// data (unknown stats, unknown ops, ids missing from the graph).
type Calculator struct {
	log       *slog.Logger
	keystones KeystoneApplier
}

// NewCalculator builds a calculator. A nil applier disables stage six, in
// which case active keystones degrade to logged no-ops.
func NewCalculator(log *slog.Logger, keystones KeystoneApplier) *Calculator {
	if log == nil {
		log = slog.Default()
	}
	return &Calculator{log: log, keystones: keystones}
}

// Calculate runs the eight-stage pipeline:
//
//	base, additive, multiplicative, more/less, conversion, keystone,
//	limit, round.
//
// Node effects fold in graph document order regardless of the order of the
// allocated slice, then equipment effects in caller order, so identical
// inputs always produce identical vectors. Allocated ids missing from the
// graph are skipped. The result never contains NaN or infinities and never
// exceeds the documented caps.
func (c *Calculator) Calculate(base Vector, equipment []graph.Effect, allocated []string, g *graph.Graph) Vector {
	requested := make(map[string]bool, len(allocated))
	for _, id := range allocated {
		requested[id] = true
	}

	var effects []graph.Effect
	var active []string
	matched := 0
	if g != nil {
		for _, node := range g.Nodes() {
			if !requested[node.ID] {
				continue
			}
			matched++
			effects = append(effects, node.Effects...)
			if node.Type == graph.NodeTypeKeystone {
				active = append(active, node.ID)
			}
		}
	}
	if matched < len(requested) {
		missing := make([]string, 0, len(requested)-matched)
		for id := range requested {
			if g == nil || !g.HasNode(id) {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		for _, id := range missing {
			c.log.Warn("allocated node missing from graph, skipped", "node_id", id)
		}
	}
	effects = append(effects, equipment...)

	converts := 0
	for _, e := range effects {
		switch e.Op {
		case graph.OpUnknown:
			c.log.Warn("unknown effect op, skipped", "stat", e.Stat)
		case graph.OpConvert:
			converts++
		}
	}
	if converts > 0 {
		// Conversion is a declared seam with no behavior yet.
		c.log.Debug("conversion effects not implemented, skipped", "count", converts)
	}

	// Stage 2: additive effects sum onto the base, then set effects
	// override in document order (last write wins).
	stage2 := base
	for _, e := range effects {
		if e.Op != graph.OpAdd {
			continue
		}
		if f, ok := c.field(e); ok {
			stage2[f] += e.Value
		}
	}
	for _, e := range effects {
		if e.Op != graph.OpSet {
			continue
		}
		if f, ok := c.field(e); ok {
			stage2[f] = e.Value
		}
	}

	// Stage 3: multiplicative percentages scale the additive result.
	stage3 := stage2
	for _, e := range effects {
		if e.Op != graph.OpMul {
			continue
		}
		if f, ok := c.field(e); ok {
			stage3[f] *= 1 + e.Value/100
		}
	}

	// Stage 4: more/less factors compound among themselves but are seeded
	// from the stage-2 value, so a touched field discards its stage-3
	// result. Kept as-is on purpose; the regression tests pin it.
	out := stage3
	var factors Vector
	var touched [FieldCount]bool
	for _, e := range effects {
		var mult float64
		switch e.Op {
		case graph.OpMore:
			mult = 1 + e.Value/100
		case graph.OpLess:
			mult = 1 - e.Value/100
		default:
			continue
		}
		f, ok := c.field(e)
		if !ok {
			continue
		}
		if !touched[f] {
			factors[f] = 1
			touched[f] = true
		}
		factors[f] *= mult
	}
	for f := Field(0); f < FieldCount; f++ {
		if touched[f] {
			out[f] = stage2[f] * factors[f]
		}
	}

	// Stage 5: conversion seam handled above as a counted no-op.

	// Stage 6: keystones apply in registry order.
	if len(active) > 0 {
		if c.keystones != nil {
			out = c.keystones.ApplyKeystones(out, active, matched)
		} else {
			for _, id := range active {
				c.log.Warn("keystone has no registered behavior", "node_id", id)
			}
		}
	}

	// Stage 7 and 8: zero non-finite values, clamp to caps, round.
	for f := Field(0); f < FieldCount; f++ {
		value := out[f]
		if math.IsNaN(value) || math.IsInf(value, 0) {
			c.log.Warn("non-finite stat value zeroed", "stat", f.String())
			value = 0
		}
		if limit, ok := limits[f]; ok && value > limit {
			value = limit
		}
		out[f] = math.Round(value)
	}

	return out
}

func (c *Calculator) field(e graph.Effect) (Field, bool) {
	f, ok := FieldByName(e.Stat)
	if !ok {
		c.log.Warn("unknown stat in effect, skipped", "stat", e.Stat, "op", e.Op.String())
		return 0, false
	}
	return f, true
}
