// Package keystone holds the registry of build-defining passive behaviors.
// Keystone nodes carry effects that exceed flat stat modifiers, so each
// registers an Effect here: either an ordered list of enum-tagged mutations
// or a Lua script for behavior the enum cannot express.
package keystone

import (
	"strings"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"

	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
)

// MutationOp enumerates the primitive keystone stat mutations.
type MutationOp int

const (
	MutUnknown MutationOp = iota
	MutAdd                // add Value to Field
	MutScale              // multiply Field by Value
	MutSet                // override Field to Value
	MutAddPerAllocated    // add Value for every allocated node
	MutTransfer           // add Value * Source to Field
)

// String names the mutation op for listings and logs.
func (op MutationOp) String() string {
	switch op {
	case MutAdd:
		return "add"
	case MutScale:
		return "scale"
	case MutSet:
		return "set"
	case MutAddPerAllocated:
		return "add_per_allocated"
	case MutTransfer:
		return "transfer"
	}
	return "unknown"
}

// Mutation is one primitive stat change. Only Source is op-specific: it is
// the field MutTransfer reads from.
type Mutation struct {
	Op     MutationOp
	Field  stats.Field
	Value  float64
	Source stats.Field
}

func (m Mutation) apply(v stats.Vector, allocatedCount int) stats.Vector {
	switch m.Op {
	case MutAdd:
		v[m.Field] += m.Value
	case MutScale:
		v[m.Field] *= m.Value
	case MutSet:
		v[m.Field] = m.Value
	case MutAddPerAllocated:
		v[m.Field] += m.Value * float64(allocatedCount)
	case MutTransfer:
		v[m.Field] += v[m.Source] * m.Value
	}
	return v
}

func (m Mutation) validate() error {
	if m.Op == MutUnknown {
		return apperrors.New(apperrors.CodeKeystoneInvalidEffect, "mutation op is required")
	}
	if m.Field >= stats.FieldCount {
		return apperrors.New(apperrors.CodeKeystoneInvalidEffect, "mutation targets an unknown field")
	}
	if m.Op == MutTransfer && m.Source >= stats.FieldCount {
		return apperrors.New(apperrors.CodeKeystoneInvalidEffect, "transfer mutation reads an unknown field")
	}
	return nil
}

// Effect is the registered behavior of one keystone node. Mutations apply
// in order; when Script is set it runs instead of the mutation list.
type Effect struct {
	NodeID      string
	Name        string
	Description string
	Mutations   []Mutation
	Script      string
}

// Apply runs the keystone against a vector. allocatedCount is the size of
// the allocated set, including the start anchor. Script failures leave the
// input vector untouched and surface the error for the registry to log.
func (e Effect) Apply(v stats.Vector, allocatedCount int) (stats.Vector, error) {
	if strings.TrimSpace(e.Script) != "" {
		return runScript(e.Script, v, allocatedCount)
	}
	for _, m := range e.Mutations {
		v = m.apply(v, allocatedCount)
	}
	return v, nil
}

func (e Effect) validate() error {
	if strings.TrimSpace(e.NodeID) == "" {
		return apperrors.New(apperrors.CodeKeystoneInvalidEffect, "keystone node id is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return apperrors.New(apperrors.CodeKeystoneInvalidEffect, "keystone name is required")
	}
	hasScript := strings.TrimSpace(e.Script) != ""
	if !hasScript && len(e.Mutations) == 0 {
		return apperrors.WithMetadata(apperrors.CodeKeystoneInvalidEffect,
			"keystone needs mutations or a script",
			map[string]string{"NodeID": e.NodeID})
	}
	if hasScript && len(e.Mutations) > 0 {
		return apperrors.WithMetadata(apperrors.CodeKeystoneInvalidEffect,
			"keystone cannot mix mutations and a script",
			map[string]string{"NodeID": e.NodeID})
	}
	for _, m := range e.Mutations {
		if err := m.validate(); err != nil {
			return err
		}
	}
	return nil
}
