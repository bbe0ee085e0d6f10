// Package stats holds the fixed combat-stat vector and the deterministic
// aggregation pipeline that folds passive and equipment effects into it.
package stats

import (
	"math"
	"sort"
)

// Field enumerates the stats tracked by the vector.
type Field uint8

const (
	FieldStrength Field = iota
	FieldDexterity
	FieldIntelligence
	FieldLife
	FieldMana
	FieldLifeRegen
	FieldManaRegen
	FieldDamage
	FieldMelee
	FieldAttackSpeed
	FieldCastSpeed
	FieldAccuracy
	FieldCritChance
	FieldCritMultiplier
	FieldArmor
	FieldEvasion
	FieldBlockChance
	FieldFireRes
	FieldColdRes
	FieldLightningRes
	FieldChaosRes
	FieldMoveSpeed
	FieldLightRadius

	FieldCount
)

// fieldNames are the canonical document names, indexed by Field.
var fieldNames = [FieldCount]string{
	FieldStrength:       "str",
	FieldDexterity:      "dex",
	FieldIntelligence:   "int",
	FieldLife:           "hp",
	FieldMana:           "mana",
	FieldLifeRegen:      "hp_regen",
	FieldManaRegen:      "mana_regen",
	FieldDamage:         "damage",
	FieldMelee:          "melee",
	FieldAttackSpeed:    "attack_speed",
	FieldCastSpeed:      "cast_speed",
	FieldAccuracy:       "accuracy",
	FieldCritChance:     "crit_chance",
	FieldCritMultiplier: "crit_multiplier",
	FieldArmor:          "armor",
	FieldEvasion:        "evasion",
	FieldBlockChance:    "block_chance",
	FieldFireRes:        "fire_res",
	FieldColdRes:        "cold_res",
	FieldLightningRes:   "lightning_res",
	FieldChaosRes:       "chaos_res",
	FieldMoveSpeed:      "move_speed",
	FieldLightRadius:    "light_radius",
}

var fieldIndex = buildFieldIndex()

func buildFieldIndex() map[string]Field {
	index := make(map[string]Field, FieldCount)
	for f := Field(0); f < FieldCount; f++ {
		index[fieldNames[f]] = f
	}
	return index
}

// String returns the canonical stat name.
func (f Field) String() string {
	if f < FieldCount {
		return fieldNames[f]
	}
	return "unknown"
}

// FieldByName resolves a canonical stat name.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// FieldNames returns all canonical stat names in field order.
func FieldNames() []string {
	out := make([]string, FieldCount)
	copy(out, fieldNames[:])
	return out
}

// Vector stores one value per stat field.
type Vector [FieldCount]float64

// defaults hold the base values filled in when the caller supplies no
// value for a field. Unlisted fields default to zero.
var defaults = Vector{
	FieldStrength:       10,
	FieldDexterity:      10,
	FieldIntelligence:   10,
	FieldLife:           50,
	FieldMana:           40,
	FieldAttackSpeed:    100,
	FieldCastSpeed:      100,
	FieldAccuracy:       90,
	FieldCritChance:     5,
	FieldCritMultiplier: 150,
	FieldMoveSpeed:      100,
	FieldLightRadius:    100,
}

// limits are the stage-seven caps. Fields without an entry are uncapped.
var limits = map[Field]float64{
	FieldCritChance:   95,
	FieldBlockChance:  75,
	FieldFireRes:      75,
	FieldColdRes:      75,
	FieldLightningRes: 75,
	FieldChaosRes:     75,
}

// Limit returns the cap for a field, if it has one.
func Limit(f Field) (float64, bool) {
	limit, ok := limits[f]
	return limit, ok
}

// DefaultBase returns the documented fallback base vector.
func DefaultBase() Vector {
	return defaults
}

// BaseFrom merges a partial base-stat map over the documented defaults.
// Unknown names and non-finite values are ignored; the names of the
// ignored entries are returned for the caller to log.
func BaseFrom(partial map[string]float64) (Vector, []string) {
	base := defaults
	var ignored []string
	names := make([]string, 0, len(partial))
	for name := range partial {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := partial[name]
		f, ok := FieldByName(name)
		if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
			ignored = append(ignored, name)
			continue
		}
		base[f] = value
	}
	return base, ignored
}

// Value returns the stat by canonical name.
func (v Vector) Value(name string) (float64, bool) {
	f, ok := FieldByName(name)
	if !ok {
		return 0, false
	}
	return v[f], true
}

// Map returns the vector keyed by canonical names, for serialization.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, FieldCount)
	for f := Field(0); f < FieldCount; f++ {
		out[fieldNames[f]] = v[f]
	}
	return out
}

// IsFinite reports whether every field holds a finite value.
func (v Vector) IsFinite() bool {
	for f := Field(0); f < FieldCount; f++ {
		if math.IsNaN(v[f]) || math.IsInf(v[f], 0) {
			return false
		}
	}
	return true
}
