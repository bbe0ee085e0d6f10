package keystone

import (
	"log/slog"

	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
)

// thrillOfBattleScript scales attack and cast speed off crit chance. The
// bonus is conditional on the computed crit value, which the mutation enum
// cannot express, so this one lives in Lua.
const thrillOfBattleScript = `
local bonus = 1 + math.min(stats.crit_chance, 50) / 200
stats.attack_speed = stats.attack_speed * bonus
stats.cast_speed = stats.cast_speed * bonus
`

// Builtins returns the keystone behaviors shipped with the default graph,
// in the order they register. Graph documents reference these by node id.
func Builtins() []Effect {
	return []Effect{
		{
			NodeID:      "iron_will",
			Name:        "Iron Will",
			Description: "Armor increased by 20%.",
			Mutations: []Mutation{
				{Op: MutScale, Field: stats.FieldArmor, Value: 1.20},
			},
		},
		{
			NodeID:      "bulwark_oath",
			Name:        "Bulwark Oath",
			Description: "Armor increased by 20%, block chance raised by 10.",
			Mutations: []Mutation{
				{Op: MutScale, Field: stats.FieldArmor, Value: 1.20},
				{Op: MutAdd, Field: stats.FieldBlockChance, Value: 10},
			},
		},
		{
			NodeID:      "glass_cannon",
			Name:        "Glass Cannon",
			Description: "Damage increased by 50%; armor and evasion halved.",
			Mutations: []Mutation{
				{Op: MutScale, Field: stats.FieldDamage, Value: 1.50},
				{Op: MutScale, Field: stats.FieldArmor, Value: 0.50},
				{Op: MutScale, Field: stats.FieldEvasion, Value: 0.50},
			},
		},
		{
			NodeID:      "blood_pact",
			Name:        "Blood Pact",
			Description: "Mana is set to zero; life increased by 35%.",
			Mutations: []Mutation{
				{Op: MutSet, Field: stats.FieldMana, Value: 0},
				{Op: MutScale, Field: stats.FieldLife, Value: 1.35},
			},
		},
		{
			NodeID:      "mind_over_matter",
			Name:        "Mind Over Matter",
			Description: "Gain evasion equal to half of intelligence.",
			Mutations: []Mutation{
				{Op: MutTransfer, Field: stats.FieldEvasion, Source: stats.FieldIntelligence, Value: 0.50},
			},
		},
		{
			NodeID:      "ancestral_bond",
			Name:        "Ancestral Bond",
			Description: "Gain 2 damage for every allocated passive.",
			Mutations: []Mutation{
				{Op: MutAddPerAllocated, Field: stats.FieldDamage, Value: 2},
			},
		},
		{
			NodeID:      "thrill_of_battle",
			Name:        "Thrill of Battle",
			Description: "Attack and cast speed scale with crit chance.",
			Script:      thrillOfBattleScript,
		},
	}
}

// NewDefaultRegistry builds a registry preloaded with the builtin
// keystones.
func NewDefaultRegistry(log *slog.Logger) (*Registry, error) {
	r := NewRegistry(log)
	for _, e := range Builtins() {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}
