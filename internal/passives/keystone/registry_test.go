package keystone

import (
	"log/slog"
	"math"
	"testing"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"

	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRegisterValidation(t *testing.T) {
	valid := Effect{
		NodeID:    "iron_will",
		Name:      "Iron Will",
		Mutations: []Mutation{{Op: MutScale, Field: stats.FieldArmor, Value: 1.2}},
	}

	cases := []struct {
		name   string
		mutate func(Effect) Effect
	}{
		{"missing node id", func(e Effect) Effect {
			e.NodeID = ""
			return e
		}},
		{"missing name", func(e Effect) Effect {
			e.Name = " "
			return e
		}},
		{"no mutations or script", func(e Effect) Effect {
			e.Mutations = nil
			return e
		}},
		{"mutations and script", func(e Effect) Effect {
			e.Script = "return"
			return e
		}},
		{"unknown mutation op", func(e Effect) Effect {
			e.Mutations = []Mutation{{Field: stats.FieldArmor, Value: 1}}
			return e
		}},
		{"unknown mutation field", func(e Effect) Effect {
			e.Mutations = []Mutation{{Op: MutAdd, Field: stats.FieldCount, Value: 1}}
			return e
		}},
		{"unknown transfer source", func(e Effect) Effect {
			e.Mutations = []Mutation{{Op: MutTransfer, Field: stats.FieldArmor, Source: stats.FieldCount, Value: 1}}
			return e
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry(slog.Default())
			err := r.Register(tc.mutate(valid))
			if !apperrors.IsCode(err, apperrors.CodeKeystoneInvalidEffect) {
				t.Fatalf("expected %s, got %v", apperrors.CodeKeystoneInvalidEffect, err)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(slog.Default())
	e := Effect{
		NodeID:    "iron_will",
		Name:      "Iron Will",
		Mutations: []Mutation{{Op: MutScale, Field: stats.FieldArmor, Value: 1.2}},
	}
	if err := r.Register(e); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	err := r.Register(e)
	if !apperrors.IsCode(err, apperrors.CodeKeystoneDuplicate) {
		t.Fatalf("expected %s, got %v", apperrors.CodeKeystoneDuplicate, err)
	}
}

func TestMutationOps(t *testing.T) {
	base := stats.DefaultBase()

	cases := []struct {
		name      string
		mutation  Mutation
		allocated int
		field     stats.Field
		want      float64
	}{
		{
			name:     "add",
			mutation: Mutation{Op: MutAdd, Field: stats.FieldBlockChance, Value: 10},
			field:    stats.FieldBlockChance,
			want:     10,
		},
		{
			name:     "scale",
			mutation: Mutation{Op: MutScale, Field: stats.FieldLife, Value: 1.35},
			field:    stats.FieldLife,
			want:     67.5,
		},
		{
			name:     "set",
			mutation: Mutation{Op: MutSet, Field: stats.FieldMana, Value: 0},
			field:    stats.FieldMana,
			want:     0,
		},
		{
			name:      "add per allocated",
			mutation:  Mutation{Op: MutAddPerAllocated, Field: stats.FieldDamage, Value: 2},
			allocated: 7,
			field:     stats.FieldDamage,
			want:      14,
		},
		{
			name:     "transfer",
			mutation: Mutation{Op: MutTransfer, Field: stats.FieldEvasion, Source: stats.FieldIntelligence, Value: 0.5},
			field:    stats.FieldEvasion,
			want:     5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := Effect{NodeID: "test", Name: "Test", Mutations: []Mutation{tc.mutation}}
			got, err := e.Apply(base, tc.allocated)
			if err != nil {
				t.Fatalf("apply failed: %v", err)
			}
			if !almostEqual(got[tc.field], tc.want) {
				t.Fatalf("field %s = %v, want %v", tc.field, got[tc.field], tc.want)
			}
		})
	}
}

func TestApplyKeystonesStacksInRegistrationOrder(t *testing.T) {
	r := NewRegistry(slog.Default())
	for _, e := range []Effect{
		{NodeID: "first", Name: "First", Mutations: []Mutation{{Op: MutSet, Field: stats.FieldMana, Value: 100}}},
		{NodeID: "second", Name: "Second", Mutations: []Mutation{{Op: MutScale, Field: stats.FieldMana, Value: 2}}},
	} {
		if err := r.Register(e); err != nil {
			t.Fatalf("register %s: %v", e.NodeID, err)
		}
	}

	// Activation order must not matter: the registry runs in registration
	// order, so the set always lands before the scale.
	for _, active := range [][]string{{"first", "second"}, {"second", "first"}} {
		got := r.ApplyKeystones(stats.DefaultBase(), active, 2)
		if !almostEqual(got[stats.FieldMana], 200) {
			t.Fatalf("active %v: mana = %v, want 200", active, got[stats.FieldMana])
		}
	}
}

func TestApplyKeystonesCompoundsScales(t *testing.T) {
	r := NewRegistry(slog.Default())
	for _, id := range []string{"iron_will", "bulwark_oath"} {
		err := r.Register(Effect{
			NodeID:    id,
			Name:      id,
			Mutations: []Mutation{{Op: MutScale, Field: stats.FieldArmor, Value: 1.20}},
		})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	v := stats.DefaultBase()
	v[stats.FieldArmor] = 100
	got := r.ApplyKeystones(v, []string{"iron_will", "bulwark_oath"}, 2)
	if !almostEqual(got[stats.FieldArmor], 144) {
		t.Fatalf("armor = %v, want 144 (two 20%% scales compound)", got[stats.FieldArmor])
	}
}

func TestApplyKeystonesSkipsUnregistered(t *testing.T) {
	r := NewRegistry(slog.Default())
	v := stats.DefaultBase()
	got := r.ApplyKeystones(v, []string{"ghost"}, 1)
	if got != v {
		t.Fatalf("unregistered keystone changed the vector: %v", got)
	}
}

func TestApplyKeystonesSkipsFailedScript(t *testing.T) {
	r := NewRegistry(slog.Default())
	if err := r.Register(Effect{NodeID: "broken", Name: "Broken", Script: `error("boom")`}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(Effect{
		NodeID:    "working",
		Name:      "Working",
		Mutations: []Mutation{{Op: MutAdd, Field: stats.FieldDamage, Value: 5}},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	got := r.ApplyKeystones(stats.DefaultBase(), []string{"broken", "working"}, 2)
	if !almostEqual(got[stats.FieldDamage], 5) {
		t.Fatalf("damage = %v, want 5 (broken script skipped, working applied)", got[stats.FieldDamage])
	}
}

func TestScriptKeystone(t *testing.T) {
	e := Effect{NodeID: "thrill_of_battle", Name: "Thrill of Battle", Script: thrillOfBattleScript}

	v := stats.DefaultBase()
	v[stats.FieldCritChance] = 25
	got, err := e.Apply(v, 3)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	// bonus = 1 + min(25, 50)/200 = 1.125
	if !almostEqual(got[stats.FieldAttackSpeed], 112.5) {
		t.Fatalf("attack_speed = %v, want 112.5", got[stats.FieldAttackSpeed])
	}
	if !almostEqual(got[stats.FieldCastSpeed], 112.5) {
		t.Fatalf("cast_speed = %v, want 112.5", got[stats.FieldCastSpeed])
	}
	if !almostEqual(got[stats.FieldCritChance], 25) {
		t.Fatalf("crit_chance = %v, want untouched 25", got[stats.FieldCritChance])
	}
}

func TestScriptSeesAllocatedCount(t *testing.T) {
	e := Effect{
		NodeID: "scripted",
		Name:   "Scripted",
		Script: `stats.damage = stats.damage + allocated * 3`,
	}
	got, err := e.Apply(stats.DefaultBase(), 4)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !almostEqual(got[stats.FieldDamage], 12) {
		t.Fatalf("damage = %v, want 12", got[stats.FieldDamage])
	}
}

func TestScriptCompileError(t *testing.T) {
	e := Effect{NodeID: "bad", Name: "Bad", Script: `this is not lua`}
	_, err := e.Apply(stats.DefaultBase(), 1)
	if !apperrors.IsCode(err, apperrors.CodeKeystoneScriptFailed) {
		t.Fatalf("expected %s, got %v", apperrors.CodeKeystoneScriptFailed, err)
	}
}

func TestScriptHostAccessBlocked(t *testing.T) {
	e := Effect{NodeID: "sneaky", Name: "Sneaky", Script: `os.exit(1)`}
	_, err := e.Apply(stats.DefaultBase(), 1)
	if !apperrors.IsCode(err, apperrors.CodeKeystoneScriptFailed) {
		t.Fatalf("expected %s, got %v", apperrors.CodeKeystoneScriptFailed, err)
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry(slog.Default())
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	want := []string{
		"iron_will", "bulwark_oath", "glass_cannon", "blood_pact",
		"mind_over_matter", "ancestral_bond", "thrill_of_battle",
	}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("registered %d keystones, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].NodeID != id {
			t.Fatalf("keystone %d = %s, want %s", i, got[i].NodeID, id)
		}
	}

	// Glass Cannon against a concrete vector.
	v := stats.DefaultBase()
	v[stats.FieldDamage] = 40
	v[stats.FieldArmor] = 80
	v[stats.FieldEvasion] = 60
	out := r.ApplyKeystones(v, []string{"glass_cannon"}, 5)
	if !almostEqual(out[stats.FieldDamage], 60) {
		t.Fatalf("damage = %v, want 60", out[stats.FieldDamage])
	}
	if !almostEqual(out[stats.FieldArmor], 40) {
		t.Fatalf("armor = %v, want 40", out[stats.FieldArmor])
	}
	if !almostEqual(out[stats.FieldEvasion], 30) {
		t.Fatalf("evasion = %v, want 30", out[stats.FieldEvasion])
	}
}
