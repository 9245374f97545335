package engine

import (
	"reflect"
	"testing"
)

func TestParseEffect(t *testing.T) {
	tests := []struct {
		in   string
		want Effect
	}{
		{"", Effect{}},
		{"Restore 5 HP", Effect{HealHP: 5}},
		{"Restore 3 Energy", Effect{RestoreEnergy: 3}},
		{"Restore 2 morale", Effect{RestoreMorale: 2}},
		{"Heal 4", Effect{HealHP: 4}},
		{"Deal 4 damage and Poison", Effect{Damage: 4, Statuses: []StatusTarget{{ID: StatusPoisoned}}}},
		{"Drain 2", Effect{Damage: 2, HealHP: 2}},
		{"Draw 2 cards", Effect{Draw: 2}},
		{"+3 ATK this round", Effect{ATKBoost: 3}},
		{"+2 DEF", Effect{DEFBoost: 2}},
		{"Shield yourself", Effect{Statuses: []StatusTarget{{ID: StatusShielded, OnSelf: true}}}},
		{"Cleanse all ailments", Effect{Cure: true}},
		{"A pleasant smell", Effect{}},
	}
	for _, tt := range tests {
		got, err := ParseEffect(tt.in)
		if err != nil {
			t.Errorf("ParseEffect(%q) error: %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseEffect(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestEffectEmpty(t *testing.T) {
	e, _ := ParseEffect("Flavor text only")
	if !e.Empty() {
		t.Errorf("expected empty effect, got %+v", e)
	}
	e, _ = ParseEffect("Restore 1 HP")
	if e.Empty() {
		t.Error("heal effect reported empty")
	}
}

func TestApplyEffect(t *testing.T) {
	b := DefaultBalance()
	owner := NewCombatant("owner", Stats{}, b)
	target := NewCombatant("target", Stats{}, b)
	owner.HP = 10

	e, _ := ParseEffect("Restore 5 HP")
	ApplyEffect(e, &owner, &target, "Potion")
	if owner.HP != 15 {
		t.Errorf("owner hp = %d, want 15", owner.HP)
	}

	e, _ = ParseEffect("Deal 4 damage and Poison")
	ApplyEffect(e, &owner, &target, "Venom Dart")
	if target.HP != 16 || !target.HasStatus(StatusPoisoned) {
		t.Errorf("target hp %d poisoned %v, want 16 and poisoned", target.HP, target.HasStatus(StatusPoisoned))
	}

	e, _ = ParseEffect("+3 ATK this round")
	ApplyEffect(e, &owner, nil, "War Cry")
	if owner.ATK() != 3 {
		t.Errorf("owner ATK = %d, want 3 from buff", owner.ATK())
	}
	owner.ClearBuffs()
	if owner.ATK() != 0 || len(owner.Stack) != 0 {
		t.Errorf("buffs not cleared: %+v", owner.Stack)
	}
}
