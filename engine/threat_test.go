package engine

import "testing"

// TestCreateThreatEncounter checks creature selection, scaling and loot tiers
// against the built-in creature table.
func TestCreateThreatEncounter(t *testing.T) {
	cat := DefaultCatalog()
	tests := []struct {
		difficulty   int
		name         string
		atk, def, hp int
		rarity       Rarity
		count        int
		ferocious    bool
	}{
		{-1, "Feral Beast", 1, 1, 4, RarityCommon, 1, false}, // def 0.5 rounds away from zero
		{1, "Feral Beast", 1, 1, 6, RarityCommon, 1, false},
		{4, "Venomous Creature", 2, 2, 12, RarityCommon, 1, false},
		{5, "Venomous Creature", 2, 2, 13, RarityUncommon, 1, false},
		{6, "Thief", 5, 2, 18, RarityUncommon, 1, true},
		{10, "Thief", 6, 3, 24, RarityRare, 2, true},
	}
	for _, tt := range tests {
		th := CreateThreatEncounter(cat, tt.difficulty)
		if th.Name != tt.name {
			t.Errorf("d%d: creature = %s, want %s", tt.difficulty, th.Name, tt.name)
		}
		if th.ATK != tt.atk || th.DEF != tt.def || th.HP != tt.hp || th.MaxHP != tt.hp {
			t.Errorf("d%d: atk/def/hp = %d/%d/%d (max %d), want %d/%d/%d",
				tt.difficulty, th.ATK, th.DEF, th.HP, th.MaxHP, tt.atk, tt.def, tt.hp)
		}
		if th.LootRarity != tt.rarity || th.LootCount != tt.count {
			t.Errorf("d%d: loot = %s x%d, want %s x%d", tt.difficulty, th.LootRarity, th.LootCount, tt.rarity, tt.count)
		}
		if got := len(th.Stack.Modifiers) > 0; got != tt.ferocious {
			t.Errorf("d%d: ferocious = %v, want %v", tt.difficulty, got, tt.ferocious)
		}
		if th.Stack.CoreAction != ActionAttack {
			t.Errorf("d%d: core action = %s", tt.difficulty, th.Stack.CoreAction)
		}
		if th.Target != SideNone || th.Valid() {
			t.Errorf("d%d: target should be left unassigned", tt.difficulty)
		}
		for _, item := range th.Loot {
			if item.Rarity != tt.rarity {
				t.Errorf("d%d: loot item %s rarity %s, want %s", tt.difficulty, item.Name, item.Rarity, tt.rarity)
			}
		}
	}
}

func TestCreateThreatEncounterDefaults(t *testing.T) {
	cat := Catalog{Creatures: []Creature{{ID: "blob", Name: "Blob", ATK: 1, DEF: 1, HP: 10}}}
	th := CreateThreatEncounter(cat, 4)
	if th.Behavior != "Attacks target" {
		t.Errorf("Behavior = %q, want default", th.Behavior)
	}
	if th.CreatureType != "monster" {
		t.Errorf("CreatureType = %q, want monster", th.CreatureType)
	}

	th = CreateThreatEncounter(Catalog{}, 0)
	if th.Name != "Feral Beast" {
		t.Errorf("empty catalog should use built-in creatures, got %s", th.Name)
	}
}

// TestThreatScalingMonotonic checks that harder threats are never weaker.
func TestThreatScalingMonotonic(t *testing.T) {
	cat := DefaultCatalog()
	low := CreateThreatEncounter(cat, 2)
	for d := 3; d <= 12; d++ {
		th := CreateThreatEncounter(cat, d)
		if th.HP < low.HP {
			t.Errorf("d%d hp %d < d%d hp %d", d, th.HP, d-1, low.HP)
		}
		low = th
	}
	easy, hard := CreateThreatEncounter(cat, 2), CreateThreatEncounter(cat, 10)
	if hard.ATK < easy.ATK || hard.DEF < easy.DEF {
		t.Errorf("d10 %d/%d weaker than d2 %d/%d", hard.ATK, hard.DEF, easy.ATK, easy.DEF)
	}
}

func TestCheckNat1Threats(t *testing.T) {
	cat := DefaultCatalog()
	b := DefaultBalance()

	none := CheckNat1Threats(cat, 1, InitiativeRolls{Player: NewRoll(5), Opponent: NewRoll(12)}, b)
	if len(none) != 0 {
		t.Errorf("no fumbles, got %d threats", len(none))
	}

	both := CheckNat1Threats(cat, 3, InitiativeRolls{Player: NewRoll(1, Modifier{"AGI", 4}), Opponent: NewRoll(1)}, b)
	if len(both) != 2 {
		t.Fatalf("got %d threats, want 2", len(both))
	}
	if both[0].Target != SidePlayer || both[1].Target != SideOpponent {
		t.Errorf("targets = %s, %s", both[0].Target, both[1].Target)
	}
	for _, th := range both {
		if th.Difficulty != 5 {
			t.Errorf("difficulty = %d, want round + 2", th.Difficulty)
		}
		if !th.Valid() {
			t.Errorf("threat %s has no valid target", th.Name)
		}
	}

	b.MaxBeginThreats = 1
	capped := CheckNat1Threats(cat, 3, InitiativeRolls{Player: NewRoll(1), Opponent: NewRoll(1)}, b)
	if len(capped) != 1 {
		t.Errorf("cap of 1 produced %d threats", len(capped))
	}
}

func TestResolveThreatCombat(t *testing.T) {
	cat := DefaultCatalog()
	b := DefaultBalance()

	t.Run("hit", func(t *testing.T) {
		th := CreateThreatEncounter(cat, 4) // atk 2, def 2
		th.Target = SidePlayer
		def := NewCombatant("p", Stats{END: 2}, b)

		res := ResolveThreatCombat(NewScriptedDice(15, 5), th, &def, nil, ThreatBeginning)
		if res.Damage == nil || res.Damage.Final != 6 {
			t.Fatalf("Damage = %+v, want 6", res.Damage)
		}
		if def.HP != 14 || res.Defended {
			t.Errorf("hp = %d defended %v", def.HP, res.Defended)
		}
	})

	t.Run("defended", func(t *testing.T) {
		th := CreateThreatEncounter(cat, 4)
		th.Target = SidePlayer
		def := NewCombatant("p", Stats{END: 2}, b)
		armor := Card{Type: CardApparel, Subtype: SubtypeArmor, Name: "Buckler", DEF: 3}

		res := ResolveThreatCombat(NewScriptedDice(2, 15), th, &def, []Card{armor}, ThreatBeginning)
		if !res.Defended || res.Loot == nil {
			t.Fatalf("expected loot, got %+v", res)
		}
		if res.Loot.Name != "Threat Loot (COMMON)" || res.Loot.Effect != "Restore 3 HP" {
			t.Errorf("loot = %+v", res.Loot)
		}
		if len(def.Hand) != 1 || def.HP != 20 {
			t.Errorf("hand %d hp %d", len(def.Hand), def.HP)
		}
		if len(def.Stack) != 0 || len(def.DiscardPile) != 1 {
			t.Errorf("defense card should be discarded: stack %v discard %v", def.Stack, def.DiscardPile)
		}
	})

	t.Run("rare loot", func(t *testing.T) {
		th := CreateThreatEncounter(cat, 10)
		th.Target = SideOpponent
		def := NewCombatant("o", Stats{}, b)

		res := ResolveThreatCombat(NewScriptedDice(1, 10), th, &def, nil, ThreatBeginning)
		if res.Loot == nil || res.Loot.Effect != "Restore 5 HP" {
			t.Errorf("loot = %+v, want Restore 5 HP", res.Loot)
		}
	})

	t.Run("end threat loot", func(t *testing.T) {
		th := CreateThreatEncounter(cat, 4)
		th.Target = SideOpponent
		def := NewCombatant("o", Stats{}, b)

		res := ResolveThreatCombat(NewScriptedDice(1, 10), th, &def, nil, ThreatEnd)
		if res.Loot == nil || res.Loot.Name != "End Threat Loot (COMMON)" || res.Loot.Effect != "Restore 4 HP" {
			t.Errorf("loot = %+v", res.Loot)
		}
	})
}
