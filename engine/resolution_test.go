package engine

import "testing"

func roll(raw, mod int) Roll { return NewRoll(raw, Modifier{"mod", mod}) }

// TestCombatOutcome covers every row of the outcome table.
func TestCombatOutcome(t *testing.T) {
	tests := []struct {
		name    string
		attack  Roll
		defense Roll
		want    OutcomeKind
	}{
		{"nat20 beats any defense", roll(20, 0), roll(15, 10), OutcomeCriticalHit},
		{"nat1 always misses", roll(1, 30), roll(2, 0), OutcomeCriticalMiss},
		{"defender nat20 on a tie", roll(10, 10), roll(20, 0), OutcomeCriticalParry},
		{"defender nat20 loses to a big roll", roll(15, 10), roll(20, 0), OutcomeStrongHit},
		{"diff 10", roll(15, 10), roll(10, 5), OutcomeDevastating},
		{"diff 5", roll(10, 5), roll(10, 0), OutcomeStrongHit},
		{"diff 1", roll(11, 0), roll(10, 0), OutcomeGlancingHit},
		{"diff 0", roll(10, 3), roll(11, 2), OutcomeClash},
		{"diff -4", roll(6, 0), roll(10, 0), OutcomeDeflect},
		{"diff -5", roll(5, 0), roll(10, 0), OutcomeParry},
	}
	for _, tt := range tests {
		got := CombatOutcome(tt.attack, tt.defense)
		if got.Kind != tt.want {
			t.Errorf("%s: CombatOutcome = %s, want %s", tt.name, got.Kind, tt.want)
		}
		if got.Diff != tt.attack.Total-tt.defense.Total {
			t.Errorf("%s: Diff = %d, want %d", tt.name, got.Diff, tt.attack.Total-tt.defense.Total)
		}
	}
}

func TestNewRollDropsZeroModifiers(t *testing.T) {
	r := NewRoll(12, Modifier{"STR", 3}, Modifier{"ATK", 0}, Modifier{"Skill", -1})
	if r.Total != 14 {
		t.Errorf("Total = %d, want 14", r.Total)
	}
	if len(r.Modifiers) != 2 {
		t.Errorf("len(Modifiers) = %d, want 2", len(r.Modifiers))
	}
	if r.Bonus() != 2 {
		t.Errorf("Bonus = %d, want 2", r.Bonus())
	}
}

func TestCalculateDamage(t *testing.T) {
	attacker := &Combatant{Stats: Stats{STR: 3}, Stack: []Card{{Type: CardItem, Subtype: SubtypeWeapon, ATK: 2}}}
	tests := []struct {
		kind OutcomeKind
		want int
	}{
		{OutcomeCriticalHit, 10},
		{OutcomeDevastating, 7},
		{OutcomeStrongHit, 5},
		{OutcomeGlancingHit, 2},
		{OutcomeCriticalMiss, -3},
		{OutcomeCriticalParry, -2},
		{OutcomeDeflect, 0},
	}
	for _, tt := range tests {
		got := CalculateDamage(attacker, outcomeTable[tt.kind])
		if got.Final != tt.want {
			t.Errorf("CalculateDamage(%s) = %d, want %d", tt.kind, got.Final, tt.want)
		}
	}

	weak := &Combatant{Stats: Stats{STR: 1}}
	if got := CalculateDamage(weak, outcomeTable[OutcomeGlancingHit]); got.Final != 1 {
		t.Errorf("glancing hit on base 1 = %d, want minimum 1", got.Final)
	}
}

func TestApplyDamage(t *testing.T) {
	target := &Combatant{HP: 20, MaxHP: 20, Stack: []Card{{Type: CardApparel, Subtype: SubtypeArmor, DEF: 2}}}
	target.ApplyStatus(StatusShielded, "Guard")

	res := ApplyDamage(target, 5)
	if res.Final != 3 || target.HP != 17 {
		t.Errorf("ApplyDamage(5) = %+v, hp %d; want final 3, hp 17", res, target.HP)
	}
	if target.HasStatus(StatusShielded) {
		t.Error("shielded should be removed when hit")
	}

	res = ApplyDamage(target, 1)
	if res.Final != 1 {
		t.Errorf("armor reduced damage to %d, want minimum 1", res.Final)
	}

	res = ApplyDamage(target, 100)
	if target.HP != 0 || res.NewHP != 0 {
		t.Errorf("hp = %d, want floor at 0", target.HP)
	}
}

func newFighters() (*Combatant, *Combatant) {
	b := DefaultBalance()
	a := NewCombatant("Attacker", Stats{STR: 3, END: 2}, b)
	d := NewCombatant("Defender", Stats{STR: 3, END: 2}, b)
	return &a, &d
}

func TestResolveCombatHit(t *testing.T) {
	attacker, defender := newFighters()
	dice := NewScriptedDice(15, 5) // 18 vs 7

	res := ResolveCombat(dice, attacker, defender, ActionStack{CoreAction: ActionAttack})
	if res.Outcome.Kind != OutcomeDevastating {
		t.Fatalf("Outcome = %s, want DEVASTATING", res.Outcome.Kind)
	}
	if res.Hit == nil || res.Hit.Final != 4 {
		t.Fatalf("Hit = %+v, want 4 damage", res.Hit)
	}
	if defender.HP != 16 {
		t.Errorf("defender hp = %d, want 16", defender.HP)
	}
	if attacker.RoundPoints != 4 {
		t.Errorf("attacker round points = %d, want 4", attacker.RoundPoints)
	}
	if res.Counter != nil || res.Reward != nil {
		t.Errorf("unexpected counter/reward: %+v", res)
	}
}

func TestResolveCombatCriticalHit(t *testing.T) {
	attacker, defender := newFighters()
	attacker.DrawPile = []Card{{Type: CardItem, Subtype: SubtypeWeapon, Name: "Dragon Blade", Rarity: RarityLegendary, ATK: 5}}
	dice := NewScriptedDice(20, 10)

	res := ResolveCombat(dice, attacker, defender, ActionStack{CoreAction: ActionAttack})
	if res.Outcome.Kind != OutcomeCriticalHit {
		t.Fatalf("Outcome = %s, want CRITICAL_HIT", res.Outcome.Kind)
	}
	if defender.HP != 14 {
		t.Errorf("defender hp = %d, want 14", defender.HP)
	}
	if res.Reward == nil || res.Reward.Name != "Dragon Blade" || !res.Reward.IsCriticalReward {
		t.Fatalf("Reward = %+v, want flagged Dragon Blade", res.Reward)
	}
	if len(attacker.Hand) != 1 || len(attacker.DrawPile) != 0 {
		t.Errorf("reward should move from draw pile to hand: hand %d, pile %d", len(attacker.Hand), len(attacker.DrawPile))
	}
	if res.Dropped != nil {
		t.Errorf("nothing equipped, yet dropped %+v", res.Dropped)
	}
}

func TestResolveCombatCriticalHitDropsItem(t *testing.T) {
	attacker, defender := newFighters()
	defender.Stack = []Card{{Type: CardApparel, Subtype: SubtypeArmor, Name: "Leather", DEF: 1}}
	dice := NewScriptedDice(20, 10)
	dice.Floats = []float64{0.1}

	res := ResolveCombat(dice, attacker, defender, ActionStack{CoreAction: ActionAttack})
	if res.Dropped == nil || res.Dropped.Name != "Leather" {
		t.Fatalf("Dropped = %+v, want Leather", res.Dropped)
	}
	if len(defender.Stack) != 0 {
		t.Errorf("defender stack = %v, want empty", defender.Stack)
	}
}

func TestResolveCombatCriticalMiss(t *testing.T) {
	attacker, defender := newFighters()
	dice := NewScriptedDice(1, 10)

	res := ResolveCombat(dice, attacker, defender, ActionStack{CoreAction: ActionAttack})
	if res.Outcome.Kind != OutcomeCriticalMiss {
		t.Fatalf("Outcome = %s, want CRITICAL_MISS", res.Outcome.Kind)
	}
	if res.Counter == nil || res.Counter.Final != 2 {
		t.Fatalf("Counter = %+v, want 2", res.Counter)
	}
	if attacker.HP != 18 {
		t.Errorf("attacker hp = %d, want 18", attacker.HP)
	}
	if !res.AttackerStunned || !attacker.HasStatus(StatusStunned) {
		t.Error("attacker should be stunned")
	}
	if defender.RoundPoints != 2 {
		t.Errorf("defender round points = %d, want 2", defender.RoundPoints)
	}
}

func TestResolveCombatCriticalParry(t *testing.T) {
	attacker, defender := newFighters()
	dice := NewScriptedDice(10, 20) // 13 vs 22

	res := ResolveCombat(dice, attacker, defender, ActionStack{CoreAction: ActionAttack})
	if res.Outcome.Kind != OutcomeCriticalParry {
		t.Fatalf("Outcome = %s, want CRITICAL_PARRY", res.Outcome.Kind)
	}
	if attacker.HP != 19 {
		t.Errorf("attacker hp = %d, want 19", attacker.HP)
	}
	if res.Reward == nil || res.Reward.Name != "Critical Bonus" || res.Reward.DEF != 3 {
		t.Fatalf("Reward = %+v, want Critical Bonus +3 DEF", res.Reward)
	}
	if len(defender.Hand) != 1 {
		t.Errorf("defender hand = %d cards, want 1", len(defender.Hand))
	}
}

func TestResolveCombatClash(t *testing.T) {
	attacker, defender := newFighters()
	dice := NewScriptedDice(10, 11) // 13 vs 13

	res := ResolveCombat(dice, attacker, defender, ActionStack{CoreAction: ActionAttack})
	if res.Outcome.Kind != OutcomeClash {
		t.Fatalf("Outcome = %s, want CLASH", res.Outcome.Kind)
	}
	if attacker.HP != 19 || defender.HP != 19 {
		t.Errorf("hp = %d/%d, want 19/19", attacker.HP, defender.HP)
	}
}

func TestResolveCombatDualWield(t *testing.T) {
	attacker, defender := newFighters()
	attacker.Stack = []Card{
		{Type: CardItem, Subtype: SubtypeWeapon, Name: "Dagger", Slot: "1H", ATK: 1},
		{Type: CardItem, Subtype: SubtypeWeapon, Name: "Knife", Slot: "1H", ATK: 1},
	}
	dice := NewScriptedDice(15, 5, 15) // 20 vs 7, twice

	res := ResolveCombat(dice, attacker, defender, ActionStack{CoreAction: ActionAttack})
	if res.Second == nil || res.Second.Weapon != "Knife" {
		t.Fatalf("Second = %+v, want off-hand Knife", res.Second)
	}
	if defender.HP != 6 {
		t.Errorf("defender hp = %d, want 6", defender.HP)
	}
	if attacker.RoundPoints != 14 {
		t.Errorf("round points = %d, want 14", attacker.RoundPoints)
	}
}

func TestSkillMod(t *testing.T) {
	stack := ActionStack{CoreAction: ActionAttack, Modifiers: []StackModifier{
		{Name: "Swordsmanship", Type: CardSkill, Text: "+2 to Attack rolls"},
		{Name: "Ferocious", Type: CardSkill, Bonus: 1},
		{Name: "Potion", Type: CardItem, Text: "+5 to Attack"},
	}}
	if got := SkillMod(stack, "attack"); got != 3 {
		t.Errorf("SkillMod(attack) = %d, want 3", got)
	}
	if got := SkillMod(stack, "defense"); got != 1 {
		t.Errorf("SkillMod(defense) = %d, want 1", got)
	}
}

func TestNewCombatantAP(t *testing.T) {
	b := DefaultBalance()
	tests := []struct {
		end  int
		want int
	}{
		{0, 3}, // default END 12
		{4, 2},
		{12, 3},
		{15, 4},
		{20, 5},
	}
	for _, tt := range tests {
		c := NewCombatant("x", Stats{END: tt.end}, b)
		if c.AP != tt.want {
			t.Errorf("END %d: AP = %d, want %d", tt.end, c.AP, tt.want)
		}
	}
	c := NewCombatant("x", Stats{}, b)
	if c.Energy != 12 || c.HP != 20 || c.Morale != 20 {
		t.Errorf("defaults = energy %d hp %d morale %d", c.Energy, c.HP, c.Morale)
	}
}

func TestCheckGameOver(t *testing.T) {
	p := &Combatant{HP: 5}
	o := &Combatant{HP: 5}
	if got := CheckGameOver(p, o); got != SideNone {
		t.Errorf("both alive: %s", got)
	}
	o.HP = 0
	if got := CheckGameOver(p, o); got != SidePlayer {
		t.Errorf("opponent down: %s, want player", got)
	}
	p.HP = 0
	if got := CheckGameOver(p, o); got != SideOpponent {
		t.Errorf("player down: %s, want opponent", got)
	}
}

func TestResolveRestAndGuard(t *testing.T) {
	c := NewCombatant("x", Stats{}, DefaultBalance())
	c.HP, c.Energy, c.Morale = 10, 5, 10
	ResolveRest(&c)
	if c.HP != 12 || c.Energy != 8 || c.Morale != 12 {
		t.Errorf("after rest: hp %d energy %d morale %d", c.HP, c.Energy, c.Morale)
	}
	ResolveGuard(&c, "Guard")
	if !c.HasStatus(StatusShielded) {
		t.Error("guard should shield")
	}
}

func TestResolveFlee(t *testing.T) {
	b := DefaultBalance()
	c := NewCombatant("x", Stats{}, b)

	res := ResolveFlee(NewScriptedDice(2), &c, ActionStack{}, b)
	if !res.Escaped || res.Roll.Total != 12 {
		t.Errorf("roll 2 + AGI 10: %+v, want escaped at 12", res)
	}
	res = ResolveFlee(NewScriptedDice(1), &c, ActionStack{}, b)
	if res.Escaped {
		t.Error("roll 1 + AGI 10 should fail DC 12")
	}
	if c.Morale != 18 {
		t.Errorf("morale = %d, want 18 after failed flee", c.Morale)
	}
}

func TestResolveTalk(t *testing.T) {
	b := DefaultBalance()
	tests := []struct {
		name      string
		rolls     []int
		want      TalkOutcome
		ownerMor  int
		targetMor int
	}{
		{"natural 20", []int{20, 19}, TalkSurrender, 20, 0},
		{"margin of 10", []int{15, 5}, TalkSurrender, 20, 0},
		{"success", []int{12, 8}, TalkSuccess, 20, 8},
		{"natural 1", []int{1, 10}, TalkBackfire, 17, 12},
		{"tie fails", []int{10, 10}, TalkFailure, 20, 10},
	}
	for _, tt := range tests {
		owner := NewCombatant("owner", Stats{}, b)
		target := NewCombatant("target", Stats{}, b)
		target.Morale = 10
		target.DrawPile = []Card{{Name: "Spare"}}

		res := ResolveTalk(NewScriptedDice(tt.rolls...), &owner, &target, ActionStack{CoreAction: ActionTalk})
		if res.Outcome != tt.want {
			t.Errorf("%s: outcome = %s, want %s", tt.name, res.Outcome, tt.want)
		}
		if owner.Morale != tt.ownerMor || target.Morale != tt.targetMor {
			t.Errorf("%s: morale = %d/%d, want %d/%d", tt.name, owner.Morale, target.Morale, tt.ownerMor, tt.targetMor)
		}
		if tt.want == TalkBackfire && len(target.Hand) != 1 {
			t.Errorf("%s: target should draw a card on backfire", tt.name)
		}
	}
}

// TestPlainPlayerWin pins an ordinary exchange: 15 against 12 with no
// naturals is a player hit and spawns no threats.
func TestPlainPlayerWin(t *testing.T) {
	player := &Combatant{Name: "p", HP: 20, MaxHP: 20, Stats: Stats{STR: 2, AGI: 2}}
	opponent := &Combatant{Name: "o", HP: 20, MaxHP: 20, Stats: Stats{END: 2, AGI: 2}}

	res := ResolveCombat(NewScriptedDice(13, 10), player, opponent, ActionStack{})
	if res.Attack.Total != 15 || res.Defense.Total != 12 {
		t.Fatalf("totals = %d vs %d, want 15 vs 12", res.Attack.Total, res.Defense.Total)
	}
	if res.Attack.IsNat1() || res.Attack.IsNat20() || res.Defense.IsNat1() || res.Defense.IsNat20() {
		t.Fatalf("unexpected natural in %d/%d", res.Attack.Raw, res.Defense.Raw)
	}
	if res.Outcome.Kind != OutcomeGlancingHit || res.Outcome.Diff != 3 || !res.Outcome.IsHit() {
		t.Errorf("outcome = %s (diff %d), want a glancing hit by 3", res.Outcome.Kind, res.Outcome.Diff)
	}
	if opponent.HP >= 20 {
		t.Errorf("opponent HP = %d, want damage taken", opponent.HP)
	}
	if player.HP != 20 {
		t.Errorf("player HP = %d, want untouched", player.HP)
	}
	if player.RoundPoints <= opponent.RoundPoints {
		t.Errorf("round points = %d vs %d, want the player ahead", player.RoundPoints, opponent.RoundPoints)
	}

	d := NewScriptedDice(13, 10)
	rolls := InitiativeRolls{Player: RollInitiative(d, player), Opponent: RollInitiative(d, opponent)}
	if rolls.Player.Total != 15 || rolls.Opponent.Total != 12 {
		t.Fatalf("initiative = %d vs %d, want 15 vs 12", rolls.Player.Total, rolls.Opponent.Total)
	}
	if threats := CheckNat1Threats(DefaultCatalog(), 1, rolls, DefaultBalance()); len(threats) != 0 {
		t.Errorf("CheckNat1Threats = %d threats, want none", len(threats))
	}
}
