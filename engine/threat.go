package engine

import (
	"fmt"
	"math"
)

// LootItem is a rarity-tagged item a threat carries.
type LootItem struct {
	Name   string `json:"name"`
	Rarity Rarity `json:"rarity"`
}

// ThreatEncounter is a difficulty-scaled adversary. Target is assigned by the
// caller and must be exactly one side before the threat is resolved.
type ThreatEncounter struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	CreatureType string      `json:"creatureType"`
	Difficulty   int         `json:"difficulty"`
	ATK          int         `json:"atk"`
	DEF          int         `json:"def"`
	HP           int         `json:"hp"`
	MaxHP        int         `json:"maxHp"`
	Icon         string      `json:"imageIcon,omitempty"`
	Behavior     string      `json:"behavior"`
	Loot         []LootItem  `json:"lootItems"`
	LootRarity   Rarity      `json:"lootRarity"`
	LootCount    int         `json:"lootCount"`
	Stack        ActionStack `json:"actionStack"`
	Target       Side        `json:"target"`
}

// Valid reports whether the threat targets exactly one side.
func (t ThreatEncounter) Valid() bool {
	return t.Target == SidePlayer || t.Target == SideOpponent
}

func lootTier(difficulty int) (Rarity, int) {
	switch {
	case difficulty <= 4:
		return RarityCommon, 1
	case difficulty <= 8:
		return RarityUncommon, 1
	default:
		return RarityRare, 2
	}
}

// CreateThreatEncounter builds a threat from the creature table. The creature
// index is floor(difficulty/2) clamped to the table, and atk, def and hp are
// scaled by 1 + (difficulty-4)*0.1, rounded half away from zero.
func CreateThreatEncounter(cat Catalog, difficulty int) ThreatEncounter {
	creatures := cat.Creatures
	if len(creatures) == 0 {
		creatures = DefaultCreatures()
	}
	idx := max(0, min(difficulty/2, len(creatures)-1))
	base := creatures[idx]

	scale := 1 + float64(difficulty-4)*0.1
	scaled := func(v int) int { return int(math.Round(float64(v) * scale)) }

	rarity, count := lootTier(difficulty)
	t := ThreatEncounter{
		ID:           fmt.Sprintf("%s-d%d", base.ID, difficulty),
		Name:         base.Name,
		CreatureType: base.Type,
		Difficulty:   difficulty,
		ATK:          scaled(base.ATK),
		DEF:          scaled(base.DEF),
		HP:           scaled(base.HP),
		MaxHP:        scaled(base.HP),
		Icon:         base.Icon,
		Behavior:     base.Behavior,
		LootRarity:   rarity,
		LootCount:    count,
		Stack:        ActionStack{CoreAction: ActionAttack},
	}
	if t.CreatureType == "" {
		t.CreatureType = "monster"
	}
	if t.Behavior == "" {
		t.Behavior = "Attacks target"
	}
	for _, name := range base.Loot {
		t.Loot = append(t.Loot, LootItem{Name: name, Rarity: rarity})
	}
	if difficulty >= 6 {
		t.Stack.Modifiers = []StackModifier{{Name: "Ferocious", Type: CardSkill, Bonus: 1}}
	}
	return t
}

// InitiativeRolls is the pair of initiative rolls of a round.
type InitiativeRolls struct {
	Player   Roll `json:"playerRoll"`
	Opponent Roll `json:"opponentRoll"`
}

// CheckNat1Threats spawns one beginning threat per side whose initiative was a
// natural 1, aimed at the side that fumbled.
func CheckNat1Threats(cat Catalog, round int, rolls InitiativeRolls, b Balance) []ThreatEncounter {
	difficulty := round + b.BeginThreatOffset
	var threats []ThreatEncounter
	if rolls.Player.IsNat1() {
		t := CreateThreatEncounter(cat, difficulty)
		t.Target = SidePlayer
		threats = append(threats, t)
	}
	if rolls.Opponent.IsNat1() {
		t := CreateThreatEncounter(cat, difficulty)
		t.Target = SideOpponent
		threats = append(threats, t)
	}
	if n := b.maxBeginThreats(); len(threats) > n {
		threats = threats[:n]
	}
	return threats
}

// Attacker returns a combatant standing in for the threat during combat:
// STR = atk, END = def and a weapon worth atk.
func (t ThreatEncounter) Attacker() Combatant {
	return Combatant{
		Name:  t.Name,
		Stats: Stats{STR: t.ATK, END: t.DEF},
		HP:    t.HP,
		MaxHP: t.MaxHP,
		Stack: []Card{{Type: CardItem, Subtype: SubtypeWeapon, Name: t.Name, ATK: t.ATK}},
	}
}

// ThreatKind distinguishes beginning threats from end-of-round threats.
type ThreatKind string

const (
	ThreatBeginning ThreatKind = "beginning"
	ThreatEnd       ThreatKind = "end"
)

// ThreatResult is the record of one threat combat.
type ThreatResult struct {
	Threat   string        `json:"threatName"`
	Target   Side          `json:"target"`
	Attack   Roll          `json:"attackRoll"`
	Defense  Roll          `json:"defenseRoll"`
	Outcome  Outcome       `json:"combatOutcome"`
	Damage   *DamageResult `json:"damage,omitempty"`
	Loot     *Card         `json:"loot,omitempty"`
	Defended bool          `json:"defended"`
}

func threatLoot(t ThreatEncounter, kind ThreatKind) Card {
	loot := Card{
		Type:    CardItem,
		Subtype: SubtypeConsumable,
		Rarity:  t.LootRarity,
		Flavor:  "Spoils from defeating " + t.Name,
	}
	if kind == ThreatEnd {
		loot.Name = fmt.Sprintf("End Threat Loot (%s)", t.LootRarity)
		loot.Effect = "Restore 4 HP"
		return loot
	}
	loot.Name = fmt.Sprintf("Threat Loot (%s)", t.LootRarity)
	loot.Effect = "Restore 3 HP"
	if t.LootRarity == RarityRare {
		loot.Effect = "Restore 5 HP"
	}
	return loot
}

// ResolveThreatCombat has the threat attack defender. Cards in defense are
// worn for this exchange only and go to the discard pile afterwards. A hit
// applies damage; anything else means the defender held and receives a loot
// consumable.
func ResolveThreatCombat(d Dice, t ThreatEncounter, defender *Combatant, defense []Card, kind ThreatKind) ThreatResult {
	attacker := t.Attacker()

	worn := len(defender.Stack)
	defender.Stack = append(defender.Stack, defense...)

	res := ThreatResult{
		Threat:  t.Name,
		Target:  t.Target,
		Attack:  RollAttack(d, &attacker, t.Stack),
		Defense: RollDefense(d, defender),
	}
	res.Outcome = CombatOutcome(res.Attack, res.Defense)

	if res.Outcome.IsHit() {
		dmg := CalculateDamage(&attacker, res.Outcome)
		hit := ApplyDamage(defender, dmg.Final)
		res.Damage = &hit
	} else {
		loot := threatLoot(t, kind)
		defender.Hand = append(defender.Hand, loot)
		res.Loot = &loot
		res.Defended = true
	}

	if len(defense) > 0 {
		defender.DiscardPile = append(defender.DiscardPile, defender.Stack[worn:]...)
		defender.Stack = defender.Stack[:worn:worn]
	}
	return res
}
