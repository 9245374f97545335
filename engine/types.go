package engine

import (
	"fmt"
	"strings"
)

// Side identifies one of the two combatants. SideNone doubles as "tie".
type Side uint8

const (
	SideNone     Side = iota // 0: tie, or not yet assigned
	SidePlayer               // 1
	SideOpponent             // 2
)

// String returns the wire name of the side.
func (s Side) String() string {
	switch s {
	case SidePlayer:
		return "player"
	case SideOpponent:
		return "opponent"
	default:
		return "tie"
	}
}

// Other returns the opposing side. SideNone has no opposite.
func (s Side) Other() Side {
	switch s {
	case SidePlayer:
		return SideOpponent
	case SideOpponent:
		return SidePlayer
	default:
		return SideNone
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "player":
		*s = SidePlayer
	case "opponent":
		*s = SideOpponent
	case "tie", "", "none":
		*s = SideNone
	default:
		return fmt.Errorf("unknown side %q", string(b))
	}
	return nil
}

// Rarity is the loot/card rarity tier.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// Card type and subtype names used by the deck.
const (
	CardAction  = "action"
	CardItem    = "item"
	CardApparel = "apparel"
	CardSkill   = "skill"
	CardMagic   = "magic"
	CardTalk    = "talk"

	SubtypeWeapon     = "weapon"
	SubtypeArmor      = "armor"
	SubtypeConsumable = "consumable"
	SubtypeLoot       = "loot"
	SubtypeBuff       = "buff" // round-scoped bonus placed on the stack
)

// Card is any card that can sit in a hand, draw pile or equipment stack.
type Card struct {
	ID               string `json:"id,omitempty" yaml:"id,omitempty"`
	Type             string `json:"type" yaml:"type"`
	Subtype          string `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Name             string `json:"name" yaml:"name"`
	Rarity           Rarity `json:"rarity,omitempty" yaml:"rarity,omitempty"`
	ATK              int    `json:"atk,omitempty" yaml:"atk,omitempty"`
	DEF              int    `json:"def,omitempty" yaml:"def,omitempty"`
	Parry            int    `json:"parry,omitempty" yaml:"parry,omitempty"`
	Slot             string `json:"slot,omitempty" yaml:"slot,omitempty"`
	Effect           string `json:"effect,omitempty" yaml:"effect,omitempty"`
	Modifier         string `json:"modifier,omitempty" yaml:"modifier,omitempty"` // skill text, e.g. "+2 to Attack rolls"
	Flavor           string `json:"flavor,omitempty" yaml:"flavor,omitempty"`
	IsCriticalReward bool   `json:"isCriticalReward,omitempty" yaml:"-"`
}

// IsWeapon reports whether the card is an equippable weapon.
func (c Card) IsWeapon() bool { return c.Type == CardItem && c.Subtype == SubtypeWeapon }

// IsConsumable reports whether the card is a one-shot consumable item.
func (c Card) IsConsumable() bool { return c.Type == CardItem && c.Subtype == SubtypeConsumable }

// Stats holds a character's base attributes.
type Stats struct {
	STR int `json:"STR" yaml:"STR"`
	AGI int `json:"AGI" yaml:"AGI"`
	END int `json:"END" yaml:"END"`
	INT int `json:"INT" yaml:"INT"`
	CHA int `json:"CHA" yaml:"CHA"`
	MAG int `json:"MAG" yaml:"MAG"`
}

// Combatant is one side's combat record.
type Combatant struct {
	Name  string `json:"name"`
	Stats Stats  `json:"stats"`

	HP        int `json:"hp"`
	MaxHP     int `json:"maxHp"`
	Morale    int `json:"morale"`
	MaxMorale int `json:"maxMorale"`
	Energy    int `json:"energy"`
	MaxEnergy int `json:"maxEnergy"`
	AP        int `json:"ap"`

	Hand        []Card `json:"hand"`
	DrawPile    []Card `json:"drawPile"`
	DiscardPile []Card `json:"discardPile"`
	Stack       []Card `json:"cardStack"` // equipped apparel, weapons and buffs

	Effects     []StatusEffect `json:"statusEffects"`
	RoundPoints int            `json:"roundPoints"`
}

// NewCombatant builds a combatant at full health using the balance defaults.
// AP = max(MinAP, floor(END/5)+1); energy = MAG. Missing END/MAG use the
// balance defaults.
func NewCombatant(name string, stats Stats, b Balance) Combatant {
	end := stats.END
	if end <= 0 {
		end = b.DefaultEND
	}
	mag := stats.MAG
	if mag <= 0 {
		mag = b.DefaultMAG
	}
	ap := end/5 + 1
	if ap < b.MinAP {
		ap = b.MinAP
	}
	return Combatant{
		Name:      name,
		Stats:     stats,
		HP:        b.HPMax,
		MaxHP:     b.HPMax,
		Morale:    b.MoraleMax,
		MaxMorale: b.MoraleMax,
		Energy:    mag,
		MaxEnergy: mag,
		AP:        ap,
	}
}

// Alive reports whether the combatant still has hit points.
func (c *Combatant) Alive() bool { return c.HP > 0 }

// Heal restores hit points up to MaxHP and returns the amount restored.
func (c *Combatant) Heal(n int) int {
	before := c.HP
	c.HP = min(c.MaxHP, c.HP+n)
	return c.HP - before
}

// RestoreEnergy restores energy up to MaxEnergy and returns the amount restored.
func (c *Combatant) RestoreEnergy(n int) int {
	before := c.Energy
	c.Energy = min(c.MaxEnergy, c.Energy+n)
	return c.Energy - before
}

// AdjustMorale changes morale by n, clamped to [0, MaxMorale].
func (c *Combatant) AdjustMorale(n int) {
	c.Morale = max(0, min(c.MaxMorale, c.Morale+n))
}

// Draw moves up to n cards from the draw pile into the hand.
func (c *Combatant) Draw(n int) int {
	n = min(n, len(c.DrawPile))
	c.Hand = append(c.Hand, c.DrawPile[:n]...)
	c.DrawPile = c.DrawPile[n:]
	return n
}

// RemoveFromHand removes the first hand card with the given name.
func (c *Combatant) RemoveFromHand(name string) (Card, bool) {
	for i, card := range c.Hand {
		if card.Name == name {
			c.Hand = append(c.Hand[:i], c.Hand[i+1:]...)
			return card, true
		}
	}
	return Card{}, false
}

// ATK returns the summed ATK of the equipped stack.
func (c *Combatant) ATK() int {
	total := 0
	for _, card := range c.Stack {
		total += card.ATK
	}
	return total
}

// DEF returns the summed DEF of the equipped stack.
func (c *Combatant) DEF() int {
	total := 0
	for _, card := range c.Stack {
		total += card.DEF
	}
	return total
}

// ---------------------------------------------------------------------------
// Rolls
// ---------------------------------------------------------------------------

// Modifier is one named contribution to a roll total.
type Modifier struct {
	Source string `json:"source"`
	Value  int    `json:"value"`
}

// Roll is a d20 result with its modifiers. Treat it as immutable once built.
type Roll struct {
	Raw       int        `json:"raw"`
	Modifiers []Modifier `json:"modifiers,omitempty"`
	Total     int        `json:"total"`
}

// NewRoll builds a Roll; zero-valued modifiers are dropped.
func NewRoll(raw int, mods ...Modifier) Roll {
	r := Roll{Raw: raw, Total: raw}
	for _, m := range mods {
		if m.Value == 0 {
			continue
		}
		r.Modifiers = append(r.Modifiers, m)
		r.Total += m.Value
	}
	return r
}

// Bonus returns Total - Raw.
func (r Roll) Bonus() int { return r.Total - r.Raw }

// IsNat1 reports a natural 1.
func (r Roll) IsNat1() bool { return r.Raw == 1 }

// IsNat20 reports a natural 20.
func (r Roll) IsNat20() bool { return r.Raw == 20 }

// ---------------------------------------------------------------------------
// Action stacks
// ---------------------------------------------------------------------------

// Core action names understood by the resolver.
const (
	ActionAttack      = "Attack"
	ActionGuard       = "Guard"
	ActionRest        = "Rest"
	ActionFlee        = "Flee"
	ActionTalk        = "Talk"
	ActionInvestigate = "Investigate"
	ActionUse         = "Use"
)

// StackModifier is a card (or synthetic bonus) stacked on a core action.
type StackModifier struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Bonus  int    `json:"bonus,omitempty"`    // flat bonus that applies to any roll of the stack
	Text   string `json:"modifier,omitempty"` // keyword text, e.g. "+2 to Attack rolls"
	Effect string `json:"effect,omitempty"`
}

// ModifierFromCard converts a hand card into a stack modifier.
func ModifierFromCard(c Card) StackModifier {
	return StackModifier{Name: c.Name, Type: c.Type, Text: c.Modifier, Effect: c.Effect}
}

// ActionStack is a core action plus its modifiers.
type ActionStack struct {
	CoreAction string          `json:"coreAction"`
	Modifiers  []StackModifier `json:"modifiers"`
}

// IsAttack reports whether the stack resolves as a contested attack.
func (s ActionStack) IsAttack() bool { return s.CoreAction == ActionAttack }
