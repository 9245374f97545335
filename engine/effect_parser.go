package engine

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// effectLexer splits free-form card effect text. Verbs and units are their
// own token types so the grammar can anchor on them; everything else is
// carried through as plain words or punctuation.
var effectLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Verb", Pattern: `(?i)\b(?:deal|drain|heal|restore|draw)\b`},
	{Name: "Unit", Pattern: `(?i)\b(?:hp|energy|morale)\b`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Word", Pattern: `[A-Za-z_'][A-Za-z0-9_']*`},
	{Name: "Punct", Pattern: `[^\sA-Za-z0-9_']`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type effectExpr struct {
	Clauses []*effectClause `parser:"@@*"`
}

type effectClause struct {
	Verb  *verbClause  `parser:"(  @@"`
	Boost *boostClause `parser:" | @@"`
	Other string       `parser:" | @(Unit | Int | Word | Punct) )"`
}

// verbClause: "Deal 5", "Restore 4 HP", "Draw 2".
type verbClause struct {
	Verb   string `parser:"@Verb"`
	Amount int    `parser:"@Int?"`
	Unit   string `parser:"@Unit?"`
}

// boostClause: "+3 ATK this round".
type boostClause struct {
	Amount int    `parser:"'+' @Int"`
	Stat   string `parser:"@Word"`
}

var effectParser = participle.MustBuild[effectExpr](
	participle.Lexer(effectLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(3),
)

// StatusTarget is a status an effect applies, and to whom.
type StatusTarget struct {
	ID     StatusID `json:"id"`
	OnSelf bool     `json:"onSelf"`
}

// Effect is the mechanical reading of a card effect string.
type Effect struct {
	Damage        int            `json:"damage,omitempty"`
	HealHP        int            `json:"healHp,omitempty"`
	RestoreEnergy int            `json:"restoreEnergy,omitempty"`
	RestoreMorale int            `json:"restoreMorale,omitempty"`
	Draw          int            `json:"draw,omitempty"`
	ATKBoost      int            `json:"atkBoost,omitempty"`
	DEFBoost      int            `json:"defBoost,omitempty"`
	Statuses      []StatusTarget `json:"statuses,omitempty"`
	Cure          bool           `json:"cure,omitempty"`
}

// Empty reports whether nothing mechanical was recognised.
func (e Effect) Empty() bool {
	return e.Damage == 0 && e.HealHP == 0 && e.RestoreEnergy == 0 && e.RestoreMorale == 0 &&
		e.Draw == 0 && e.ATKBoost == 0 && e.DEFBoost == 0 && len(e.Statuses) == 0 && !e.Cure
}

var statusKeywords = []struct {
	words  []string
	id     StatusID
	onSelf bool
}{
	{[]string{"stun"}, StatusStunned, false},
	{[]string{"poison"}, StatusPoisoned, false},
	{[]string{"burn", "ignite"}, StatusBurning, false},
	{[]string{"bleed"}, StatusBleeding, false},
	{[]string{"weaken"}, StatusWeakened, false},
	{[]string{"shield", "protect"}, StatusShielded, true},
	{[]string{"enrage", "fury"}, StatusEnraged, true},
	{[]string{"fortify", "bolster"}, StatusFortified, true},
	{[]string{"inspire"}, StatusInspired, true},
	{[]string{"regen"}, StatusRegenerating, true},
}

// ParseEffect reads an effect string such as "Deal 4 damage and Poison" or
// "Restore 5 HP". Numeric clauses come from the grammar; status keywords are
// matched anywhere in the text. Text the grammar rejects still yields its
// status keywords, along with the parse error.
func ParseEffect(s string) (Effect, error) {
	var eff Effect
	if strings.TrimSpace(s) == "" {
		return eff, nil
	}

	expr, err := effectParser.ParseString("", s)
	if err == nil {
		for _, c := range expr.Clauses {
			switch {
			case c.Verb != nil:
				eff.applyVerb(c.Verb)
			case c.Boost != nil:
				switch strings.ToUpper(c.Boost.Stat) {
				case "ATK":
					eff.ATKBoost += c.Boost.Amount
				case "DEF":
					eff.DEFBoost += c.Boost.Amount
				}
			}
		}
	} else {
		err = fmt.Errorf("parse effect %q: %w", s, err)
	}

	lower := strings.ToLower(s)
	for _, kw := range statusKeywords {
		for _, w := range kw.words {
			if strings.Contains(lower, w) {
				eff.Statuses = append(eff.Statuses, StatusTarget{ID: kw.id, OnSelf: kw.onSelf})
				break
			}
		}
	}
	if strings.Contains(lower, "cure") || strings.Contains(lower, "cleanse") || strings.Contains(lower, "purify") {
		eff.Cure = true
	}
	return eff, err
}

func (e *Effect) applyVerb(v *verbClause) {
	if v.Amount == 0 {
		return
	}
	unit := strings.ToLower(v.Unit)
	switch strings.ToLower(v.Verb) {
	case "deal":
		e.Damage += v.Amount
	case "drain":
		e.Damage += v.Amount
		e.HealHP += v.Amount
	case "heal":
		e.HealHP += v.Amount
	case "draw":
		e.Draw += v.Amount
	case "restore":
		switch unit {
		case "hp":
			e.HealHP += v.Amount
		case "energy":
			e.RestoreEnergy += v.Amount
		case "morale":
			e.RestoreMorale += v.Amount
		}
	}
}

// ApplyEffect applies a parsed effect. owner receives heals, draws, boosts and
// self statuses; target receives damage and hostile statuses. target may be
// nil for self-only effects. Returns a log line per applied part.
func ApplyEffect(e Effect, owner, target *Combatant, source string) []string {
	var log []string
	if e.Damage > 0 && target != nil {
		res := ApplyDamage(target, e.Damage)
		log = append(log, fmt.Sprintf("%s deals %d damage", source, res.Final))
	}
	if e.HealHP > 0 {
		log = append(log, fmt.Sprintf("%s heals %d HP", source, owner.Heal(e.HealHP)))
	}
	if e.RestoreEnergy > 0 {
		log = append(log, fmt.Sprintf("%s restores %d Energy", source, owner.RestoreEnergy(e.RestoreEnergy)))
	}
	if e.RestoreMorale > 0 {
		owner.AdjustMorale(e.RestoreMorale)
		log = append(log, fmt.Sprintf("%s restores %d Morale", source, e.RestoreMorale))
	}
	if e.Draw > 0 {
		log = append(log, fmt.Sprintf("%s draws %d card(s)", source, owner.Draw(e.Draw)))
	}
	if e.ATKBoost > 0 || e.DEFBoost > 0 {
		owner.Stack = append(owner.Stack, Card{Type: CardItem, Subtype: SubtypeBuff, Name: source, ATK: e.ATKBoost, DEF: e.DEFBoost})
		log = append(log, fmt.Sprintf("%s grants +%d ATK / +%d DEF this round", source, e.ATKBoost, e.DEFBoost))
	}
	for _, st := range e.Statuses {
		recipient := target
		who := "target"
		if st.OnSelf {
			recipient, who = owner, "self"
		}
		if recipient != nil {
			recipient.ApplyStatus(st.ID, source)
			log = append(log, fmt.Sprintf("%s applies %s to %s", source, st.ID, who))
		}
	}
	if e.Cure {
		owner.Cure()
		log = append(log, source+" cures negative effects")
	}
	return log
}

// ClearBuffs removes round-scoped buff cards from the equipped stack.
func (c *Combatant) ClearBuffs() {
	kept := c.Stack[:0]
	for _, card := range c.Stack {
		if card.Subtype != SubtypeBuff {
			kept = append(kept, card)
		}
	}
	c.Stack = kept
}
