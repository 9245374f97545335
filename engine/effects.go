package engine

import "fmt"

// StatusID names a status effect.
type StatusID string

const (
	StatusStunned      StatusID = "stunned"
	StatusPoisoned     StatusID = "poisoned"
	StatusShielded     StatusID = "shielded"
	StatusWeakened     StatusID = "weakened"
	StatusEnraged      StatusID = "enraged"
	StatusBurning      StatusID = "burning"
	StatusBleeding     StatusID = "bleeding"
	StatusRegenerating StatusID = "regenerating"
	StatusFortified    StatusID = "fortified"
	StatusInspired     StatusID = "inspired"
)

// DurationType says how a status effect expires.
type DurationType uint8

const (
	DurationTurns    DurationType = iota // ticks down once per round
	DurationUntilHit                     // removed the next time the bearer takes damage
)

// StatusDef is the static definition of a status effect.
type StatusDef struct {
	ID          StatusID
	Name        string
	Description string
	Duration    int
	Expires     DurationType
	ATKBonus    int
	DEFBonus    int
	RollBonus   int
	TurnStartHP int // applied at round start; negative = damage
}

var statusDefs = map[StatusID]StatusDef{
	StatusStunned:      {ID: StatusStunned, Name: "Stunned", Description: "Skip next action", Duration: 1},
	StatusPoisoned:     {ID: StatusPoisoned, Name: "Poisoned", Description: "-2 HP at turn start", Duration: 3, TurnStartHP: -2},
	StatusShielded:     {ID: StatusShielded, Name: "Shielded", Description: "+3 DEF", Duration: 1, Expires: DurationUntilHit, DEFBonus: 3},
	StatusWeakened:     {ID: StatusWeakened, Name: "Weakened", Description: "-2 to all rolls", Duration: 2, RollBonus: -2},
	StatusEnraged:      {ID: StatusEnraged, Name: "Enraged", Description: "+3 ATK, -2 DEF", Duration: 2, ATKBonus: 3, DEFBonus: -2},
	StatusBurning:      {ID: StatusBurning, Name: "Burning", Description: "-3 HP at turn start", Duration: 2, TurnStartHP: -3},
	StatusBleeding:     {ID: StatusBleeding, Name: "Bleeding", Description: "-1 HP at turn start", Duration: 4, TurnStartHP: -1},
	StatusRegenerating: {ID: StatusRegenerating, Name: "Regenerating", Description: "+2 HP at turn start", Duration: 3, TurnStartHP: 2},
	StatusFortified:    {ID: StatusFortified, Name: "Fortified", Description: "+2 DEF, +1 ATK", Duration: 2, ATKBonus: 1, DEFBonus: 2},
	StatusInspired:     {ID: StatusInspired, Name: "Inspired", Description: "+2 to all rolls", Duration: 2, RollBonus: 2},
}

// negativeStatuses are removed by cure/cleanse effects.
var negativeStatuses = []StatusID{StatusStunned, StatusPoisoned, StatusBurning, StatusBleeding, StatusWeakened}

// LookupStatus returns the definition for id.
func LookupStatus(id StatusID) (StatusDef, bool) {
	def, ok := statusDefs[id]
	return def, ok
}

// StatusEffect is an active status on a combatant.
type StatusEffect struct {
	ID             StatusID     `json:"id"`
	TurnsRemaining int          `json:"turnsRemaining"`
	Expires        DurationType `json:"durationType"`
	Source         string       `json:"source,omitempty"`
}

// StatusMods is the summed contribution of active statuses.
type StatusMods struct {
	ATK  int
	DEF  int
	Roll int
}

// ApplyStatus adds a status, or refreshes its duration if already present.
// Unknown ids are rejected.
func (c *Combatant) ApplyStatus(id StatusID, source string) bool {
	def, ok := statusDefs[id]
	if !ok {
		return false
	}
	for i := range c.Effects {
		if c.Effects[i].ID == id {
			c.Effects[i].TurnsRemaining = def.Duration
			return true
		}
	}
	c.Effects = append(c.Effects, StatusEffect{
		ID:             id,
		TurnsRemaining: def.Duration,
		Expires:        def.Expires,
		Source:         source,
	})
	return true
}

// RemoveStatus drops a status if present.
func (c *Combatant) RemoveStatus(id StatusID) {
	for i := range c.Effects {
		if c.Effects[i].ID == id {
			c.Effects = append(c.Effects[:i], c.Effects[i+1:]...)
			return
		}
	}
}

// HasStatus reports whether the status is active.
func (c *Combatant) HasStatus(id StatusID) bool {
	for _, e := range c.Effects {
		if e.ID == id {
			return true
		}
	}
	return false
}

// StatusModifiers sums ATK/DEF/roll contributions of active statuses.
func (c *Combatant) StatusModifiers() StatusMods {
	var m StatusMods
	for _, e := range c.Effects {
		def := statusDefs[e.ID]
		m.ATK += def.ATKBonus
		m.DEF += def.DEFBonus
		m.Roll += def.RollBonus
	}
	return m
}

// ApplyTurnStartEffects applies per-round hp effects (poison, regen, ...)
// and returns one message per effect that fired.
func (c *Combatant) ApplyTurnStartEffects() []string {
	var msgs []string
	for _, e := range c.Effects {
		def := statusDefs[e.ID]
		switch {
		case def.TurnStartHP < 0:
			c.HP = max(0, c.HP+def.TurnStartHP)
			msgs = append(msgs, fmt.Sprintf("%s deals %d damage", def.Name, -def.TurnStartHP))
		case def.TurnStartHP > 0:
			c.Heal(def.TurnStartHP)
			msgs = append(msgs, fmt.Sprintf("%s restores %d HP", def.Name, def.TurnStartHP))
		}
	}
	return msgs
}

// TickStatus decrements turn-based statuses and drops expired ones.
func (c *Combatant) TickStatus() {
	kept := c.Effects[:0]
	for _, e := range c.Effects {
		if e.Expires == DurationTurns {
			e.TurnsRemaining--
			if e.TurnsRemaining <= 0 {
				continue
			}
		}
		kept = append(kept, e)
	}
	c.Effects = kept
}

// onHit drops until-hit statuses.
func (c *Combatant) onHit() {
	kept := c.Effects[:0]
	for _, e := range c.Effects {
		if e.Expires != DurationUntilHit {
			kept = append(kept, e)
		}
	}
	c.Effects = kept
}

// Cure removes all negative statuses.
func (c *Combatant) Cure() {
	for _, id := range negativeStatuses {
		c.RemoveStatus(id)
	}
}
