package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Outcome table
// ---------------------------------------------------------------------------

// OutcomeKind classifies a contested attack.
type OutcomeKind string

const (
	OutcomeCriticalHit   OutcomeKind = "CRITICAL_HIT"
	OutcomeCriticalMiss  OutcomeKind = "CRITICAL_MISS"
	OutcomeCriticalParry OutcomeKind = "CRITICAL_PARRY"
	OutcomeDevastating   OutcomeKind = "DEVASTATING"
	OutcomeStrongHit     OutcomeKind = "STRONG_HIT"
	OutcomeGlancingHit   OutcomeKind = "GLANCING_HIT"
	OutcomeClash         OutcomeKind = "CLASH"
	OutcomeDeflect       OutcomeKind = "DEFLECT"
	OutcomeParry         OutcomeKind = "PARRY"
)

// Outcome is one row of the outcome table plus the roll difference that
// selected it. A negative Multiplier means the attacker takes counter damage.
type Outcome struct {
	Kind           OutcomeKind `json:"kind"`
	Label          string      `json:"label"`
	Multiplier     float64     `json:"damageMultiplier"`
	BothTakeDamage int         `json:"bothTakeDamage,omitempty"`
	AllowCounter   bool        `json:"allowCounter,omitempty"`
	Diff           int         `json:"diff"`
}

var outcomeTable = map[OutcomeKind]Outcome{
	OutcomeCriticalHit:   {Kind: OutcomeCriticalHit, Label: "Critical Hit!", Multiplier: 2},
	OutcomeCriticalMiss:  {Kind: OutcomeCriticalMiss, Label: "Critical Miss!", Multiplier: -0.5},
	OutcomeCriticalParry: {Kind: OutcomeCriticalParry, Label: "Perfect Parry!", Multiplier: -0.25, AllowCounter: true},
	OutcomeDevastating:   {Kind: OutcomeDevastating, Label: "Devastating!", Multiplier: 1.5},
	OutcomeStrongHit:     {Kind: OutcomeStrongHit, Label: "Strong Hit", Multiplier: 1},
	OutcomeGlancingHit:   {Kind: OutcomeGlancingHit, Label: "Glancing Hit", Multiplier: 0.5},
	OutcomeClash:         {Kind: OutcomeClash, Label: "Clash!", BothTakeDamage: 1},
	OutcomeDeflect:       {Kind: OutcomeDeflect, Label: "Deflected"},
	OutcomeParry:         {Kind: OutcomeParry, Label: "Parried!", AllowCounter: true},
}

// IsHit reports whether the defender takes damage.
func (o Outcome) IsHit() bool { return o.Multiplier > 0 }

// CombatOutcome classifies an attack roll against a defense roll.
// Naturals are checked before the difference.
func CombatOutcome(attack, defense Roll) Outcome {
	diff := attack.Total - defense.Total
	pick := func(k OutcomeKind) Outcome {
		o := outcomeTable[k]
		o.Diff = diff
		return o
	}
	switch {
	case attack.IsNat20():
		return pick(OutcomeCriticalHit)
	case attack.IsNat1():
		return pick(OutcomeCriticalMiss)
	case defense.IsNat20() && diff <= 0:
		return pick(OutcomeCriticalParry)
	case diff >= 10:
		return pick(OutcomeDevastating)
	case diff >= 5:
		return pick(OutcomeStrongHit)
	case diff >= 1:
		return pick(OutcomeGlancingHit)
	case diff == 0:
		return pick(OutcomeClash)
	case diff >= -4:
		return pick(OutcomeDeflect)
	default:
		return pick(OutcomeParry)
	}
}

// ---------------------------------------------------------------------------
// Rolls
// ---------------------------------------------------------------------------

var skillKeywords = map[string][]string{
	"attack":      {"attack", "combat", "melee", "strike", "offensive"},
	"defense":     {"defense", "defend", "parry", "block", "defensive"},
	"talk":        {"talk", "social", "charisma", "persuade", "diplomacy", "speech"},
	"initiative":  {"initiative", "speed", "first"},
	"investigate": {"investigate", "search", "discover", "perception"},
	"flee":        {"flee", "escape", "evasion", "retreat"},
	"magic":       {"magic", "spell", "cast", "arcane", "psionic"},
}

var plusBonus = regexp.MustCompile(`\+(\d+)`)

// SkillMod sums the skill modifiers of a stack that apply to action.
// A modifier with a flat Bonus and no text applies to every roll.
func SkillMod(stack ActionStack, action string) int {
	keywords, ok := skillKeywords[action]
	if !ok {
		keywords = []string{action}
	}
	total := 0
	for _, m := range stack.Modifiers {
		if m.Type != CardSkill {
			continue
		}
		if m.Text == "" {
			total += m.Bonus
			continue
		}
		match := plusBonus.FindStringSubmatch(m.Text)
		if match == nil {
			continue
		}
		lower := strings.ToLower(m.Text)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				n, _ := strconv.Atoi(match[1])
				total += n
				break
			}
		}
	}
	return total
}

// RollInitiative is d20 + AGI.
func RollInitiative(d Dice, c *Combatant) Roll {
	return NewRoll(d.D20(), Modifier{"AGI", c.Stats.AGI})
}

// RollAttack is d20 + STR + equipped ATK + skill + status.
func RollAttack(d Dice, attacker *Combatant, stack ActionStack) Roll {
	st := attacker.StatusModifiers()
	return NewRoll(d.D20(),
		Modifier{"STR", attacker.Stats.STR},
		Modifier{"ATK", attacker.ATK()},
		Modifier{"Skill", SkillMod(stack, "attack")},
		Modifier{"Status", st.ATK + st.Roll},
	)
}

// RollDefense is d20 + END + equipped DEF + parry + status.
func RollDefense(d Dice, defender *Combatant) Roll {
	parry := 0
	for _, c := range defender.Stack {
		parry += c.Parry
	}
	st := defender.StatusModifiers()
	return NewRoll(d.D20(),
		Modifier{"END", defender.Stats.END},
		Modifier{"DEF", defender.DEF()},
		Modifier{"Parry", parry},
		Modifier{"Status", st.DEF + st.Roll},
	)
}

// ---------------------------------------------------------------------------
// Damage
// ---------------------------------------------------------------------------

// Damage is the attacker-side damage computation.
type Damage struct {
	Base       int     `json:"base"`
	Multiplier float64 `json:"multiplier"`
	Final      int     `json:"final"`
}

// CalculateDamage is floor((ATK + STR) * multiplier), at least 1 on a hit.
func CalculateDamage(attacker *Combatant, o Outcome) Damage {
	base := attacker.ATK() + attacker.Stats.STR
	final := int(math.Floor(float64(base) * o.Multiplier))
	if o.Multiplier > 0 && final < 1 {
		final = 1
	}
	return Damage{Base: base, Multiplier: o.Multiplier, Final: final}
}

// DamageResult is what a target actually lost.
type DamageResult struct {
	Raw   int `json:"raw"`
	Armor int `json:"armor"`
	Final int `json:"final"`
	NewHP int `json:"newHp"`
}

// ApplyDamage reduces dmg by the target's equipped DEF (minimum 1), floors hp
// at 0 and clears until-hit statuses.
func ApplyDamage(target *Combatant, dmg int) DamageResult {
	armor := target.DEF()
	reduced := max(1, dmg-armor)
	target.HP = max(0, target.HP-reduced)
	target.onHit()
	return DamageResult{Raw: dmg, Armor: armor, Final: reduced, NewHP: target.HP}
}

// ---------------------------------------------------------------------------
// Contested combat
// ---------------------------------------------------------------------------

// SecondAttack is the off-hand strike of a dual-wielding attacker.
type SecondAttack struct {
	Weapon  string        `json:"weapon"`
	Attack  Roll          `json:"attack"`
	Outcome Outcome       `json:"outcome"`
	Damage  Damage        `json:"damage"`
	Hit     *DamageResult `json:"hit,omitempty"`
}

// CombatResult is the full record of one contested attack.
type CombatResult struct {
	Attack          Roll          `json:"attack"`
	Defense         Roll          `json:"defense"`
	Outcome         Outcome       `json:"outcome"`
	Damage          Damage        `json:"damage"`
	Hit             *DamageResult `json:"hit,omitempty"`     // damage to the defender
	Counter         *DamageResult `json:"counter,omitempty"` // damage to the attacker
	Second          *SecondAttack `json:"second,omitempty"`
	Reward          *Card         `json:"reward,omitempty"`
	Dropped         *Card         `json:"dropped,omitempty"`
	AttackerStunned bool          `json:"attackerStunned,omitempty"`
}

func oneHandedWeapons(c *Combatant) []Card {
	var out []Card
	for _, card := range c.Stack {
		if card.IsWeapon() && strings.Contains(card.Slot, "1H") {
			out = append(out, card)
		}
	}
	return out
}

// ResolveCombat rolls a contested attack and applies every consequence:
// damage, counter damage, clash damage, stun on a critical miss, reward
// cards on a critical hit or parry, and a possible item drop on a critical
// hit. Damage dealt is credited to RoundPoints.
func ResolveCombat(d Dice, attacker, defender *Combatant, stack ActionStack) CombatResult {
	weapons := oneHandedWeapons(attacker)

	res := CombatResult{
		Attack:  RollAttack(d, attacker, stack),
		Defense: RollDefense(d, defender),
	}
	res.Outcome = CombatOutcome(res.Attack, res.Defense)
	res.Damage = CalculateDamage(attacker, res.Outcome)

	if len(weapons) >= 2 {
		sec := SecondAttack{Weapon: weapons[1].Name, Attack: RollAttack(d, attacker, stack)}
		sec.Outcome = CombatOutcome(sec.Attack, res.Defense)
		sec.Damage = CalculateDamage(attacker, sec.Outcome)
		if sec.Outcome.IsHit() {
			hit := ApplyDamage(defender, sec.Damage.Final)
			sec.Hit = &hit
			attacker.RoundPoints += hit.Final
		}
		res.Second = &sec
	}

	switch {
	case res.Outcome.IsHit():
		hit := ApplyDamage(defender, res.Damage.Final)
		res.Hit = &hit
		attacker.RoundPoints += hit.Final
		if res.Outcome.Kind == OutcomeCriticalHit {
			reward := GenerateCriticalReward(d, RewardAttack, attacker)
			attacker.Hand = append(attacker.Hand, reward)
			res.Reward = &reward
			res.Dropped = dropItem(d, defender)
		}
	case res.Outcome.Multiplier < 0:
		counter := ApplyDamage(attacker, -res.Damage.Final)
		res.Counter = &counter
		defender.RoundPoints += counter.Final
		if res.Outcome.Kind == OutcomeCriticalMiss {
			attacker.ApplyStatus(StatusStunned, "Critical Counter")
			res.AttackerStunned = true
		}
		if res.Outcome.Kind == OutcomeCriticalParry {
			reward := GenerateCriticalReward(d, RewardDefense, defender)
			defender.Hand = append(defender.Hand, reward)
			res.Reward = &reward
		}
	case res.Outcome.BothTakeDamage > 0:
		hit := ApplyDamage(defender, res.Outcome.BothTakeDamage)
		counter := ApplyDamage(attacker, res.Outcome.BothTakeDamage)
		res.Hit, res.Counter = &hit, &counter
	}
	return res
}

// dropItem knocks an equipped item or apparel off the defender half the time.
func dropItem(d Dice, defender *Combatant) *Card {
	var idx []int
	for i, c := range defender.Stack {
		if (c.Type == CardItem || c.Type == CardApparel) && c.Subtype != SubtypeBuff {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 || d.Float64() >= 0.5 {
		return nil
	}
	i := idx[d.Intn(len(idx))]
	dropped := defender.Stack[i]
	defender.Stack = append(defender.Stack[:i], defender.Stack[i+1:]...)
	return &dropped
}

// CheckGameOver returns the winning side, or SideNone while both stand.
func CheckGameOver(player, opponent *Combatant) Side {
	if player.HP <= 0 {
		return SideOpponent
	}
	if opponent.HP <= 0 {
		return SidePlayer
	}
	return SideNone
}

// ---------------------------------------------------------------------------
// Non-combat actions
// ---------------------------------------------------------------------------

// ResolveRest restores 2 HP, 3 energy and 2 morale.
func ResolveRest(c *Combatant) {
	c.Heal(2)
	c.RestoreEnergy(3)
	c.AdjustMorale(2)
}

// ResolveGuard shields the combatant until it is next hit.
func ResolveGuard(c *Combatant, source string) {
	c.ApplyStatus(StatusShielded, source)
}

// FleeResult is the outcome of a flee attempt.
type FleeResult struct {
	Roll    Roll `json:"roll"`
	DC      int  `json:"dc"`
	Escaped bool `json:"escaped"`
}

// ResolveFlee rolls d20 + AGI (10 when unset) + skill against the flee DC.
// A failed attempt costs 2 morale.
func ResolveFlee(d Dice, c *Combatant, stack ActionStack, b Balance) FleeResult {
	agi := c.Stats.AGI
	if agi == 0 {
		agi = 10
	}
	r := NewRoll(d.D20(), Modifier{"AGI", agi}, Modifier{"Skill", SkillMod(stack, "flee")})
	res := FleeResult{Roll: r, DC: b.FleeDC, Escaped: r.Total >= b.FleeDC}
	if !res.Escaped {
		c.AdjustMorale(-2)
	}
	return res
}

// TalkOutcome classifies a social roll.
type TalkOutcome string

const (
	TalkSurrender TalkOutcome = "surrender"
	TalkSuccess   TalkOutcome = "success"
	TalkFailure   TalkOutcome = "failure"
	TalkBackfire  TalkOutcome = "backfire"
)

// TalkResult is the outcome of a Talk action.
type TalkResult struct {
	Roll         Roll        `json:"roll"`
	Against      Roll        `json:"against"`
	Outcome      TalkOutcome `json:"outcome"`
	MoraleDamage int         `json:"moraleDamage,omitempty"`
}

func socialStat(s Stats) int {
	in, ch := s.INT, s.CHA
	if in == 0 {
		in = 8
	}
	if ch == 0 {
		ch = 8
	}
	return int(math.Round(float64(in+ch) / 2))
}

// ResolveTalk rolls d20 + avg(INT, CHA) + skill against the target's d20 +
// avg(INT, CHA). A natural 20 or a 10-point margin breaks the target's morale
// entirely; a natural 1 or a 10-point deficit backfires.
func ResolveTalk(d Dice, owner, target *Combatant, stack ActionStack) TalkResult {
	raw := d.D20()
	res := TalkResult{
		Roll:    NewRoll(raw, Modifier{"Social", socialStat(owner.Stats)}, Modifier{"Skill", SkillMod(stack, "talk")}),
		Against: NewRoll(d.D20(), Modifier{"Social", socialStat(target.Stats)}),
	}
	talk, against := res.Roll.Total, res.Against.Total
	switch {
	case raw == 20 || talk >= against+10:
		res.Outcome = TalkSurrender
		res.MoraleDamage = target.Morale
		target.Morale = 0
	case talk > against:
		res.Outcome = TalkSuccess
		res.MoraleDamage = max(1, (talk-against)/2)
		target.AdjustMorale(-res.MoraleDamage)
		owner.AdjustMorale(1)
	case raw == 1 || talk <= against-10:
		res.Outcome = TalkBackfire
		owner.AdjustMorale(-3)
		target.AdjustMorale(2)
		target.Draw(1)
	default:
		res.Outcome = TalkFailure
	}
	return res
}
