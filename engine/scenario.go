package engine

// DrawScenario makes a weighted pick: r is uniform in [0, total) and the
// table is walked until the running weight exceeds r. The first card is the
// fallback for an empty or zero-weight walk.
func DrawScenario(d Dice, cards []ScenarioCard) ScenarioCard {
	if len(cards) == 0 {
		cards = DefaultScenarios()
	}
	total := 0.0
	for _, c := range cards {
		total += c.Weight
	}
	r := d.Float64() * total
	cumulative := 0.0
	for _, c := range cards {
		cumulative += c.Weight
		if cumulative > r {
			return c
		}
	}
	return cards[0]
}

// ScenarioBonus records what a no-threat scenario handed out.
type ScenarioBonus struct {
	Type         string `json:"type"`
	Amount       int    `json:"amount,omitempty"`
	Card         *Card  `json:"card,omitempty"`
	Target       Side   `json:"target,omitempty"`
	PlayerGain   int    `json:"playerGain,omitempty"`
	OpponentGain int    `json:"opponentGain,omitempty"`
}

// EndThreatResult is the outcome of the round-end scenario draw.
type EndThreatResult struct {
	Scenario ScenarioCard     `json:"scenario"`
	Threat   *ThreatEncounter `json:"threat,omitempty"`
	Bonus    *ScenarioBonus   `json:"bonusApplied,omitempty"`
}

func scenarioLoot(d Dice, cat Catalog) Card {
	var pool []Card
	for _, c := range cat.Supplies {
		if c.IsConsumable() {
			pool = append(pool, c)
		}
	}
	if len(pool) > 0 {
		return pool[d.Intn(len(pool))]
	}
	return Card{
		Type:    CardItem,
		Subtype: SubtypeConsumable,
		Name:    "Found Supplies",
		Rarity:  RarityUncommon,
		Effect:  "Restore 5 HP",
	}
}

// CheckEndThreat draws a scenario card. A threat scenario spawns a threat at
// round + EndThreatOffset + threatBonus aimed at the round loser (50/50 on a
// tie). Other scenarios may carry a loot, heal or energy bonus.
func CheckEndThreat(d Dice, cat Catalog, round int, winner Side, player, opponent *Combatant, b Balance) EndThreatResult {
	res := EndThreatResult{Scenario: DrawScenario(d, cat.Scenarios)}
	sc := res.Scenario

	if sc.Effect == ScenarioThreat {
		t := CreateThreatEncounter(cat, round+b.EndThreatOffset+sc.ThreatBonus)
		if winner == SideNone {
			t.Target = coinFlip(d, SidePlayer, SideOpponent)
		} else {
			t.Target = winner.Other()
		}
		res.Threat = &t
		return res
	}

	switch sc.Bonus {
	case BonusLoot:
		loot := scenarioLoot(d, cat)
		target := winner
		if target == SideNone {
			target = SidePlayer
		}
		recipient := player
		if target == SideOpponent {
			recipient = opponent
		}
		recipient.Hand = append(recipient.Hand, loot)
		res.Bonus = &ScenarioBonus{Type: BonusLoot, Card: &loot, Target: target}
	case BonusHeal:
		amount := sc.BonusAmount
		if amount == 0 {
			amount = 3
		}
		res.Bonus = &ScenarioBonus{
			Type:         BonusHeal,
			Amount:       amount,
			PlayerGain:   player.Heal(amount),
			OpponentGain: opponent.Heal(amount),
		}
	case BonusEnergy:
		amount := sc.BonusAmount
		if amount == 0 {
			amount = 2
		}
		res.Bonus = &ScenarioBonus{
			Type:         BonusEnergy,
			Amount:       amount,
			PlayerGain:   player.RestoreEnergy(amount),
			OpponentGain: opponent.RestoreEnergy(amount),
		}
	}
	return res
}
