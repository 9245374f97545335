package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/skirmish/engine"
	"github.com/jason-s-yu/skirmish/internal/narration"
	"github.com/sirupsen/logrus"
)

// Start begins the match: GAME_START, then round 1 up to INITIATIVE.
// ctx bounds background narration and persistence for the whole match.
func (m *Match) Start(ctx context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.State.Phase != PhaseGameStart || m.State.Round != 0 {
		return ErrWrongPhase
	}
	if ctx != nil {
		m.ctx = ctx
	}
	m.startedAt = timeNow()
	m.log.WithField("seed", m.Seed).Info("match started")
	m.fireEvent(GameEvent{Type: EventPhaseChanged})
	m.narrate(narration.TriggerGameStart, narration.Context{})

	m.State.Round = 1
	m.beginRound()
	return nil
}

// beginRound resets per-round state, refills hands and moves through
// ROUND_START into INITIATIVE. Assumes lock is held by caller.
func (m *Match) beginRound() {
	for _, s := range []engine.Side{engine.SidePlayer, engine.SideOpponent} {
		c := m.combatant(s)
		c.ClearBuffs()
		c.RoundPoints = 0
		if need := m.balance.HandSize - len(c.Hand); need > 0 {
			c.Draw(need)
		}
	}
	m.State.Initiative = nil
	m.State.ActionBar = nil
	m.State.BeginningThreats = nil
	m.State.ThreatResults = nil
	m.State.EndThreat = nil
	m.State.RoundWinner = engine.SideNone
	m.State.Talk = TalkState{}
	clear(m.defense)

	m.setPhase(PhaseRoundStart)
	m.narrate(narration.TriggerRoundStart, narration.Context{})
	m.setPhase(PhaseInitiative)
}

// startNextRound runs between rounds: game-over check, status ticks and
// turn-start effects, a second game-over check, then the next round.
// Assumes lock is held by caller.
func (m *Match) startNextRound() {
	if w := m.winnerNow(); w != engine.SideNone {
		m.endGame(w, "defeat")
		return
	}
	for _, s := range []engine.Side{engine.SidePlayer, engine.SideOpponent} {
		c := m.combatant(s)
		c.TickStatus()
		for _, line := range c.ApplyTurnStartEffects() {
			m.log.WithField("side", s).Debug(line)
		}
	}
	if w := m.winnerNow(); w != engine.SideNone {
		m.endGame(w, "defeat")
		return
	}
	m.State.Round++
	m.beginRound()
}

// RollInitiative rolls d20 + AGI for both sides, builds the action bar and
// spawns beginning threats for natural 1s.
func (m *Match) RollInitiative() (Initiative, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhaseInitiative); err != nil {
		return Initiative{}, err
	}

	ini := Initiative{InitiativeRolls: engine.InitiativeRolls{
		Player:   engine.RollInitiative(m.dice, &m.State.Player),
		Opponent: engine.RollInitiative(m.dice, &m.State.Opponent),
	}}
	switch {
	case ini.Player.Total > ini.Opponent.Total:
		ini.Winner = engine.SidePlayer
	case ini.Opponent.Total > ini.Player.Total:
		ini.Winner = engine.SideOpponent
	case m.dice.Float64() < 0.5:
		ini.Winner = engine.SidePlayer
	default:
		ini.Winner = engine.SideOpponent
	}

	winner, loser := m.combatant(ini.Winner), m.combatant(ini.Winner.Other())
	wPos, lPos := interleave(winner.AP, loser.AP)
	if ini.Winner == engine.SidePlayer {
		ini.PlayerPositions, ini.OpponentPositions = wPos, lPos
	} else {
		ini.PlayerPositions, ini.OpponentPositions = lPos, wPos
	}
	m.State.ActionBar = buildBar(ini)
	m.State.Initiative = &ini
	m.fireEvent(GameEvent{Type: EventInitiative, Side: ini.Winner, Payload: map[string]any{"initiative": ini}})

	m.State.BeginningThreats = engine.CheckNat1Threats(m.catalog, m.State.Round, ini.InitiativeRolls, m.balance)
	if len(m.State.BeginningThreats) > 0 {
		for _, t := range m.State.BeginningThreats {
			m.fireEvent(GameEvent{Type: EventThreatSpawned, Side: t.Target, Payload: map[string]any{"threat": t}})
			m.narrate(narration.TriggerEncounterReveal, narration.Context{Threat: t.Name})
		}
		m.setPhase(PhaseThreatResponse)
	} else {
		m.setPhase(PhasePlacement)
	}
	return ini, nil
}

// interleave hands out bar positions 1..n alternately, winner first, until
// both sides have their AP worth.
func interleave(winnerAP, loserAP int) (winner, loser []int) {
	pos := 1
	for len(winner) < winnerAP || len(loser) < loserAP {
		if len(winner) < winnerAP {
			winner = append(winner, pos)
			pos++
		}
		if len(loser) < loserAP {
			loser = append(loser, pos)
			pos++
		}
	}
	return winner, loser
}

func buildBar(ini Initiative) []Position {
	total := len(ini.PlayerPositions) + len(ini.OpponentPositions)
	owner := make(map[int]engine.Side, total)
	for _, p := range ini.PlayerPositions {
		owner[p] = engine.SidePlayer
	}
	for _, p := range ini.OpponentPositions {
		owner[p] = engine.SideOpponent
	}
	bar := make([]Position, total)
	for i := range bar {
		bar[i] = Position{Index: i + 1, Owner: owner[i+1], State: PositionEmpty}
	}
	return bar
}

// DefendThreat commits a hand card to side's defense against the current
// threat. Each side may wear up to ThreatResponseAP cards.
func (m *Match) DefendThreat(side engine.Side, cardName string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhaseThreatResponse, PhaseEndThreat); err != nil {
		return err
	}
	if !m.threatened(side) {
		return ErrNotThreatened
	}
	if len(m.defense[side]) >= m.balance.ThreatResponseAP {
		return ErrNoPosition
	}
	c := m.combatant(side)
	card, ok := c.RemoveFromHand(cardName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCard, cardName)
	}
	m.defense[side] = append(m.defense[side], card)
	return nil
}

// threatened reports whether a live threat targets side. Assumes lock is
// held by caller.
func (m *Match) threatened(side engine.Side) bool {
	if m.State.Phase == PhaseEndThreat {
		return m.State.EndThreat != nil && m.State.EndThreat.Threat != nil && m.State.EndThreat.Threat.Target == side
	}
	for _, t := range m.State.BeginningThreats {
		if t.Target == side {
			return true
		}
	}
	return false
}

// ResolveThreats fights the beginning threats with whatever defense has been
// committed, then moves to PLACEMENT.
func (m *Match) ResolveThreats() ([]engine.ThreatResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhaseThreatResponse); err != nil {
		return nil, err
	}
	results := m.resolveBeginningThreats()
	return results, nil
}

// SkipThreatResponse drops any committed defense back into the hands and
// resolves the beginning threats undefended.
func (m *Match) SkipThreatResponse() ([]engine.ThreatResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhaseThreatResponse); err != nil {
		return nil, err
	}
	m.returnDefense()
	return m.resolveBeginningThreats(), nil
}

// returnDefense puts uncommitted defense cards back. Assumes lock is held.
func (m *Match) returnDefense() {
	for side, cards := range m.defense {
		c := m.combatant(side)
		c.Hand = append(c.Hand, cards...)
	}
	clear(m.defense)
}

// resolveBeginningThreats assumes lock is held by caller.
func (m *Match) resolveBeginningThreats() []engine.ThreatResult {
	var results []engine.ThreatResult
	for _, t := range m.State.BeginningThreats {
		res := engine.ResolveThreatCombat(m.dice, t, m.combatant(t.Target), m.defense[t.Target], engine.ThreatBeginning)
		delete(m.defense, t.Target)
		results = append(results, res)
		m.fireEvent(GameEvent{Type: EventThreatResolved, Side: t.Target, Payload: map[string]any{"result": res}})
	}
	m.State.ThreatResults = append(m.State.ThreatResults, results...)
	m.State.BeginningThreats = nil

	if w := m.winnerNow(); w != engine.SideNone {
		m.endGame(w, "defeat")
		return results
	}
	m.setPhase(PhasePlacement)
	return results
}

var coreActions = map[string]bool{
	engine.ActionAttack:      true,
	engine.ActionGuard:       true,
	engine.ActionRest:        true,
	engine.ActionFlee:        true,
	engine.ActionTalk:        true,
	engine.ActionInvestigate: true,
	engine.ActionUse:         true,
}

// PlaceAction puts a core action plus hand cards on side's next free
// position.
func (m *Match) PlaceAction(side engine.Side, action string, modifiers ...string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhasePlacement); err != nil {
		return err
	}
	return m.placeAction(side, action, modifiers)
}

// placeAction assumes lock is held by caller.
func (m *Match) placeAction(side engine.Side, action string, modifiers []string) error {
	return m.placeAt(side, m.nextFree(side), action, modifiers)
}

// placeAt fills pos with action backed by the named hand cards. Assumes
// lock is held by caller.
func (m *Match) placeAt(side engine.Side, pos *Position, action string, modifiers []string) error {
	if !coreActions[action] {
		return fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
	if pos == nil || pos.Owner != side || pos.State != PositionEmpty {
		return ErrNoPosition
	}

	c := m.combatant(side)
	var cards []engine.Card
	for _, name := range modifiers {
		card, ok := c.RemoveFromHand(name)
		if !ok {
			c.Hand = append(c.Hand, cards...)
			return fmt.Errorf("%w: %s", ErrUnknownCard, name)
		}
		cards = append(cards, card)
	}

	stack := engine.ActionStack{CoreAction: action}
	for _, card := range cards {
		stack.Modifiers = append(stack.Modifiers, engine.ModifierFromCard(card))
	}
	pos.Stack = &stack
	pos.Cards = cards
	pos.State = PositionPlaced
	m.fireEvent(GameEvent{Type: EventActionPlaced, Side: side, Payload: map[string]any{"position": pos.Index, "stack": stack}})
	return nil
}

// nextFree assumes lock is held by caller.
func (m *Match) nextFree(side engine.Side) *Position {
	for i := range m.State.ActionBar {
		p := &m.State.ActionBar[i]
		if p.Owner == side && p.State == PositionEmpty {
			return p
		}
	}
	return nil
}

// AutoPlace fills side's free positions: Guard when below 30% hp and not
// already shielded, Rest when energy runs low, otherwise Attack backed by
// an attack skill from the hand.
func (m *Match) AutoPlace(side engine.Side) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhasePlacement); err != nil {
		return err
	}
	return m.autoPlace(side)
}

// autoPlace assumes lock is held by caller.
func (m *Match) autoPlace(side engine.Side) error {
	c := m.combatant(side)
	guarded := c.HasStatus(engine.StatusShielded)
	rested := false
	for m.nextFree(side) != nil {
		var err error
		switch {
		case !guarded && c.HP*10 < c.MaxHP*3:
			err = m.placeAction(side, engine.ActionGuard, nil)
			guarded = true
		case !rested && c.Energy < 3:
			err = m.placeAction(side, engine.ActionRest, nil)
			rested = true
		default:
			var mods []string
			if skill, ok := attackSkill(c.Hand); ok {
				mods = append(mods, skill)
			}
			err = m.placeAction(side, engine.ActionAttack, mods)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func attackSkill(hand []engine.Card) (string, bool) {
	for _, card := range hand {
		if card.Type == engine.CardSkill && strings.Contains(strings.ToLower(card.Modifier), "attack") {
			return card.Name, true
		}
	}
	return "", false
}

// BeginResolution closes placement and opens RESOLUTION. Free positions
// stay empty and resolve as no-ops.
func (m *Match) BeginResolution() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhasePlacement); err != nil {
		return err
	}
	m.setPhase(PhaseResolution)
	m.narrate(narration.TriggerStackReveal, narration.Context{
		PlayerStack:   m.describeStacks(engine.SidePlayer),
		OpponentStack: m.describeStacks(engine.SideOpponent),
	})
	return nil
}

// describeStacks renders side's placed stacks as "Attack + Power Strike,
// Guard". Assumes lock is held by caller.
func (m *Match) describeStacks(side engine.Side) string {
	var parts []string
	for _, p := range m.State.ActionBar {
		if p.Owner != side || p.Stack == nil {
			continue
		}
		s := p.Stack.CoreAction
		for _, mod := range p.Stack.Modifiers {
			s += " + " + mod.Name
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

// EndRound leaves RESOLUTION. It is refused with ErrPendingActions while
// any position is unresolved, any dispatched action is still open, or the
// talk sub-dialogue is active.
func (m *Match) EndRound() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhaseResolution); err != nil {
		return err
	}
	if err := m.pendingErr(); err != nil {
		return err
	}
	m.roundEnd()
	return nil
}

// pendingErr assumes lock is held by caller.
func (m *Match) pendingErr() error {
	if len(m.pending) > 0 {
		return fmt.Errorf("%w: %d dispatched", ErrPendingActions, len(m.pending))
	}
	if m.State.Talk.Active {
		return fmt.Errorf("%w: talk in progress", ErrPendingActions)
	}
	for _, p := range m.State.ActionBar {
		if !p.State.Terminal() {
			return fmt.Errorf("%w: position %d %s", ErrPendingActions, p.Index, p.State)
		}
	}
	return nil
}

// roundEnd scores the round, applies recovery and draws the scenario card.
// Assumes lock is held by caller.
func (m *Match) roundEnd() {
	m.setPhase(PhaseRoundEnd)
	p, o := &m.State.Player, &m.State.Opponent

	switch {
	case p.RoundPoints > o.RoundPoints:
		m.State.RoundWinner = engine.SidePlayer
	case o.RoundPoints > p.RoundPoints:
		m.State.RoundWinner = engine.SideOpponent
	default:
		m.State.RoundWinner = engine.SideNone
	}
	m.applyRecovery()
	m.fireEvent(GameEvent{Type: EventRoundEnd, Side: m.State.RoundWinner, Payload: map[string]any{
		"playerPoints":   p.RoundPoints,
		"opponentPoints": o.RoundPoints,
	}})
	m.log.WithFields(logrus.Fields{
		"round":  m.State.Round,
		"winner": m.State.RoundWinner,
		"hp":     fmt.Sprintf("%d/%d", p.HP, o.HP),
	}).Info("round over")
	m.narrate(narration.TriggerRoundEnd, narration.Context{Winner: m.State.RoundWinner.String()})

	if w := m.winnerNow(); w != engine.SideNone {
		m.endGame(w, "defeat")
		return
	}

	res := engine.CheckEndThreat(m.dice, m.catalog, m.State.Round, m.State.RoundWinner, p, o, m.balance)
	m.State.EndThreat = &res
	m.fireEvent(GameEvent{Type: EventScenario, Payload: map[string]any{"endThreat": res}})
	if res.Threat != nil {
		m.setPhase(PhaseEndThreat)
		m.fireEvent(GameEvent{Type: EventThreatSpawned, Side: res.Threat.Target, Payload: map[string]any{"threat": *res.Threat}})
		m.narrate(narration.TriggerEncounterReveal, narration.Context{Threat: res.Threat.Name})
		return
	}
	m.finishRound()
}

// applyRecovery applies round-end recovery: winner +5 HP/+3 energy, loser +2/+1,
// both +2/+2 on a tie. Assumes lock is held by caller.
func (m *Match) applyRecovery() {
	p, o := &m.State.Player, &m.State.Opponent
	switch m.State.RoundWinner {
	case engine.SideNone:
		p.Heal(2)
		p.RestoreEnergy(2)
		o.Heal(2)
		o.RestoreEnergy(2)
	default:
		w, l := m.combatant(m.State.RoundWinner), m.combatant(m.State.RoundWinner.Other())
		w.Heal(5)
		w.RestoreEnergy(3)
		l.Heal(2)
		l.RestoreEnergy(1)
	}
}

// ResolveEndThreat fights the round-end threat and moves on to the next
// round.
func (m *Match) ResolveEndThreat() (engine.ThreatResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhaseEndThreat); err != nil {
		return engine.ThreatResult{}, err
	}
	t := *m.State.EndThreat.Threat
	res := engine.ResolveThreatCombat(m.dice, t, m.combatant(t.Target), m.defense[t.Target], engine.ThreatEnd)
	delete(m.defense, t.Target)
	m.State.ThreatResults = append(m.State.ThreatResults, res)
	m.fireEvent(GameEvent{Type: EventThreatResolved, Side: t.Target, Payload: map[string]any{"result": res}})

	if w := m.winnerNow(); w != engine.SideNone {
		m.endGame(w, "defeat")
		return res, nil
	}
	m.finishRound()
	return res, nil
}

// finishRound persists the round and moves on. Assumes lock is held by
// caller.
func (m *Match) finishRound() {
	m.returnDefense()
	m.saveSnapshot()
	m.advanceRound()
}

// advanceRound either ends the match at the round cap or starts the next
// round. Assumes lock is held by caller.
func (m *Match) advanceRound() {
	if m.balance.RoundCap > 0 && m.State.Round >= m.balance.RoundCap {
		p, o := m.State.Player.HP, m.State.Opponent.HP
		w := engine.SideNone
		if p > o {
			w = engine.SidePlayer
		} else if o > p {
			w = engine.SideOpponent
		}
		m.endGame(w, "round_cap")
		return
	}
	m.startNextRound()
}

// Advance performs the default transition out of the current phase.
func (m *Match) Advance() error {
	m.Mu.Lock()
	phase := m.State.Phase
	m.Mu.Unlock()

	var err error
	switch phase {
	case PhaseInitiative:
		_, err = m.RollInitiative()
	case PhaseThreatResponse:
		_, err = m.ResolveThreats()
	case PhasePlacement:
		err = m.BeginResolution()
	case PhaseResolution:
		err = m.EndRound()
	case PhaseEndThreat:
		_, err = m.ResolveEndThreat()
	case PhaseGameEnd:
		err = ErrGameOver
	default:
		err = ErrWrongPhase
	}
	return err
}

// winnerNow reports a decided match: hp first, then broken morale.
// Assumes lock is held by caller.
func (m *Match) winnerNow() engine.Side {
	if w := engine.CheckGameOver(&m.State.Player, &m.State.Opponent); w != engine.SideNone {
		return w
	}
	if m.State.Player.Morale <= 0 {
		return engine.SideOpponent
	}
	if m.State.Opponent.Morale <= 0 {
		return engine.SidePlayer
	}
	return engine.SideNone
}

// endGame finalises the match. Assumes lock is held by caller.
func (m *Match) endGame(winner engine.Side, reason string) {
	if m.State.GameOver {
		return
	}
	m.State.GameOver = true
	m.State.Winner = winner
	m.returnDefense()
	m.setPhase(PhaseGameEnd)

	m.log.WithFields(logrus.Fields{"winner": winner, "reason": reason, "rounds": m.State.Round}).Info("match over")
	m.fireEvent(GameEvent{Type: EventGameEnd, Side: winner, Payload: map[string]any{
		"reason":     reason,
		"playerHp":   m.State.Player.HP,
		"opponentHp": m.State.Opponent.HP,
	}})

	nc := narration.Context{Rounds: m.State.Round, PlayerVictory: winner == engine.SidePlayer}
	if winner != engine.SideNone {
		nc.Winner = m.combatant(winner).Name
		nc.Loser = m.combatant(winner.Other()).Name
	}
	m.narrate(narration.TriggerGameEnd, nc)
	m.saveSnapshot()
	m.recordHistory()
}

// expect assumes lock is held by caller.
func (m *Match) expect(phases ...Phase) error {
	if m.State.GameOver {
		return ErrGameOver
	}
	for _, p := range phases {
		if m.State.Phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: in %s", ErrWrongPhase, m.State.Phase)
}
