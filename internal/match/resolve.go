package match

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/skirmish/engine"
	"github.com/jason-s-yu/skirmish/internal/narration"
	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/sirupsen/logrus"
)

const (
	actionResolve  = "resolve"
	actionInteract = "interact"
)

// ResolveNext resolves the next unresolved position of the action bar. The
// position is dispatched as a resolve action and applied once the server
// completes it; ResolveNext blocks until then or until ctx is done.
//
// more reports whether another position can be resolved right away. It is
// false when the bar is exhausted, the game ended or a talk opened.
func (m *Match) ResolveNext(ctx context.Context) (more bool, err error) {
	m.Mu.Lock()
	if err := m.expect(PhaseResolution); err != nil {
		m.Mu.Unlock()
		return false, err
	}
	if m.State.Talk.Active {
		m.Mu.Unlock()
		return false, fmt.Errorf("%w: talk in progress", ErrPendingActions)
	}
	if len(m.pending) > 0 {
		m.Mu.Unlock()
		return false, fmt.Errorf("%w: %d dispatched", ErrPendingActions, len(m.pending))
	}

	idx := m.nextUnresolved()
	if idx < 0 {
		m.Mu.Unlock()
		return false, nil
	}
	pos := &m.State.ActionBar[idx]
	owner := m.combatant(pos.Owner)

	switch {
	case pos.State == PositionEmpty:
		m.skipPosition(pos, "empty")
		more = m.canContinue()
		m.Mu.Unlock()
		return more, nil
	case owner.HasStatus(engine.StatusStunned):
		owner.RemoveStatus(engine.StatusStunned)
		m.discard(pos)
		m.skipPosition(pos, "stunned")
		more = m.canContinue()
		m.Mu.Unlock()
		return more, nil
	}

	id, fut := m.client.Execute(actionResolve, map[string]any{
		"matchId":  m.ID.String(),
		"round":    m.State.Round,
		"position": pos.Index,
		"owner":    pos.Owner,
		"stack":    pos.Stack,
	})
	pos.State = PositionDispatched
	pos.ActionID = id
	pa := &pendingAction{position: idx, settled: make(chan struct{})}
	m.pending[id] = pa
	m.fireEvent(GameEvent{Type: EventActionDispatched, Side: pos.Owner, Payload: map[string]any{
		"position": pos.Index,
		"actionId": id,
	}})
	m.bg.Add(1)
	go m.await(id, pa, fut)
	m.Mu.Unlock()

	select {
	case <-pa.settled:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.canContinue(), nil
}

// ResolveAll resolves positions until the bar is exhausted, the game ends or
// a talk opens.
func (m *Match) ResolveAll(ctx context.Context) error {
	for {
		more, err := m.ResolveNext(ctx)
		if err != nil || !more {
			return err
		}
	}
}

// AwaitPending blocks until every dispatched action has settled.
func (m *Match) AwaitPending(ctx context.Context) error {
	m.Mu.Lock()
	waits := make([]chan struct{}, 0, len(m.pending))
	for _, pa := range m.pending {
		waits = append(waits, pa.settled)
	}
	m.Mu.Unlock()

	for _, ch := range waits {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Skip cancels a dispatched action and marks it skipped. Its cards go back
// to the owner's hand.
func (m *Match) Skip(actionID string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	pa := m.pending[actionID]
	if pa == nil {
		return fmt.Errorf("%w: %s", stream.ErrUnknownAction, actionID)
	}
	delete(m.pending, actionID)
	m.client.CancelAction(actionID)

	if pa.talk {
		m.State.Talk.Pending = ""
	} else {
		pos := &m.State.ActionBar[pa.position]
		m.returnCards(pos)
		m.skipPosition(pos, "cancelled")
	}
	pa.finish()
	return nil
}

// await waits for the terminal result of a dispatched action and settles
// it under the lock.
func (m *Match) await(id string, pa *pendingAction, fut <-chan stream.ActionResult) {
	defer m.bg.Done()
	res, ok := <-fut
	if !ok {
		res = stream.ActionResult{ID: id, Cleared: true}
	}

	m.Mu.Lock()
	m.settle(id, pa, res)
	m.Mu.Unlock()
	pa.finish()
}

// settle applies a terminal result. Results for actions that were skipped
// in the meantime are ignored. Assumes lock is held by caller.
func (m *Match) settle(id string, pa *pendingAction, res stream.ActionResult) {
	if m.pending[id] != pa {
		return
	}
	delete(m.pending, id)
	if m.State.GameOver {
		return
	}
	if pa.talk {
		m.settleTalk(id, res)
		return
	}

	pos := &m.State.ActionBar[pa.position]
	log := m.log.WithFields(logrus.Fields{"actionId": id, "position": pos.Index})
	switch {
	case res.Cancelled || res.Cleared:
		m.returnCards(pos)
		note := "cancelled"
		if res.Cleared {
			note = "cleared"
		}
		m.skipPosition(pos, note)
	case res.Err != nil:
		log.WithError(res.Err).Warn("resolve action failed")
		m.returnCards(pos)
		pos.State = PositionFailed
		pos.Note = res.Err.Error()
		m.fireEvent(GameEvent{Type: EventActionFailed, Side: pos.Owner, Payload: map[string]any{
			"position": pos.Index,
			"error":    res.Err.Error(),
		}})
	default:
		m.applyPosition(pos)
	}
}

// applyPosition runs the engine resolution for a completed position.
// Assumes lock is held by caller.
func (m *Match) applyPosition(pos *Position) {
	owner, target := m.combatant(pos.Owner), m.combatant(pos.Owner.Other())
	stack := *pos.Stack
	result := &PositionResult{Action: stack.CoreAction}

	// Consumables and equipment take effect before the core action.
	for _, card := range pos.Cards {
		switch {
		case card.IsConsumable():
			result.Effects = append(result.Effects, m.cardEffect(card, owner, target)...)
		case card.Type == engine.CardApparel || card.IsWeapon():
			owner.Stack = append(owner.Stack, card)
			result.Effects = append(result.Effects, fmt.Sprintf("%s equips %s", owner.Name, card.Name))
		}
	}

	switch stack.CoreAction {
	case engine.ActionAttack:
		res := engine.ResolveCombat(m.dice, owner, target, stack)
		result.Combat = &res
	case engine.ActionGuard:
		engine.ResolveGuard(owner, engine.ActionGuard)
	case engine.ActionRest:
		engine.ResolveRest(owner)
	case engine.ActionFlee:
		res := engine.ResolveFlee(m.dice, owner, stack, m.balance)
		result.Flee = &res
	case engine.ActionInvestigate:
		roll := m.investigate(owner, stack)
		result.Roll = &roll
	case engine.ActionTalk:
		if pos.Owner == engine.SidePlayer {
			m.openTalk(pos)
			return
		}
		res := engine.ResolveTalk(m.dice, owner, target, stack)
		result.Talk = &res
	}

	for _, card := range pos.Cards {
		if card.Type == engine.CardMagic {
			result.Effects = append(result.Effects, m.cardEffect(card, owner, target)...)
		}
	}

	m.discard(pos)
	pos.State = PositionResolved
	pos.Result = result
	m.fireEvent(GameEvent{Type: EventPositionResolved, Side: pos.Owner, Payload: map[string]any{
		"position": pos.Index,
		"result":   result,
	}})
	m.narrate(narration.TriggerResolution, narration.Context{Outcome: outcomeText(result)})

	if result.Flee != nil && result.Flee.Escaped {
		for i := range m.State.ActionBar {
			if p := &m.State.ActionBar[i]; !p.State.Terminal() {
				m.returnCards(p)
				m.skipPosition(p, "fled")
			}
		}
	}
	if w := m.winnerNow(); w != engine.SideNone {
		m.endGame(w, "defeat")
	}
}

// investigate rolls d20 + INT (10 when unset) + skill; 10 or more draws a
// card. Assumes lock is held by caller.
func (m *Match) investigate(c *engine.Combatant, stack engine.ActionStack) engine.Roll {
	in := c.Stats.INT
	if in == 0 {
		in = 10
	}
	r := engine.NewRoll(m.dice.D20(), engine.Modifier{Source: "INT", Value: in},
		engine.Modifier{Source: "Skill", Value: engine.SkillMod(stack, "investigate")})
	if r.Total >= 10 {
		c.Draw(1)
	}
	return r
}

// cardEffect parses and applies the effect text of card. Unparseable text
// is logged and ignored. Assumes lock is held by caller.
func (m *Match) cardEffect(card engine.Card, owner, target *engine.Combatant) []string {
	if card.Effect == "" {
		return nil
	}
	e, err := engine.ParseEffect(card.Effect)
	if err != nil {
		m.log.WithError(err).WithField("card", card.Name).Warn("unparseable card effect")
		return nil
	}
	return engine.ApplyEffect(e, owner, target, card.Name)
}

// discard moves the committed cards out of play. Magic cards return to the
// hand; equipped cards already live on the stack. Assumes lock is held.
func (m *Match) discard(pos *Position) {
	owner := m.combatant(pos.Owner)
	for _, card := range pos.Cards {
		switch {
		case card.Type == engine.CardMagic:
			owner.Hand = append(owner.Hand, card)
		case card.Type == engine.CardApparel || card.IsWeapon():
		default:
			owner.DiscardPile = append(owner.DiscardPile, card)
		}
	}
	pos.Cards = nil
}

// returnCards puts unused committed cards back in the hand. Assumes lock is
// held by caller.
func (m *Match) returnCards(pos *Position) {
	owner := m.combatant(pos.Owner)
	owner.Hand = append(owner.Hand, pos.Cards...)
	pos.Cards = nil
}

// skipPosition assumes lock is held by caller.
func (m *Match) skipPosition(pos *Position, note string) {
	pos.State = PositionSkipped
	pos.Note = note
	m.fireEvent(GameEvent{Type: EventPositionResolved, Side: pos.Owner, Payload: map[string]any{
		"position": pos.Index,
		"skipped":  note,
	}})
}

// nextUnresolved returns the index of the first non-terminal position, or
// -1. Assumes lock is held by caller.
func (m *Match) nextUnresolved() int {
	for i, p := range m.State.ActionBar {
		if !p.State.Terminal() {
			return i
		}
	}
	return -1
}

// canContinue assumes lock is held by caller.
func (m *Match) canContinue() bool {
	return !m.State.GameOver &&
		m.State.Phase == PhaseResolution &&
		!m.State.Talk.Active &&
		len(m.pending) == 0 &&
		m.nextUnresolved() >= 0
}

func outcomeText(r *PositionResult) string {
	switch {
	case r.Combat != nil:
		return string(r.Combat.Outcome.Kind)
	case r.Flee != nil && r.Flee.Escaped:
		return "escaped"
	case r.Flee != nil:
		return "failed to flee"
	case r.Talk != nil:
		return string(r.Talk.Outcome)
	}
	return r.Action
}
