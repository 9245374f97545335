package match

import (
	"fmt"

	"github.com/jason-s-yu/skirmish/engine"
	"github.com/jason-s-yu/skirmish/internal/stream"
)

const (
	roleSelf = "player"
	roleNPC  = "npc"

	silentReply = "*looks at you thoughtfully but says nothing*"
)

var cannedReplies = []string{
	"*%s considers your words carefully*",
	"*%s narrows their eyes at you*",
	`"Hmm..." *%s seems unimpressed*`,
	"*%s tilts their head, listening*",
	`"We shall see..." *%s mutters*`,
}

// openTalk pauses resolution on pos until the dialogue is ended or skipped.
// Assumes lock is held by caller.
func (m *Match) openTalk(pos *Position) {
	m.State.Talk = TalkState{Active: true, Position: pos.Index}
	m.fireEvent(GameEvent{Type: EventTalkOpened, Side: pos.Owner, Payload: map[string]any{
		"position": pos.Index,
		"npc":      m.State.Opponent.Name,
	}})
}

// SendTalk adds a player line to the open dialogue and dispatches it as an
// interact action. The reply arrives as a talk_message event. Only one reply
// may be outstanding.
func (m *Match) SendTalk(text string) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if !m.State.Talk.Active {
		return "", ErrNoTalk
	}
	if m.State.Talk.Pending != "" {
		return "", ErrTalkBusy
	}
	m.State.Talk.Messages = append(m.State.Talk.Messages, TalkMessage{Role: roleSelf, Text: text})
	m.fireEvent(GameEvent{Type: EventTalkMessage, Side: engine.SidePlayer, Payload: map[string]any{"role": roleSelf, "text": text}})

	id, fut := m.client.Execute(actionInteract, map[string]any{
		"matchId": m.ID.String(),
		"round":   m.State.Round,
		"npc":     m.State.Opponent.Name,
		"message": text,
	})
	pa := &pendingAction{position: m.State.Talk.Position - 1, talk: true, settled: make(chan struct{})}
	m.pending[id] = pa
	m.State.Talk.Pending = id
	m.bg.Add(1)
	go m.await(id, pa, fut)
	return id, nil
}

// settleTalk records the NPC reply. A failed interact still produces a
// line; a cancelled one produces none. Assumes lock is held by caller.
func (m *Match) settleTalk(id string, res stream.ActionResult) {
	if m.State.Talk.Pending != id {
		return
	}
	m.State.Talk.Pending = ""
	if res.Cancelled || res.Cleared || !m.State.Talk.Active {
		return
	}

	var text string
	switch {
	case res.Err != nil:
		m.log.WithError(res.Err).Warn("interact failed")
		text = silentReply
	default:
		if p, ok := res.Payload.(map[string]any); ok {
			text, _ = p["reply"].(string)
		}
		if text == "" {
			text = fmt.Sprintf(cannedReplies[m.dice.Intn(len(cannedReplies))], m.State.Opponent.Name)
		}
	}
	m.State.Talk.Messages = append(m.State.Talk.Messages, TalkMessage{Role: roleNPC, Text: text})
	m.fireEvent(GameEvent{Type: EventTalkMessage, Side: engine.SideOpponent, Payload: map[string]any{"role": roleNPC, "text": text}})
}

// EndTalk closes the dialogue and scores it: four or more lines with at
// least two from the player give +2 morale and cost the opponent 1; two or
// more lines give +1. It returns the player's morale change.
func (m *Match) EndTalk() (int, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if !m.State.Talk.Active {
		return 0, ErrNoTalk
	}
	m.cancelTalkReply()

	msgs := m.State.Talk.Messages
	said := 0
	for _, msg := range msgs {
		if msg.Role == roleSelf {
			said++
		}
	}
	gain := 0
	switch {
	case len(msgs) >= 4 && said >= 2:
		gain = 2
		m.State.Opponent.AdjustMorale(-1)
	case len(msgs) >= 2:
		gain = 1
	}
	m.State.Player.AdjustMorale(gain)

	pos := m.closeTalk()
	m.discard(pos)
	pos.State = PositionResolved
	pos.Result = &PositionResult{Action: engine.ActionTalk}
	if gain > 0 {
		pos.Result.Effects = []string{fmt.Sprintf("%s gains %d morale", m.State.Player.Name, gain)}
	}
	m.fireEvent(GameEvent{Type: EventTalkClosed, Side: engine.SidePlayer, Payload: map[string]any{
		"position": pos.Index,
		"messages": len(msgs),
		"morale":   gain,
	}})

	if w := m.winnerNow(); w != engine.SideNone {
		m.endGame(w, "defeat")
	}
	return gain, nil
}

// SkipTalk closes the dialogue without scoring it. The talk cards return to
// the hand.
func (m *Match) SkipTalk() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if !m.State.Talk.Active {
		return ErrNoTalk
	}
	m.cancelTalkReply()
	pos := m.closeTalk()
	m.returnCards(pos)
	m.fireEvent(GameEvent{Type: EventTalkClosed, Side: engine.SidePlayer, Payload: map[string]any{
		"position": pos.Index,
		"skipped":  true,
	}})
	m.skipPosition(pos, "talk skipped")
	return nil
}

// cancelTalkReply drops an outstanding reply. Assumes lock is held.
func (m *Match) cancelTalkReply() {
	id := m.State.Talk.Pending
	if id == "" {
		return
	}
	if pa := m.pending[id]; pa != nil {
		delete(m.pending, id)
		m.client.CancelAction(id)
		pa.finish()
	}
	m.State.Talk.Pending = ""
}

// closeTalk resets the dialogue and returns its position. Assumes lock is
// held by caller.
func (m *Match) closeTalk() *Position {
	pos := &m.State.ActionBar[m.State.Talk.Position-1]
	m.State.Talk = TalkState{}
	return pos
}
