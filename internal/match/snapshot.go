package match

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skirmish/engine"
	"github.com/jason-s-yu/skirmish/internal/store"
	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/sirupsen/logrus"
)

var timeNow = time.Now

// Snapshot is a detached, JSON-serialisable copy of the match state.
type Snapshot struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId,omitempty"`
	Seed     uint64 `json:"seed"`
	GameState
	Pending int       `json:"pendingActions"`
	SavedAt time.Time `json:"savedAt"`
}

// Snapshot returns a copy of the current state.
func (m *Match) Snapshot() Snapshot {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.snapshot()
}

// Sync broadcasts the full state as a sync_state event.
func (m *Match) Sync() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	snap := m.snapshot()
	m.fireEvent(GameEvent{Type: EventSyncState, State: &snap})
}

// Restore rebuilds a match from a snapshot saved between rounds. The
// snapshot's id, player, seed and state win over opts; the dice are
// reseeded for the saved round unless opts replace them. Call Resume to
// continue play.
func Restore(client *stream.Client, snap Snapshot, opts ...Option) (*Match, error) {
	id, err := uuid.Parse(snap.MatchID)
	if err != nil {
		return nil, fmt.Errorf("restore: match id %q: %w", snap.MatchID, err)
	}
	if snap.GameOver {
		return nil, fmt.Errorf("restore %s: %w", snap.MatchID, ErrGameOver)
	}
	if snap.Phase != PhaseRoundEnd && snap.Phase != PhaseEndThreat {
		return nil, fmt.Errorf("restore %s: %w: saved in %s", snap.MatchID, ErrWrongPhase, snap.Phase)
	}

	all := []Option{WithDice(engine.NewRand(resumeSeed(snap.Seed, snap.Round)))}
	all = append(all, opts...)
	all = append(all,
		WithID(id),
		WithPlayerID(snap.PlayerID),
		WithSeed(snap.Seed),
		WithCombatants(snap.Player, snap.Opponent),
	)
	m := New(client, all...)
	m.State = snap.GameState
	m.State.Talk = TalkState{}
	return m, nil
}

// resumeSeed moves a restored match onto a fresh stream per round, so a
// resumed round does not replay the opening rolls.
func resumeSeed(seed uint64, round int) uint64 {
	return seed ^ uint64(round)*0xBF58476D1CE4E5B9
}

// Resume continues a restored match from the round after its snapshot.
// ctx plays the role it has in Start.
func (m *Match) Resume(ctx context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if err := m.expect(PhaseRoundEnd, PhaseEndThreat); err != nil {
		return err
	}
	if ctx != nil {
		m.ctx = ctx
	}
	m.startedAt = timeNow()
	m.log.WithFields(logrus.Fields{"seed": m.Seed, "round": m.State.Round}).Info("match resumed")
	m.fireEvent(GameEvent{Type: EventPhaseChanged})
	m.advanceRound()
	return nil
}

// snapshot assumes lock is held by caller.
func (m *Match) snapshot() Snapshot {
	snap := Snapshot{
		MatchID:  m.ID.String(),
		PlayerID: m.PlayerID,
		Seed:     m.Seed,
		Pending:  len(m.pending),
		SavedAt:  timeNow().UTC(),
	}
	// A JSON round trip detaches every slice and pointer from the live state.
	b, err := json.Marshal(m.State)
	if err == nil {
		err = json.Unmarshal(b, &snap.GameState)
	}
	if err != nil {
		m.log.WithError(err).Error("snapshot state")
		snap.GameState = GameState{Round: m.State.Round, Phase: m.State.Phase, Winner: m.State.Winner, GameOver: m.State.GameOver}
	}
	return snap
}

// saveSnapshot persists the state in the background. Failures are logged.
// Assumes lock is held by caller.
func (m *Match) saveSnapshot() {
	if m.snapshots == nil {
		return
	}
	snap := m.snapshot()
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := m.snapshots.Save(m.ctx, snap.MatchID, snap); err != nil {
			m.log.WithError(err).WithField("round", snap.Round).Warn("save snapshot")
		}
	}()
}

// recordHistory stores the final result in the background. Failures are
// logged. Assumes lock is held by caller.
func (m *Match) recordHistory() {
	if m.history == nil {
		return
	}
	rec := store.MatchRecord{
		ID:         m.ID.String(),
		PlayerID:   m.PlayerID,
		Winner:     m.State.Winner.String(),
		Rounds:     m.State.Round,
		PlayerHP:   m.State.Player.HP,
		OpponentHP: m.State.Opponent.HP,
		Seed:       m.Seed,
		StartedAt:  m.startedAt,
		EndedAt:    timeNow(),
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := m.history.Record(m.ctx, rec); err != nil {
			m.log.WithError(err).Warn("record match history")
		}
	}()
}
