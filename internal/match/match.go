// internal/match/match.go
package match

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skirmish/engine"
	"github.com/jason-s-yu/skirmish/internal/narration"
	"github.com/jason-s-yu/skirmish/internal/store"
	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrWrongPhase     = errors.New("match: operation not allowed in this phase")
	ErrPendingActions = errors.New("match: actions still pending")
	ErrGameOver       = errors.New("match: game is over")
	ErrNoTalk         = errors.New("match: no talk in progress")
	ErrTalkBusy       = errors.New("match: waiting for a talk reply")
	ErrNoPosition     = errors.New("match: no free action position")
	ErrUnknownCard    = errors.New("match: card not in hand")
	ErrInvalidAction  = errors.New("match: unknown core action")
	ErrNotThreatened  = errors.New("match: side is not facing a threat")
)

// Phase is a step of the round state machine.
type Phase string

const (
	PhaseGameStart      Phase = "GAME_START"
	PhaseRoundStart     Phase = "ROUND_START"
	PhaseInitiative     Phase = "INITIATIVE"
	PhaseThreatResponse Phase = "THREAT_RESPONSE"
	PhasePlacement      Phase = "PLACEMENT"
	PhaseResolution     Phase = "RESOLUTION"
	PhaseRoundEnd       Phase = "ROUND_END"
	PhaseEndThreat      Phase = "END_THREAT"
	PhaseGameEnd        Phase = "GAME_END"
)

// GameEventType represents the type of a match event.
type GameEventType string

const (
	EventPhaseChanged     GameEventType = "phase_changed"
	EventInitiative       GameEventType = "initiative"
	EventThreatSpawned    GameEventType = "threat_spawned"
	EventThreatResolved   GameEventType = "threat_resolved"
	EventActionPlaced     GameEventType = "action_placed"
	EventActionDispatched GameEventType = "action_dispatched"
	EventPositionResolved GameEventType = "position_resolved"
	EventActionFailed     GameEventType = "action_failed"
	EventTalkOpened       GameEventType = "talk_opened"
	EventTalkMessage      GameEventType = "talk_message"
	EventTalkClosed       GameEventType = "talk_closed"
	EventRoundEnd         GameEventType = "round_end"
	EventScenario         GameEventType = "scenario"
	EventNarration        GameEventType = "narration"
	EventSyncState        GameEventType = "sync_state"
	EventPush             GameEventType = "push"
	EventGameEnd          GameEventType = "game_end"
)

// GameEvent is the structure published through BroadcastFn.
type GameEvent struct {
	Type    GameEventType  `json:"type"`
	Round   int            `json:"round"`
	Phase   Phase          `json:"phase"`
	Side    engine.Side    `json:"side,omitempty"` // acting or affected side, when there is one
	Payload map[string]any `json:"payload,omitempty"`
	State   *Snapshot      `json:"state,omitempty"` // full state for sync events
}

// SnapshotStore keeps the latest snapshot of a match.
type SnapshotStore interface {
	Save(ctx context.Context, matchID string, snap any) error
}

// HistoryRecorder stores finished matches.
type HistoryRecorder interface {
	Record(ctx context.Context, r store.MatchRecord) error
}

// Initiative is the result of the initiative roll.
type Initiative struct {
	engine.InitiativeRolls
	Winner            engine.Side `json:"winner"`
	PlayerPositions   []int       `json:"playerPositions"`
	OpponentPositions []int       `json:"opponentPositions"`
}

// PositionState tracks an action-bar slot through resolution.
type PositionState string

const (
	PositionEmpty      PositionState = "empty"
	PositionPlaced     PositionState = "placed"
	PositionDispatched PositionState = "dispatched"
	PositionResolved   PositionState = "resolved"
	PositionSkipped    PositionState = "skipped"
	PositionFailed     PositionState = "failed"
)

// Terminal reports whether the slot needs no further work.
func (s PositionState) Terminal() bool {
	return s == PositionResolved || s == PositionSkipped || s == PositionFailed
}

// PositionResult records what resolving a slot did.
type PositionResult struct {
	Action  string               `json:"action"`
	Combat  *engine.CombatResult `json:"combat,omitempty"`
	Flee    *engine.FleeResult   `json:"flee,omitempty"`
	Talk    *engine.TalkResult   `json:"talk,omitempty"`
	Roll    *engine.Roll         `json:"roll,omitempty"`
	Effects []string             `json:"effects,omitempty"`
}

// Position is one slot of the action bar.
type Position struct {
	Index    int                 `json:"index"`
	Owner    engine.Side         `json:"owner"`
	Stack    *engine.ActionStack `json:"stack,omitempty"`
	Cards    []engine.Card       `json:"-"` // hand cards committed to the stack
	ActionID string              `json:"actionId,omitempty"`
	State    PositionState       `json:"state"`
	Note     string              `json:"note,omitempty"`
	Result   *PositionResult     `json:"result,omitempty"`
}

// TalkMessage is one line of the talk sub-dialogue.
type TalkMessage struct {
	Role string `json:"role"` // "player" or "npc"
	Text string `json:"text"`
}

// TalkState is the open talk sub-dialogue, if any.
type TalkState struct {
	Active   bool          `json:"active"`
	Position int           `json:"position"`
	Messages []TalkMessage `json:"messages,omitempty"`
	Pending  string        `json:"pendingActionId,omitempty"`
}

// GameState is owned by the match and mutated only under Match.Mu.
type GameState struct {
	Round            int                      `json:"round"`
	Phase            Phase                    `json:"phase"`
	Player           engine.Combatant         `json:"player"`
	Opponent         engine.Combatant         `json:"opponent"`
	Initiative       *Initiative              `json:"initiative,omitempty"`
	ActionBar        []Position               `json:"actionBar"`
	BeginningThreats []engine.ThreatEncounter `json:"beginningThreats,omitempty"`
	ThreatResults    []engine.ThreatResult    `json:"threatResults,omitempty"`
	EndThreat        *engine.EndThreatResult  `json:"endThreatResult,omitempty"`
	RoundWinner      engine.Side              `json:"roundWinner"`
	Talk             TalkState                `json:"chat"`
	Winner           engine.Side              `json:"winner"`
	GameOver         bool                     `json:"gameOver"`
}

type pendingAction struct {
	position int
	talk     bool // a talk reply rather than a bar position
	settled  chan struct{}
	once     sync.Once
}

func (p *pendingAction) finish() { p.once.Do(func() { close(p.settled) }) }

// Match runs one player-versus-opponent game.
type Match struct {
	ID       uuid.UUID
	PlayerID string
	Seed     uint64

	State GameState

	Mu sync.Mutex // guards State and the bookkeeping below

	// BroadcastFn receives every match event. It may be called with Mu held
	// and from narration goroutines.
	BroadcastFn func(ev GameEvent)

	client    *stream.Client
	dice      engine.Dice
	balance   engine.Balance
	catalog   engine.Catalog
	narrator  narration.Narrator
	director  *Director
	snapshots SnapshotStore
	history   HistoryRecorder
	log       *logrus.Entry

	ctx       context.Context
	startedAt time.Time
	pending   map[string]*pendingAction
	defense   map[engine.Side][]engine.Card
	bg        sync.WaitGroup
}

// Option configures a Match.
type Option func(*Match)

func WithBalance(b engine.Balance) Option { return func(m *Match) { m.balance = b } }

func WithCatalog(c engine.Catalog) Option { return func(m *Match) { m.catalog = c.WithDefaults() } }

// WithDice replaces the seeded generator, mostly for tests.
func WithDice(d engine.Dice) Option { return func(m *Match) { m.dice = d } }

// WithSeed fixes the RNG seed. Zero derives the seed from the match id.
func WithSeed(seed uint64) Option { return func(m *Match) { m.Seed = seed } }

func WithID(id uuid.UUID) Option { return func(m *Match) { m.ID = id } }

func WithPlayerID(id string) Option { return func(m *Match) { m.PlayerID = id } }

func WithNarrator(n narration.Narrator) Option { return func(m *Match) { m.narrator = n } }

// WithDirector lets d place actions through DirectPlace.
func WithDirector(d *Director) Option { return func(m *Match) { m.director = d } }

func WithSnapshotStore(s SnapshotStore) Option { return func(m *Match) { m.snapshots = s } }

func WithHistory(h HistoryRecorder) Option { return func(m *Match) { m.history = h } }

// WithCombatants replaces the starter characters.
func WithCombatants(player, opponent engine.Combatant) Option {
	return func(m *Match) {
		m.State.Player = player
		m.State.Opponent = opponent
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Match) { m.log = l.WithField("component", "match") }
}

// New creates a match that dispatches its resolutions through client.
func New(client *stream.Client, opts ...Option) *Match {
	m := &Match{
		ID:      uuid.New(),
		client:  client,
		balance: engine.DefaultBalance(),
		catalog: engine.DefaultCatalog(),
		log:     logrus.StandardLogger().WithField("component", "match"),
		ctx:     context.Background(),
		pending: make(map[string]*pendingAction),
		defense: make(map[engine.Side][]engine.Card),
	}
	m.State.Phase = PhaseGameStart
	for _, opt := range opts {
		opt(m)
	}
	if m.PlayerID == "" {
		m.PlayerID = uuid.NewString()
	}
	if m.Seed == 0 {
		m.Seed = DeriveSeed(m.ID)
	}
	if m.dice == nil {
		m.dice = engine.NewRand(m.Seed)
	}
	if m.State.Player.MaxHP == 0 {
		m.State.Player = StarterCombatant("Hero", engine.Stats{STR: 3, AGI: 2, END: 12, INT: 10, CHA: 10, MAG: 12}, m.balance, m.dice)
	}
	if m.State.Opponent.MaxHP == 0 {
		m.State.Opponent = StarterCombatant("Challenger", engine.Stats{STR: 3, AGI: 2, END: 12, INT: 8, CHA: 8, MAG: 12}, m.balance, m.dice)
	}
	m.log = m.log.WithField("matchId", m.ID)
	return m
}

// DeriveSeed hashes a match id into an RNG seed.
func DeriveSeed(id uuid.UUID) uint64 {
	sum := blake2b.Sum256(id[:])
	return binary.LittleEndian.Uint64(sum[:8])
}

// Wait blocks until background narration and persistence calls return.
func (m *Match) Wait() { m.bg.Wait() }

// Phase returns the current phase.
func (m *Match) Phase() Phase {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.State.Phase
}

// TalkActive reports whether the talk sub-dialogue is open.
func (m *Match) TalkActive() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.State.Talk.Active
}

// combatant returns the record for side. Assumes lock is held by caller.
func (m *Match) combatant(s engine.Side) *engine.Combatant {
	if s == engine.SideOpponent {
		return &m.State.Opponent
	}
	return &m.State.Player
}

// setPhase moves to p and announces it. Assumes lock is held by caller.
func (m *Match) setPhase(p Phase) {
	m.State.Phase = p
	m.log.WithFields(logrus.Fields{"round": m.State.Round, "phase": p}).Info("phase changed")
	m.fireEvent(GameEvent{Type: EventPhaseChanged})
}

// fireEvent stamps ev with round and phase and hands it to BroadcastFn.
// Assumes lock is held by caller.
func (m *Match) fireEvent(ev GameEvent) {
	ev.Round = m.State.Round
	ev.Phase = m.State.Phase
	m.broadcast(ev)
}

func (m *Match) broadcast(ev GameEvent) {
	if m.BroadcastFn == nil {
		return
	}
	m.BroadcastFn(ev)
}

// narrate requests narration in the background; the phase machine never
// waits for it. Assumes lock is held by caller.
func (m *Match) narrate(trigger narration.Trigger, nc narration.Context) {
	if m.narrator == nil {
		return
	}
	nc.PlayerName = m.State.Player.Name
	nc.OpponentName = m.State.Opponent.Name
	nc.PlayerHP = m.State.Player.HP
	nc.OpponentHP = m.State.Opponent.HP
	nc.MaxHP = m.State.Player.MaxHP
	if nc.Round == 0 {
		nc.Round = m.State.Round
	}
	ev := GameEvent{Type: EventNarration, Round: m.State.Round, Phase: m.State.Phase}

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		text := m.narrator.Narrate(m.ctx, trigger, nc)
		if text == "" {
			return
		}
		ev.Payload = map[string]any{"trigger": string(trigger), "text": text}
		m.broadcast(ev)
	}()
}
