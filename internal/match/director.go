// internal/match/director.go
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/skirmish/engine"
	"github.com/jason-s-yu/skirmish/internal/narration"
	"github.com/sirupsen/logrus"
)

var errNoPlan = errors.New("director: no usable placement")

// Placement is the director's answer: one stack per bar position.
type Placement struct {
	Stacks   []PlannedStack `json:"stacks"`
	Strategy string         `json:"strategy,omitempty"`
}

// PlannedStack places CoreCard, backed by hand cards, at Position.
type PlannedStack struct {
	Position  int      `json:"position"`
	CoreCard  string   `json:"coreCard"`
	Modifiers []string `json:"modifiers,omitempty"`
}

type vitalsView struct {
	HP     int `json:"hp"`
	Energy int `json:"energy"`
	Morale int `json:"morale"`
}

type cardView struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Effect string `json:"effect,omitempty"`
}

// placementView is the state the director is shown.
type placementView struct {
	Type  string `json:"type"`
	Round int    `json:"round"`
	AI    struct {
		Name             string     `json:"name"`
		AP               int        `json:"ap"`
		vitalsView
		AvailableActions []string   `json:"availableActions"`
		ModifierCards    []cardView `json:"modifierCards"`
	} `json:"ai"`
	Foe                vitalsView `json:"player"`
	AvailablePositions []int      `json:"availablePositions"`
}

// Director asks a completion provider where a side should place its
// actions. Any failure is reported as an error so the caller can fall back
// to AutoPlace.
type Director struct {
	provider    narration.Provider
	timeout     time.Duration
	personality string
	log         *logrus.Entry
}

// DirectorOption configures a Director.
type DirectorOption func(*Director)

// WithDirectorTimeout bounds each plan, retries included.
func WithDirectorTimeout(d time.Duration) DirectorOption {
	return func(dr *Director) {
		if d > 0 {
			dr.timeout = d
		}
	}
}

// WithPersonality sets the play style named in the prompt
// ("aggressive", "tactical" or "balanced").
func WithPersonality(p string) DirectorOption {
	return func(dr *Director) { dr.personality = p }
}

func WithDirectorLogger(l logrus.FieldLogger) DirectorOption {
	return func(dr *Director) { dr.log = l.WithField("component", "director") }
}

// NewDirector returns a director backed by p.
func NewDirector(p narration.Provider, opts ...DirectorOption) *Director {
	d := &Director{
		provider:    p,
		timeout:     5 * time.Second,
		personality: "balanced",
		log:         logrus.StandardLogger().WithField("component", "director"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Director) systemPrompt(name string) string {
	return fmt.Sprintf(`You are %s, an AI opponent in a card duel.
Personality: %s

You receive game state JSON and respond with placement decision JSON.
Goal: reduce the enemy's HP or morale to 0.

Response format:
{"stacks":[{"position":2,"coreCard":"Attack","modifiers":["Power Strike"]}],"strategy":"brief"}

Rules:
- "position" must be from availablePositions
- "coreCard" must match one of availableActions exactly
- Each action can only be placed once per round
- Optional: "modifiers" lists card names from modifierCards
- Place at most ap actions

Reply with ONLY the JSON object, no markdown or text.`, name, d.personality)
}

// Plan asks for a placement. A reply that is not a placement is retried
// once with a stricter instruction.
func (d *Director) Plan(ctx context.Context, view placementView) (Placement, error) {
	if d == nil || d.provider == nil {
		return Placement{}, narration.ErrNoProvider
	}
	prompt, err := json.Marshal(view)
	if err != nil {
		return Placement{}, fmt.Errorf("encode placement view: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req := narration.Request{
		SystemPrompt: d.systemPrompt(view.AI.Name),
		Prompt:       string(prompt),
		Temperature:  0.4,
		MaxTokens:    300,
	}
	log := d.log.WithField("round", view.Round)
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := d.provider.Complete(ctx, req)
		if err != nil {
			return Placement{}, fmt.Errorf("placement request: %w", err)
		}
		if plan, ok := parsePlacement(resp.Text); ok {
			log.WithField("strategy", plan.Strategy).Debug("director placement")
			return plan, nil
		}
		log.WithField("attempt", attempt+1).Warn("unparseable placement")
		req.Prompt = string(prompt) + "\n\nIMPORTANT: Output ONLY valid JSON, no markdown."
	}
	return Placement{}, errNoPlan
}

// parsePlacement pulls the outermost JSON object out of content, which may
// be wrapped in prose or a code fence.
func parsePlacement(content string) (Placement, bool) {
	start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Placement{}, false
	}
	var p Placement
	if err := json.Unmarshal([]byte(content[start:end+1]), &p); err != nil || p.Stacks == nil {
		return Placement{}, false
	}
	return p, true
}

// DirectPlace lets the match's director place side's actions. Without a
// director, or when its plan fails or breaks a placement rule, it falls
// back to AutoPlace. The lock is released while the director thinks.
func (m *Match) DirectPlace(ctx context.Context, side engine.Side) error {
	m.Mu.Lock()
	if err := m.expect(PhasePlacement); err != nil {
		m.Mu.Unlock()
		return err
	}
	if m.director == nil {
		err := m.autoPlace(side)
		m.Mu.Unlock()
		return err
	}
	view := m.placementView(side)
	m.Mu.Unlock()

	plan, planErr := m.director.Plan(ctx, view)

	m.Mu.Lock()
	defer m.Mu.Unlock()
	if err := m.expect(PhasePlacement); err != nil {
		return err
	}
	if planErr == nil {
		planErr = m.applyPlan(side, plan)
	}
	if planErr != nil {
		m.log.WithError(planErr).WithField("side", side).Warn("director placement failed, using auto placement")
		return m.autoPlace(side)
	}
	return nil
}

// placementView assumes lock is held by caller.
func (m *Match) placementView(side engine.Side) placementView {
	c, foe := m.combatant(side), m.combatant(side.Other())
	var v placementView
	v.Type = "placement"
	v.Round = m.State.Round
	v.AI.Name = c.Name
	v.AI.vitalsView = vitalsView{HP: c.HP, Energy: c.Energy, Morale: c.Morale}
	v.AI.AvailableActions = []string{
		engine.ActionAttack, engine.ActionGuard, engine.ActionRest, engine.ActionFlee,
		engine.ActionTalk, engine.ActionInvestigate, engine.ActionUse,
	}
	for _, card := range c.Hand {
		effect := card.Effect
		if effect == "" {
			effect = card.Modifier
		}
		v.AI.ModifierCards = append(v.AI.ModifierCards, cardView{Name: card.Name, Type: card.Type, Effect: effect})
	}
	v.Foe = vitalsView{HP: foe.HP, Energy: foe.Energy, Morale: foe.Morale}
	for _, p := range m.State.ActionBar {
		if p.Owner == side && p.State == PositionEmpty {
			v.AvailablePositions = append(v.AvailablePositions, p.Index)
		}
	}
	v.AI.AP = len(v.AvailablePositions)
	return v
}

// applyPlan validates the whole plan before placing anything, so a
// rejected plan leaves the bar and hand untouched. Assumes lock is held by
// caller.
func (m *Match) applyPlan(side engine.Side, plan Placement) error {
	if len(plan.Stacks) == 0 {
		return errNoPlan
	}
	c := m.combatant(side)
	hand := make(map[string]int, len(c.Hand))
	for _, card := range c.Hand {
		hand[card.Name]++
	}
	usedPos := make(map[int]bool)
	usedAction := make(map[string]bool)
	for _, s := range plan.Stacks {
		pos := m.position(s.Position)
		if pos == nil || pos.Owner != side || pos.State != PositionEmpty || usedPos[s.Position] {
			return fmt.Errorf("%w: position %d", ErrNoPosition, s.Position)
		}
		if !coreActions[s.CoreCard] || usedAction[s.CoreCard] {
			return fmt.Errorf("%w: %s", ErrInvalidAction, s.CoreCard)
		}
		for _, name := range s.Modifiers {
			if hand[name] == 0 {
				return fmt.Errorf("%w: %s", ErrUnknownCard, name)
			}
			hand[name]--
		}
		usedPos[s.Position] = true
		usedAction[s.CoreCard] = true
	}
	for _, s := range plan.Stacks {
		if err := m.placeAt(side, m.position(s.Position), s.CoreCard, s.Modifiers); err != nil {
			return err
		}
	}
	return nil
}

// position returns the bar slot with the given 1-based index. Assumes lock
// is held by caller.
func (m *Match) position(index int) *Position {
	if index < 1 || index > len(m.State.ActionBar) {
		return nil
	}
	return &m.State.ActionBar[index-1]
}
