// internal/match/director_test.go
package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/skirmish/engine"
	"github.com/jason-s-yu/skirmish/internal/narration"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider answers each completion with the next reply in order.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []string
	err      error
	block    bool
	requests []narration.Request
}

func (p *scriptedProvider) Complete(ctx context.Context, req narration.Request) (narration.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	n := len(p.requests)
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()
		return narration.Response{}, ctx.Err()
	}
	if p.err != nil {
		return narration.Response{}, p.err
	}
	if n > len(p.replies) {
		return narration.Response{Text: ""}, nil
	}
	return narration.Response{Text: p.replies[n-1]}, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// directedMatch is at PLACEMENT with the opponent owning positions 2 and 4.
func directedMatch(t *testing.T, p narration.Provider, opts ...DirectorOption) (*Match, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]DirectorOption{WithDirectorLogger(logger)}, opts...)
	m, _ := setupTestMatch(t, engine.NewScriptedDice(15, 5), WithLogger(logger), WithDirector(NewDirector(p, opts...)))
	_, err := m.RollInitiative()
	require.NoError(t, err)
	return m, hook
}

func fellBack(hook *test.Hook) bool {
	for _, e := range hook.AllEntries() {
		if e.Message == "director placement failed, using auto placement" {
			return true
		}
	}
	return false
}

func TestDirectPlaceUsesPlan(t *testing.T) {
	p := &scriptedProvider{replies: []string{"```json\n" +
		`{"stacks":[{"position":2,"coreCard":"Rest"},{"position":4,"coreCard":"Attack","modifiers":["Power Strike"]}],"strategy":"wear them down"}` +
		"\n```"}}
	m, hook := directedMatch(t, p)

	require.NoError(t, m.DirectPlace(context.Background(), engine.SideOpponent))
	assert.Equal(t, engine.ActionRest, m.State.ActionBar[1].Stack.CoreAction)
	atk := m.State.ActionBar[3].Stack
	assert.Equal(t, engine.ActionAttack, atk.CoreAction)
	require.Len(t, atk.Modifiers, 1)
	assert.Equal(t, "Power Strike", atk.Modifiers[0].Name)
	assert.False(t, inHand(m.State.Opponent, "Power Strike"))
	assert.False(t, fellBack(hook))

	require.Equal(t, 1, p.calls())
	req := p.requests[0]
	assert.Contains(t, req.SystemPrompt, "Rival")
	assert.Contains(t, req.Prompt, `"availablePositions":[2,4]`)
	assert.Contains(t, req.Prompt, `"name":"Power Strike"`)
}

func TestDirectPlaceRejectsBadPlans(t *testing.T) {
	for name, reply := range map[string]string{
		"unknown action":   `{"stacks":[{"position":2,"coreCard":"Dance"}]}`,
		"card not in hand": `{"stacks":[{"position":2,"coreCard":"Attack","modifiers":["Excalibur"]}]}`,
		"player position":  `{"stacks":[{"position":1,"coreCard":"Attack"}]}`,
		"repeated action":  `{"stacks":[{"position":2,"coreCard":"Rest"},{"position":4,"coreCard":"Rest"}]}`,
		"empty plan":       `{"stacks":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			m, hook := directedMatch(t, &scriptedProvider{replies: []string{reply}})

			require.NoError(t, m.DirectPlace(context.Background(), engine.SideOpponent))
			assert.True(t, fellBack(hook))
			for _, i := range []int{1, 3} {
				assert.Equal(t, PositionPlaced, m.State.ActionBar[i].State)
				assert.Equal(t, engine.ActionAttack, m.State.ActionBar[i].Stack.CoreAction)
			}
			assert.Equal(t, PositionEmpty, m.State.ActionBar[0].State, "player positions are untouched")
		})
	}
}

func TestDirectPlaceRetriesUnparseableReply(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		"I think I will attack twice!",
		`{"stacks":[{"position":4,"coreCard":"Guard"}]}`,
	}}
	m, hook := directedMatch(t, p)

	require.NoError(t, m.DirectPlace(context.Background(), engine.SideOpponent))
	require.Equal(t, 2, p.calls())
	assert.Contains(t, p.requests[1].Prompt, "Output ONLY valid JSON")
	assert.Equal(t, engine.ActionGuard, m.State.ActionBar[3].Stack.CoreAction)
	assert.Equal(t, PositionEmpty, m.State.ActionBar[1].State, "a partial plan leaves the rest free")
	assert.False(t, fellBack(hook))
}

func TestDirectPlaceFallsBack(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		p := &scriptedProvider{err: errors.New("rate limited")}
		m, hook := directedMatch(t, p)
		require.NoError(t, m.DirectPlace(context.Background(), engine.SideOpponent))
		assert.True(t, fellBack(hook))
		assert.Equal(t, 1, p.calls(), "transport errors are not retried")
		assert.Equal(t, engine.ActionAttack, m.State.ActionBar[1].Stack.CoreAction)
	})

	t.Run("timeout", func(t *testing.T) {
		p := &scriptedProvider{block: true}
		m, hook := directedMatch(t, p, WithDirectorTimeout(20*time.Millisecond))
		start := time.Now()
		require.NoError(t, m.DirectPlace(context.Background(), engine.SideOpponent))
		assert.Less(t, time.Since(start), time.Second)
		assert.True(t, fellBack(hook))
		assert.Equal(t, engine.ActionAttack, m.State.ActionBar[3].Stack.CoreAction)
	})

	t.Run("two unparseable replies", func(t *testing.T) {
		p := &scriptedProvider{replies: []string{"no", "still no"}}
		m, hook := directedMatch(t, p)
		require.NoError(t, m.DirectPlace(context.Background(), engine.SideOpponent))
		assert.Equal(t, 2, p.calls())
		assert.True(t, fellBack(hook))
	})
}

func TestDirectPlaceWithoutDirector(t *testing.T) {
	m, _ := setupTestMatch(t, engine.NewScriptedDice(15, 5))
	assert.ErrorIs(t, m.DirectPlace(context.Background(), engine.SideOpponent), ErrWrongPhase)

	_, err := m.RollInitiative()
	require.NoError(t, err)
	require.NoError(t, m.DirectPlace(context.Background(), engine.SideOpponent))
	assert.Equal(t, engine.ActionAttack, m.State.ActionBar[1].Stack.CoreAction)

	var d *Director
	_, err = d.Plan(context.Background(), placementView{})
	assert.ErrorIs(t, err, narration.ErrNoProvider)
}
