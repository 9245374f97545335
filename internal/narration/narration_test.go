package narration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerFunc func(ctx context.Context, req Request) (Response, error)

func (f providerFunc) Complete(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

func setupNarrator(t *testing.T, p Provider, opts ...Option) (*SafeNarrator, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	opts = append([]Option{WithLogger(logger)}, opts...)
	return NewSafeNarrator(p, opts...), hook
}

func TestSafeNarratorUsesProvider(t *testing.T) {
	var got Request
	n, _ := setupNarrator(t, providerFunc(func(_ context.Context, req Request) (Response, error) {
		got = req
		return Response{Text: "The crowd roars!\nIMAGE: a knight mid-swing\nSteel meets steel."}, nil
	}), WithProfile("bard"))

	text := n.Narrate(context.Background(), TriggerResolution, Context{PlayerStack: "Attack", Outcome: "hit", Damage: 4})
	assert.Equal(t, "The crowd roars! Steel meets steel.", text)
	assert.Contains(t, got.SystemPrompt, "Bard")
	assert.Contains(t, got.Prompt, "EVENT: RESOLUTION")
	assert.Contains(t, got.Prompt, "Player played: Attack")
	assert.Contains(t, got.Prompt, "Opponent played: nothing")
	assert.Contains(t, got.Prompt, "Narrate in 5 sentences or less.")
}

func TestSafeNarratorFallbacks(t *testing.T) {
	failing := providerFunc(func(context.Context, Request) (Response, error) { return Response{}, errors.New("rate limited") })
	empty := providerFunc(func(context.Context, Request) (Response, error) { return Response{Text: "IMAGE: only a picture"}, nil })
	slow := providerFunc(func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})

	tests := []struct {
		name string
		p    Provider
		warn bool
	}{
		{"no provider", nil, false},
		{"error", failing, true},
		{"empty text", empty, false},
		{"timeout", slow, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, hook := setupNarrator(t, tt.p, WithTimeout(20*time.Millisecond))
			text := n.Narrate(context.Background(), TriggerRoundStart, Context{Round: 3})
			assert.Equal(t, "Round 3 begins.", text)
			if tt.warn {
				require.NotNil(t, hook.LastEntry())
				assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
			} else {
				assert.Empty(t, hook.AllEntries())
			}
		})
	}
}

func TestFallbackSilentForResolution(t *testing.T) {
	assert.Equal(t, "", Fallback(TriggerResolution, Context{}))
	assert.Equal(t, "Ana is victorious.", Fallback(TriggerGameEnd, Context{Winner: "Ana"}))
	assert.Equal(t, "The combatants take their places.", Fallback(TriggerGameStart, Context{}))
}

func TestParse(t *testing.T) {
	n := Parse("  First line. \n\nimage:  dusk over the arena \nSecond line.")
	assert.Equal(t, "First line. Second line.", n.Text)
	assert.Equal(t, "dusk over the arena", n.ImagePrompt)
}

func TestBuildPromptGameEnd(t *testing.T) {
	p := BuildPrompt(Profiles["war-correspondent"], TriggerGameEnd, Context{Rounds: 6, Winner: "Ana", Loser: "Bram", PlayerVictory: true})
	assert.Contains(t, p, "after 6 rounds")
	assert.Contains(t, p, "Celebrate")
	assert.Contains(t, p, "Narrate in 2 sentences or less.")
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tiny", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"tiny-1","choices":[{"message":{"role":"assistant","content":"Hello."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(srv.URL+"/v1/", "k", "tiny", srv.Client())
	require.NoError(t, err)
	resp, err := p.Complete(context.Background(), Request{SystemPrompt: "sys", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello.", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "tiny-1", resp.Model)
}

func TestHTTPProviderErrors(t *testing.T) {
	_, err := NewHTTPProvider("", "", "", nil)
	assert.ErrorIs(t, err, ErrNoProvider)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(srv.URL, "", "m", nil)
	require.NoError(t, err)
	_, err = p.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()
	p, err = NewHTTPProvider(empty.URL, "", "m", nil)
	require.NoError(t, err)
	_, err = p.Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorContains(t, err, "no choices")
}
