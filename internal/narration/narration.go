// Package narration turns match events into short flavour text using a
// language model. Narration is optional: every failure degrades to a canned
// line or to silence.
package narration

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoProvider is returned when no completion endpoint is configured.
var ErrNoProvider = errors.New("narration: no provider configured")

// Trigger names the match moment being narrated.
type Trigger string

const (
	TriggerGameStart       Trigger = "game_start"
	TriggerRoundStart      Trigger = "round_start"
	TriggerEncounterReveal Trigger = "encounter_reveal"
	TriggerStackReveal     Trigger = "stack_reveal"
	TriggerResolution      Trigger = "resolution"
	TriggerRoundEnd        Trigger = "round_end"
	TriggerGameEnd         Trigger = "game_end"
)

// Context carries the facts a prompt is built from. Unused fields are
// left zero.
type Context struct {
	PlayerName    string
	OpponentName  string
	Round         int
	Rounds        int
	PlayerHP      int
	OpponentHP    int
	MaxHP         int
	Winner        string
	Loser         string
	PlayerVictory bool
	PlayerStack   string
	OpponentStack string
	PlayerRoll    string // e.g. "14 (raw 11)"
	OpponentRoll  string
	Outcome       string
	Damage        int
	Threat        string
}

// Narrator produces narration for a trigger. Implementations never fail;
// an empty string means nothing to say.
type Narrator interface {
	Narrate(ctx context.Context, trigger Trigger, nc Context) string
}

// Request is a single completion call.
type Request struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float32
	MaxTokens    int
}

// Response is the provider's answer.
type Response struct {
	Text         string
	FinishReason string
	Model        string
}

// Provider is a text completion backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Profile is a narrator persona.
type Profile struct {
	ID           string
	Name         string
	Personality  string
	MaxSentences map[Trigger]int
}

// Profiles are the built-in personas.
var Profiles = map[string]Profile{
	"arena-announcer": {
		ID:          "arena-announcer",
		Name:        "Arena Announcer",
		Personality: "Bombastic sports commentator. Over-the-top excitement, play-by-play analysis.",
		MaxSentences: map[Trigger]int{
			TriggerGameStart: 3, TriggerRoundStart: 2, TriggerResolution: 4, TriggerRoundEnd: 1, TriggerGameEnd: 3,
		},
	},
	"dungeon-master": {
		ID:          "dungeon-master",
		Name:        "Dungeon Master",
		Personality: "Classic tabletop DM. Atmospheric, descriptive, world-building.",
		MaxSentences: map[Trigger]int{
			TriggerGameStart: 3, TriggerRoundStart: 2, TriggerResolution: 4, TriggerRoundEnd: 2, TriggerGameEnd: 3,
		},
	},
	"war-correspondent": {
		ID:          "war-correspondent",
		Name:        "War Correspondent",
		Personality: "Gritty battlefield reporter. Terse, factual with emotional undertones.",
		MaxSentences: map[Trigger]int{
			TriggerGameStart: 2, TriggerRoundStart: 1, TriggerResolution: 3, TriggerRoundEnd: 1, TriggerGameEnd: 2,
		},
	},
	"bard": {
		ID:          "bard",
		Name:        "Bard",
		Personality: "Poetic narrator. Speaks in rhythm, references lore, foreshadows.",
		MaxSentences: map[Trigger]int{
			TriggerGameStart: 3, TriggerRoundStart: 2, TriggerResolution: 5, TriggerRoundEnd: 2, TriggerGameEnd: 4,
		},
	},
}

// DefaultProfile is used when no persona is chosen.
const DefaultProfile = "arena-announcer"

// SystemPrompt is the persona instruction sent with every request.
func SystemPrompt(p Profile) string {
	return fmt.Sprintf(`You are a %s narrating a card game battle.

Personality: %s

You will receive game events and must provide brief, engaging narration.
Match the tone to the event (dramatic for combat, tense for close calls).
For RESOLUTION events, you may add a line starting with "IMAGE:" describing a single dramatic moment.

Respond with plain text narration only. No JSON, no markdown.`, p.Name, p.Personality)
}

// BuildPrompt renders the event description for trigger.
func BuildPrompt(p Profile, trigger Trigger, nc Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "EVENT: %s\n", strings.ToUpper(string(trigger)))

	switch trigger {
	case TriggerGameStart:
		fmt.Fprintf(&b, "A new battle begins!\n%s faces %s\nIntroduce both combatants dramatically.\n", nc.PlayerName, nc.OpponentName)
	case TriggerGameEnd:
		fmt.Fprintf(&b, "The battle is over after %d rounds!\nWinner: %s\nDefeated: %s\n", nc.Rounds, nc.Winner, nc.Loser)
		if nc.PlayerVictory {
			b.WriteString("Celebrate the player's victory!\n")
		} else {
			b.WriteString("Commiserate the player's defeat.\n")
		}
	case TriggerRoundStart:
		fmt.Fprintf(&b, "Round %d\nPlayer HP: %d/%d, Opponent HP: %d/%d\n", nc.Round, nc.PlayerHP, nc.MaxHP, nc.OpponentHP, nc.MaxHP)
	case TriggerEncounterReveal:
		fmt.Fprintf(&b, "A threat appears: %s\n", nc.Threat)
	case TriggerStackReveal, TriggerResolution:
		fmt.Fprintf(&b, "Player played: %s\n", orNothing(nc.PlayerStack))
		fmt.Fprintf(&b, "Player roll: %s\n", orUnknown(nc.PlayerRoll))
		fmt.Fprintf(&b, "Opponent played: %s\n", orNothing(nc.OpponentStack))
		fmt.Fprintf(&b, "Opponent roll: %s\n", orUnknown(nc.OpponentRoll))
		fmt.Fprintf(&b, "Result: %s (%d damage)\n", nc.Outcome, nc.Damage)
	case TriggerRoundEnd:
		fmt.Fprintf(&b, "Round %d complete\nPlayer HP: %d, Opponent HP: %d\n", nc.Round, nc.PlayerHP, nc.OpponentHP)
	}

	n := p.MaxSentences[trigger]
	if n == 0 {
		n = 3
	}
	fmt.Fprintf(&b, "\nNarrate in %d sentences or less.", n)
	return b.String()
}

func orNothing(s string) string {
	if s == "" {
		return "nothing"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

// Narration is a parsed model answer.
type Narration struct {
	Text        string
	ImagePrompt string
}

// Parse joins the non-empty lines of content and pulls out an "IMAGE:" line.
func Parse(content string) Narration {
	var n Narration
	var parts []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) >= 6 && strings.EqualFold(line[:6], "IMAGE:") {
			n.ImagePrompt = strings.TrimSpace(line[6:])
			continue
		}
		parts = append(parts, line)
	}
	n.Text = strings.Join(parts, " ")
	return n
}

// Fallback is the canned line for trigger, or "" when there is none.
func Fallback(trigger Trigger, nc Context) string {
	switch trigger {
	case TriggerGameStart:
		if nc.PlayerName != "" && nc.OpponentName != "" {
			return fmt.Sprintf("%s squares off against %s.", nc.PlayerName, nc.OpponentName)
		}
		return "The combatants take their places."
	case TriggerRoundStart:
		return fmt.Sprintf("Round %d begins.", nc.Round)
	case TriggerEncounterReveal:
		if nc.Threat != "" {
			return fmt.Sprintf("%s emerges!", nc.Threat)
		}
	case TriggerRoundEnd:
		return fmt.Sprintf("Round %d is over.", nc.Round)
	case TriggerGameEnd:
		if nc.Winner != "" {
			return fmt.Sprintf("%s is victorious.", nc.Winner)
		}
		return "The battle ends."
	}
	return ""
}
