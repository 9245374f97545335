package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jason-s-yu/skirmish/internal/config"
	"github.com/jason-s-yu/skirmish/internal/narration"
	"github.com/jason-s-yu/skirmish/internal/transport"
	"github.com/sirupsen/logrus"
)

type interactParams struct {
	NPC     string `json:"npc"`
	Message string `json:"message"`
}

// provider returns the configured completion provider, or nil when
// narration is not configured.
func provider(cfg config.Config, log logrus.FieldLogger) narration.Provider {
	p, err := narration.NewHTTPProvider(cfg.NarrationURL, cfg.NarrationKey, cfg.NarrationModel, &http.Client{})
	if err != nil {
		log.WithError(err).Info("narration provider disabled, using canned lines")
		return nil
	}
	return p
}

// gameResolver answers interact actions with an in-character reply from p
// and echoes everything else. Without a provider interact is echoed too and
// the match falls back to a canned reply.
func gameResolver(p narration.Provider, timeout time.Duration) transport.Resolver {
	return func(actionType string, params json.RawMessage) (any, error) {
		if actionType != "interact" || p == nil {
			return transport.EchoResolver(actionType, params)
		}
		var in interactParams
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, fmt.Errorf("interact params: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := p.Complete(ctx, narration.Request{
			SystemPrompt: fmt.Sprintf("You are %s, a duelist mid-fight. Answer your opponent in one or two short in-character sentences.", in.NPC),
			Prompt:       in.Message,
			Temperature:  0.9,
			MaxTokens:    80,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"reply": resp.Text}, nil
	}
}
