// internal/match/push.go
package match

import (
	"fmt"

	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/sirupsen/logrus"
)

// Watch binds a handler for every push topic on the match's client and
// subscribes charID. Each push is republished as an EventPush.
func (m *Match) Watch(charID string) error {
	for _, t := range stream.PushTopics() {
		m.client.Handle(t, m.onPush(t))
	}
	if err := m.client.Subscribe(charID); err != nil {
		return fmt.Errorf("watch %s: %w", charID, err)
	}
	m.log.WithField("charId", charID).Debug("watching pushes")
	return nil
}

// Unwatch unsubscribes every watched id and unbinds the handlers.
func (m *Match) Unwatch() error {
	return m.client.UnsubscribeAll()
}

func (m *Match) onPush(t stream.PushTopic) stream.PushHandler {
	return func(args ...any) {
		m.Mu.Lock()
		defer m.Mu.Unlock()

		log := m.log.WithFields(logrus.Fields{"topic": t.String(), "args": len(args)})
		switch t {
		case stream.PushThreatDetected, stream.PushThreatChanged, stream.PushThreatRemoved:
			log.Info("threat push")
		default:
			log.Debug("push received")
		}
		m.fireEvent(GameEvent{Type: EventPush, Payload: map[string]any{"topic": t.String(), "args": args}})
	}
}
