package stream

// Handlers names one slot per push topic. Nil slots are left unbound.
type Handlers struct {
	OnSituationUpdate  PushHandler
	OnStateUpdate      PushHandler
	OnThreatDetected   PushHandler
	OnThreatRemoved    PushHandler
	OnThreatChanged    PushHandler
	OnNpcMoved         PushHandler
	OnNpcAction        PushHandler
	OnNpcDied          PushHandler
	OnInteractionStart PushHandler
	OnInteractionPhase PushHandler
	OnInteractionEnd   PushHandler
	OnTimeAdvanced     PushHandler
	OnIncrementEnd     PushHandler
	OnEventOccurred    PushHandler
}

func (h Handlers) byTopic() map[PushTopic]PushHandler {
	return map[PushTopic]PushHandler{
		PushSituationUpdate:  h.OnSituationUpdate,
		PushStateUpdate:      h.OnStateUpdate,
		PushThreatDetected:   h.OnThreatDetected,
		PushThreatRemoved:    h.OnThreatRemoved,
		PushThreatChanged:    h.OnThreatChanged,
		PushNpcMoved:         h.OnNpcMoved,
		PushNpcAction:        h.OnNpcAction,
		PushNpcDied:          h.OnNpcDied,
		PushInteractionStart: h.OnInteractionStart,
		PushInteractionPhase: h.OnInteractionPhase,
		PushInteractionEnd:   h.OnInteractionEnd,
		PushTimeAdvanced:     h.OnTimeAdvanced,
		PushIncrementEnd:     h.OnIncrementEnd,
		PushEventOccurred:    h.OnEventOccurred,
	}
}

// SetHandlers replaces every handler slot at once.
func (c *Client) SetHandlers(h Handlers) {
	next := make(map[PushTopic]PushHandler)
	for t, fn := range h.byTopic() {
		if fn != nil {
			next[t] = fn
		}
	}
	c.mu.Lock()
	c.handlers = next
	c.mu.Unlock()
}
