package stream

import "strings"

// Tag is the top-level tag of every frame the game layer owns. Frames with
// other tags belong to other features sharing the channel.
const Tag = "game"

// Outbound topics.
const (
	TopicActionPrefix = "game.action."
	TopicCancel       = "game.action.cancel"
	TopicSubscribe    = "game.subscribe"
	TopicUnsubscribe  = "game.unsubscribe"
)

// ActionTopic returns the dispatch topic for an action type.
func ActionTopic(actionType string) string { return TopicActionPrefix + actionType }

// Response is the kind of an inbound action message.
type Response string

const (
	ResponseStart     Response = "start"
	ResponseProgress  Response = "progress"
	ResponseComplete  Response = "complete"
	ResponseError     Response = "error"
	ResponseInterrupt Response = "interrupt"
	ResponseCancel    Response = "cancel" // acknowledgement of a cancel request
)

// ParseResponse accepts either the bare kind ("complete") or the full topic
// ("game.action.complete").
func ParseResponse(topic string) (Response, bool) {
	r := Response(strings.TrimPrefix(topic, TopicActionPrefix))
	switch r {
	case ResponseStart, ResponseProgress, ResponseComplete, ResponseError, ResponseInterrupt, ResponseCancel:
		return r, true
	}
	return "", false
}

// terminal reports whether the response removes the registration.
func (r Response) terminal() bool {
	return r == ResponseComplete || r == ResponseError || r == ResponseCancel
}

// PushTopic is the closed set of server push topics.
type PushTopic int

const (
	PushUnknown PushTopic = iota
	PushSituationUpdate
	PushStateUpdate
	PushThreatDetected
	PushThreatRemoved
	PushThreatChanged
	PushNpcMoved
	PushNpcAction
	PushNpcDied
	PushInteractionStart
	PushInteractionPhase
	PushInteractionEnd
	PushTimeAdvanced
	PushIncrementEnd
	PushEventOccurred
)

var pushTopicNames = map[PushTopic]string{
	PushSituationUpdate:  "game.situation.update",
	PushStateUpdate:      "game.state.update",
	PushThreatDetected:   "game.threat.detected",
	PushThreatRemoved:    "game.threat.removed",
	PushThreatChanged:    "game.threat.changed",
	PushNpcMoved:         "game.npc.moved",
	PushNpcAction:        "game.npc.action",
	PushNpcDied:          "game.npc.died",
	PushInteractionStart: "game.interaction.start",
	PushInteractionPhase: "game.interaction.phase",
	PushInteractionEnd:   "game.interaction.end",
	PushTimeAdvanced:     "game.time.advanced",
	PushIncrementEnd:     "game.increment.end",
	PushEventOccurred:    "game.event.occurred",
}

var pushTopicsByName = func() map[string]PushTopic {
	m := make(map[string]PushTopic, len(pushTopicNames))
	for t, name := range pushTopicNames {
		m[name] = t
	}
	return m
}()

// ParsePushTopic maps a wire topic to its PushTopic, or PushUnknown.
func ParsePushTopic(s string) PushTopic {
	return pushTopicsByName[s]
}

// String returns the wire topic.
func (t PushTopic) String() string {
	if name, ok := pushTopicNames[t]; ok {
		return name
	}
	return "unknown"
}

// PushTopics returns every known push topic in declaration order.
func PushTopics() []PushTopic {
	out := make([]PushTopic, 0, len(pushTopicNames))
	for t := PushSituationUpdate; t <= PushEventOccurred; t++ {
		out = append(out, t)
	}
	return out
}
