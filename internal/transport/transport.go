// Package transport carries game frames between a stream.Client and the
// server: over a websocket, or in-process through a loopback resolver.
package transport

import (
	"encoding/json"
	"strings"

	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/sirupsen/logrus"
)

// FrameHandler receives inbound frames, usually stream.Client.Dispatch.
type FrameHandler func(f stream.Frame)

// Transport is a started, closable stream.Sender.
type Transport interface {
	stream.Sender
	// Start begins delivering inbound frames to h. Frames sent before Start
	// are queued.
	Start(h FrameHandler)
	Close() error
}

// Resolver produces the completion payload of an action. An error is
// reported on the error topic instead.
type Resolver func(actionType string, params json.RawMessage) (any, error)

// EchoResolver completes every action with its own type and params.
func EchoResolver(actionType string, params json.RawMessage) (any, error) {
	return map[string]any{"actionType": actionType, "params": params}, nil
}

const defaultQueueSize = 64

type options struct {
	log          *logrus.Entry
	queueSize    int
	resolve      Resolver
	onDisconnect func(error)
}

// Option configures a transport.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l.WithField("component", "transport") }
}

// WithQueueSize sets the outbound buffer size.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithResolver sets the resolver used by Loopback and Server.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolve = r }
}

// WithOnDisconnect is called once when a websocket connection is lost. It
// is not called after Close.
func WithOnDisconnect(fn func(error)) Option {
	return func(o *options) { o.onDisconnect = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		log:          logrus.NewEntry(logrus.StandardLogger()).WithField("component", "transport"),
		queueSize:    defaultQueueSize,
		resolve:      EchoResolver,
		onDisconnect: func(error) {},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type dispatchRequest struct {
	ActionID   string          `json:"actionId"`
	ActionType string          `json:"actionType"`
	Params     json.RawMessage `json:"params"`
}

// answer produces the server's replies to one outbound game frame: start
// then complete (or error) for actions, an acknowledgement for cancels and
// a state push for subscriptions.
func answer(f stream.Frame, resolve Resolver, log *logrus.Entry) []stream.Frame {
	var out []stream.Frame
	reply := func(topic string, args ...any) {
		frame, err := stream.ArgsFrame(topic, args...)
		if err != nil {
			log.WithError(err).WithField("topic", topic).Error("encode reply")
			return
		}
		out = append(out, frame)
	}

	switch {
	case f.Topic == stream.TopicCancel:
		var env stream.CancelEnvelope
		if err := json.Unmarshal(f.Payload, &env); err != nil {
			log.WithError(err).Warn("malformed cancel")
			return nil
		}
		reply(stream.TopicCancel, env.ActionID)

	case f.Topic == stream.TopicSubscribe:
		var env stream.SubscriptionEnvelope
		if err := json.Unmarshal(f.Payload, &env); err != nil {
			log.WithError(err).Warn("malformed subscribe")
			return nil
		}
		reply(stream.PushStateUpdate.String(), env.CharID, map[string]any{"subscribed": true})

	case strings.HasPrefix(f.Topic, stream.TopicActionPrefix):
		var req dispatchRequest
		if err := json.Unmarshal(f.Payload, &req); err != nil {
			log.WithError(err).WithField("topic", f.Topic).Warn("malformed action")
			return nil
		}
		reply(stream.TopicActionPrefix+string(stream.ResponseStart), req.ActionID)
		result, err := resolve(req.ActionType, req.Params)
		if err != nil {
			reply(stream.TopicActionPrefix+string(stream.ResponseError), req.ActionID, map[string]any{"message": err.Error()})
		} else {
			reply(stream.TopicActionPrefix+string(stream.ResponseComplete), req.ActionID, result)
		}
	}
	return out
}
