// internal/stream/client.go
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownAction is returned when an action id is not registered.
	ErrUnknownAction = errors.New("stream: unknown action")
	// ErrClosed is returned by senders once the channel is gone.
	ErrClosed = errors.New("stream: closed")
	// ErrActionFailed wraps payloads delivered on the error topic.
	ErrActionFailed = errors.New("stream: action failed")
)

// Sender puts a frame on the shared channel. Implementations must not block
// on the network.
type Sender interface {
	Send(f Frame) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(f Frame) error

func (fn SenderFunc) Send(f Frame) error { return fn(f) }

// Hook receives the id of the action and its decoded payload.
type Hook func(actionID string, payload any)

// Callbacks are the hooks of one in-flight action. Nil hooks are no-ops.
type Callbacks struct {
	OnStart     Hook
	OnProgress  Hook
	OnComplete  Hook
	OnError     Hook
	OnInterrupt Hook
}

func (cb Callbacks) hook(r Response) Hook {
	var fn Hook
	switch r {
	case ResponseStart:
		fn = cb.OnStart
	case ResponseProgress:
		fn = cb.OnProgress
	case ResponseComplete:
		fn = cb.OnComplete
	case ResponseError:
		fn = cb.OnError
	case ResponseInterrupt:
		fn = cb.OnInterrupt
	}
	if fn == nil {
		return func(string, any) {}
	}
	return fn
}

// ActionState is the lifecycle state of a registration.
type ActionState string

const (
	StateActive        ActionState = "active"
	StatePendingCancel ActionState = "pending-cancel"
)

// InFlightAction is a registered, not yet terminal action.
type InFlightAction struct {
	ID     string
	Type   string
	Params any
	State  ActionState

	cb   Callbacks
	done chan ActionResult // nil unless created through Execute
}

// ActionResult is the terminal outcome delivered to an Execute future.
type ActionResult struct {
	ID        string
	Type      string
	Payload   any
	Err       error // set for the error topic
	Cancelled bool  // the server acknowledged a cancel
	Cleared   bool  // dropped by ClearActiveActions
}

// PushHandler receives the decoded positional arguments of a push topic.
type PushHandler func(args ...any)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default is the standard logrus logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l.WithField("component", "stream") }
}

// Client correlates actions with their responses and routes push messages
// to handlers. It is safe for concurrent use; callbacks and handlers run on
// the goroutine that routed the message, never under the client's lock.
type Client struct {
	sender Sender
	log    *logrus.Entry

	mu         sync.Mutex
	actions    map[string]*InFlightAction
	subscribed map[string]struct{}
	handlers   map[PushTopic]PushHandler
}

// New returns a client that writes to sender.
func New(sender Sender, opts ...Option) *Client {
	c := &Client{
		sender:     sender,
		log:        logrus.NewEntry(logrus.StandardLogger()).WithField("component", "stream"),
		actions:    make(map[string]*InFlightAction),
		subscribed: make(map[string]struct{}),
		handlers:   make(map[PushTopic]PushHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// ExecuteAction registers cb under a fresh id, sends the dispatch envelope
// and returns the id without waiting for any response.
func (c *Client) ExecuteAction(actionType string, params any, cb Callbacks) string {
	return c.execute(actionType, params, cb, nil)
}

// Execute is ExecuteAction with a future: the channel receives exactly one
// terminal result and is then closed.
func (c *Client) Execute(actionType string, params any) (string, <-chan ActionResult) {
	done := make(chan ActionResult, 1)
	id := c.execute(actionType, params, Callbacks{}, done)
	return id, done
}

func (c *Client) execute(actionType string, params any, cb Callbacks, done chan ActionResult) string {
	if params == nil {
		params = map[string]any{}
	}

	c.mu.Lock()
	id := uuid.NewString()
	for c.actions[id] != nil {
		id = uuid.NewString()
	}
	c.actions[id] = &InFlightAction{ID: id, Type: actionType, Params: params, State: StateActive, cb: cb, done: done}
	c.mu.Unlock()

	log := c.log.WithFields(logrus.Fields{"actionId": id, "actionType": actionType})
	f, err := NewFrame(ActionTopic(actionType), DispatchEnvelope{ActionID: id, ActionType: actionType, Params: params})
	if err == nil {
		err = c.sender.Send(f)
	}
	if err != nil {
		// The registration stays; a disconnect clears it with the rest.
		log.WithError(err).Error("send action")
		return id
	}
	log.Debug("action dispatched")
	return id
}

// CancelAction asks the server to cancel an action and reports whether a
// cancel request is outstanding. Unknown ids are logged and nothing is sent.
// The registration stays until the server answers; if the request cannot be
// sent the action goes back to active so the cancel can be retried.
func (c *Client) CancelAction(id string) bool {
	c.mu.Lock()
	a := c.actions[id]
	if a == nil {
		c.mu.Unlock()
		c.log.WithField("actionId", id).Warn("cancel requested for unknown action")
		return false
	}
	if a.State == StatePendingCancel {
		c.mu.Unlock()
		return true
	}
	a.State = StatePendingCancel
	c.mu.Unlock()

	f, err := NewFrame(TopicCancel, CancelEnvelope{ActionID: id, Cancel: true})
	if err == nil {
		err = c.sender.Send(f)
	}
	if err != nil {
		c.log.WithError(err).WithField("actionId", id).Error("send cancel")
		c.mu.Lock()
		if a := c.actions[id]; a != nil && a.State == StatePendingCancel {
			a.State = StateActive
		}
		c.mu.Unlock()
		return false
	}
	return true
}

// RouteActionMessage delivers an inbound action message. Messages for ids
// that are not registered are dropped.
func (c *Client) RouteActionMessage(topic, id string, payload []byte) {
	resp, ok := ParseResponse(topic)
	if !ok {
		c.log.WithFields(logrus.Fields{"topic": topic, "actionId": id}).Warn("unknown action topic")
		return
	}

	c.mu.Lock()
	a := c.actions[id]
	if a == nil {
		c.mu.Unlock()
		c.log.WithFields(logrus.Fields{"topic": topic, "actionId": id}).Debug("dropping message for stale action")
		return
	}
	if resp.terminal() {
		delete(c.actions, id)
	}
	cb, done, actionType := a.cb, a.done, a.Type
	c.mu.Unlock()

	if resp == ResponseCancel {
		finish(done, ActionResult{ID: id, Type: actionType, Cancelled: true})
		return
	}

	data := DecodePayload(payload)
	cb.hook(resp)(id, data)

	switch resp {
	case ResponseComplete:
		finish(done, ActionResult{ID: id, Type: actionType, Payload: data})
	case ResponseError:
		finish(done, ActionResult{ID: id, Type: actionType, Payload: data, Err: fmt.Errorf("%w: %s", ErrActionFailed, errorText(data))})
	}
}

func finish(done chan ActionResult, r ActionResult) {
	if done == nil {
		return
	}
	done <- r
	close(done)
}

func errorText(data any) string {
	if m, ok := data.(map[string]any); ok {
		for _, k := range []string{"message", "error", "raw"} {
			if s, ok := m[k].(string); ok {
				return s
			}
		}
	}
	b, _ := json.Marshal(data)
	return string(b)
}

// IsActionActive reports whether the id is registered.
func (c *Client) IsActionActive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions[id] != nil
}

// ActionType returns the type of a registered action.
func (c *Client) ActionType(id string) (string, bool) {
	a, err := c.Lookup(id)
	if err != nil {
		return "", false
	}
	return a.Type, true
}

// Lookup returns a copy of a registration.
func (c *Client) Lookup(id string) (InFlightAction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.actions[id]
	if a == nil {
		return InFlightAction{}, fmt.Errorf("%w: %s", ErrUnknownAction, id)
	}
	return *a, nil
}

// ActiveActions returns the number of registered actions.
func (c *Client) ActiveActions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.actions)
}

// ClearActiveActions drops every registration without sending cancels.
// Pending futures receive a Cleared result. Returns how many were dropped.
func (c *Client) ClearActiveActions() int {
	c.mu.Lock()
	cleared := c.actions
	c.actions = make(map[string]*InFlightAction)
	c.mu.Unlock()

	for id, a := range cleared {
		finish(a.done, ActionResult{ID: id, Type: a.Type, Cleared: true})
	}
	if len(cleared) > 0 {
		c.log.WithField("count", len(cleared)).Info("cleared in-flight actions")
	}
	return len(cleared)
}

// ---------------------------------------------------------------------------
// Subscriptions and push
// ---------------------------------------------------------------------------

// Subscribe starts push delivery for charID. Subscribing twice is a no-op.
// The id is only recorded once the envelope is sent.
func (c *Client) Subscribe(charID string) error {
	if c.IsSubscribed(charID) {
		return nil
	}
	if err := c.sendSubscription(TopicSubscribe, SubscriptionEnvelope{Subscribe: true, CharID: charID}); err != nil {
		return err
	}
	c.mu.Lock()
	c.subscribed[charID] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Unsubscribe stops push delivery for charID. Unknown ids are a no-op.
// The id stays subscribed if the envelope cannot be sent.
func (c *Client) Unsubscribe(charID string) error {
	if !c.IsSubscribed(charID) {
		return nil
	}
	if err := c.sendSubscription(TopicUnsubscribe, SubscriptionEnvelope{Unsubscribe: true, CharID: charID}); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.subscribed, charID)
	c.mu.Unlock()
	return nil
}

// UnsubscribeAll sends one unsubscribe per subscribed id, then clears the
// subscription set and every handler.
func (c *Client) UnsubscribeAll() error {
	c.mu.Lock()
	ids := c.sortedSubscriptions()
	c.subscribed = make(map[string]struct{})
	c.handlers = make(map[PushTopic]PushHandler)
	c.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := c.sendSubscription(TopicUnsubscribe, SubscriptionEnvelope{Unsubscribe: true, CharID: id}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) sendSubscription(topic string, env SubscriptionEnvelope) error {
	f, err := NewFrame(topic, env)
	if err != nil {
		return err
	}
	if err := c.sender.Send(f); err != nil {
		return fmt.Errorf("send %s %s: %w", topic, env.CharID, err)
	}
	return nil
}

// IsSubscribed reports whether charID receives push events.
func (c *Client) IsSubscribed(charID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscribed[charID]
	return ok
}

// SubscribedCharacters returns the subscribed ids, sorted.
func (c *Client) SubscribedCharacters() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedSubscriptions()
}

func (c *Client) sortedSubscriptions() []string {
	ids := make([]string, 0, len(c.subscribed))
	for id := range c.subscribed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Handle binds h to a push topic. A nil handler unbinds it.
func (c *Client) Handle(topic PushTopic, h PushHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil {
		delete(c.handlers, topic)
		return
	}
	c.handlers[topic] = h
}

// RoutePushMessage decodes args and calls the handler bound to topic.
// Unknown topics are logged and dropped; unbound topics are ignored.
func (c *Client) RoutePushMessage(topic string, args ...json.RawMessage) {
	t := ParsePushTopic(topic)
	if t == PushUnknown {
		c.log.WithField("topic", topic).Warn("unknown push topic")
		return
	}
	c.mu.Lock()
	h := c.handlers[t]
	c.mu.Unlock()
	if h == nil {
		return
	}
	decoded := make([]any, len(args))
	for i, a := range args {
		decoded[i] = DecodeArg(a)
	}
	h(decoded...)
}

// Dispatch routes one inbound frame. It is the entry point for transports.
func (c *Client) Dispatch(f Frame) {
	if f.Tag != Tag {
		return
	}
	args := f.Args()
	if _, ok := ParseResponse(f.Topic); ok {
		if len(args) == 0 {
			c.log.WithField("topic", f.Topic).Warn("action message without id")
			return
		}
		var id string
		if err := json.Unmarshal(args[0], &id); err != nil {
			c.log.WithField("topic", f.Topic).WithError(err).Warn("action message with malformed id")
			return
		}
		var payload []byte
		if len(args) > 1 {
			payload = unquote(args[1])
		}
		c.RouteActionMessage(f.Topic, id, payload)
		return
	}
	c.RoutePushMessage(f.Topic, args...)
}
