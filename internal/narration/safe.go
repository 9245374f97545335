package narration

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// SafeNarrator bounds every provider call with a timeout and falls back to
// canned lines on any failure.
type SafeNarrator struct {
	provider Provider
	profile  Profile
	timeout  time.Duration
	log      *logrus.Entry
}

// Option configures a SafeNarrator.
type Option func(*SafeNarrator)

// WithTimeout sets the per-call deadline. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(n *SafeNarrator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithProfile selects a persona by id. Unknown ids keep the default.
func WithProfile(id string) Option {
	return func(n *SafeNarrator) {
		if p, ok := Profiles[id]; ok {
			n.profile = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(n *SafeNarrator) { n.log = l.WithField("component", "narration") }
}

// NewSafeNarrator wraps p, which may be nil for fallback-only narration.
func NewSafeNarrator(p Provider, opts ...Option) *SafeNarrator {
	n := &SafeNarrator{
		provider: p,
		profile:  Profiles[DefaultProfile],
		timeout:  3 * time.Second,
		log:      logrus.StandardLogger().WithField("component", "narration"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Narrate asks the provider for a line and returns the fallback when it
// errors, times out or answers with nothing.
func (n *SafeNarrator) Narrate(ctx context.Context, trigger Trigger, nc Context) string {
	if n.provider == nil {
		return Fallback(trigger, nc)
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	type result struct {
		resp Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := n.provider.Complete(ctx, Request{
			SystemPrompt: SystemPrompt(n.profile),
			Prompt:       BuildPrompt(n.profile, trigger, nc),
			Temperature:  0.7,
		})
		ch <- result{resp, err}
	}()

	log := n.log.WithField("trigger", trigger)
	select {
	case <-ctx.Done():
		log.WithError(ctx.Err()).Warn("narration timed out")
		return Fallback(trigger, nc)
	case r := <-ch:
		if r.err != nil {
			log.WithError(r.err).Warn("narration failed")
			return Fallback(trigger, nc)
		}
		text := Parse(r.resp.Text).Text
		if text == "" {
			return Fallback(trigger, nc)
		}
		return text
	}
}
