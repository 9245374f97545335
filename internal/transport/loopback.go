package transport

import (
	"sync"

	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/sirupsen/logrus"
)

// Loopback answers frames in-process. Replies are delivered in order on a
// single goroutine, never from inside Send.
type Loopback struct {
	resolve Resolver
	log     *logrus.Entry

	queue chan stream.Frame
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

var _ Transport = (*Loopback)(nil)

// NewLoopback returns an unstarted loopback transport.
func NewLoopback(opts ...Option) *Loopback {
	o := buildOptions(opts)
	return &Loopback{
		resolve: o.resolve,
		log:     o.log.WithField("transport", "loopback"),
		queue:   make(chan stream.Frame, o.queueSize),
		done:    make(chan struct{}),
	}
}

// Send queues f. It fails with stream.ErrClosed after Close.
func (l *Loopback) Send(f stream.Frame) error {
	select {
	case <-l.done:
		return stream.ErrClosed
	default:
	}
	select {
	case l.queue <- f:
		return nil
	case <-l.done:
		return stream.ErrClosed
	}
}

// Start delivers replies to h until Close.
func (l *Loopback) Start(h FrameHandler) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-l.done:
				return
			case f := <-l.queue:
				for _, reply := range answer(f, l.resolve, l.log) {
					h(reply)
				}
			}
		}
	}()
}

// Close stops delivery and waits for the delivery goroutine.
func (l *Loopback) Close() error {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
	return nil
}
