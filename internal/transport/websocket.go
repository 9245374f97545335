package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Send when the outbound buffer is full.
var ErrQueueFull = errors.New("transport: outbound queue full")

// WebSocket is a client connection to a game server.
type WebSocket struct {
	conn         *websocket.Conn
	log          *logrus.Entry
	onDisconnect func(error)

	out    chan stream.Frame
	ctx    context.Context
	cancel context.CancelFunc

	closing   atomic.Bool
	closeOnce sync.Once
	failOnce  sync.Once
	wg        sync.WaitGroup
}

var _ Transport = (*WebSocket)(nil)

// Dial connects to url, presenting token as a bearer credential.
func Dial(ctx context.Context, url, token string, opts ...Option) (*WebSocket, error) {
	o := buildOptions(opts)

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	wctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		conn:         conn,
		log:          o.log.WithFields(logrus.Fields{"transport": "websocket", "url": url}),
		onDisconnect: o.onDisconnect,
		out:          make(chan stream.Frame, o.queueSize),
		ctx:          wctx,
		cancel:       cancel,
	}, nil
}

// Send queues f for the writer goroutine without blocking.
func (w *WebSocket) Send(f stream.Frame) error {
	if w.ctx.Err() != nil {
		return stream.ErrClosed
	}
	select {
	case w.out <- f:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the read and write loops.
func (w *WebSocket) Start(h FrameHandler) {
	w.wg.Add(2)
	go w.readLoop(h)
	go w.writeLoop()
}

func (w *WebSocket) readLoop(h FrameHandler) {
	defer w.wg.Done()
	for {
		_, data, err := w.conn.Read(w.ctx)
		if err != nil {
			w.fail(err)
			return
		}
		var f stream.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			w.log.WithError(err).Warn("dropping malformed frame")
			continue
		}
		h(f)
	}
}

func (w *WebSocket) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case f := <-w.out:
			b, err := json.Marshal(f)
			if err != nil {
				w.log.WithError(err).WithField("topic", f.Topic).Error("encode frame")
				continue
			}
			if err := w.conn.Write(w.ctx, websocket.MessageText, b); err != nil {
				w.fail(err)
				return
			}
		}
	}
}

// fail reports a lost connection once, unless Close got there first.
func (w *WebSocket) fail(err error) {
	if w.closing.Load() {
		return
	}
	w.failOnce.Do(func() {
		w.log.WithError(err).Warn("connection lost")
		w.cancel()
		w.conn.CloseNow()
		w.onDisconnect(err)
	})
}

// Close shuts the connection down and waits for both loops.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		w.closing.Store(true)
		if err := w.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
			w.log.WithError(err).Debug("close handshake")
		}
		w.cancel()
	})
	w.wg.Wait()
	return nil
}
