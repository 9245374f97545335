package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/skirmish/internal/auth"
	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/sirupsen/logrus"
)

// Server is a websocket endpoint that answers game frames with a Resolver.
// Connections must present a bearer token signed with the server secret.
type Server struct {
	secret  []byte
	resolve Resolver
	log     *logrus.Entry
}

// NewServer returns a handler verifying tokens against secret.
func NewServer(secret []byte, opts ...Option) *Server {
	o := buildOptions(opts)
	return &Server{secret: secret, resolve: o.resolve, log: o.log.WithField("transport", "server")}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return tok
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP upgrades the request and serves frames until the peer leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.Verify(s.secret, bearer(r))
	if err != nil {
		s.log.WithError(err).Warn("rejecting connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("accept websocket")
		return
	}
	defer conn.CloseNow()

	log := s.log.WithField("playerId", claims.PlayerID())
	log.Info("player connected")
	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.WithField("status", websocket.CloseStatus(err)).Info("player disconnected")
			return
		}
		var f stream.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.WithError(err).Warn("dropping malformed frame")
			continue
		}
		if f.Tag != stream.Tag {
			continue
		}
		for _, reply := range answer(f, s.resolve, log) {
			b, err := json.Marshal(reply)
			if err != nil {
				log.WithError(err).Error("encode reply")
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
				log.WithError(err).Warn("write reply")
				return
			}
		}
	}
}
