package http

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// rankingFeed upgrades to a websocket that streams ranking snapshots. The first
// message is the current ranking; a new one follows every best-session
// promotion. Clients may send "stats" for their own summary or "ping".
func (s *Server) rankingFeed(w http.ResponseWriter, r *http.Request) {
	who := identity(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel, err := s.services.Ranking.Subscribe(r.Context())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	log := s.log.WithFields(logrus.Fields{"user_id": who.UserID, "feed": "ranking"})
	log.Debug("ranking feed subscribed")

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// the writer goroutine is the only one touching conn for writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "ranking", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "ping":
			send <- outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		case "stats":
			stats, err := s.services.Ranking.StudentStats(r.Context(), who, who.UserID)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "stats", Payload: stats}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug("ranking feed closed")
}
