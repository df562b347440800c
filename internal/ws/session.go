package ws

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Per-session outbound queue; overflow means the session is dropped
	sendQueueSize = 256
)

// Session is one connected websocket client. A session can follow any
// number of room topics; subscriptions live only as long as the
// connection.
type Session struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	memberID uuid.UUID
}

// readPump consumes subscribe/unsubscribe frames until the connection
// drops, then detaches the session from the hub.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.logger.Debug().Err(err).Str("member_id", s.memberID.String()).Msg("session closed")
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError("malformed frame")
			continue
		}

		switch frame.Type {
		case frameSubscribe:
			if !validTopic(frame.Topic) {
				s.sendError("unknown topic")
				continue
			}
			s.hub.subscribe(s, frame.Topic)
		case frameUnsubscribe:
			s.hub.unsubscribe(s, frame.Topic)
		default:
			s.sendError("unknown frame type")
		}
	}
}

// writePump pushes queued frames and keepalive pings to the peer.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped the session.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) sendError(msg string) {
	frame, _ := json.Marshal(Frame{Type: frameError, Payload: json.RawMessage(`"` + msg + `"`)})
	select {
	case s.send <- frame:
	default:
	}
}

// validTopic accepts the room topic shapes this service publishes:
// chat/trade/<roomID> and chat/meetup/<roomID>.
func validTopic(topic string) bool {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "chat" {
		return false
	}
	if parts[1] != "trade" && parts[1] != "meetup" {
		return false
	}
	_, err := uuid.Parse(parts[2])
	return err == nil
}
