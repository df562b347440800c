package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/swapmeet-dev/swapmeet/internal/api/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // clients connect from app webviews on any origin
	},
}

// Handler upgrades the connection and attaches a session to the hub.
func Handler(hub *Hub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := middleware.MemberFromContext(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		session := &Session{
			hub:      hub,
			conn:     conn,
			send:     make(chan []byte, sendQueueSize),
			memberID: memberID,
		}
		hub.register(session)

		go session.writePump()
		go session.readPump()
	}
}
