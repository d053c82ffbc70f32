// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"net/http"
	"time"

	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Longest silence tolerated from a client before the connection is dropped.
const defaultPongWait = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub    *socket.Hub
	Tokens *auth.TokenIssuer
	Log    zerolog.Logger
	// PongWait overrides defaultPongWait. The server pings at 9/10 of it.
	PongWait time.Duration
}

// ServeWs upgrades the request and keeps the connection registered until the
// client goes away. Browsers cannot set headers on the handshake, so the token
// comes in the query string.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}
	claims, err := h.Tokens.Parse(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	pongWait := h.PongWait
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}

	client := h.Hub.Register(userID, conn)
	done := make(chan struct{})
	defer func() {
		close(done)
		h.Hub.Unregister(userID, client)
		conn.Close()
	}()

	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(pongWait)) }
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	// Clients that ping on their own get a pong. WriteControl may run
	// alongside hub writes.
	conn.SetPingHandler(func(appData string) error {
		extend()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(socket.WriteWait))
	})

	// Browsers never ping, so a listen-only device stays alive on our pings.
	go func() {
		ticker := time.NewTicker(pongWait * 9 / 10)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					h.Log.Debug().Err(err).Str("user", userID).Msg("websocket ping failed")
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Log.Debug().Err(err).Str("user", userID).Msg("unexpected close")
			}
			break
		}
		extend()
	}
}
