package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWsServer(t *testing.T, pongWait time.Duration) (*httptest.Server, *socket.Hub, *auth.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := socket.NewHub(zerolog.Nop())
	tokens := auth.NewTokenIssuer("ws-test-secret", time.Hour)
	h := &WebSocketHandler{Hub: hub, Tokens: tokens, Log: zerolog.Nop(), PongWait: pongWait}

	r := gin.New()
	r.GET("/ws", h.ServeWs)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub, tokens
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + url.QueryEscape(token)
}

func TestServeWsKeepsListenOnlyClient(t *testing.T) {
	srv, hub, tokens := newWsServer(t, 300*time.Millisecond)
	token, err := tokens.Generate("u1", "inspector", models.RoleInspector, nil, "")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	// The client only answers pings, it never sends anything itself.
	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	msgs := make(chan []byte, 1)
	go func() {
		defer close(msgs)
		for {
			_, m, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- m
		}
	}()

	require.Eventually(t, func() bool { return hub.Connections("u1") == 1 }, time.Second, 10*time.Millisecond)

	// Several read deadlines pass without any client-initiated traffic.
	time.Sleep(time.Second)
	assert.Equal(t, 1, hub.Connections("u1"))
	assert.GreaterOrEqual(t, pings.Load(), int32(2))

	require.NoError(t, hub.Send("u1", []byte(`{"event":"damage_status"}`)))
	select {
	case m := <-msgs:
		assert.JSONEq(t, `{"event":"damage_status"}`, string(m))
	case <-time.After(2 * time.Second):
		t.Fatal("pushed message never arrived")
	}
}

func TestServeWsUnregistersOnClose(t *testing.T) {
	srv, hub, tokens := newWsServer(t, 0)
	token, err := tokens.Generate("u2", "viewer", models.RoleViewer, nil, "")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connections("u2") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections("u2") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWsRejectsBadToken(t *testing.T) {
	srv, _, _ := newWsServer(t, 0)

	for _, token := range []string{"", "not-a-jwt"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, token)
		resp.Body.Close()
	}
}
