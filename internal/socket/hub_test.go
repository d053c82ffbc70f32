package socket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	msgs      [][]byte
	types     []int
	deadlines []time.Time
	fail      bool
	closed    bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.msgs = append(f.msgs, data)
	f.types = append(f.types, messageType)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines = append(f.deadlines, t)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestSendReachesEveryDevice(t *testing.T) {
	h := NewHub(zerolog.Nop())
	phone, tablet := &fakeConn{}, &fakeConn{}
	h.Register("u1", phone)
	h.Register("u1", tablet)
	require.Equal(t, 2, h.Connections("u1"))

	require.NoError(t, h.SendJSON("u1", map[string]string{"event": "ping"}))
	assert.Len(t, phone.msgs, 1)
	assert.Len(t, tablet.msgs, 1)
	assert.JSONEq(t, `{"event":"ping"}`, string(phone.msgs[0]))

	assert.NoError(t, h.Send("nobody", []byte("x")))
}

func TestUnregisterAndBrokenClients(t *testing.T) {
	h := NewHub(zerolog.Nop())
	good, bad := &fakeConn{}, &fakeConn{fail: true}
	cg := h.Register("u1", good)
	h.Register("u1", bad)

	err := h.Send("u1", []byte("hello"))
	assert.Error(t, err)
	assert.True(t, bad.closed)
	assert.Equal(t, 1, h.Connections("u1"))

	h.Unregister("u1", cg)
	assert.Equal(t, 0, h.Connections("u1"))
	h.Unregister("u1", cg)
}

func TestConcurrentSendsAreSerialized(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := &fakeConn{}
	h.Register("u1", c)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Send("u1", []byte("m"))
		}()
	}
	wg.Wait()
	assert.Len(t, c.msgs, 50)
}

func TestWritesCarryDeadline(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := &fakeConn{}
	c := h.Register("u1", conn)

	before := time.Now()
	require.NoError(t, h.Send("u1", []byte("hello")))
	require.NoError(t, c.Ping())

	require.Len(t, conn.deadlines, 2)
	for _, d := range conn.deadlines {
		assert.True(t, d.After(before), "deadline %v is not in the future", d)
		assert.True(t, d.Before(before.Add(WriteWait+time.Second)))
	}
	assert.Equal(t, []int{websocket.TextMessage, websocket.PingMessage}, conn.types)
}
