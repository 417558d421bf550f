package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func attach(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := newClient(h, nil)
	require.True(t, h.join(c))
	return c
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}, false
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)
	assert.True(t, h.IsRunning())

	h.BroadcastBinary([]byte{0xff, 0xd8})
	for _, c := range []*Client{a, b} {
		m, ok := receive(t, c)
		require.True(t, ok)
		assert.Equal(t, BinaryMessage, m.Type)
		assert.Equal(t, []byte{0xff, 0xd8}, m.Data)
	}

	require.NoError(t, h.BroadcastJSON(map[string]int{"seq": 7}))
	m, _ := receive(t, a)
	assert.Equal(t, JSONMessage, m.Type)
	var got map[string]int
	require.NoError(t, json.Unmarshal(m.Data, &got))
	assert.Equal(t, 7, got["seq"])

	assert.Eventually(t, func() bool { return h.Stats().Sent == 4 }, time.Second, time.Millisecond)
}

func TestHub_Unregister(t *testing.T) {
	h := newTestHub(t)
	c := attach(t, h)
	h.leave(c)

	_, ok := receive(t, c)
	assert.False(t, ok, "send channel is closed on unregister")
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := newTestHub(t)
	slow := attach(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	for i := 0; i <= sendBuffer; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)

	n := 0
	for range slow.send {
		n++
	}
	assert.Equal(t, sendBuffer, n)
}

func TestHub_Stop(t *testing.T) {
	h := newTestHub(t)
	c := attach(t, h)

	h.Stop()
	h.Stop()

	_, ok := receive(t, c)
	assert.False(t, ok)
	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)

	late := newClient(h, nil)
	assert.False(t, h.join(late), "join after Stop must not block")
	h.leave(late)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle", nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.BroadcastBinary(nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
	assert.EqualValues(t, 300-256, h.Stats().Dropped)
}

func TestMessageType_FrameType(t *testing.T) {
	assert.Equal(t, websocket.TextMessage, NewJSONMessage(nil).Type.wsType())
	assert.Equal(t, websocket.BinaryMessage, NewBinaryMessage(nil).Type.wsType())
	assert.Equal(t, "json", JSONMessage.String())
	assert.Equal(t, "binary", BinaryMessage.String())
	assert.Equal(t, "unknown", MessageType(9).String())
}

func TestClient_IDsAreUnique(t *testing.T) {
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, sendBuffer, cap(a.send))
}
