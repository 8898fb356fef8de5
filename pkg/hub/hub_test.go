package hub

import (
	"testing"
	"time"

	"github.com/teslashibe/go-fpvcar/pkg/protocol"
)

// fakeClient registers a connection-less client so the fan-out logic can be
// tested without a websocket.
func fakeClient(t *testing.T, h *Hub, buf int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Message, buf)}
	if !h.join(c) {
		t.Fatal("hub closed")
	}
	return c
}

func waitCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Close()

	a := fakeClient(t, h, 4)
	b := fakeClient(t, h, 4)
	waitCount(t, h, 2)

	if err := h.BroadcastStatus(map[string]string{"state": "STOPPING"}); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*Client{a, b} {
		select {
		case m := <-c.send:
			msg, err := protocol.ParseMessage(m.Data)
			if err != nil {
				t.Fatal(err)
			}
			if msg.Type != protocol.TypeStatus {
				t.Errorf("Type = %v, want status", msg.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Close()

	slow := fakeClient(t, h, 1)
	waitCount(t, h, 1)

	h.Broadcast(NewJSONMessage([]byte(`1`)))
	h.Broadcast(NewJSONMessage([]byte(`2`)))
	waitCount(t, h, 0)

	// The first message was delivered, then the channel was closed.
	if m, ok := <-slow.send; !ok || string(m.Data) != "1" {
		t.Errorf("first receive = %q, %v", m.Data, ok)
	}
	if _, ok := <-slow.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestHub_LeaveAndClose(t *testing.T) {
	h := New("test")
	go h.Run()

	c := fakeClient(t, h, 1)
	waitCount(t, h, 1)
	h.leave(c)
	waitCount(t, h, 0)

	d := fakeClient(t, h, 1)
	waitCount(t, h, 1)

	h.Close()
	h.Close()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	if _, ok := <-d.send; ok {
		t.Error("Close should disconnect clients")
	}

	// Joining or leaving after Close must not block.
	if h.join(&Client{hub: h, send: make(chan Message)}) {
		t.Error("join after Close should fail")
	}
	h.leave(d)
}
