package hub

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockSender records messages; with full set it refuses them.
type mockSender struct {
	mu     sync.Mutex
	msgs   []Message
	full   bool
	closed int
}

func (m *mockSender) Send(msg Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return false
	}
	m.msgs = append(m.msgs, msg)
	return true
}

func (m *mockSender) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *mockSender) snapshot() ([]Message, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.msgs...), m.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_BroadcastAndDropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test")
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	fast, slow := &mockSender{}, &mockSender{full: true}
	h.Register(fast)
	h.Register(slow)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]int{"x": 1}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	msgs, _ := fast.snapshot()
	if len(msgs) != 1 || msgs[0].Type != JSONMessage || string(msgs[0].Data) != `{"x":1}` {
		t.Errorf("fast client got %+v", msgs)
	}
	if _, closed := slow.snapshot(); closed != 1 {
		t.Errorf("slow client closed %d times, want 1", closed)
	}

	h.Unregister(fast)
	waitFor(t, func() bool { return h.ClientCount() == 0 })
	if _, closed := fast.snapshot(); closed != 1 {
		t.Errorf("unregistered client closed %d times", closed)
	}

	cancel()
	<-stopped
	if h.IsRunning() {
		t.Error("hub still running after cancel")
	}
	if h.Register(&mockSender{}) {
		t.Error("Register should fail on a stopped hub")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test")
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := &mockSender{}
	h.Register(c)
	cancel()
	<-stopped

	if _, closed := c.snapshot(); closed != 1 {
		t.Errorf("closed %d times, want 1", closed)
	}
}
