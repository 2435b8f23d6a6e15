package ws

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/neuralliquid/portal/internal/theme"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(sessionID string) *Client {
	return &Client{
		sessionID: sessionID,
		send:      make(chan Message, sendBuffer),
		logger:    testLogger(),
	}
}

func changedMessage(mode theme.ColorMode) Message {
	return Message{
		Type:      MessageThemeChanged,
		Timestamp: time.Now(),
		Data: themeData(theme.Selection{
			Experience: theme.ExperienceStandard,
			Variant:    theme.VariantStandard,
			ColorMode:  mode,
		}),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())
	if hub.ClientCount() != 0 || hub.SessionCount() != 0 {
		t.Errorf("new hub has %d clients in %d sessions, want 0", hub.ClientCount(), hub.SessionCount())
	}
}

func TestRegister_GroupsBySession(t *testing.T) {
	hub := NewHub(testLogger())

	hub.Register(newTestClient("s1"))
	hub.Register(newTestClient("s1"))
	hub.Register(newTestClient("s2"))

	if got := hub.ClientCount(); got != 3 {
		t.Errorf("ClientCount() = %d, want 3", got)
	}
	if got := hub.SessionCount(); got != 2 {
		t.Errorf("SessionCount() = %d, want 2", got)
	}
}

func TestUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("s1")

	hub.Register(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if hub.SessionCount() != 0 {
		t.Errorf("empty session not dropped: SessionCount() = %d", hub.SessionCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("client.send channel is not closed")
	}

	// A second unregister is a no-op.
	hub.Unregister(client)
}

func TestUnregisterNotRegistered(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("s1")

	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		if !ok {
			t.Error("channel closed for unregistered client")
		}
	default:
	}
}

func TestBroadcastSession(t *testing.T) {
	hub := NewHub(testLogger())
	a1, a2, b := newTestClient("a"), newTestClient("a"), newTestClient("b")
	for _, c := range []*Client{a1, a2, b} {
		hub.Register(c)
	}

	hub.BroadcastSession("a", changedMessage(theme.ColorModeDark))

	for i, c := range []*Client{a1, a2} {
		select {
		case got := <-c.send:
			data := got.Data.(ThemeData)
			if got.Type != MessageThemeChanged || data.ClassList != "dark variant-standard" {
				t.Errorf("tab %d received %+v", i, got)
			}
		default:
			t.Errorf("tab %d did not receive the message", i)
		}
	}
	select {
	case got := <-b.send:
		t.Errorf("other session received %+v", got)
	default:
	}
}

func TestBroadcastDropsMessagesWhenBufferFull(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("s1")
	hub.Register(client)

	for i := 0; i < sendBuffer; i++ {
		client.send <- changedMessage(theme.ColorModeLight)
	}

	hub.BroadcastSession("s1", changedMessage(theme.ColorModeDark))

	if len(client.send) != sendBuffer {
		t.Fatalf("client.send length = %d, want %d", len(client.send), sendBuffer)
	}
	for i := 0; i < sendBuffer; i++ {
		if got := (<-client.send).Data.(ThemeData); got.Selection.ColorMode == theme.ColorModeDark {
			t.Fatal("dropped message was delivered")
		}
	}
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := newTestClient(fmt.Sprintf("s%d", id%5))
			hub.Register(client)
			go func() {
				for range client.send {
				}
			}()
			time.Sleep(5 * time.Millisecond)
			hub.Unregister(client)
		}(i)
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			hub.BroadcastSession(fmt.Sprintf("s%d", id%5), changedMessage(theme.ColorModeDark))
		}(i)
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d after all clients left, want 0", got)
	}
}
