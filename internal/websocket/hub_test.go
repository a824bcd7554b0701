package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/renex/internal/subscription"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		conn: nil,
		send: make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(NewCountMessage(42))

	for _, c := range []*Client{c1, c2} {
		got := receive(t, c)
		if got.Type != TypeSubscriberCount {
			t.Errorf("expected type %s, got %s", TypeSubscriberCount, got.Type)
		}
		if got.Count != 42 {
			t.Errorf("expected count 42, got %d", got.Count)
		}
		if got.Label != "Join 42 other subscribers" {
			t.Errorf("unexpected label %q", got.Label)
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestOnSubscriberChange(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	defer hub.Unregister(c)

	hub.OnSubscriberChange(context.Background(), subscription.Event{Kind: subscription.Unsubscribed, Count: 0})

	got := receive(t, c)
	if got.Count != 0 || got.Label != "Be the first to subscribe!" {
		t.Errorf("unexpected message %+v", got)
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(NewCountMessage(1))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewCountMessage(i))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewCountMessage(999))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(NewCountMessage(n))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(i)
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandleWebSocketSendsCurrentCount(t *testing.T) {
	hub := NewHub(slog.Default())
	server := httptest.NewServer(HandleWebSocket(hub, func() int { return 7 }, []string{"*"}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	read := func() Message {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return m
	}

	if got := read(); got.Count != 7 {
		t.Fatalf("initial count = %d, want 7", got.Count)
	}

	for hub.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(NewCountMessage(8))

	if got := read(); got.Count != 8 {
		t.Fatalf("broadcast count = %d, want 8", got.Count)
	}
}
