package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.clientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialTestHub(t, hub)
	waitForClients(t, hub, 1)

	hub.Broadcast(map[string]any{"balance": 100000, "paused": false})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", msgType)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if got["balance"].(float64) != 100000 {
		t.Fatalf("broadcast payload = %s", data)
	}
}

func TestBroadcastUnmarshalableDropsQuietly(t *testing.T) {
	hub := NewHub(testLogger())

	// Channels cannot be marshaled; the message is dropped, nothing panics.
	hub.Broadcast(make(chan int))

	select {
	case msg := <-hub.broadcast:
		t.Fatalf("unexpected queued message: %s", msg)
	default:
	}
}

func TestBroadcastFullQueueDoesNotBlock(t *testing.T) {
	hub := NewHub(testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.Broadcast(map[string]int{"n": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conn := dialTestHub(t, hub)
	waitForClients(t, hub, 1)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			// Any read error after shutdown is acceptable; the server side
			// sent a close frame or tore the connection down.
			return
		}
	}
}
