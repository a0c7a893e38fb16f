package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"task-chat/domain"
)

// floodServer upgrades every request and immediately pushes `count` message
// frames, then holds the connection open until the peer hangs up.
func floodServer(t *testing.T, count int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = socket.Close() }()

		for i := 0; i < count; i++ {
			frame := Frame{
				Type:         frameMessage,
				Conversation: "conv-1",
				Message: &wireMessage{
					ID:     fmt.Sprintf("srv-%d", i),
					Sender: "bob-id",
					Text:   "hello",
					Status: domain.StatusSent,
					At:     time.Now().UTC(),
				},
			}
			if err := socket.WriteJSON(frame); err != nil {
				return
			}
		}
		for {
			if _, _, err := socket.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_SubscribeReceivesPushes(t *testing.T) {
	req := require.New(t)
	server := floodServer(t, 3)

	client := NewClient("ws"+strings.TrimPrefix(server.URL, "http"),
		"token", logs.GetLoggerFromLevel(slog.LevelError))
	t.Cleanup(func() { _ = client.Close() })

	events, err := client.Subscribe(context.Background(), "conv-1")
	req.NoError(err)

	for i := 0; i < 3; i++ {
		select {
		case e := <-events:
			req.NotNil(e)
		case <-time.After(2 * time.Second):
			t.Fatal("push never arrived")
		}
	}
}

func TestClient_CloseUnparksAStalledReadLoop(t *testing.T) {
	req := require.New(t)
	// Flood well past the buffer so the read loop ends up parked on a send
	// nobody is draining
	server := floodServer(t, 3*sendBuffer)

	client := NewClient("ws"+strings.TrimPrefix(server.URL, "http"),
		"token", logs.GetLoggerFromLevel(slog.LevelError))

	events, err := client.Subscribe(context.Background(), "conv-1")
	req.NoError(err)

	// Given the session stopped draining and the buffer filled up
	req.Eventually(func() bool {
		return len(events) == sendBuffer
	}, 2*time.Second, 10*time.Millisecond, "buffer never filled")
	time.Sleep(50 * time.Millisecond)

	// When the session closes the channel
	req.NoError(client.Close())

	// Then the read loop exits and closes the stream; the frame it was
	// parked on is dropped, never delivered
	received := 0
	for {
		select {
		case _, ok := <-events:
			if !ok {
				req.LessOrEqual(received, sendBuffer)
				return
			}
			received++
		case <-time.After(2 * time.Second):
			t.Fatal("events channel never closed after Close")
		}
	}
}
