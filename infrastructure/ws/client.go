package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"task-chat/contract"
	"task-chat/domain"
	"task-chat/domain/event"
	"task-chat/errors"
)

var _ contract.RealtimeChannel = (*Client)(nil)

// Client is the session-side realtime channel. One Client serves one
// conversation: Subscribe dials the server, pushes arrive on the returned
// channel, and emissions are written frames.
type Client struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer
	log     *slog.Logger

	mu     sync.Mutex
	socket *websocket.Conn
	events chan event.DomainEvent
	done   chan struct{}
	closed bool
}

func NewClient(baseURL, token string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: writeWait,
		},
		log: log,
	}
}

// Subscribe dials the conversation socket and starts pumping inbound frames.
// The returned channel is closed when the connection drops or Close is
// called; the session treats that as a push-channel failure and may redial
// with a fresh Client.
func (c *Client) Subscribe(ctx context.Context, id domain.ConversationID) (<-chan event.DomainEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.ErrSessionClosed
	}
	if c.socket != nil {
		return nil, fmt.Errorf("already subscribed to conversation %s", id)
	}

	url := fmt.Sprintf("%s/conversations/%s/ws", c.baseURL, id)
	header := http.Header{"Authorization": []string{"Bearer " + c.token}}

	socket, _, err := c.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	c.socket = socket
	c.events = make(chan event.DomainEvent, sendBuffer)
	c.done = make(chan struct{})
	go c.readLoop(socket, c.events, c.done)
	return c.events, nil
}

func (c *Client) readLoop(socket *websocket.Conn, events chan<- event.DomainEvent, done <-chan struct{}) {
	defer close(events)

	socket.SetReadLimit(maxFrameSize)
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPingHandler(func(appData string) error {
		_ = socket.SetReadDeadline(time.Now().Add(pongWait))
		return socket.WriteControl(websocket.PongMessage,
			[]byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, raw, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Realtime channel read failed", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Warn("Discarding malformed push", "error", err)
			continue
		}
		decoded, ok := decodeFrame(frame)
		if !ok {
			continue
		}
		for _, e := range decoded {
			// Close must unpark this send even when the session stopped
			// draining with the buffer full
			select {
			case events <- e:
			case <-done:
				return
			}
		}
	}
}

// EmitSend advertises a locally persisted message. The server ignores it for
// propagation (the authoritative push already went out) but it keeps pure
// websocket peers warm.
func (c *Client) EmitSend(_ context.Context, message domain.Message) error {
	return c.write(Frame{
		Type:    frameSend,
		Message: toWireMessage(message),
	})
}

// EmitMarkRead emits a read-receipt batch for the given server ids.
func (c *Client) EmitMarkRead(_ context.Context, cmd domain.MarkReadCommand) error {
	return c.write(Frame{
		Type:         frameMarkRead,
		Conversation: cmd.ConversationID,
		MessageIDs:   cmd.MessageIDs,
	})
}

func (c *Client) write(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.socket == nil {
		return errors.ErrSessionClosed
	}

	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.socket.WriteMessage(websocket.TextMessage, raw)
}

// Close tears the subscription down. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.socket == nil {
		return nil
	}
	close(c.done)

	_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.socket.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.socket.Close()
}
