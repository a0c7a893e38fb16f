package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"task-chat/auth"
	"task-chat/domain"
	"task-chat/domain/event"
	"task-chat/services"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Message text tops out at 4000 chars, leave room for the envelope.
	maxFrameSize = 8192

	// Outbound frames buffered per connection before we start dropping.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served from the marketplace frontends;
		// origin enforcement happens at the gateway.
		return true
	},
}

// Server upgrades authenticated HTTP requests into conversation-scoped
// websocket connections and registers each one as an event sink.
type Server struct {
	service services.IChatService
	log     *slog.Logger
}

func NewServer(service services.IChatService, log *slog.Logger) *Server {
	return &Server{service: service, log: log}
}

// ServeWS handles GET /conversations/{id}/ws. The caller must already be
// authenticated; participation is checked by Attach before any event flows.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	conversation := domain.ConversationID(chi.URLParam(r, "id"))

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	conn := &connection{
		socket:       socket,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		userID:       userID,
		conversation: conversation,
		service:      s.service,
		log:          s.log,
	}

	if err := s.service.Attach(userID, conversation, conn); err != nil {
		s.log.Warn("Rejecting websocket attach",
			"user", userID, "conversation", conversation, "error", err)
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		_ = socket.Close()
		return
	}

	s.log.Info("Participant connected", "user", userID, "conversation", conversation)
	go conn.writePump()
	conn.readPump()
}

// connection is one participant's socket for one conversation. It implements
// contract.EventSink so the fanout can push directly into it.
type connection struct {
	socket       *websocket.Conn
	send         chan []byte
	done         chan struct{}
	userID       string
	conversation domain.ConversationID
	service      services.IChatService
	log          *slog.Logger
	closeOnce    sync.Once
}

// Consume pushes a pipeline event to the peer. It never blocks the fanout: a
// connection that cannot keep up loses frames, and the client recovers the
// gap from the history endpoint on reconnect.
func (c *connection) Consume(_ context.Context, e event.DomainEvent) error {
	frame, ok := encodeEvent(e)
	if !ok {
		return nil
	}

	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return nil
	case c.send <- raw:
	default:
		c.log.Warn("Dropping frame for slow connection",
			"user", c.userID, "conversation", c.conversation)
		return nil
	}

	// Reaching this connection's buffer is the recipient-device ack: the
	// message left the server towards a participant other than its author.
	if stored, ok := e.(event.MessageStored); ok && stored.Message.SenderID != c.userID {
		c.service.AckDelivered(c.conversation, []string{stored.Message.ID})
	}
	return nil
}

func (c *connection) readPump() {
	defer c.close()

	c.socket.SetReadLimit(maxFrameSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Websocket read failed",
					"user", c.userID, "conversation", c.conversation, "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Warn("Discarding malformed frame", "user", c.userID, "error", err)
			continue
		}
		c.handle(frame)
	}
}

// handle routes an inbound frame. The conversation is always the one this
// socket is scoped to, whatever the frame claims.
func (c *connection) handle(frame Frame) {
	switch frame.Type {
	case frameSend:
		if frame.Message == nil {
			return
		}
		message := frame.Message.toDomain()
		if message.Acknowledged() {
			// Advisory for a message already persisted over REST; the
			// authoritative push has gone out through the fanout.
			c.log.Debug("Ignoring send advisory for acknowledged message",
				"conversation", c.conversation, "message", message.ID)
			return
		}
		err := c.service.PostMessage(context.Background(), domain.SendMessageCommand{
			ConversationID: c.conversation,
			TempID:         message.TempID,
			SenderID:       c.userID,
			Text:           message.Text,
			CreatedAt:      message.CreatedAt,
		})
		if err != nil {
			c.log.Warn("Rejecting websocket send",
				"user", c.userID, "conversation", c.conversation, "error", err)
		}
	case frameMarkRead:
		err := c.service.MarkRead(domain.MarkReadCommand{
			ConversationID: c.conversation,
			ReaderID:       c.userID,
			MessageIDs:     frame.MessageIDs,
		})
		if err != nil {
			c.log.Warn("Rejecting read receipt",
				"user", c.userID, "conversation", c.conversation, "error", err)
		}
	case frameAck:
		c.service.AckDelivered(c.conversation, frame.MessageIDs)
	default:
		c.log.Debug("Discarding frame of unknown type",
			"user", c.userID, "type", frame.Type)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case raw := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.service.Detach(c.userID, c.conversation)
		close(c.done)
		_ = c.socket.Close()
		c.log.Info("Participant disconnected",
			"user", c.userID, "conversation", c.conversation)
	})
}
