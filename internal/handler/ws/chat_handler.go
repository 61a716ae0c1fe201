package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"supportdesk-backend/internal/domain"
	"supportdesk-backend/internal/service/conversation"
	"supportdesk-backend/pkg/constants"
	pkgcontext "supportdesk-backend/pkg/context"
	"supportdesk-backend/pkg/metrics"
)

// Message types
const (
	MessageTypeChat       = "chat"
	MessageTypeTyping     = "typing"
	MessageTypeUserJoined = "user_joined"
	MessageTypeUserLeft   = "user_left"
)

// Message represents a WebSocket message
type Message struct {
	Type             string    `json:"type"`
	ConversationUUID uuid.UUID `json:"conversation_uuid"`
	SenderID         uuid.UUID `json:"sender_id,omitempty"`
	MessageID        uuid.UUID `json:"message_id,omitempty"`
	Source           string    `json:"source,omitempty"`
	Content          string    `json:"content,omitempty"`
	MediaURL         string    `json:"media_url,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Client represents a WebSocket client
type Client struct {
	hub              *ChatHub
	conn             *websocket.Conn
	send             chan []byte
	userID           uuid.UUID
	role             string
	conversationUUID uuid.UUID
}

// ChatHub manages WebSocket connections per conversation.
//
// A customer disconnect closes the open session boundary and flushes the
// conversation to the archive, so a finished chat never waits for the idle
// sweep.
type ChatHub struct {
	conversations map[uuid.UUID]map[*Client]bool

	conversationService *conversation.Service
	metrics             *metrics.Metrics
	logger              *zap.Logger

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev, restrict in production
	},
}

// NewChatHub creates a new chat hub
func NewChatHub(conversationService *conversation.Service, m *metrics.Metrics, logger *zap.Logger) *ChatHub {
	hub := &ChatHub{
		conversations:       make(map[uuid.UUID]map[*Client]bool),
		conversationService: conversationService,
		metrics:             m,
		logger:              logger,
		register:            make(chan *Client),
		unregister:          make(chan *Client),
		broadcast:           make(chan *Message, 256),
	}

	go hub.run()

	return hub
}

// run handles hub operations
func (h *ChatHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.conversations[client.conversationUUID] == nil {
				h.conversations[client.conversationUUID] = make(map[*Client]bool)
			}
			h.conversations[client.conversationUUID][client] = true
			h.mu.Unlock()

			h.updateConnectionGauge()

			if client.role == constants.RoleCustomer {
				h.startSession(client.conversationUUID)
			}

			h.broadcast <- &Message{
				Type:             MessageTypeUserJoined,
				ConversationUUID: client.conversationUUID,
				SenderID:         client.userID,
				Timestamp:        time.Now().UTC(),
			}

		case client := <-h.unregister:
			h.mu.Lock()
			removed := false
			if clients, ok := h.conversations[client.conversationUUID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					removed = true

					if len(clients) == 0 {
						delete(h.conversations, client.conversationUUID)
					}
				}
			}
			h.mu.Unlock()

			if removed {
				h.updateConnectionGauge()

				h.broadcast <- &Message{
					Type:             MessageTypeUserLeft,
					ConversationUUID: client.conversationUUID,
					SenderID:         client.userID,
					Timestamp:        time.Now().UTC(),
				}

				if client.role == constants.RoleCustomer {
					h.closeAndFlush(client.conversationUUID)
				}
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.conversations[message.ConversationUUID]; ok {
				messageJSON, _ := json.Marshal(message)
				for client := range clients {
					select {
					case client.send <- messageJSON:
					default:
						close(client.send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// startSession opens a session-boundary record on customer connect
func (h *ChatHub) startSession(conversationUUID uuid.UUID) {
	ctx, cancel := pkgcontext.WithDefaultTimeout(context.Background())
	defer cancel()

	if err := h.conversationService.StartSession(ctx, conversationUUID); err != nil {
		h.logger.Warn("failed to record session start",
			zap.String("conversation_uuid", conversationUUID.String()),
			zap.Error(err))
	}
}

// closeAndFlush ends the open session and archives the conversation when
// the customer disconnects
func (h *ChatHub) closeAndFlush(conversationUUID uuid.UUID) {
	ctx, cancel := pkgcontext.WithDefaultTimeout(context.Background())
	defer cancel()

	if err := h.conversationService.EndSession(ctx, conversationUUID); err != nil {
		h.logger.Warn("failed to record session end",
			zap.String("conversation_uuid", conversationUUID.String()),
			zap.Error(err))
	}

	if err := h.conversationService.Flush(ctx, conversationUUID); err != nil {
		// The live copy stays; the idle sweep picks it up later
		h.logger.Warn("failed to flush conversation on disconnect",
			zap.String("conversation_uuid", conversationUUID.String()),
			zap.Error(err))
	}
}

func (h *ChatHub) updateConnectionGauge() {
	h.mu.RLock()
	count := 0
	for _, clients := range h.conversations {
		count += len(clients)
	}
	h.mu.RUnlock()

	h.metrics.SetWebSocketConnections(count)
}

// ServeWS handles WebSocket requests
// GET /v1/ws/chat?conversation_uuid=<uuid>
func (h *ChatHub) ServeWS(c *gin.Context) {
	conversationUUIDStr := c.Query("conversation_uuid")
	if conversationUUIDStr == "" {
		c.JSON(400, gin.H{"error": "conversation_uuid required"})
		return
	}

	conversationUUID, err := uuid.Parse(conversationUUIDStr)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid conversation_uuid"})
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(401, gin.H{"error": "unauthorized"})
		return
	}

	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		c.JSON(500, gin.H{"error": "invalid user_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:              h,
		conn:             conn,
		send:             make(chan []byte, 256),
		userID:           userID,
		role:             c.GetString("role"),
		conversationUUID: conversationUUID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// messageSource maps the connected role to a message source
func (c *Client) messageSource() domain.MessageSource {
	if c.role == constants.RoleAgent {
		return domain.SourceCSR
	}
	return domain.SourceUser
}

// readPump reads messages from WebSocket
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.Error(err))
				c.hub.metrics.RecordWebSocketError("read")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.metrics.RecordWebSocketError("decode")
			continue
		}

		msg.SenderID = c.userID
		msg.ConversationUUID = c.conversationUUID
		msg.Timestamp = time.Now().UTC()

		if msg.Type == MessageTypeChat {
			if !c.appendMessage(&msg) {
				continue
			}
		}

		c.hub.metrics.RecordWebSocketMessage(msg.Type, "inbound")
		c.hub.broadcast <- &msg
	}
}

// appendMessage persists an inbound chat message to the live document.
// Returns false when the write failed; the message is then not broadcast.
func (c *Client) appendMessage(msg *Message) bool {
	ctx, cancel := pkgcontext.WithDefaultTimeout(context.Background())
	defer cancel()

	source := c.messageSource()
	detail, err := c.hub.conversationService.AppendMessage(ctx, c.conversationUUID, &conversation.AppendMessageInput{
		Source:      source,
		MessageText: msg.Content,
		MediaURL:    msg.MediaURL,
	})
	if err != nil {
		c.hub.logger.Warn("failed to append chat message",
			zap.String("conversation_uuid", c.conversationUUID.String()),
			zap.Error(err))
		c.hub.metrics.RecordWebSocketError("append")
		return false
	}

	msg.MessageID = detail.ID
	msg.Source = string(source)
	msg.Timestamp = detail.CreatedAt
	c.hub.metrics.RecordMessage(string(source))

	return true
}

// writePump writes messages to WebSocket
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
