package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

const (
	dialTimeout       = 10 * time.Second
	reconnectAttempts = 10
	reconnectDelay    = time.Second
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingInterval      = (pongWait * 9) / 10
	maxMessageSize    = 64 * 1024
)

// EventHandler receives inbound socket events. Calls are made from the
// connection's read loop, one event at a time.
type EventHandler interface {
	HandleConnect()
	HandleConversationStarted(ConversationStarted)
	HandleReceiveMessage(types.Message)
	HandleMessageUpdated(types.Message)
	HandleMessageDeleted(MessageDeleted)
	HandleTyping(Typing)
	HandleUserStatus(UserStatus)
	HandleConnectionError(error)
}

type Config struct {
	URL    string
	Token  string
	UserId string
}

// Conn is the single socket connection for an authenticated session. It
// announces presence on connect and redials with bounded attempts and a
// fixed delay when the connection drops.
type Conn struct {
	cfg     Config
	log     *log.Logger
	handler EventHandler
	connId  string

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool

	send chan Envelope
	stop chan struct{}
	done chan struct{}
}

// NewConn prepares a connection. Both a user identity and a credential are
// required before any dial is attempted.
func NewConn(cfg Config, logger *log.Logger) (*Conn, error) {
	if cfg.UserId == "" {
		return nil, errors.New("user id is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("credential is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("socket URL is required")
	}

	return &Conn{
		cfg:    cfg,
		log:    logger,
		connId: uuid.NewString(),
		send:   make(chan Envelope, 256),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start dials the socket, announces presence and begins dispatching inbound
// events to handler.
func (c *Conn) Start(handler EventHandler) error {
	ws, err := c.dial()
	if err != nil {
		return fmt.Errorf("connect to messaging socket: %w", err)
	}

	c.handler = handler
	c.setConn(ws)
	c.log.Printf("conn %s: connected to %s", c.connId, c.cfg.URL)

	go c.writePump()
	go c.readPump()

	c.announce()
	handler.HandleConnect()
	return nil
}

func (c *Conn) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)

	ws, _, err := dialer.Dial(c.cfg.URL, header)
	if err != nil {
		return nil, err
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return ws, nil
}

// announce emits the presence announcement for the local user. The server
// treats a repeated join from the same user as a no-op, so a reconnect can
// announce again safely.
func (c *Conn) announce() {
	if err := c.emit(EventJoin, c.cfg.UserId); err != nil {
		c.log.Printf("conn %s: join announcement: %v", c.connId, err)
	}
}

func (c *Conn) setConn(ws *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws = ws
}

func (c *Conn) conn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears the connection down and releases both pumps. It is safe to
// call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	close(c.stop)
	if ws != nil {
		ws.Close()
	}
}

func (c *Conn) emit(event string, payload any) error {
	if c.isClosed() {
		return errors.New("connection is closed")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	select {
	case c.send <- Envelope{Event: event, Data: raw}:
		return nil
	default:
		return fmt.Errorf("send queue full, dropping %s", event)
	}
}

// JoinConversationRoom joins the shared room for a two-party conversation.
func (c *Conn) JoinConversationRoom(room string) error {
	return c.emit(EventJoinConversation, JoinConversation{Room: room})
}

// StartConversation announces a new conversation to the recipient.
func (c *Conn) StartConversation(userId, recipientId string) error {
	return c.emit(EventStartConversation, StartConversation{UserId: userId, RecipientId: recipientId})
}

// SendMessage publishes a new message. Delivery confirmation arrives later
// as a receiveMessage event.
func (c *Conn) SendMessage(userId string, dto types.CreateMessage) error {
	return c.emit(EventSendMessage, SendMessage{UserId: userId, CreateMessageDto: dto})
}

// UpdateMessage notifies the peer of an edit already accepted by the API.
func (c *Conn) UpdateMessage(userId, messageId string, dto types.MessageUpdate) error {
	return c.emit(EventUpdateMessage, UpdateMessage{UserId: userId, MessageId: messageId, UpdateMessageDto: dto})
}

// DeleteMessage notifies the peer of a deletion already accepted by the API.
func (c *Conn) DeleteMessage(userId, messageId string) error {
	return c.emit(EventDeleteMessage, DeleteMessage{UserId: userId, MessageId: messageId})
}

// Typing signals that the local user is typing to the recipient.
func (c *Conn) Typing(userId, recipientId string) error {
	return c.emit(EventTyping, Typing{UserId: userId, RecipientId: recipientId})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.log.Printf("conn %s: write exiting", c.connId)
	}()

	for {
		select {
		case env := <-c.send:
			raw, err := json.Marshal(env)
			if err != nil {
				c.log.Printf("conn %s: failed to serialize %s event: %v", c.connId, env.Event, err)
				continue
			}
			c.writeMessage(websocket.TextMessage, raw)
		case <-c.stop:
			return
		case <-ticker.C:
			c.writeMessage(websocket.PingMessage, nil)
		}
	}
}

// writeMessage writes to whatever connection is current. Failures are
// dropped rather than fatal: the read loop owns reconnection.
func (c *Conn) writeMessage(msgType int, data []byte) bool {
	ws := c.conn()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("conn %s: write message: %v", c.connId, err)
		}
		return false
	}

	return true
}

func (c *Conn) readPump() {
	defer func() {
		close(c.done)
		c.log.Printf("conn %s: read exiting", c.connId)
	}()

	for {
		_, raw, err := c.conn().ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("conn %s: read: %v", c.connId, err)
			}
			if !c.reconnect() {
				return
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Printf("conn %s: error parsing event: %v", c.connId, err)
			continue
		}

		c.dispatch(env)
	}
}

// reconnect redials with a fixed delay between attempts. When every attempt
// fails the handler is told once and the connection stays down.
func (c *Conn) reconnect() bool {
	var lastErr error
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		select {
		case <-c.stop:
			return false
		case <-time.After(reconnectDelay):
		}

		ws, err := c.dial()
		if err != nil {
			lastErr = err
			c.log.Printf("conn %s: reconnect attempt %d/%d: %v", c.connId, attempt, reconnectAttempts, err)
			continue
		}

		c.setConn(ws)
		c.log.Printf("conn %s: reconnected to %s", c.connId, c.cfg.URL)
		c.announce()
		c.handler.HandleConnect()
		return true
	}

	c.handler.HandleConnectionError(fmt.Errorf("reconnect failed after %d attempts: %w", reconnectAttempts, lastErr))
	return false
}

func (c *Conn) dispatch(env Envelope) {
	switch env.Event {
	case EventConversationStarted:
		var ev ConversationStarted
		if c.decode(env, &ev) {
			c.handler.HandleConversationStarted(ev)
		}
	case EventReceiveMessage:
		var msg types.Message
		if c.decode(env, &msg) {
			c.handler.HandleReceiveMessage(msg)
		}
	case EventMessageUpdated:
		var msg types.Message
		if c.decode(env, &msg) {
			c.handler.HandleMessageUpdated(msg)
		}
	case EventMessageDeleted:
		var ev MessageDeleted
		if c.decode(env, &ev) {
			c.handler.HandleMessageDeleted(ev)
		}
	case EventTyping:
		var ev Typing
		if c.decode(env, &ev) {
			c.handler.HandleTyping(ev)
		}
	case EventUserStatus:
		var ev UserStatus
		if c.decode(env, &ev) {
			c.handler.HandleUserStatus(ev)
		}
	case EventError:
		var ev socketError
		if c.decode(env, &ev) {
			c.handler.HandleConnectionError(fmt.Errorf("socket error: %s", ev.Message))
		}
	default:
		c.log.Printf("conn %s: ignoring unknown event %q", c.connId, env.Event)
	}
}

func (c *Conn) decode(env Envelope, out any) bool {
	if err := json.Unmarshal(env.Data, out); err != nil {
		c.log.Printf("conn %s: invalid %s payload: %v", c.connId, env.Event, err)
		return false
	}
	return true
}
