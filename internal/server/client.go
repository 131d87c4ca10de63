package server

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/fomovoice/voice-club/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client binds one WebSocket connection to a participant in a single live
// room. It implements Conn; the manager queues outbound events on the send
// channel and the Write pump drains it.
type Client struct {
	conn      *websocket.Conn
	manager   *RoomManager
	log       *log.Logger
	user      types.User
	sessionId string
	send      chan *ServerMessage
	stop      chan struct{}
}

func NewClient(user types.User, sessionId string, conn *websocket.Conn, m *RoomManager, l *log.Logger) *Client {
	return &Client{
		conn:      conn,
		manager:   m,
		log:       l,
		user:      user,
		sessionId: sessionId,
		send:      make(chan *ServerMessage, 256),
		stop:      make(chan struct{}),
	}
}

// Queue enqueues a message for delivery without blocking. A full buffer means
// the consumer has stalled; the caller drops the connection.
func (c *Client) Queue(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for user %q", c.user.Id)
		return false
	}

	return true
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.manager.Disconnect(c.sessionId, c.user.Id)
		close(c.stop)
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		event, err := ParseClientEvent(raw)
		if err != nil {
			var unknown *ErrUnknownType
			if errors.As(err, &unknown) {
				c.Queue(newError(unknown.Error()))
			} else {
				// malformed frames are dropped without a reply
				c.log.Printf("discarding malformed message from %q: %v", c.user.Id, err)
			}
			continue
		}

		c.dispatch(event)
	}
}

func (c *Client) dispatch(event ClientEvent) {
	switch ev := event.(type) {
	case ChatEvent:
		c.manager.HandleChat(c.sessionId, c.user.Id, c.user.Username, ev.Message)
	case ReactionEvent:
		c.manager.HandleReaction(c.sessionId, c.user.Id, c.user.Username, ev.Emoji)
	case HandRaiseEvent:
		c.manager.HandleHandRaise(c.sessionId, c.user.Id, ev.Action)
	case PromoteEvent:
		if c.isSpeaker() && ev.TargetUserId != "" {
			c.manager.PromoteToSpeaker(c.sessionId, ev.TargetUserId)
		}
	case DemoteEvent:
		if c.isSpeaker() && ev.TargetUserId != "" {
			c.manager.DemoteToListener(c.sessionId, ev.TargetUserId)
		}
	case PingEvent:
		c.Queue(newPong())
	}
}

// isSpeaker checks the client's current room role; only speakers may promote
// or demote over the transport.
func (c *Client) isSpeaker() bool {
	role, ok := c.manager.ParticipantRole(c.sessionId, c.user.Id)
	return ok && role == types.RoleSpeaker
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}
