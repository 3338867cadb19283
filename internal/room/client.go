package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB is enough for WebRTC
	// SDP payloads, which are the largest messages the relay carries.
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection. A member whose buffer fills up is
	// dropped rather than allowed to stall broadcasts to the rest.
	sendBuffer = 256
)

// DefaultName is used when a connection supplies no display name.
const DefaultName = "Guest"

// Client is one real-time connection: a member of exactly one room for the
// connection's lifetime.
type Client struct {
	// ID is the server-assigned clientId, fresh per connection. A
	// reconnect is a new Client with a new ID.
	ID string

	// ConnID is the transport-level connection identifier, used to
	// reverse-look-up the clientId at disconnect.
	ConnID string

	Name string

	room *Room
	conn *websocket.Conn

	// send is the outbound queue; writePump is the only reader, so all
	// websocket writes happen on one goroutine.
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// Join registers a new connection into the named room, creating the room if
// absent, and performs the join choreography in order:
//
//  1. setSource with the room's current source, if one is announced
//  2. client-id welcome with the assigned id
//  3. member-joined announced to every other member
//  4. member-list snapshot to the joiner
//
// The caller starts the read and write pumps after Join returns; the queued
// messages keep their order through the send channel.
func Join(reg *Registry, conn *websocket.Conn, roomID, name string) *Client {
	if name == "" {
		name = DefaultName
	}

	r := reg.GetOrCreate(roomID)
	c := &Client{
		ID:     uuid.NewString(),
		ConnID: uuid.NewString(),
		Name:   name,
		room:   r,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	r.register(c)

	if url, fileName, ok := r.Source(); ok {
		c.trySend(sourceMessage(url, fileName))
	}
	c.trySend(welcomeMessage(c.ID, roomID, name))
	r.broadcastExcept(c, memberEventMessage(TypeMemberJoined, c.ID, name))
	c.trySend(memberListMessage(r.Members()))

	log.WithFields(log.Fields{"roomId": roomID, "clientId": c.ID, "name": name}).
		Info("member joined")
	return c
}

// leave deregisters the client and announces the departure to the remaining
// members. No-op for a connection that was never registered. The room
// persists when it empties; eviction is the registry reaper's job.
func (c *Client) leave() {
	clientID, name, ok := c.room.unregister(c.ConnID)
	c.closeSend()
	if !ok {
		return
	}

	c.room.broadcastAll(memberEventMessage(TypeMemberLeft, clientID, name))
	log.WithFields(log.Fields{"roomId": c.room.ID, "clientId": clientID}).
		Info("member left")
}

// trySend queues data for the write pump without blocking. Returns false if
// the client is already closed or its buffer is full; a full buffer also
// forces the connection closed so the stalled member deregisters.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		if c.conn != nil {
			c.conn.Close()
		}
		return false
	}
}

// closeSend closes the outbound queue exactly once, stopping the write pump.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps inbound messages from the websocket into the dispatcher.
//
// The application runs ReadPump in a per-connection goroutine; all reads
// happen on this goroutine. On any read error the client leaves its room
// and the connection is closed.
func (c *Client) ReadPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithFields(log.Fields{"roomId": c.room.ID, "clientId": c.ID}).
					WithError(err).Warn("read error")
			}
			break
		}
		c.dispatch(data)
	}
}

// dispatch classifies one inbound message and applies it: room-state side
// effects for source/broadcaster changes, then relay per type. Unparseable
// input is dropped with a log line and the connection stays up; unknown
// types are ignored for forward compatibility.
func (c *Client) dispatch(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		log.WithFields(log.Fields{"roomId": c.room.ID, "clientId": c.ID}).
			WithError(err).Warn("dropping unparseable message")
		return
	}

	switch env.Type {
	case TypeControl, TypeChat:
		c.room.broadcastExcept(c, env.Raw())

	case TypeSetSource:
		c.room.SetSource(env.URL, env.FileName)
		c.room.broadcastExcept(c, env.Raw())

	case TypeIntroduceBroadcaster:
		c.room.SetBroadcaster(env.From)
		c.room.broadcastExcept(c, env.Raw())

	case TypeEndBroadcast:
		c.room.ClearBroadcaster()
		c.room.broadcastExcept(c, env.Raw())

	case TypeWebRTCOffer, TypeWebRTCAnswer, TypeWebRTCICE:
		// Unicast to the named member only; unknown targets drop silently.
		c.room.sendTo(env.To, env.Raw())

	default:
		// Unknown types must never crash the dispatcher.
	}
}

// WritePump pumps queued messages to the websocket connection and keeps the
// connection alive with periodic pings.
//
// A goroutine running WritePump is started per connection; it is the only
// writer to the websocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// leave closed the queue.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
