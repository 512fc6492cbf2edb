package signaling

import (
	"bytes"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages
)

// Client is one push connection. It becomes bound to a peer id when the
// peer registers over it.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Origin is the remote address recorded when the peer registers.
	Origin string

	// send is drained by WritePump. It is never closed; done signals shutdown.
	send      chan any
	done      chan struct{}
	closeOnce sync.Once

	// flushMu keeps mailbox flushes for this connection in drain order.
	flushMu sync.Mutex

	mu     sync.Mutex
	peerID string
}

func NewClient(hub *Hub, conn *websocket.Conn, origin string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		Origin: origin,
		send:   make(chan any, 256),
		done:   make(chan struct{}),
	}
}

func (c *Client) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

func (c *Client) bind(peerID string) (previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous = c.peerID
	c.peerID = peerID
	return previous
}

// Send queues v for delivery. It gives up once the connection is closing or
// the writer has been stuck for writeWait.
func (c *Client) Send(v any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()

	select {
	case c.send <- v:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		c.hub.log.Warn("push client send buffer stuck, closing", "peer_id", c.PeerID())
		c.Close()
		return false
	}
}

// Close stops the write pump. The read pump notices the closed socket and
// detaches the client from the hub.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump pumps requests from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)
		c.Close()
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
				c.hub.log.Debug("push connection closed unexpectedly", "peer_id", c.PeerID(), "error", err)
			}
			return
		}

		req, err := DecodeRequest(bytes.NewReader(data))
		if err != nil {
			c.Send(NewErrorReply(err))
			continue
		}
		c.hub.Handle(c, req)
	}
}

// WritePump pumps replies and pushed events to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.log.Debug("push write failed", "peer_id", c.PeerID(), "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
