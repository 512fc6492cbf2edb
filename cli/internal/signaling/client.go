package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpdrop/cli/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	replyTimeout   = 10 * time.Second
)

// PushClient manages the WebSocket connection to the signaling server.
// Requests are matched to replies by requestId; offers, answers, candidates
// and membership events pushed by the server are buffered until read.
type PushClient struct {
	rpc

	conn     *websocket.Conn
	url      string
	log      *slog.Logger
	outgoing chan *Request
	done     chan struct{}
	ready    chan struct{}

	closeOnce sync.Once

	mu            sync.Mutex
	waiting       map[string]chan []byte
	err           error
	signals       []Signal
	notifications []Notification
}

// DialPush establishes the WebSocket connection to the server.
func DialPush(ctx context.Context, serverURL string, logger *slog.Logger) (*PushClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, WrapError("connect", ErrUnreachable, fmt.Sprintf("invalid server URL: %v", err))
	}

	// Dial through our DNS lookup with public resolver fallback.
	dialer := &websocket.Dialer{
		NetDialContext:   dns.DialContext,
		HandshakeTimeout: requestTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError("connect", ctx.Err())
		}
		return nil, WrapError("connect", ErrUnreachable, err.Error())
	}

	c := &PushClient{
		conn:     conn,
		url:      serverURL,
		log:      logger,
		outgoing: make(chan *Request, 64),
		done:     make(chan struct{}),
		ready:    make(chan struct{}, 1),
		waiting:  make(map[string]chan []byte),
	}
	c.rpc = rpc{do: c.call}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *PushClient) URL() string {
	return c.url
}

// call sends req and waits for the reply carrying the same requestId.
func (c *PushClient) call(ctx context.Context, req *Request, out any) error {
	op := string(req.Type)
	req.RequestID = uuid.NewString()
	replies := make(chan []byte, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return WrapError(op, ErrUnreachable, err.Error())
	}
	c.waiting[req.RequestID] = replies
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.waiting, req.RequestID)
		c.mu.Unlock()
	}()

	select {
	case c.outgoing <- req:
	case <-c.done:
		return WrapError(op, ErrUnreachable, "connection closed")
	case <-ctx.Done():
		return NewError(op, ctx.Err())
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()

	select {
	case data, ok := <-replies:
		if !ok {
			return WrapError(op, ErrUnreachable, "connection closed")
		}
		return decodeReply(op, data, out)
	case <-c.done:
		return WrapError(op, ErrUnreachable, "connection closed")
	case <-timer.C:
		return WrapError(op, ErrUnreachable, "no reply")
	case <-ctx.Done():
		return NewError(op, ctx.Err())
	}
}

// PendingSignaling returns the offers, answers and candidates pushed since
// the last call. peerID is implied by the connection.
func (c *PushClient) PendingSignaling(_ context.Context, _ string) ([]Signal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil && len(c.signals) == 0 {
		return nil, WrapError(string(TypeGetPendingSignaling), ErrUnreachable, c.err.Error())
	}
	out := c.signals
	c.signals = nil
	return out, nil
}

// Notifications returns the membership events pushed since the last call.
func (c *PushClient) Notifications(_ context.Context, _ string) ([]Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil && len(c.notifications) == 0 {
		return nil, WrapError(string(TypeGetNotifications), ErrUnreachable, c.err.Error())
	}
	out := c.notifications
	c.notifications = nil
	return out, nil
}

func (c *PushClient) Ready() <-chan struct{} {
	return c.ready
}

// readPump reads messages from the WebSocket connection.
func (c *PushClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		c.handle(data)
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *PushClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case req := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(req); err != nil {
				c.fail(err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// fail records the first connection error and releases every waiting call.
func (c *PushClient) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
		c.log.Debug("push connection lost", "error", err)
	}
	for id, ch := range c.waiting {
		close(ch)
		delete(c.waiting, id)
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
	c.wake()
}

// Close closes the WebSocket connection and cleans up resources.
func (c *PushClient) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = errors.New("client closed")
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *PushClient) wake() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}
