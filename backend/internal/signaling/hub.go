package signaling

import (
	"log/slog"
	"sync"
)

// Hub tracks push connections by peer id and delivers mailbox contents to
// them as soon as the store reports a delivery. Peers without an open
// connection keep their mail until they poll.
type Hub struct {
	dispatcher *Dispatcher
	store      *Store
	log        *slog.Logger
	metrics    Counter

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(dispatcher *Dispatcher, logger *slog.Logger, metrics Counter) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		dispatcher: dispatcher,
		store:      dispatcher.Store(),
		log:        logger,
		metrics:    metrics,
		clients:    make(map[string]*Client),
	}
	h.store.OnDeliver(h.flush)
	return h
}

// Attach is called once the connection has been upgraded.
func (h *Hub) Attach(c *Client) {
	h.inc("push_connections_opened")
	h.log.Debug("push client connected", "origin", c.Origin)
}

// Detach forgets c. A bound peer leaves its room and is removed from the
// store, the same as if it had been evicted.
func (h *Hub) Detach(c *Client) {
	peerID := c.PeerID()
	h.inc("push_connections_closed")
	if peerID == "" {
		return
	}

	h.mu.Lock()
	current, ok := h.clients[peerID]
	if ok && current == c {
		delete(h.clients, peerID)
	}
	h.mu.Unlock()

	if !ok || current != c {
		// A newer connection took over this peer id.
		return
	}
	if h.store.Deregister(peerID) {
		h.log.Info("push peer disconnected", "peer_id", peerID)
	}
}

// Handle runs one request received on c and writes the reply back to it.
func (h *Hub) Handle(c *Client, req *Request) {
	reply, err := h.dispatcher.Dispatch(req, c.Origin)
	if err != nil {
		reply = NewErrorReply(err)
	}
	reply.SetRequestID(req.RequestID)
	c.Send(reply)

	if err == nil && req.Type == TypeRegister {
		h.bind(c, req.PeerID)
	}
}

func (h *Hub) bind(c *Client, peerID string) {
	previous := c.bind(peerID)

	h.mu.Lock()
	if previous != "" && previous != peerID && h.clients[previous] == c {
		delete(h.clients, previous)
	}
	if old, ok := h.clients[peerID]; ok && old != c {
		old.Close()
	}
	h.clients[peerID] = c
	h.mu.Unlock()

	h.flush(peerID)
}

// flush drains peerID's mailbox onto its push connection, if it has one.
func (h *Hub) flush(peerID string) {
	h.mu.RLock()
	c, ok := h.clients[peerID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	for _, n := range h.store.DrainNotifications(peerID) {
		c.Send(n)
		h.inc("push_notifications_delivered")
	}
	for _, m := range h.store.DrainPendingSignaling(peerID) {
		c.Send(m)
		h.inc("push_signals_delivered")
	}
}

// Connected reports whether peerID has an open push connection.
func (h *Hub) Connected(peerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[peerID]
	return ok
}

func (h *Hub) inc(name string) {
	if h.metrics != nil {
		h.metrics.Inc(name)
	}
}
