package signaling

import "encoding/json"

// handle routes one frame from the server. Replies go to the call waiting on
// their requestId; pushed entries are buffered for the next read.
func (c *PushClient) handle(data []byte) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		c.log.Debug("ignoring undecodable frame", "error", err)
		return
	}

	if h.RequestID != "" {
		c.mu.Lock()
		replies, ok := c.waiting[h.RequestID]
		if ok {
			select {
			case replies <- data:
			default:
			}
		}
		c.mu.Unlock()
		if ok {
			return
		}
	}

	switch h.Type {
	case TypePeerJoined, TypePeerLeft:
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			c.log.Debug("bad notification", "error", err)
			return
		}
		c.mu.Lock()
		c.notifications = append(c.notifications, n)
		c.mu.Unlock()
		c.wake()

	case TypeOffer, TypeAnswer, TypeICECandidate:
		var s Signal
		if err := json.Unmarshal(data, &s); err != nil {
			c.log.Debug("bad signal", "error", err)
			return
		}
		c.mu.Lock()
		c.signals = append(c.signals, s)
		c.mu.Unlock()
		c.wake()

	case TypeError:
		var er errorReply
		_ = json.Unmarshal(data, &er)
		c.log.Warn("signaling server error", "code", er.Code, "error", er.Error)

	default:
		c.log.Debug("ignoring frame", "type", h.Type, "request_id", h.RequestID)
	}
}
