package signaling

// Mailbox holds everything waiting for one target peer. Offer and answer are
// single slots: a newer entry replaces an unclaimed one. Candidates and
// notifications queue up in arrival order.
type Mailbox struct {
	offer         *PendingMessage
	answer        *PendingMessage
	candidates    []PendingMessage
	notifications []Notification
}

func (m *Mailbox) putOffer(msg PendingMessage) {
	m.offer = &msg
}

func (m *Mailbox) putAnswer(msg PendingMessage) {
	m.answer = &msg
}

func (m *Mailbox) appendCandidate(msg PendingMessage) {
	m.candidates = append(m.candidates, msg)
}

func (m *Mailbox) appendNotification(n Notification) {
	m.notifications = append(m.notifications, n)
}

// drainSignaling empties the offer, answer and candidate compartments and
// returns them as one batch: offer, answer, then candidates.
func (m *Mailbox) drainSignaling() []PendingMessage {
	out := make([]PendingMessage, 0, len(m.candidates)+2)
	if m.offer != nil {
		out = append(out, *m.offer)
		m.offer = nil
	}
	if m.answer != nil {
		out = append(out, *m.answer)
		m.answer = nil
	}
	out = append(out, m.candidates...)
	m.candidates = nil
	return out
}

func (m *Mailbox) drainNotifications() []Notification {
	out := make([]Notification, len(m.notifications))
	copy(out, m.notifications)
	m.notifications = nil
	return out
}

func (m *Mailbox) hasSignaling() bool {
	return m.offer != nil || m.answer != nil || len(m.candidates) > 0
}

func (m *Mailbox) hasNotifications() bool {
	return len(m.notifications) > 0
}
