// Package chat frames chat messages sent over the WebRTC data channel.
package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Label is the data channel every chat connection opens.
const Label = "chat"

// Envelope types.
const (
	TypeChat = "chat"
)

var ErrUnknownType = errors.New("unknown message type")

// Envelope represents all data channel messages
type Envelope struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Message is one line of chat.
type Message struct {
	Text       string `msgpack:"text"`
	Sender     string `msgpack:"sender"`
	Timestamp  int64  `msgpack:"timestamp"`
	DeviceType string `msgpack:"deviceType"`
}

func NewMessage(text, sender, deviceType string, at time.Time) Message {
	return Message{
		Text:       text,
		Sender:     sender,
		Timestamp:  at.UnixMilli(),
		DeviceType: deviceType,
	}
}

// Time returns the send time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Encode wraps m in an envelope ready for the data channel.
func Encode(m Message) ([]byte, error) {
	payload, err := msgpack.Marshal(m)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(Envelope{Type: TypeChat, Payload: payload})
}

// Decode unwraps a chat message received from the data channel.
func Decode(b []byte) (Message, error) {
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != TypeChat {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	var m Message
	if err := msgpack.Unmarshal(env.Payload, &m); err != nil {
		return Message{}, fmt.Errorf("decode chat message: %w", err)
	}
	return m, nil
}

// SenderName is the display name derived from a peer id: Peer_ and its last
// four characters.
func SenderName(peerID string) string {
	if len(peerID) > 4 {
		peerID = peerID[len(peerID)-4:]
	}
	return "Peer_" + peerID
}
