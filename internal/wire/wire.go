// Package wire defines the messages subscribers receive over websocket and
// WebRTC: snapshot payloads and lifecycle status notices.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/junsooki/deskhook/internal/decoder"
	"github.com/junsooki/deskhook/internal/encoder"
	"github.com/junsooki/deskhook/internal/snapshot"
)

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeStatus   = "status"
)

// Message is the envelope for everything sent to subscribers.
type Message struct {
	Type      string            `json:"type" cbor:"type"`
	Source    string            `json:"source,omitempty" cbor:"source,omitempty"`
	Session   string            `json:"session,omitempty" cbor:"session,omitempty"`
	Timestamp time.Time         `json:"timestamp" cbor:"timestamp"`
	Shape     *snapshot.Shape   `json:"shape,omitempty" cbor:"shape,omitempty"`
	Regions   []snapshot.Region `json:"regions,omitempty" cbor:"regions,omitempty"`
	ImageType string            `json:"image_type,omitempty" cbor:"image_type,omitempty"`
	Image     []byte            `json:"image,omitempty" cbor:"image,omitempty"`
	Status    string            `json:"status,omitempty" cbor:"status,omitempty"`
}

// FromSnapshot builds a snapshot message. The image is encoded with enc; a
// nil enc sends regions and shape only.
func FromSnapshot(src, session string, snap snapshot.Snapshot, enc encoder.Encoder) (Message, error) {
	shape := snap.Shape()
	msg := Message{
		Type:      TypeSnapshot,
		Source:    src,
		Session:   session,
		Timestamp: snap.Timestamp,
		Shape:     &shape,
		Regions:   snap.Regions,
	}
	if enc != nil && snap.Image != nil {
		data, err := enc.Encode(snap.Image)
		if err != nil {
			return Message{}, fmt.Errorf("wire: %w", err)
		}
		msg.Image = data
		msg.ImageType = enc.ContentType()
	}
	return msg, nil
}

// StatusMessage builds a lifecycle notice.
func StatusMessage(src, session, status string, at time.Time) Message {
	return Message{
		Type:      TypeStatus,
		Source:    src,
		Session:   session,
		Timestamp: at,
		Status:    status,
	}
}

// Snapshot rebuilds a snapshot from a received message using dec for the image.
func (m Message) Snapshot(dec decoder.Decoder) (snapshot.Snapshot, error) {
	if m.Type != TypeSnapshot {
		return snapshot.Snapshot{}, fmt.Errorf("wire: message type %q is not a snapshot", m.Type)
	}
	if len(m.Image) == 0 {
		return snapshot.Snapshot{}, errors.New("wire: snapshot carries no image")
	}
	img, err := dec.Decode(m.Image)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("wire: %w", err)
	}
	return snapshot.Build(img, m.Regions, m.Timestamp)
}

// MarshalJSON encodes m for text transports.
func MarshalJSON(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalJSON decodes a text-transport message.
func UnmarshalJSON(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("wire: decode json: %w", err)
	}
	return m, nil
}
