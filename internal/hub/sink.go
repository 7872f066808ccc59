package hub

import (
	"context"
	"time"

	"github.com/junsooki/deskhook/internal/encoder"
	"github.com/junsooki/deskhook/internal/snapshot"
	"github.com/junsooki/deskhook/internal/source"
	"github.com/junsooki/deskhook/internal/wire"
)

// Sink publishes snapshots and status notices from one source to a Hub.
type Sink struct {
	hub     *Hub
	enc     encoder.Encoder
	source  string
	session string
	clock   func() time.Time
}

// NewSink returns a Sink for the named source. enc may be nil to omit images.
func NewSink(h *Hub, enc encoder.Encoder, sourceName, session string) *Sink {
	return &Sink{
		hub:     h,
		enc:     enc,
		source:  sourceName,
		session: session,
		clock:   time.Now,
	}
}

// Update encodes snap as JSON and queues it for every client. A full queue
// drops the message; only encoding failures are returned.
func (s *Sink) Update(_ context.Context, snap snapshot.Snapshot) error {
	msg, err := wire.FromSnapshot(s.source, s.session, snap, s.enc)
	if err != nil {
		return err
	}
	data, err := wire.MarshalJSON(msg)
	if err != nil {
		return err
	}
	s.hub.Broadcast(data)
	return nil
}

// ReportStatus forwards a lifecycle transition to clients.
func (s *Sink) ReportStatus(name string, status source.Status) {
	data, err := wire.MarshalJSON(wire.StatusMessage(name, s.session, string(status), s.clock()))
	if err != nil {
		s.hub.logger.Warn("encode status", "error", err)
		return
	}
	s.hub.Broadcast(data)
}
