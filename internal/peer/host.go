package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/deskhook/internal/encoder"
	"github.com/junsooki/deskhook/internal/logging"
	"github.com/junsooki/deskhook/internal/snapshot"
	"github.com/junsooki/deskhook/internal/source"
	"github.com/junsooki/deskhook/internal/transport"
	"github.com/junsooki/deskhook/internal/wire"
)

const flushPoll = 10 * time.Millisecond

// HostOptions configure a Host.
type HostOptions struct {
	Signaler Signaler
	Encoder  encoder.Encoder
	Source   string
	Session  string
	Peer     Config
	Logger   *slog.Logger
}

// Host answers viewer offers and pushes snapshots to every connected viewer
// over its snapshots data channel.
type Host struct {
	sig     Signaler
	enc     encoder.Encoder
	source  string
	session string
	cfg     Config
	logger  *slog.Logger

	mu      sync.Mutex
	viewers map[string]*viewerConn
}

type viewerConn struct {
	pc        *webrtc.PeerConnection
	transport *transport.DataChannelTransport
}

// NewHost creates a Host peer manager.
func NewHost(opts HostOptions) *Host {
	return &Host{
		sig:     opts.Signaler,
		enc:     opts.Encoder,
		source:  opts.Source,
		session: opts.Session,
		cfg:     opts.Peer,
		logger:  logging.OrDefault(opts.Logger).With("component", "webrtc-host"),
		viewers: make(map[string]*viewerConn),
	}
}

// HandleOffer processes an incoming offer from a viewer, replacing any
// earlier connection from the same viewer.
func (h *Host) HandleOffer(ctx context.Context, from string, payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}

	vc := &viewerConn{transport: transport.NewDataChannelTransport(nil)}
	pc, err := NewPeerConnection(h.cfg, h.logger.With("viewer", from), func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			h.removeViewer(from, vc)
		}
	})
	if err != nil {
		return err
	}
	vc.pc = pc

	// The viewer creates the snapshots channel before offering.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != transport.SnapshotsLabel {
			h.logger.Warn("ignoring data channel", "viewer", from, "label", dc.Label())
			return
		}
		dc.OnOpen(func() {
			h.logger.Info("snapshots data channel open", "viewer", from)
		})
		vc.transport.SetChannel(dc)
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("create answer: %w", err)
	}
	answerJSON, err := localDescription(ctx, pc, answer)
	if err != nil {
		pc.Close()
		return err
	}

	h.mu.Lock()
	old := h.viewers[from]
	h.viewers[from] = vc
	h.mu.Unlock()
	if old != nil {
		old.pc.Close()
	}

	return h.sig.SendAnswer(from, answerJSON)
}

// HandleICECandidate adds a remote ICE candidate trickled by a viewer.
func (h *Host) HandleICECandidate(from string, payload json.RawMessage) error {
	h.mu.Lock()
	vc := h.viewers[from]
	h.mu.Unlock()
	if vc == nil {
		return fmt.Errorf("no connection for viewer %q", from)
	}
	return addICECandidate(vc.pc, payload)
}

// Update sends snap to every viewer with an open channel. Viewers whose send
// fails are disconnected; only encoding failures are returned.
func (h *Host) Update(_ context.Context, snap snapshot.Snapshot) error {
	msg, err := wire.FromSnapshot(h.source, h.session, snap, h.enc)
	if err != nil {
		return err
	}
	data, err := wire.MarshalCBOR(msg)
	if err != nil {
		return err
	}
	h.send(data)
	return nil
}

// ReportStatus forwards a lifecycle transition to viewers.
func (h *Host) ReportStatus(name string, status source.Status) {
	data, err := wire.MarshalCBOR(wire.StatusMessage(name, h.session, string(status), time.Now()))
	if err != nil {
		h.logger.Warn("encode status", "error", err)
		return
	}
	h.send(data)
}

// ViewerCount returns the number of viewers with an open channel.
func (h *Host) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, vc := range h.viewers {
		if vc.transport.Open() {
			n++
		}
	}
	return n
}

// Flush waits until every open viewer channel has handed its queued messages
// to the network, or ctx is done.
func (h *Host) Flush(ctx context.Context) error {
	ticker := time.NewTicker(flushPoll)
	defer ticker.Stop()
	for h.buffered() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (h *Host) buffered() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n uint64
	for _, vc := range h.viewers {
		if vc.transport.Open() {
			n += vc.transport.Buffered()
		}
	}
	return n
}

// Close shuts down every viewer connection.
func (h *Host) Close() {
	h.mu.Lock()
	viewers := h.viewers
	h.viewers = make(map[string]*viewerConn)
	h.mu.Unlock()
	for _, vc := range viewers {
		vc.pc.Close()
	}
}

func (h *Host) send(data []byte) {
	h.mu.Lock()
	targets := make(map[string]*viewerConn, len(h.viewers))
	for id, vc := range h.viewers {
		targets[id] = vc
	}
	h.mu.Unlock()

	for id, vc := range targets {
		if !vc.transport.Open() {
			continue
		}
		if err := vc.transport.SendSnapshot(data); err != nil {
			h.logger.Warn("send to viewer failed, disconnecting", "viewer", id, "error", err)
			h.removeViewer(id, vc)
			vc.pc.Close()
		}
	}
}

func (h *Host) removeViewer(id string, vc *viewerConn) {
	h.mu.Lock()
	if h.viewers[id] == vc {
		delete(h.viewers, id)
	}
	h.mu.Unlock()
}
