package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/deskhook/internal/logging"
	"github.com/junsooki/deskhook/internal/transport"
	"github.com/junsooki/deskhook/internal/wire"
)

// Viewer manages the receiving side of a hook connection. It offers a
// snapshots data channel to the hook and decodes every message it receives.
type Viewer struct {
	pc        *webrtc.PeerConnection
	sig       Signaler
	transport *transport.DataChannelTransport
	hookID    string
	logger    *slog.Logger

	mu        sync.Mutex
	onMessage func(wire.Message)
}

// NewViewer creates a Viewer that will connect to hookID.
func NewViewer(sig Signaler, hookID string, cfg Config, logger *slog.Logger) (*Viewer, error) {
	logger = logging.OrDefault(logger).With("component", "webrtc-viewer", "hook", hookID)
	pc, err := NewPeerConnection(cfg, logger, nil)
	if err != nil {
		return nil, err
	}

	ordered := true
	dc, err := pc.CreateDataChannel(transport.SnapshotsLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create snapshots channel: %w", err)
	}

	v := &Viewer{
		pc:        pc,
		sig:       sig,
		transport: transport.NewDataChannelTransport(dc),
		hookID:    hookID,
		logger:    logger,
	}
	dc.OnOpen(func() {
		logger.Info("snapshots data channel open")
	})
	v.transport.OnSnapshot(v.receive)
	return v, nil
}

// OnMessage registers cb for every decoded snapshot or status message.
func (v *Viewer) OnMessage(cb func(wire.Message)) {
	v.mu.Lock()
	v.onMessage = cb
	v.mu.Unlock()
}

// Connect creates an offer and sends it to the hook once ICE gathering is
// complete.
func (v *Viewer) Connect(ctx context.Context) error {
	offer, err := v.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	offerJSON, err := localDescription(ctx, v.pc, offer)
	if err != nil {
		return err
	}
	return v.sig.SendOffer(v.hookID, offerJSON)
}

// HandleAnswer processes the SDP answer from the hook.
func (v *Viewer) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	if err := v.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// HandleICECandidate adds a remote ICE candidate.
func (v *Viewer) HandleICECandidate(payload json.RawMessage) error {
	return addICECandidate(v.pc, payload)
}

// Close tears down the peer connection.
func (v *Viewer) Close() error {
	return v.pc.Close()
}

func (v *Viewer) receive(data []byte) {
	msg, err := wire.UnmarshalCBOR(data)
	if err != nil {
		v.logger.Warn("dropping undecodable message", "error", err, "bytes", len(data))
		return
	}
	v.mu.Lock()
	cb := v.onMessage
	v.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}
