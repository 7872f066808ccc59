package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"
)

// DefaultICEServers is the default ICE server configuration.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
}

// gatherTimeout bounds how long an offer or answer waits for ICE gathering.
const gatherTimeout = 10 * time.Second

// Signaler relays session descriptions to a remote peer. Descriptions are
// sent after gathering completes, so local candidates are never trickled.
type Signaler interface {
	SendOffer(target string, payload json.RawMessage) error
	SendAnswer(target string, payload json.RawMessage) error
}

// Config tunes peer connections.
type Config struct {
	// ICEServers defaults to DefaultICEServers when nil.
	ICEServers      []webrtc.ICEServer
	IncludeLoopback bool
}

// NewPeerConnection creates a configured PeerConnection. State changes are
// logged and then passed to onState when it is non-nil.
func NewPeerConnection(cfg Config, logger *slog.Logger, onState func(webrtc.PeerConnectionState)) (*webrtc.PeerConnection, error) {
	servers := cfg.ICEServers
	if servers == nil {
		servers = DefaultICEServers
	}

	var se webrtc.SettingEngine
	se.SetIncludeLoopbackCandidate(cfg.IncludeLoopback)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("peer connection state", "state", state.String())
		if onState != nil {
			onState(state)
		}
	})
	return pc, nil
}

// localDescription sets desc and waits for ICE gathering so the returned SDP
// carries every local candidate.
func localDescription(ctx context.Context, pc *webrtc.PeerConnection, desc webrtc.SessionDescription) (json.RawMessage, error) {
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()
	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, fmt.Errorf("ice gathering: %w", ctx.Err())
	}

	data, err := json.Marshal(pc.LocalDescription())
	if err != nil {
		return nil, fmt.Errorf("marshal description: %w", err)
	}
	return data, nil
}

func addICECandidate(pc *webrtc.PeerConnection, payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("decode ice candidate: %w", err)
	}
	return pc.AddICECandidate(candidate)
}
