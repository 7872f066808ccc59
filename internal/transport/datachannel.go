package transport

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// SnapshotsLabel names the data channel carrying snapshot messages.
const SnapshotsLabel = "snapshots"

// ErrNotOpen is returned when sending before the data channel is open.
var ErrNotOpen = errors.New("snapshots data channel not open")

// DataChannelTransport carries snapshot messages over a WebRTC DataChannel.
type DataChannelTransport struct {
	mu         sync.Mutex
	dc         *webrtc.DataChannel
	onSnapshot func(data []byte)
}

// NewDataChannelTransport wraps dc, which may be nil until the remote side
// announces its channel.
func NewDataChannelTransport(dc *webrtc.DataChannel) *DataChannelTransport {
	t := &DataChannelTransport{}
	if dc != nil {
		t.SetChannel(dc)
	}
	return t
}

func (t *DataChannelTransport) SendSnapshot(data []byte) error {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotOpen
	}
	return dc.Send(data)
}

func (t *DataChannelTransport) OnSnapshot(cb func(data []byte)) {
	t.mu.Lock()
	t.onSnapshot = cb
	t.mu.Unlock()
}

// Open reports whether the channel is ready for sending.
func (t *DataChannelTransport) Open() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dc != nil && t.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// Buffered returns the number of bytes queued on the channel but not yet sent.
func (t *DataChannelTransport) Buffered() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dc == nil {
		return 0
	}
	return t.dc.BufferedAmount()
}

// SetChannel sets or replaces the DataChannel (used when receiving negotiated channels).
func (t *DataChannelTransport) SetChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.Lock()
		cb := t.onSnapshot
		t.mu.Unlock()
		if cb != nil {
			cb(msg.Data)
		}
	})
}

var (
	_ SnapshotSender   = (*DataChannelTransport)(nil)
	_ SnapshotReceiver = (*DataChannelTransport)(nil)
)
