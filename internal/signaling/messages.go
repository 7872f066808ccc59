package signaling

import "encoding/json"

// Message types exchanged with the signaling server. The wire strings keep the
// server's host/controller vocabulary: a hook registers as a host and a
// viewer as a controller.
const (
	TypeRegister         = "register"
	TypeRegistered       = "registered"
	TypeListHooks        = "list-hosts"
	TypeHooks            = "hosts"
	TypeHooksUpdated     = "hosts-updated"
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeICECandidate     = "ice-candidate"
	TypePing             = "ping"
	TypePong             = "pong"
	TypeError            = "error"
	TypeHookDisconnected = "host-disconnected"
)

// Client types.
const (
	ClientTypeHook   = "host"
	ClientTypeViewer = "controller"
)

// Message is the envelope for all signaling messages.
type Message struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	ClientType string          `json:"clientType,omitempty"`
	From       string          `json:"from,omitempty"`
	Target     string          `json:"target,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	List       []HookInfo      `json:"list,omitempty"`
	HookID     string          `json:"hostId,omitempty"`
	Msg        string          `json:"message,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
}

// HookInfo describes a hook advertised by the server.
type HookInfo struct {
	ID     string `json:"id"`
	Online bool   `json:"online"`
}
