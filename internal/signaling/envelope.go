// Package signaling defines the JSON envelope schema carried over each
// session's duplex transport (spec.md §6) and the SDP munging contract
// every outbound description passes through. The envelope shape follows
// the teacher's sfuMessage/Message structs in webrtc/sfu.go and
// webrtc/videoconference.go: one flat struct, every field but Type
// optional via `omitempty`, dispatched on a string Type.
package signaling

import "encoding/json"

// Envelope types, server → client and client → server (spec.md §6).
const (
	TypeConfig      = "config"
	TypeOffer       = "offer"
	TypeAnswer      = "answer"
	TypeICECandidate = "ice-candidate"

	TypeRequestICERestart = "request_ice_restart"
	TypeICERestartOffer   = "ice_restart_offer"
	TypeICERestartAnswer  = "ice_restart_answer"

	TypeP2POffer        = "p2p_offer"
	TypeP2PAnswer       = "p2p_answer"
	TypeP2PICECandidate = "p2p_ice_candidate"

	TypeClientList  = "client_list"
	TypeClientJoined = "client_joined"
	TypeClientLeft   = "client_left"

	TypePTTRequest = "ptt_request"
	TypePTTRelease = "ptt_release"
	TypePTTGranted = "ptt_granted"
	TypePTTDenied  = "ptt_denied"
	TypePTTStatus  = "ptt_status"

	TypeSetDisplayName      = "set_display_name"
	TypePushSubscribe       = "push_subscribe"
	TypeRequestP2PReconnect = "request_p2p_reconnect"
)

// Floor broadcast states (spec.md §6 ptt_status).
const (
	StateIdle         = "idle"
	StateTransmitting = "transmitting"
)

// ICECandidate mirrors the wire shape of RTCIceCandidateInit.
type ICECandidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// ClientListEntry is one row of the client_list envelope.
type ClientListEntry struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

// Envelope is the single wire struct for every signaling message. Fields
// are a superset across all types; unused ones are omitted on marshal.
type Envelope struct {
	Type string `json:"type"`

	ClientID      string             `json:"clientId,omitempty"`
	ICEServers    []ICEServer        `json:"iceServers,omitempty"`
	VapidPublicKey string            `json:"vapidPublicKey,omitempty"`

	SDP string `json:"sdp,omitempty"`

	Candidate *ICECandidate `json:"candidate,omitempty"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Clients []ClientListEntry `json:"clients,omitempty"`

	DisplayName string `json:"displayName,omitempty"`

	Speaker     string `json:"speaker,omitempty"`
	SpeakerName string `json:"speakerName,omitempty"`
	State       string `json:"state,omitempty"`

	Subscription json.RawMessage `json:"subscription,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// ICEServer mirrors webrtc.ICEServer's wire shape for the config envelope.
type ICEServer struct {
	URLs []string `json:"urls"`
}

// Marshal serializes the envelope, used by the transport's best-effort
// writer (spec.md §4.3).
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes a single raw frame into an Envelope. Malformed frames are
// the caller's concern to log and drop (spec.md §4.3) — Parse just
// surfaces the error.
func Parse(raw []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(raw, &e)
	return e, err
}
