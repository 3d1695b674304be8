package session

import "encoding/json"

// EnvelopeType is the "type" discriminant of an out-of-band session
// control message.
type EnvelopeType string

const (
	TypeHello  EnvelopeType = "HELLO"
	TypeAccept EnvelopeType = "ACCEPT"
	TypeReject EnvelopeType = "REJECT"
	TypeData   EnvelopeType = "DATA"
	TypePing   EnvelopeType = "PING"
	TypePong   EnvelopeType = "PONG"
	TypeClose  EnvelopeType = "CLOSE"
)

// Envelope is the wire shape of a session control message, exchanged
// out-of-band by the transport (never framed through the codec engine).
// Payload is decoded into the per-Type payload struct only after Type has
// been read, since its shape depends entirely on the discriminator.
type Envelope struct {
	Type      EnvelopeType    `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload is HELLO's payload: the sender's declared capabilities.
type HelloPayload struct {
	Algorithms     []string `json:"algorithms"`
	Tokenizers     []string `json:"tokenizers"`
	SecurityModes  []string `json:"security_modes"`
	MaxPayloadSize uint32   `json:"max_payload_size"`
	Streaming      bool     `json:"streaming"`
}

// AcceptPayload is ACCEPT's payload: the negotiated capability intersection.
type AcceptPayload struct {
	Algorithms     []string `json:"algorithms"`
	Tokenizers     []string `json:"tokenizers"`
	SecurityModes  []string `json:"security_modes"`
	MaxPayloadSize uint32   `json:"max_payload_size"`
	Streaming      bool     `json:"streaming"`
}

// RejectPayload is REJECT's payload: why the HELLO was refused.
type RejectPayload struct {
	Reason RejectCode `json:"reason"`
}

// PingPayload is PING's payload. Currently empty; kept as a named type so
// a future field does not change Envelope's shape.
type PingPayload struct{}

// PongPayload is PONG's payload. Currently empty, mirrors PingPayload.
type PongPayload struct{}

// ClosePayload is CLOSE's payload: why the session is ending.
type ClosePayload struct {
	Reason CloseReason `json:"reason"`
}

func capabilitiesPayload(c Capabilities) json.RawMessage {
	raw, err := json.Marshal(HelloPayload{
		Algorithms:     c.Algorithms,
		Tokenizers:     c.Tokenizers,
		SecurityModes:  c.SecurityModes,
		MaxPayloadSize: c.MaxPayloadSize,
		Streaming:      c.Streaming,
	})
	if err != nil {
		// HelloPayload has no type that can fail to marshal.
		panic(err)
	}
	return raw
}

func rejectPayload(reason RejectCode) json.RawMessage {
	raw, _ := json.Marshal(RejectPayload{Reason: reason})
	return raw
}

func closePayload(reason CloseReason) json.RawMessage {
	raw, _ := json.Marshal(ClosePayload{Reason: reason})
	return raw
}
