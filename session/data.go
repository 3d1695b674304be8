package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/duskwire/m2m-go/codec"
	"github.com/duskwire/m2m-go/frame"
	"github.com/duskwire/m2m-go/security"
	"github.com/duskwire/m2m-go/tokenizer"
)

// Algorithm names as they appear in Capabilities.Algorithms. They match
// codec.Kind.String() so a decoded message's kind can be checked against
// the negotiated set directly.
const (
	AlgorithmM2MV1       = "m2m-v1"
	AlgorithmTokenNative = "token-native"
	AlgorithmLegacyV3    = "legacy-v3"
)

// Compress encodes jsonBytes as an M2M v1 frame through e, enforcing the
// negotiated capabilities: the session must be Established, the m2m-v1
// algorithm and the requested security mode must have been negotiated,
// and the payload must fit the negotiated maximum. Codec failures surface
// as Protocol errors with their chain intact.
func (s *Session) Compress(e *codec.Engine, jsonBytes []byte, schema frame.Schema, opts frame.Options, now time.Time) (codec.Result, error) {
	if s.state != Established {
		return codec.Result{}, s.stateErr("compress")
	}
	if !s.hasAlgorithm(AlgorithmM2MV1) {
		return codec.Result{}, newErr(CapabilityMismatch, "compress", fmt.Errorf("algorithm %q not negotiated", AlgorithmM2MV1))
	}
	if !s.hasSecurityMode(opts.Security) {
		return codec.Result{}, newErr(CapabilityMismatch, "compress", fmt.Errorf("security mode %q not negotiated", opts.Security))
	}
	if s.negotiated.MaxPayloadSize > 0 && uint64(len(jsonBytes)) > uint64(s.negotiated.MaxPayloadSize) {
		return codec.Result{}, newErr(CapabilityMismatch, "compress", fmt.Errorf("payload of %d bytes exceeds negotiated max %d", len(jsonBytes), s.negotiated.MaxPayloadSize))
	}

	res, err := e.EncodeFrame(jsonBytes, schema, opts)
	if err != nil {
		return codec.Result{}, newErr(Protocol, "compress", err)
	}
	s.lastActivity = now
	return res, nil
}

// CompressTokenNative encodes text through the token-native codec,
// requiring both the algorithm and the specific tokenizer id to have been
// negotiated.
func (s *Session) CompressTokenNative(e *codec.Engine, id tokenizer.ID, text string, now time.Time) (codec.Result, error) {
	if s.state != Established {
		return codec.Result{}, s.stateErr("compress token-native")
	}
	if !s.hasAlgorithm(AlgorithmTokenNative) {
		return codec.Result{}, newErr(CapabilityMismatch, "compress token-native", fmt.Errorf("algorithm %q not negotiated", AlgorithmTokenNative))
	}
	if !s.hasTokenizer(id) {
		return codec.Result{}, newErr(CapabilityMismatch, "compress token-native", fmt.Errorf("tokenizer %q not negotiated", string(byte(id))))
	}

	res, err := e.EncodeTokenNative(id, text)
	if err != nil {
		return codec.Result{}, newErr(Protocol, "compress token-native", err)
	}
	s.lastActivity = now
	return res, nil
}

// Decompress decodes an inbound wire message through e, clamping the
// frame payload ceiling to the negotiated maximum and rejecting messages
// whose recognized codec was not negotiated. Passthrough input is
// returned unchanged, as at the engine layer.
func (s *Session) Decompress(e *codec.Engine, wire []byte, key *security.Key, opts frame.Options, now time.Time) (codec.Result, error) {
	if s.state != Established {
		return codec.Result{}, s.stateErr("decompress")
	}
	if max := s.negotiated.MaxPayloadSize; max > 0 && (opts.MaxPayloadLen == 0 || opts.MaxPayloadLen > max) {
		opts.MaxPayloadLen = max
	}

	res, err := e.Decode(wire, key, opts)
	if err != nil {
		return codec.Result{}, newErr(Protocol, "decompress", err)
	}
	if alg, ok := algorithmForKind(res.Kind); ok && !s.hasAlgorithm(alg) {
		return codec.Result{}, newErr(CapabilityMismatch, "decompress", fmt.Errorf("algorithm %q not negotiated", alg))
	}
	s.lastActivity = now
	return res, nil
}

// Receive dispatches an inbound control envelope against the state
// machine. It returns the response envelope to send back, if the message
// calls for one (ACCEPT or REJECT answering a HELLO, PONG answering a
// PING). A payload that fails to parse is InvalidMessage and changes no
// state.
func (s *Session) Receive(env Envelope, sessionIDGen func() string, now time.Time) (*Envelope, error) {
	switch env.Type {
	case TypeHello:
		if sessionIDGen == nil {
			return nil, newErr(Protocol, "receive hello", fmt.Errorf("no session id generator"))
		}
		var p HelloPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, newErr(InvalidMessage, "receive hello", err)
		}
		resp, err := s.ReceiveHello(capsFromPayload(p), sessionIDGen, now)
		if err != nil {
			return nil, err
		}
		return &resp, nil

	case TypeAccept:
		var p AcceptPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, newErr(InvalidMessage, "receive accept", err)
		}
		return nil, s.ReceiveAccept(env.SessionID, capsFromPayload(HelloPayload(p)), now)

	case TypeReject:
		var p RejectPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, newErr(InvalidMessage, "receive reject", err)
		}
		return nil, s.ReceiveReject(p.Reason, now)

	case TypePing:
		if s.state != Established {
			return nil, s.stateErr("receive ping")
		}
		s.lastActivity = now
		return &Envelope{Type: TypePong, SessionID: s.sessionID, Timestamp: now.UnixMilli()}, nil

	case TypePong:
		return nil, s.Pong(now)

	case TypeData:
		if s.state != Established {
			return nil, s.stateErr("receive data")
		}
		s.lastActivity = now
		return nil, nil

	case TypeClose:
		var p ClosePayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return nil, newErr(InvalidMessage, "receive close", err)
			}
		}
		return nil, s.ReceiveClose(p.Reason, now)

	default:
		return nil, newErr(InvalidMessage, "receive", fmt.Errorf("unknown envelope type %q", env.Type))
	}
}

// stateErr classifies a data-path call made outside Established: a
// session the timers closed reports Expired, anything else
// NotEstablished.
func (s *Session) stateErr(op string) error {
	if s.state == Closed && s.closeReason == CloseTimeout {
		return newErr(Expired, op, fmt.Errorf("session timed out"))
	}
	return newErr(NotEstablished, op, fmt.Errorf("invalid in state %s", s.state))
}

func (s *Session) hasAlgorithm(name string) bool {
	for _, a := range s.negotiated.Algorithms {
		if a == name {
			return true
		}
	}
	return false
}

func (s *Session) hasSecurityMode(m security.Mode) bool {
	for _, v := range s.negotiated.SecurityModes {
		if v == m.String() {
			return true
		}
	}
	return false
}

func (s *Session) hasTokenizer(id tokenizer.ID) bool {
	want := string(byte(id))
	for _, v := range s.negotiated.Tokenizers {
		if v == want {
			return true
		}
	}
	return false
}

// algorithmForKind maps a decoded message's codec kind to the capability
// name it must have been negotiated under. Passthrough carries no
// algorithm, and the decode-only legacy v2 format rides on the legacy-v3
// capability.
func algorithmForKind(k codec.Kind) (string, bool) {
	switch k {
	case codec.KindFrameV1:
		return AlgorithmM2MV1, true
	case codec.KindTokenNative:
		return AlgorithmTokenNative, true
	case codec.KindLegacyV3, codec.KindLegacyV2:
		return AlgorithmLegacyV3, true
	default:
		return "", false
	}
}

func capsFromPayload(p HelloPayload) Capabilities {
	return Capabilities{
		Algorithms:     p.Algorithms,
		Tokenizers:     p.Tokenizers,
		SecurityModes:  p.SecurityModes,
		MaxPayloadSize: p.MaxPayloadSize,
		Streaming:      p.Streaming,
	}
}
