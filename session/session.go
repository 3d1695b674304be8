// Package session implements the capability-negotiation handshake and
// keep-alive state machine that wraps the codec engine: Initial,
// HelloSent, Established, Closing, Closed, with capability intersection
// and caller-driven wall-clock timeouts. Transitions are not safe for
// concurrent use; the caller owns one Session per connection and
// serializes calls onto it, exactly as it must serialize calls onto a
// single connection's read/write halves.
package session

import (
	"fmt"
	"time"
)

// State is a node in the session handshake/keep-alive state machine.
type State int

const (
	Initial State = iota
	HelloSent
	Established
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case HelloSent:
		return "hello_sent"
	case Established:
		return "established"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Default timers, overridable per Session via Options.
const (
	DefaultHandshakeTimeout  = 30 * time.Second
	DefaultKeepAliveTimeout  = 10 * time.Second
	DefaultCloseTimeout      = 5 * time.Second
	DefaultInactivityTimeout = 5 * time.Minute
	maxMissedPongs           = 3
)

// RejectCode enumerates the wire rejection codes a HELLO may be answered with.
type RejectCode string

const (
	RejectVersionMismatch    RejectCode = "VERSION_MISMATCH"
	RejectNoCommonAlgorithm  RejectCode = "NO_COMMON_ALGORITHM"
	RejectSecurityPolicy     RejectCode = "SECURITY_POLICY"
	RejectRateLimited        RejectCode = "RATE_LIMITED"
	RejectServerBusy         RejectCode = "SERVER_BUSY"
	RejectUnknown            RejectCode = "UNKNOWN"
)

// CloseReason enumerates the wire closure reasons a CLOSE may carry.
type CloseReason string

const (
	CloseNormal         CloseReason = "NORMAL"
	CloseTimeout        CloseReason = "TIMEOUT"
	CloseError          CloseReason = "ERROR"
	CloseClientShutdown CloseReason = "CLIENT_SHUTDOWN"
	CloseServerShutdown CloseReason = "SERVER_SHUTDOWN"
)

// Capabilities is what a peer declares support for during handshake.
type Capabilities struct {
	Algorithms     []string // e.g. "m2m-v1", "token-native", "legacy-v3"
	Tokenizers     []string // tokenizer ids this peer can encode/decode
	SecurityModes  []string // "none", "hmac", "aead"
	MaxPayloadSize uint32
	Streaming      bool
}

// Intersect computes the negotiated Capabilities shared by a and b, per
// the capability intersection rules: algorithms and tokenizers intersect
// (empty algorithm intersection is a negotiation failure; empty tokenizer
// intersection is a failure only when a tokenizer-dependent algorithm
// survived); security modes intersect defaulting to none; max payload
// size is the minimum of both; streaming is a logical AND.
func Intersect(a, b Capabilities) (Capabilities, error) {
	algorithms := intersectStrings(a.Algorithms, b.Algorithms)
	if len(algorithms) == 0 {
		return Capabilities{}, newErr(NegotiationFailed, "intersect", fmt.Errorf("no common algorithm"))
	}

	tokenizers := intersectStrings(a.Tokenizers, b.Tokenizers)
	if len(tokenizers) == 0 && requiresTokenizer(algorithms) {
		return Capabilities{}, newErr(NegotiationFailed, "intersect", fmt.Errorf("no common tokenizer for negotiated algorithm"))
	}

	security := intersectStrings(a.SecurityModes, b.SecurityModes)
	if len(security) == 0 {
		security = []string{"none"}
	}

	maxPayload := a.MaxPayloadSize
	if b.MaxPayloadSize < maxPayload {
		maxPayload = b.MaxPayloadSize
	}

	return Capabilities{
		Algorithms:     algorithms,
		Tokenizers:     tokenizers,
		SecurityModes:  security,
		MaxPayloadSize: maxPayload,
		Streaming:      a.Streaming && b.Streaming,
	}, nil
}

func requiresTokenizer(algorithms []string) bool {
	for _, a := range algorithms {
		if a == "token-native" {
			return true
		}
	}
	return false
}

func intersectStrings(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	var out []string
	for _, v := range b {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

// Options configures a Session's timers. Zero values fall back to the
// package defaults.
type Options struct {
	HandshakeTimeout  time.Duration
	KeepAliveTimeout  time.Duration
	CloseTimeout      time.Duration
	InactivityTimeout time.Duration
}

func (o Options) handshakeTimeout() time.Duration {
	return withDefault(o.HandshakeTimeout, DefaultHandshakeTimeout)
}
func (o Options) keepAliveTimeout() time.Duration {
	return withDefault(o.KeepAliveTimeout, DefaultKeepAliveTimeout)
}
func (o Options) closeTimeout() time.Duration {
	return withDefault(o.CloseTimeout, DefaultCloseTimeout)
}
func (o Options) inactivityTimeout() time.Duration {
	return withDefault(o.InactivityTimeout, DefaultInactivityTimeout)
}

func withDefault(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

// Session is a single peer's view of one handshake/keep-alive lifecycle.
// Every field below is read and written only through its methods; there
// is no synchronization (see the package doc comment).
type Session struct {
	state        State
	opts         Options
	own          Capabilities
	negotiated   Capabilities
	sessionID    string
	isInitiator  bool
	createdAt    time.Time
	lastActivity time.Time
	helloSentAt  time.Time
	closingAt    time.Time
	lastPingAt   time.Time
	missedPongs  int
	closeReason  CloseReason
	rejectReason RejectCode
}

// New creates a Session in the Initial state for the given local
// capabilities. now is the wall-clock time of creation.
func New(own Capabilities, opts Options, now time.Time) *Session {
	return &Session{
		state:        Initial,
		opts:         opts,
		own:          own,
		createdAt:    now,
		lastActivity: now,
	}
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// Negotiated returns the capability set agreed during handshake. Valid
// only once State() == Established.
func (s *Session) Negotiated() Capabilities { return s.negotiated }

// SessionID returns the negotiated session identifier, empty before
// handshake completes.
func (s *Session) SessionID() string { return s.sessionID }

// CreateHello transitions Initial -> HelloSent and returns the HELLO
// envelope to send.
func (s *Session) CreateHello(now time.Time) (Envelope, error) {
	if s.state != Initial {
		return Envelope{}, newErr(Protocol, "create_hello", fmt.Errorf("invalid in state %s", s.state))
	}
	s.isInitiator = true
	s.state = HelloSent
	s.helloSentAt = now
	s.lastActivity = now
	return Envelope{Type: TypeHello, Timestamp: now.UnixMilli(), Payload: capabilitiesPayload(s.own)}, nil
}

// ReceiveHello handles an incoming HELLO while Initial, computing the
// capability intersection and returning the response envelope (ACCEPT or
// REJECT) to send back. Messages received outside Initial never change
// state; they are reported as a Protocol error.
func (s *Session) ReceiveHello(peer Capabilities, sessionIDGen func() string, now time.Time) (Envelope, error) {
	if s.state != Initial {
		return Envelope{}, newErr(Protocol, "receive_hello", fmt.Errorf("invalid in state %s", s.state))
	}
	s.lastActivity = now

	negotiated, err := Intersect(s.own, peer)
	if err != nil {
		s.state = Closed
		s.rejectReason = RejectNoCommonAlgorithm
		return Envelope{
			Type:      TypeReject,
			Timestamp: now.UnixMilli(),
			Payload:   rejectPayload(RejectNoCommonAlgorithm),
		}, nil
	}

	s.sessionID = sessionIDGen()
	s.negotiated = negotiated
	s.state = Established
	return Envelope{
		Type:      TypeAccept,
		SessionID: s.sessionID,
		Timestamp: now.UnixMilli(),
		Payload:   capabilitiesPayload(negotiated),
	}, nil
}

// ReceiveAccept handles an incoming ACCEPT while HelloSent, storing the
// negotiated capabilities and session id.
func (s *Session) ReceiveAccept(sessionID string, negotiated Capabilities, now time.Time) error {
	if s.state != HelloSent {
		return newErr(Protocol, "receive_accept", fmt.Errorf("invalid in state %s", s.state))
	}
	s.sessionID = sessionID
	s.negotiated = negotiated
	s.state = Established
	s.lastActivity = now
	return nil
}

// ReceiveReject handles an incoming REJECT while HelloSent, recording the
// reason and transitioning to Closed.
func (s *Session) ReceiveReject(reason RejectCode, now time.Time) error {
	if s.state != HelloSent {
		return newErr(Protocol, "receive_reject", fmt.Errorf("invalid in state %s", s.state))
	}
	s.rejectReason = reason
	s.state = Closed
	s.lastActivity = now
	return nil
}

// RejectReason returns the reason the peer rejected this session's
// HELLO, valid once State() == Closed following a rejected handshake.
func (s *Session) RejectReason() RejectCode { return s.rejectReason }

// Ping records that this session sent or received a PING while
// Established and starts the 10s PONG deadline.
func (s *Session) Ping(now time.Time) error {
	if s.state != Established {
		return newErr(NotEstablished, "ping", fmt.Errorf("invalid in state %s", s.state))
	}
	s.lastPingAt = now
	s.lastActivity = now
	return nil
}

// Pong records a PONG received in answer to an outstanding PING,
// resetting the missed-PONG counter.
func (s *Session) Pong(now time.Time) error {
	if s.state != Established {
		return newErr(NotEstablished, "pong", fmt.Errorf("invalid in state %s", s.state))
	}
	s.missedPongs = 0
	s.lastPingAt = time.Time{}
	s.lastActivity = now
	return nil
}

// Touch records activity (a successful compress/decompress or DATA
// exchange) at now, resetting the inactivity deadline.
func (s *Session) Touch(now time.Time) {
	if s.state == Established {
		s.lastActivity = now
	}
}

// Close transitions Established -> Closing and returns the CLOSE
// envelope to send.
func (s *Session) Close(reason CloseReason, now time.Time) (Envelope, error) {
	if s.state != Established {
		return Envelope{}, newErr(Protocol, "close", fmt.Errorf("invalid in state %s", s.state))
	}
	s.state = Closing
	s.closingAt = now
	s.closeReason = reason
	return Envelope{Type: TypeClose, SessionID: s.sessionID, Timestamp: now.UnixMilli(), Payload: closePayload(reason)}, nil
}

// ReceiveClose handles an inbound CLOSE: a peer-initiated close while
// Established, or the peer's acknowledgement while Closing. Either way
// the session is Closed with the peer's stated reason (keeping our own
// if the peer gave none).
func (s *Session) ReceiveClose(reason CloseReason, now time.Time) error {
	if s.state != Established && s.state != Closing {
		return newErr(Protocol, "receive_close", fmt.Errorf("invalid in state %s", s.state))
	}
	s.state = Closed
	if reason != "" {
		s.closeReason = reason
	}
	s.lastActivity = now
	return nil
}

// CloseReason returns the reason this session closed, once Closed.
func (s *Session) CloseReason() CloseReason { return s.closeReason }

// Tick applies wall-clock time now against this session's timers,
// forcing whatever timeout-driven transition is due: handshake timeout
// in HelloSent, missed-PONG/inactivity timeout in Established, close
// timeout in Closing. It returns true if it changed state.
func (s *Session) Tick(now time.Time) bool {
	switch s.state {
	case HelloSent:
		if now.Sub(s.helloSentAt) >= s.opts.handshakeTimeout() {
			s.state = Closed
			s.closeReason = CloseTimeout
			return true
		}
	case Established:
		if !s.lastPingAt.IsZero() && now.Sub(s.lastPingAt) >= s.opts.keepAliveTimeout() {
			s.missedPongs++
			s.lastPingAt = time.Time{}
			if s.missedPongs >= maxMissedPongs {
				s.state = Closed
				s.closeReason = CloseTimeout
				return true
			}
		}
		if now.Sub(s.lastActivity) >= s.opts.inactivityTimeout() {
			s.state = Closed
			s.closeReason = CloseTimeout
			return true
		}
	case Closing:
		if now.Sub(s.closingAt) >= s.opts.closeTimeout() {
			s.state = Closed
			return true
		}
	}
	return false
}
