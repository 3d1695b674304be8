package session

import (
	"errors"
	"testing"
	"time"
)

func baseCaps() Capabilities {
	return Capabilities{
		Algorithms:     []string{"m2m-v1", "token-native"},
		Tokenizers:     []string{"C", "O"},
		SecurityModes:  []string{"none", "aead"},
		MaxPayloadSize: 1 << 20,
		Streaming:      true,
	}
}

func TestHandshakeHappyPath(t *testing.T) {
	now := time.Unix(1000, 0)
	initiator := New(baseCaps(), Options{}, now)

	hello, err := initiator.CreateHello(now)
	if err != nil {
		t.Fatal(err)
	}
	if initiator.State() != HelloSent {
		t.Fatalf("expected HelloSent, got %v", initiator.State())
	}
	if hello.Type != TypeHello {
		t.Fatalf("expected HELLO envelope, got %v", hello.Type)
	}

	responder := New(baseCaps(), Options{}, now)
	accept, err := responder.ReceiveHello(baseCaps(), func() string { return "sess-1" }, now)
	if err != nil {
		t.Fatal(err)
	}
	if responder.State() != Established {
		t.Fatalf("expected responder Established, got %v", responder.State())
	}
	if accept.Type != TypeAccept {
		t.Fatalf("expected ACCEPT envelope, got %v", accept.Type)
	}

	if err := initiator.ReceiveAccept(accept.SessionID, responder.Negotiated(), now); err != nil {
		t.Fatal(err)
	}
	if initiator.State() != Established {
		t.Fatalf("expected initiator Established, got %v", initiator.State())
	}
	if initiator.SessionID() != "sess-1" {
		t.Fatalf("expected session id sess-1, got %q", initiator.SessionID())
	}
}

func TestReceiveHelloNoCommonAlgorithmRejects(t *testing.T) {
	now := time.Unix(0, 0)
	responder := New(Capabilities{Algorithms: []string{"legacy-v3"}}, Options{}, now)
	reject, err := responder.ReceiveHello(Capabilities{Algorithms: []string{"token-native"}}, func() string { return "x" }, now)
	if err != nil {
		t.Fatal(err)
	}
	if reject.Type != TypeReject {
		t.Fatalf("expected REJECT, got %v", reject.Type)
	}
	if responder.State() != Closed {
		t.Fatalf("expected Closed, got %v", responder.State())
	}
	if responder.RejectReason() != RejectNoCommonAlgorithm {
		t.Fatalf("expected NO_COMMON_ALGORITHM, got %v", responder.RejectReason())
	}
}

func TestReceiveRejectClosesHelloSent(t *testing.T) {
	now := time.Unix(0, 0)
	s := New(baseCaps(), Options{}, now)
	if _, err := s.CreateHello(now); err != nil {
		t.Fatal(err)
	}
	if err := s.ReceiveReject(RejectSecurityPolicy, now); err != nil {
		t.Fatal(err)
	}
	if s.State() != Closed {
		t.Fatalf("expected Closed, got %v", s.State())
	}
	if s.RejectReason() != RejectSecurityPolicy {
		t.Fatalf("expected SECURITY_POLICY, got %v", s.RejectReason())
	}
}

func TestHandshakeTimeout(t *testing.T) {
	start := time.Unix(0, 0)
	s := New(baseCaps(), Options{}, start)
	if _, err := s.CreateHello(start); err != nil {
		t.Fatal(err)
	}
	if s.Tick(start.Add(29 * time.Second)) {
		t.Fatal("should not time out before 30s")
	}
	if !s.Tick(start.Add(31 * time.Second)) {
		t.Fatal("expected timeout transition at 31s")
	}
	if s.State() != Closed {
		t.Fatalf("expected Closed, got %v", s.State())
	}
	if s.CloseReason() != CloseTimeout {
		t.Fatalf("expected TIMEOUT, got %v", s.CloseReason())
	}
}

func establishedSession(t *testing.T, now time.Time) *Session {
	t.Helper()
	responder := New(baseCaps(), Options{}, now)
	if _, err := responder.ReceiveHello(baseCaps(), func() string { return "sess" }, now); err != nil {
		t.Fatal(err)
	}
	return responder
}

func TestMissedPongsCloseSession(t *testing.T) {
	start := time.Unix(0, 0)
	s := establishedSession(t, start)

	t0 := start
	for i := 0; i < maxMissedPongs; i++ {
		if err := s.Ping(t0); err != nil {
			t.Fatal(err)
		}
		t0 = t0.Add(11 * time.Second)
		changed := s.Tick(t0)
		if i < maxMissedPongs-1 {
			if changed {
				t.Fatalf("unexpected close after %d missed pongs", i+1)
			}
			if s.State() != Established {
				t.Fatalf("expected still Established after %d missed pongs", i+1)
			}
		} else {
			if !changed {
				t.Fatal("expected close on 3rd missed pong")
			}
			if s.State() != Closed {
				t.Fatalf("expected Closed, got %v", s.State())
			}
		}
	}
}

func TestPongResetsMissedCounter(t *testing.T) {
	start := time.Unix(0, 0)
	s := establishedSession(t, start)

	if err := s.Ping(start); err != nil {
		t.Fatal(err)
	}
	if err := s.Pong(start.Add(1 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if s.Tick(start.Add(12 * time.Second)) {
		t.Fatal("unexpected state change after pong reset the missed counter")
	}
	if s.State() != Established {
		t.Fatalf("expected Established, got %v", s.State())
	}
}

func TestInactivityTimeout(t *testing.T) {
	start := time.Unix(0, 0)
	s := establishedSession(t, start)
	if s.Tick(start.Add(4*time.Minute + 59*time.Second)) {
		t.Fatal("should not time out before 5 minutes of inactivity")
	}
	if !s.Tick(start.Add(5*time.Minute + 1*time.Second)) {
		t.Fatal("expected inactivity timeout")
	}
	if s.State() != Closed {
		t.Fatalf("expected Closed, got %v", s.State())
	}
}

func TestTouchResetsInactivityDeadline(t *testing.T) {
	start := time.Unix(0, 0)
	s := establishedSession(t, start)
	s.Touch(start.Add(4 * time.Minute))
	if s.Tick(start.Add(4*time.Minute + 4*time.Minute)) {
		t.Fatal("touch should have reset the inactivity deadline")
	}
}

func TestCloseTimeout(t *testing.T) {
	start := time.Unix(0, 0)
	s := establishedSession(t, start)
	if _, err := s.Close(CloseNormal, start); err != nil {
		t.Fatal(err)
	}
	if s.State() != Closing {
		t.Fatalf("expected Closing, got %v", s.State())
	}
	if s.Tick(start.Add(4 * time.Second)) {
		t.Fatal("should not force-close before 5s")
	}
	if !s.Tick(start.Add(6 * time.Second)) {
		t.Fatal("expected force close at 6s")
	}
	if s.State() != Closed {
		t.Fatalf("expected Closed, got %v", s.State())
	}
}

func TestMessagesInWrongStateNeverChangeState(t *testing.T) {
	now := time.Unix(0, 0)
	s := New(baseCaps(), Options{}, now)

	if err := s.ReceiveAccept("x", baseCaps(), now); err == nil {
		t.Fatal("expected error receiving ACCEPT in Initial")
	}
	if s.State() != Initial {
		t.Fatalf("state must not change on rejected transition, got %v", s.State())
	}

	if err := s.Ping(now); err == nil {
		t.Fatal("expected error pinging before Established")
	}
	if s.State() != Initial {
		t.Fatalf("state must not change on rejected transition, got %v", s.State())
	}
}

func TestIntersectEmptyAlgorithmsFails(t *testing.T) {
	_, err := Intersect(Capabilities{Algorithms: []string{"m2m-v1"}}, Capabilities{Algorithms: []string{"legacy-v3"}})
	if err == nil {
		t.Fatal("expected negotiation failure for disjoint algorithm sets")
	}
	var sessErr *Error
	if !errors.As(err, &sessErr) || sessErr.Kind != NegotiationFailed {
		t.Fatalf("expected NegotiationFailed, got %v", err)
	}
}

func TestIntersectTokenizerRequiredByAlgorithm(t *testing.T) {
	a := Capabilities{Algorithms: []string{"token-native"}, Tokenizers: []string{"C"}}
	b := Capabilities{Algorithms: []string{"token-native"}, Tokenizers: []string{"O"}}
	if _, err := Intersect(a, b); err == nil {
		t.Fatal("expected negotiation failure for disjoint tokenizer sets with token-native negotiated")
	}
}

func TestIntersectSecurityDefaultsToNone(t *testing.T) {
	a := Capabilities{Algorithms: []string{"m2m-v1"}, SecurityModes: []string{"aead"}}
	b := Capabilities{Algorithms: []string{"m2m-v1"}, SecurityModes: []string{"hmac"}}
	got, err := Intersect(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SecurityModes) != 1 || got.SecurityModes[0] != "none" {
		t.Fatalf("expected default [none], got %v", got.SecurityModes)
	}
}

func TestIntersectMaxPayloadIsMinimum(t *testing.T) {
	a := Capabilities{Algorithms: []string{"m2m-v1"}, MaxPayloadSize: 100}
	b := Capabilities{Algorithms: []string{"m2m-v1"}, MaxPayloadSize: 50}
	got, err := Intersect(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxPayloadSize != 50 {
		t.Fatalf("expected 50, got %d", got.MaxPayloadSize)
	}
}

func TestIntersectStreamingIsLogicalAnd(t *testing.T) {
	a := Capabilities{Algorithms: []string{"m2m-v1"}, Streaming: true}
	b := Capabilities{Algorithms: []string{"m2m-v1"}, Streaming: false}
	got, err := Intersect(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Streaming {
		t.Fatal("expected streaming false when either peer lacks it")
	}
}

func TestIntersectResultIsSubsetOfBothPeers(t *testing.T) {
	a := Capabilities{
		Algorithms:    []string{"m2m-v1", "token-native", "legacy-v3"},
		SecurityModes: []string{"none", "hmac", "aead"},
	}
	b := Capabilities{
		Algorithms:    []string{"m2m-v1", "legacy-v3"},
		SecurityModes: []string{"none", "aead"},
	}
	got, err := Intersect(a, b)
	if err != nil {
		t.Fatal(err)
	}
	aAlgos := map[string]bool{}
	for _, x := range a.Algorithms {
		aAlgos[x] = true
	}
	bAlgos := map[string]bool{}
	for _, x := range b.Algorithms {
		bAlgos[x] = true
	}
	for _, x := range got.Algorithms {
		if !aAlgos[x] || !bAlgos[x] {
			t.Fatalf("negotiated algorithm %q not in both peers' declared sets", x)
		}
	}
}
