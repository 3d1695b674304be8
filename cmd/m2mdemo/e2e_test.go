package main

import (
	"testing"
	"time"

	"github.com/duskwire/m2m-go/codec"
	"github.com/duskwire/m2m-go/frame"
	"github.com/duskwire/m2m-go/keys"
	"github.com/duskwire/m2m-go/security"
	"github.com/duskwire/m2m-go/session"
	"github.com/duskwire/m2m-go/tokenizer"
)

func TestE2ESessionHandshakeAndDataExchange(t *testing.T) {
	now := time.Now()
	caps := session.Capabilities{
		Algorithms:     []string{"m2m-v1", "token-native"},
		Tokenizers:     []string{"C"},
		SecurityModes:  []string{"aead"},
		MaxPayloadSize: frame.DefaultMaxPayloadLen,
		Streaming:      true,
	}

	initiator := session.New(caps, session.Options{}, now)
	responder := session.New(caps, session.Options{}, now)

	hello, err := initiator.CreateHello(now)
	if err != nil {
		t.Fatalf("CreateHello: %v", err)
	}
	if hello.Type != session.TypeHello {
		t.Fatalf("expected HELLO, got %v", hello.Type)
	}

	accept, err := responder.ReceiveHello(caps, func() string { return "e2e-session" }, now)
	if err != nil {
		t.Fatalf("ReceiveHello: %v", err)
	}
	if accept.Type != session.TypeAccept {
		t.Fatalf("expected ACCEPT, got %v", accept.Type)
	}

	if err := initiator.ReceiveAccept(accept.SessionID, responder.Negotiated(), now); err != nil {
		t.Fatalf("ReceiveAccept: %v", err)
	}
	if initiator.State() != session.Established || responder.State() != session.Established {
		t.Fatalf("expected both sides Established, got initiator=%v responder=%v", initiator.State(), responder.State())
	}

	master := keys.NewMaterial(make([]byte, 32))
	defer master.Close()
	raw, err := keys.DeriveSessionKey(master.Bytes(), "demo-org", "client", "server", initiator.SessionID(), 32)
	if err != nil {
		t.Fatalf("DeriveSessionKey: %v", err)
	}
	key, err := security.NewKey(raw)
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	defer key.Close()

	engine := codec.NewEngine(tokenizer.Default())
	input := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)

	res, err := initiator.Compress(engine, input, frame.SchemaRequest, frame.Options{Security: security.ModeAEAD, Key: key}, now)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	decoded, err := responder.Decompress(engine, res.Data, key, frame.Options{}, now)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(decoded.Data) != string(input) {
		t.Fatalf("round trip mismatch: got %q", decoded.Data)
	}

	closeEnv, err := initiator.Close(session.CloseNormal, now)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closeEnv.Type != session.TypeClose {
		t.Fatalf("expected CLOSE, got %v", closeEnv.Type)
	}
	if !initiator.Tick(now.Add(6 * time.Second)) {
		t.Fatal("expected close timeout to finalize Closing -> Closed")
	}
	if initiator.State() != session.Closed {
		t.Fatalf("expected Closed, got %v", initiator.State())
	}
}

func TestE2ETokenNativeRoundTrip(t *testing.T) {
	engine := codec.NewEngine(tokenizer.Default())
	text := "token native round trip through the demo engine"

	res, err := engine.EncodeTokenNative(tokenizer.O200kBase, text)
	if err != nil {
		t.Fatalf("EncodeTokenNative: %v", err)
	}
	decoded, err := engine.Decode(res.Data, nil, frame.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(decoded.Data) != text {
		t.Fatalf("round trip mismatch: got %q", decoded.Data)
	}
}

func TestE2ELegacyRoundTrip(t *testing.T) {
	engine := codec.NewEngine(nil)
	input := []byte(`{"legacy":true,"model":"m"}`)

	res, err := engine.EncodeLegacy(input)
	if err != nil {
		t.Fatalf("EncodeLegacy: %v", err)
	}
	decoded, err := engine.Decode(res.Data, nil, frame.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(decoded.Data) != string(input) {
		t.Fatalf("round trip mismatch: got %q", decoded.Data)
	}
}
