// Command m2mdemo exercises the full wire pipeline in-process: two peers
// handshake a session, negotiate capabilities, and exchange a handful of
// compressed chat-completion payloads through the codec engine. It has no
// flags and no network transport: the handshake and the codec dispatch
// are the parts this repo owns; wiring them to a real connection is a
// transport concern left to the caller.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/duskwire/m2m-go/codec"
	"github.com/duskwire/m2m-go/frame"
	"github.com/duskwire/m2m-go/keys"
	"github.com/duskwire/m2m-go/security"
	"github.com/duskwire/m2m-go/session"
	"github.com/duskwire/m2m-go/tokenizer"
)

func main() {
	logger := setupLogging()

	fmt.Println("=== M2M Wire Compression Demo ===")
	fmt.Println()

	client, server, key := negotiateSession(logger)
	runCodecDemo(client, server, key, logger)
}

func setupLogging() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func negotiateSession(logger *slog.Logger) (*session.Session, *session.Session, *security.Key) {
	now := time.Now()
	caps := session.Capabilities{
		Algorithms:     []string{"m2m-v1", "token-native", "legacy-v3"},
		Tokenizers:     []string{"C", "O", "L"},
		SecurityModes:  []string{"none", "hmac", "aead"},
		MaxPayloadSize: frame.DefaultMaxPayloadLen,
		Streaming:      true,
	}

	initiator := session.New(caps, session.Options{}, now)
	responder := session.New(caps, session.Options{}, now)

	hello, err := initiator.CreateHello(now)
	if err != nil {
		fail(logger, "create hello", err)
	}
	fmt.Printf("client -> server: %s\n", hello.Type)

	accept, err := responder.ReceiveHello(caps, newSessionID, now)
	if err != nil {
		fail(logger, "receive hello", err)
	}
	fmt.Printf("server -> client: %s (session %s)\n", accept.Type, accept.SessionID)

	if err := initiator.ReceiveAccept(accept.SessionID, responder.Negotiated(), now); err != nil {
		fail(logger, "receive accept", err)
	}
	fmt.Printf("session established: %s\n\n", initiator.SessionID())

	sessionKey, err := deriveDemoSessionKey(initiator.SessionID())
	if err != nil {
		fail(logger, "derive session key", err)
	}
	return initiator, responder, sessionKey
}

func deriveDemoSessionKey(sessionID string) (*security.Key, error) {
	master := keys.NewMaterial(make([]byte, 32))
	defer master.Close()

	raw, err := keys.DeriveSessionKey(master.Bytes(), "demo-org", "client", "server", sessionID, 32)
	if err != nil {
		return nil, err
	}
	return security.NewKey(raw)
}

func runCodecDemo(client, server *session.Session, key *security.Key, logger *slog.Logger) {
	engine := codec.NewEngine(tokenizer.Default())
	now := time.Now()

	messages := []struct {
		label   string
		payload []byte
		schema  frame.Schema
	}{
		{"request", []byte(`{"model":"gpt-4o","messages":[{"role":"system","content":"You are terse."},{"role":"user","content":"Summarize the M2M protocol."}]}`), frame.SchemaRequest},
		{"response", []byte(`{"model":"gpt-4o","messages":[{"role":"assistant","content":"It compresses JSON chat payloads over a framed binary wire format."}]}`), frame.SchemaResponse},
	}

	for _, m := range messages {
		res, err := client.Compress(engine, m.payload, m.schema, frame.Options{Security: security.ModeAEAD, Key: key}, now)
		if err != nil {
			fail(logger, "encode "+m.label, err)
		}
		fmt.Printf("%s: %d -> %d bytes (ratio %.2f)\n", m.label, res.OriginalBytes, res.CompressedBytes, res.Ratio())

		decoded, err := server.Decompress(engine, res.Data, key, frame.Options{}, now)
		if err != nil {
			fail(logger, "decode "+m.label, err)
		}
		if string(decoded.Data) != string(m.payload) {
			fail(logger, "round trip "+m.label, fmt.Errorf("mismatch"))
		}
	}

	fmt.Println("\ntoken-native round trip:")
	tokRes, err := client.CompressTokenNative(engine, tokenizer.CL100kBase, "hello from the m2m demo", now)
	if err != nil {
		fail(logger, "encode token-native", err)
	}
	decoded, err := server.Decompress(engine, tokRes.Data, key, frame.Options{}, now)
	if err != nil {
		fail(logger, "decode token-native", err)
	}
	fmt.Printf("  %q -> %q\n", "hello from the m2m demo", string(decoded.Data))
}

var sessionCounter int

func newSessionID() string {
	sessionCounter++
	return fmt.Sprintf("demo-session-%d", sessionCounter)
}

func fail(logger *slog.Logger, op string, err error) {
	logger.Error("demo failed", "op", op, "error", err)
	os.Exit(1)
}
