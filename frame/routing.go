package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/duskwire/m2m-go/varint"
	"github.com/tidwall/gjson"
)

// MaxRoutingMessages caps how many messages[] elements the routing
// extractor walks. Elements past the cap still round-trip inside the
// compressed payload; only the routing metadata stops counting them.
const MaxRoutingMessages = 10000

// RoutingHeader is the inspectable metadata block readable without
// decompressing the payload.
type RoutingHeader struct {
	Model        string
	MsgCount     uint32
	Roles        []varint.Role
	ContentHint  uint32
	MaxTokens    uint32  // 0 encodes "absent"
	CostEstimate float32 // NaN encodes "absent"
}

// extractRouting shallow-parses jsonBytes with gjson to build a
// RoutingHeader. gjson.Get returns a zero Result for any missing or
// malformed path rather than erroring, so malformed input degrades to
// empty model / zero counts instead of failing the encode.
func extractRouting(jsonBytes []byte) RoutingHeader {
	root := gjson.ParseBytes(jsonBytes)

	model := root.Get("model").String()

	messages := root.Get("messages")
	var roles []varint.Role
	var contentHint uint64
	if messages.IsArray() {
		messages.ForEach(func(_, msg gjson.Result) bool {
			if len(roles) >= MaxRoutingMessages {
				return false
			}
			roles = append(roles, roleFromString(msg.Get("role").String()))
			contentHint += uint64(len(msg.Get("content").String()))
			return true
		})
	}
	if contentHint > math.MaxUint32 {
		contentHint = math.MaxUint32
	}

	var maxTokens uint32
	if mt := root.Get("max_tokens"); mt.Exists() {
		v := mt.Int()
		if v > 0 && v <= math.MaxUint32 {
			maxTokens = uint32(v)
		}
	}

	return RoutingHeader{
		Model:        model,
		MsgCount:     uint32(len(roles)),
		Roles:        roles,
		ContentHint:  uint32(contentHint),
		MaxTokens:    maxTokens,
		CostEstimate: estimateCost(contentHint),
	}
}

// estimateCost has no pricing model behind it yet; absent is always
// encoded as NaN.
func estimateCost(_ uint64) float32 {
	return float32(math.NaN())
}

func roleFromString(s string) varint.Role {
	switch s {
	case "system":
		return varint.RoleSystem
	case "user":
		return varint.RoleUser
	case "assistant":
		return varint.RoleAssistant
	default:
		return varint.RoleTool
	}
}

// encode serializes the routing header in the field order model, msg_count,
// roles, content_hint, max_tokens, cost_estimate.
func (r RoutingHeader) encode() []byte {
	var buf []byte

	modelBytes := []byte(r.Model)
	buf = varint.AppendUint32(buf, uint32(len(modelBytes)))
	buf = append(buf, modelBytes...)

	buf = varint.AppendUint32(buf, r.MsgCount)
	buf = append(buf, varint.PackRoles(r.Roles)...)
	buf = varint.AppendUint32(buf, r.ContentHint)
	buf = varint.AppendUint32(buf, r.MaxTokens)

	var costBuf [4]byte
	binary.LittleEndian.PutUint32(costBuf[:], math.Float32bits(r.CostEstimate))
	buf = append(buf, costBuf[:]...)

	return buf
}

func decodeRouting(buf []byte) (*RoutingHeader, error) {
	if len(buf) == 0 {
		// header_len == FixedHeaderLen: an empty routing header is legal and
		// reads as every field absent.
		return &RoutingHeader{CostEstimate: float32(math.NaN())}, nil
	}
	modelLen, n, err := varint.Uint32(buf)
	if err != nil {
		return nil, fmt.Errorf("model length: %w", err)
	}
	buf = buf[n:]
	if uint64(modelLen) > uint64(len(buf)) {
		return nil, fmt.Errorf("model length %d exceeds remaining buffer", modelLen)
	}
	model := string(buf[:modelLen])
	buf = buf[modelLen:]

	msgCount, n, err := varint.Uint32(buf)
	if err != nil {
		return nil, fmt.Errorf("msg_count: %w", err)
	}
	buf = buf[n:]

	roles, err := varint.UnpackRoles(buf, int(msgCount))
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	rolesLen := (int(msgCount) + 3) / 4
	buf = buf[rolesLen:]

	contentHint, n, err := varint.Uint32(buf)
	if err != nil {
		return nil, fmt.Errorf("content_hint: %w", err)
	}
	buf = buf[n:]

	maxTokens, n, err := varint.Uint32(buf)
	if err != nil {
		return nil, fmt.Errorf("max_tokens: %w", err)
	}
	buf = buf[n:]

	if len(buf) < 4 {
		return nil, fmt.Errorf("cost_estimate: truncated")
	}
	cost := math.Float32frombits(binary.LittleEndian.Uint32(buf[:4]))

	return &RoutingHeader{
		Model:        model,
		MsgCount:     msgCount,
		Roles:        roles,
		ContentHint:  contentHint,
		MaxTokens:    maxTokens,
		CostEstimate: cost,
	}, nil
}
