package hub

import (
	"encoding/json"
	"time"
)

// Message types the hub emits itself. Application layers are free to send
// any other type through the engine; the hub treats their payloads as opaque.
const (
	TypeSubscribed   = "SUBSCRIBED"
	TypeUnsubscribed = "UNSUBSCRIBED"
	TypeError        = "ERROR"
)

// ErrorCode identifies a protocol violation reported back to the offending
// connection. Violations are never surfaced as Go errors because the remote
// peer is the only party that can act on them.
type ErrorCode string

const (
	CodeNotConnected ErrorCode = "NOT_CONNECTED"
	CodeRoomLimit    ErrorCode = "ROOM_LIMIT"
	CodeAuthRequired ErrorCode = "AUTH_REQUIRED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeRoomFull     ErrorCode = "ROOM_FULL"
	CodeRateLimited  ErrorCode = "RATE_LIMITED"
)

// Message is the outbound envelope, one JSON frame per send.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Ts      int64           `json:"ts,omitempty"`
}

// subscribedPayload doubles as the UNSUBSCRIBED payload; both acks carry the
// room name and whether the operation took effect.
type subscribedPayload struct {
	Room    string `json:"room"`
	Success bool   `json:"success"`
}

type errorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// NewMessage wraps an already-encoded application payload in an envelope.
func NewMessage(msgType string, payload json.RawMessage) Message {
	return Message{
		Type:    msgType,
		Payload: payload,
		Ts:      now().UnixMilli(),
	}
}

func newSubscribedMessage(room string, success bool) Message {
	return NewMessage(TypeSubscribed, mustEncode(subscribedPayload{Room: room, Success: success}))
}

func newUnsubscribedMessage(room string, success bool) Message {
	return NewMessage(TypeUnsubscribed, mustEncode(subscribedPayload{Room: room, Success: success}))
}

// NewErrorMessage builds an ERROR envelope carrying a protocol violation code.
func NewErrorMessage(code ErrorCode, text string) Message {
	return NewMessage(TypeError, mustEncode(errorPayload{Code: code, Message: text}))
}

// mustEncode marshals payload structs whose shapes cannot fail to encode.
func mustEncode(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}

func (m Message) encode() []byte {
	raw, _ := json.Marshal(m)
	return raw
}

// now is a small indirection to allow test stubbing if needed.
var now = time.Now
