package game

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"casino-gateway/internal/model"
)

// Message is one untyped client request.
type Message struct {
	Type      string
	RequestID string
	Body      gjson.Result
}

// ParseMessage reads a client JSON frame. The frame must be an object with
// a string "type".
func ParseMessage(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return Message{}, Errorf(model.CodeInvalidMessage, "malformed JSON")
	}
	body := gjson.ParseBytes(data)
	if !body.IsObject() {
		return Message{}, Errorf(model.CodeInvalidMessage, "message must be an object")
	}
	t := body.Get("type")
	if t.Type != gjson.String || t.String() == "" {
		return Message{}, Errorf(model.CodeInvalidMessage, "message type is required")
	}
	msg := Message{Type: t.String(), Body: body}
	if rid := body.Get("requestId"); rid.Exists() {
		msg.RequestID = rid.String()
	}
	return msg, nil
}

// NewMessage builds a Message from a JSON body, mainly for tests.
func NewMessage(msgType, body string) Message {
	return Message{Type: msgType, Body: gjson.Parse(body)}
}

// Get returns a field of the message body.
func (m Message) Get(path string) gjson.Result {
	return m.Body.Get(path)
}

// Amount reads a required positive integer amount.
func (m Message) Amount(field string) (uint64, error) {
	r := m.Get(field)
	if !r.Exists() {
		return 0, Errorf(model.CodeInvalidBet, "%s is required", field)
	}
	return ParseAmount(r)
}

// OptionalAmount reads an amount that may be absent or zero.
func (m Message) OptionalAmount(field string) (uint64, error) {
	r := m.Get(field)
	if !r.Exists() || r.Type == gjson.Null {
		return 0, nil
	}
	if r.Type == gjson.Number && r.Num == 0 {
		return 0, nil
	}
	return ParseAmount(r)
}

// ParseAmount accepts a positive integral number or numeric string.
func ParseAmount(r gjson.Result) (uint64, error) {
	switch r.Type {
	case gjson.Number:
		if r.Num <= 0 || r.Num != math.Trunc(r.Num) {
			return 0, Errorf(model.CodeInvalidBet, "amount must be a positive integer")
		}
		if r.Num >= math.MaxUint64 {
			return 0, Errorf(model.CodeInvalidBet, "amount out of range")
		}
		// Raw keeps precision above 2^53
		if n, err := strconv.ParseUint(r.Raw, 10, 64); err == nil {
			return n, nil
		}
		return uint64(r.Num), nil
	case gjson.String:
		n, err := strconv.ParseUint(strings.TrimSpace(r.String()), 10, 64)
		if err != nil || n == 0 {
			return 0, Errorf(model.CodeInvalidBet, "amount must be a positive integer")
		}
		return n, nil
	}
	return 0, Errorf(model.CodeInvalidBet, "amount must be a positive integer")
}
