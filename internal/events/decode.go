package events

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"casino-gateway/internal/model"
)

// ErrInvalidFrame is returned for update frames that are not JSON.
var ErrInvalidFrame = errors.New("invalid event frame")

// DecodeFrame decodes an update frame into casino events. A frame is a
// single event object, an array of events, or an object with an "events"
// array. Events of unknown type are skipped.
func DecodeFrame(data []byte) ([]model.Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidFrame
	}
	root := gjson.ParseBytes(data)

	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.Get("events").IsArray():
		items = root.Get("events").Array()
	default:
		items = []gjson.Result{root}
	}

	out := make([]model.Event, 0, len(items))
	for _, item := range items {
		if ev, ok := decodeEvent(item); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

// NormalizeKind maps the execution layer's event names onto EventKind.
// "CasinoGameStarted", "casino_game_started" and "started" are equivalent.
func NormalizeKind(name string) (model.EventKind, bool) {
	n := strings.ToLower(strings.NewReplacer("_", "", "-", "", ".", "").Replace(name))
	n = strings.TrimPrefix(n, "casino")
	n = strings.TrimPrefix(n, "game")
	n = strings.TrimPrefix(n, "player")

	switch model.EventKind(n) {
	case model.EventStarted, model.EventMoved, model.EventCompleted, model.EventError,
		model.EventRegistered, model.EventDeposited:
		return model.EventKind(n), true
	}
	return "", false
}

func decodeEvent(r gjson.Result) (model.Event, bool) {
	kind, ok := NormalizeKind(r.Get("type").String())
	if !ok {
		return model.Event{}, false
	}

	ev := model.Event{
		Kind:      kind,
		SessionID: r.Get("sessionId").Uint(),
		Player:    strings.ToLower(r.Get("player").String()),
	}

	switch kind {
	case model.EventStarted:
		ev.GameType = model.GameType(r.Get("gameType").Uint())
		ev.Bet = r.Get("bet").Uint()
		ev.InitialState = bytesField(r.Get("initialState"))
	case model.EventMoved:
		ev.MoveNumber = uint32(r.Get("moveNumber").Uint())
		ev.NewState = bytesField(r.Get("newState"))
		ev.Logs = logsField(r.Get("logs"))
		ev.Balance = balanceField(r.Get("balanceSnapshot"))
	case model.EventCompleted:
		ev.GameType = model.GameType(r.Get("gameType").Uint())
		ev.Payout = r.Get("payout").Int()
		if fc := r.Get("finalChips"); fc.Exists() && fc.Type != gjson.Null {
			chips := fc.Uint()
			ev.FinalChips = &chips
		}
		ev.Logs = logsField(r.Get("logs"))
		ev.Balance = balanceField(r.Get("balanceSnapshot"))
	case model.EventError:
		ev.ErrorCode = uint8(r.Get("errorCode").Uint())
		ev.ErrorMessage = r.Get("message").String()
	case model.EventRegistered:
		ev.Name = r.Get("name").String()
		ev.NewChips = r.Get("chips").Uint()
	case model.EventDeposited:
		ev.Amount = r.Get("amount").Uint()
		ev.NewChips = r.Get("newChips").Uint()
	}
	return ev, true
}

// bytesField accepts a hex string (optionally 0x-prefixed) or an array of bytes.
func bytesField(r gjson.Result) []byte {
	switch {
	case r.IsArray():
		arr := r.Array()
		out := make([]byte, len(arr))
		for i, b := range arr {
			out[i] = byte(b.Uint())
		}
		return out
	case r.Type == gjson.String:
		b, err := hex.DecodeString(strings.TrimPrefix(r.String(), "0x"))
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// logsField keeps string entries as-is and object entries as raw JSON.
func logsField(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, entry := range r.Array() {
		if entry.Type == gjson.String {
			out = append(out, entry.String())
			continue
		}
		out = append(out, entry.Raw)
	}
	return out
}

func balanceField(r gjson.Result) *model.BalanceSnapshot {
	if !r.IsObject() {
		return nil
	}
	return &model.BalanceSnapshot{
		Chips: r.Get("chips").Uint(),
		VUSDT: r.Get("vusdt").Uint(),
		RNG:   r.Get("rng").Uint(),
	}
}
