package game

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"casino-gateway/internal/model"
)

// BetTable maps case-insensitive bet names to bet type codes.
type BetTable struct {
	Names map[string]uint8
	// Targeted lists bet types that require a target (number, total, ...).
	Targeted map[uint8]bool
}

// Lookup resolves a bet name or numeric code.
func (t BetTable) Lookup(r gjson.Result) (uint8, bool) {
	if r.Type == gjson.Number {
		if r.Num < 0 || r.Num > 255 || r.Num != float64(uint8(r.Num)) {
			return 0, false
		}
		code := uint8(r.Num)
		for _, c := range t.Names {
			if c == code {
				return code, true
			}
		}
		return 0, false
	}
	code, ok := t.Names[strings.ToUpper(strings.TrimSpace(r.String()))]
	return code, ok
}

// Normalize reads the bets of a request into an ordered list. Exactly one
// representation is accepted per request:
//
//	{"bets": [{"type": "RED", "amount": 10}, {"type": "STRAIGHT", "target": 17, "amount": 5}]}
//	{"bets": {"PLAYER": 100, "BANKER": 50, "STRAIGHT:17": 5}}
//	{"betType": "STRAIGHT", "target": 17, "amount": 25}
func (t BetTable) Normalize(msg Message) ([]BatchBet, error) {
	bets := msg.Get("bets")
	single := msg.Get("betType")

	forms := 0
	if bets.IsArray() {
		forms++
	}
	if bets.IsObject() {
		forms++
	}
	if single.Exists() {
		forms++
	}
	switch {
	case forms == 0 && bets.Exists():
		return nil, Errorf(model.CodeInvalidBet, "bets must be a list or a map")
	case forms == 0:
		return nil, Errorf(model.CodeInvalidBet, "no bets supplied")
	case forms > 1:
		return nil, Errorf(model.CodeInvalidBet, "ambiguous bets: use exactly one of a bet list, a bet map or betType fields")
	}

	var out []BatchBet
	var err error
	switch {
	case bets.IsArray():
		out, err = t.fromList(bets)
	case bets.IsObject():
		out, err = t.fromMap(bets)
	default:
		var b BatchBet
		b, err = t.bet(single, msg.Body.Get("amount"), targetOf(msg.Body))
		out = []BatchBet{b}
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, Errorf(model.CodeInvalidBet, "no bets supplied")
	}
	if len(out) > MaxBatchBets {
		return nil, Errorf(model.CodeInvalidBet, "too many bets: %d > %d", len(out), MaxBatchBets)
	}
	return out, nil
}

func (t BetTable) fromList(list gjson.Result) ([]BatchBet, error) {
	var out []BatchBet
	for _, item := range list.Array() {
		if !item.IsObject() {
			return nil, Errorf(model.CodeInvalidBet, "each bet must be an object")
		}
		name := item.Get("type")
		if !name.Exists() {
			name = item.Get("betType")
		}
		b, err := t.bet(name, item.Get("amount"), targetOf(item))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (t BetTable) fromMap(m gjson.Result) ([]BatchBet, error) {
	var out []BatchBet
	var err error
	m.ForEach(func(key, value gjson.Result) bool {
		name, target := key.String(), gjson.Result{}
		if i := strings.IndexByte(name, ':'); i >= 0 {
			target = gjson.Parse(name[i+1:])
			name = name[:i]
		}
		var b BatchBet
		b, err = t.bet(gjson.Result{Type: gjson.String, Str: name}, value, target)
		if err != nil {
			return false
		}
		out = append(out, b)
		return true
	})
	return out, err
}

func (t BetTable) bet(name, amount, target gjson.Result) (BatchBet, error) {
	code, ok := t.Lookup(name)
	if !ok {
		return BatchBet{}, Errorf(model.CodeInvalidBet, "unknown bet %q", name.String())
	}
	amt, err := ParseAmount(amount)
	if err != nil {
		return BatchBet{}, err
	}
	b := BatchBet{Type: code, Amount: amt}
	if t.Targeted[code] {
		if !target.Exists() {
			return BatchBet{}, Errorf(model.CodeInvalidBet, "bet %q requires a target", name.String())
		}
		v, err := strconv.ParseUint(strings.TrimSpace(target.String()), 10, 8)
		if err != nil {
			return BatchBet{}, Errorf(model.CodeInvalidBet, "invalid target %q for bet %q", target.String(), name.String())
		}
		b.Target = uint8(v)
	}
	return b, nil
}

func targetOf(r gjson.Result) gjson.Result {
	for _, field := range []string{"target", "number", "value"} {
		if v := r.Get(field); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}
