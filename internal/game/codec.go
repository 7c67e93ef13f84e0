package game

import (
	"encoding/binary"
	"encoding/hex"

	"casino-gateway/internal/model"
)

// Protocol version header carried by client move payloads.
const (
	ProtocolVersion    byte = 1
	MinProtocolVersion byte = 1
	MaxProtocolVersion byte = 1
)

// MaxPayloadLen is the largest move payload the execution layer accepts.
const MaxPayloadLen = 256

// MaxBatchBets is the per-round bet cap of an atomic batch.
const MaxBatchBets = 255

// Record widths of an atomic batch.
const (
	BatchRecordWidth         = 10
	BatchRecordWidthNoTarget = 9
)

// BatchBet is one bet of an atomic batch.
type BatchBet struct {
	Type   uint8
	Target uint8
	Amount uint64
}

// WithVersion prefixes payload with the current protocol version.
func WithVersion(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, ProtocolVersion)
	return append(out, payload...)
}

// StripVersion removes the protocol version header. The remainder may be
// empty; callers reject empty moves.
func StripVersion(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, Errorf(model.CodeInvalidMessage, "missing protocol version header")
	}
	v := payload[0]
	if v < MinProtocolVersion || v > MaxProtocolVersion {
		return nil, Errorf(model.CodeInvalidMessage, "unsupported protocol version %d", v)
	}
	return payload[1:], nil
}

// EncodeAtomicBatch encodes [opcode, count, record x count]. Records are
// (type, target, amount) or, without target, (type, amount).
func EncodeAtomicBatch(opcode byte, bets []BatchBet, withTarget bool) ([]byte, error) {
	if len(bets) == 0 {
		return nil, Errorf(model.CodeInvalidBet, "at least one bet is required")
	}
	if len(bets) > MaxBatchBets {
		return nil, Errorf(model.CodeInvalidBet, "too many bets: %d > %d", len(bets), MaxBatchBets)
	}

	width := BatchRecordWidthNoTarget
	if withTarget {
		width = BatchRecordWidth
	}
	buf := make([]byte, 0, 2+len(bets)*width)
	buf = append(buf, opcode, byte(len(bets)))
	for _, b := range bets {
		if b.Amount == 0 {
			return nil, Errorf(model.CodeInvalidBet, "bet amount must be positive")
		}
		buf = append(buf, b.Type)
		if withTarget {
			buf = append(buf, b.Target)
		}
		buf = binary.BigEndian.AppendUint64(buf, b.Amount)
	}
	return buf, nil
}

// EncodeAmount encodes [opcode, amount:u64].
func EncodeAmount(opcode byte, amount uint64) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, opcode)
	return binary.BigEndian.AppendUint64(buf, amount)
}

// EncodeAmounts encodes [opcode, amount:u64 ...].
func EncodeAmounts(opcode byte, amounts ...uint64) []byte {
	buf := make([]byte, 0, 1+8*len(amounts))
	buf = append(buf, opcode)
	for _, a := range amounts {
		buf = binary.BigEndian.AppendUint64(buf, a)
	}
	return buf
}

// CheckPayloadSize rejects payloads over MaxPayloadLen.
func CheckPayloadSize(payload []byte) error {
	if len(payload) > MaxPayloadLen {
		return Errorf(model.CodeInvalidBet, "move payload of %d bytes exceeds %d", len(payload), MaxPayloadLen)
	}
	return nil
}

// RawState is a state blob without a game-specific parser.
type RawState []byte

// MarshalJSON encodes the blob as a hex string.
func (s RawState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(s) + `"`), nil
}

// TotalWager sums the amounts of bets.
func TotalWager(bets []BatchBet) uint64 {
	var total uint64
	for _, b := range bets {
		total += b.Amount
	}
	return total
}
