// Package backend talks to the execution layer: it encodes casino
// instructions, seals them into signed transactions and submits them.
package backend

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"casino-gateway/internal/model"
)

// Instruction tags understood by the execution layer.
const (
	TagCasinoRegister  byte = 10
	TagCasinoDeposit   byte = 11
	TagCasinoStartGame byte = 12
	TagCasinoGameMove  byte = 13
)

// MaxNameLength bounds the player name carried by a register instruction.
const MaxNameLength = 32

var (
	// ErrNameTooLong is returned for player names over MaxNameLength bytes.
	ErrNameTooLong = errors.New("player name too long")
	// ErrEmptyPayload is returned when a game move carries no payload.
	ErrEmptyPayload = errors.New("empty move payload")
)

// EncodeRegister encodes [10][nameLen:u32][name].
func EncodeRegister(name string) ([]byte, error) {
	if len(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	buf := make([]byte, 0, 1+4+len(name))
	buf = append(buf, TagCasinoRegister)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(name)))
	buf = append(buf, name...)
	return buf, nil
}

// EncodeDeposit encodes [11][amount:u64].
func EncodeDeposit(amount uint64) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, TagCasinoDeposit)
	return binary.BigEndian.AppendUint64(buf, amount)
}

// EncodeStartGame encodes [12][gameType:u8][bet:u64][sessionId:u64].
func EncodeStartGame(gameType model.GameType, bet, sessionID uint64) []byte {
	buf := make([]byte, 0, 18)
	buf = append(buf, TagCasinoStartGame, byte(gameType))
	buf = binary.BigEndian.AppendUint64(buf, bet)
	return binary.BigEndian.AppendUint64(buf, sessionID)
}

// EncodeGameMove encodes [13][sessionId:u64][payloadLen:u32][payload].
func EncodeGameMove(sessionID uint64, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("move payload of %d bytes overflows length prefix", len(payload))
	}
	buf := make([]byte, 0, 1+8+4+len(payload))
	buf = append(buf, TagCasinoGameMove)
	buf = binary.BigEndian.AppendUint64(buf, sessionID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...), nil
}
