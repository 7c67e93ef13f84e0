package backend

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// TransactionNamespace domain-separates transaction signatures.
var TransactionNamespace = []byte("_NULLSPACE_TX")

// submissionTransactions tags a batch of transactions in a submit body.
const submissionTransactions byte = 1

// Sealer wraps an instruction into a signed transaction envelope.
type Sealer interface {
	// PublicKey returns the hex-encoded account key.
	PublicKey() string
	// Seal returns nonce || instruction || publicKey || signature.
	Seal(nonce uint64, instruction []byte) []byte
}

// Ed25519Sealer signs transactions with an ed25519 key.
type Ed25519Sealer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEd25519Sealer creates a sealer for an existing private key.
func NewEd25519Sealer(priv ed25519.PrivateKey) *Ed25519Sealer {
	return &Ed25519Sealer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

// GenerateEd25519Sealer creates a sealer with a fresh random key.
func GenerateEd25519Sealer() (*Ed25519Sealer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}
	return NewEd25519Sealer(priv), nil
}

// PublicKey returns the hex-encoded public key.
func (s *Ed25519Sealer) PublicKey() string {
	return hex.EncodeToString(s.pub)
}

// Seal signs and encodes the transaction.
func (s *Ed25519Sealer) Seal(nonce uint64, instruction []byte) []byte {
	body := make([]byte, 0, 8+len(instruction))
	body = binary.BigEndian.AppendUint64(body, nonce)
	body = append(body, instruction...)

	sig := ed25519.Sign(s.priv, SigningMessage(body))

	tx := make([]byte, 0, len(body)+len(s.pub)+len(sig))
	tx = append(tx, body...)
	tx = append(tx, s.pub...)
	return append(tx, sig...)
}

// SigningMessage prefixes msg with the length-delimited transaction namespace.
func SigningMessage(msg []byte) []byte {
	out := binary.AppendUvarint(nil, uint64(len(TransactionNamespace)))
	out = append(out, TransactionNamespace...)
	return append(out, msg...)
}

// EncodeSubmission wraps sealed transactions into a submit request body.
func EncodeSubmission(txs ...[]byte) []byte {
	out := []byte{submissionTransactions}
	out = binary.AppendUvarint(out, uint64(len(txs)))
	for _, tx := range txs {
		out = append(out, tx...)
	}
	return out
}
