package backend

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-gateway/internal/model"
)

func TestEncodeStartGame(t *testing.T) {
	got := EncodeStartGame(model.GameRoulette, 25, 0x0102030405060708)

	require.Len(t, got, 18)
	assert.Equal(t, TagCasinoStartGame, got[0])
	assert.Equal(t, byte(6), got[1])
	assert.Equal(t, uint64(25), binary.BigEndian.Uint64(got[2:10]))
	assert.Equal(t, uint64(0x0102030405060708), binary.BigEndian.Uint64(got[10:18]))
}

func TestEncodeGameMove(t *testing.T) {
	got, err := EncodeGameMove(7, []byte{4, 1, 0, 17})
	require.NoError(t, err)

	assert.Equal(t, TagCasinoGameMove, got[0])
	assert.Equal(t, uint64(7), binary.BigEndian.Uint64(got[1:9]))
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(got[9:13]))
	assert.Equal(t, []byte{4, 1, 0, 17}, got[13:])

	_, err = EncodeGameMove(7, nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestEncodeRegisterAndDeposit(t *testing.T) {
	got, err := EncodeRegister("alice")
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 0, 0, 0, 5, 'a', 'l', 'i', 'c', 'e'}, got)

	_, err = EncodeRegister(strings.Repeat("x", MaxNameLength+1))
	assert.ErrorIs(t, err, ErrNameTooLong)

	assert.Equal(t, []byte{11, 0, 0, 0, 0, 0, 0, 0x03, 0xe8}, EncodeDeposit(1000))
}

func TestEd25519SealerSignsNamespacedBody(t *testing.T) {
	sealer, err := GenerateEd25519Sealer()
	require.NoError(t, err)

	instruction := EncodeDeposit(50)
	tx := sealer.Seal(3, instruction)

	require.Len(t, tx, 8+len(instruction)+ed25519.PublicKeySize+ed25519.SignatureSize)
	assert.Equal(t, uint64(3), binary.BigEndian.Uint64(tx[:8]))

	body := tx[:8+len(instruction)]
	pub := tx[len(body) : len(body)+ed25519.PublicKeySize]
	sig := tx[len(body)+ed25519.PublicKeySize:]

	assert.Equal(t, sealer.PublicKey(), hex.EncodeToString(pub))
	assert.True(t, ed25519.Verify(pub, SigningMessage(body), sig))
	assert.False(t, ed25519.Verify(pub, body, sig), "signature must be domain separated")
}

func TestEncodeSubmission(t *testing.T) {
	got := EncodeSubmission([]byte{0xaa, 0xbb})
	assert.Equal(t, []byte{1, 1, 0xaa, 0xbb}, got)
}

func TestClientSubmit(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/submit", r.URL.Path)
		received, _ = io.ReadAll(r.Body)
		if received[len(received)-1] == 0xff {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid nonce: expected 4"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"})

	require.NoError(t, c.Submit(context.Background(), []byte{1, 2}))
	assert.Equal(t, []byte{1, 1, 1, 2}, received)

	err := c.Submit(context.Background(), []byte{0xff})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusBadRequest, rejected.Status)
	assert.Equal(t, "invalid nonce: expected 4", rejected.Message)
}

func TestClientAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/account/known":
			_, _ = w.Write([]byte(`{"nonce":12,"player":{"name":"bob","chips":900}}`))
		case "/account/fresh":
			_, _ = w.Write([]byte(`{"nonce":0,"player":null}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	ctx := context.Background()

	acct, err := c.Account(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, &Account{Nonce: 12, Registered: true, Chips: 900, Name: "bob"}, acct)

	acct, err = c.Account(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, acct.Registered)

	nonce, err := c.Nonce(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, nonce)
}
