package game

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testTable = BetTable{
	Names:    map[string]uint8{"PLAYER": 0, "BANKER": 1, "STRAIGHT": 2, "RED": 3},
	Targeted: map[uint8]bool{2: true},
}

func TestNormalizeForms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []BatchBet
	}{
		{
			name: "list",
			body: `{"bets":[{"type":"player","amount":100},{"betType":"STRAIGHT","number":17,"amount":"5"}]}`,
			want: []BatchBet{{Type: 0, Amount: 100}, {Type: 2, Target: 17, Amount: 5}},
		},
		{
			name: "map keeps request order",
			body: `{"bets":{"PLAYER":100,"BANKER":50}}`,
			want: []BatchBet{{Type: 0, Amount: 100}, {Type: 1, Amount: 50}},
		},
		{
			name: "map with target",
			body: `{"bets":{"STRAIGHT:17":25}}`,
			want: []BatchBet{{Type: 2, Target: 17, Amount: 25}},
		},
		{
			name: "single fields",
			body: `{"betType":"straight","target":17,"amount":25}`,
			want: []BatchBet{{Type: 2, Target: 17, Amount: 25}},
		},
		{
			name: "numeric code",
			body: `{"betType":3,"amount":1}`,
			want: []BatchBet{{Type: 3, Amount: 1}},
		},
		{
			name: "target ignored for untargeted bet",
			body: `{"betType":"RED","target":4,"amount":1}`,
			want: []BatchBet{{Type: 3, Amount: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testTable.Normalize(NewMessage("x", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	for name, body := range map[string]string{
		"no bets":        `{}`,
		"empty list":     `{"bets":[]}`,
		"scalar bets":    `{"bets":5}`,
		"ambiguous":      `{"bets":{"PLAYER":1},"betType":"BANKER","amount":1}`,
		"unknown name":   `{"bets":{"DRAGON":1}}`,
		"unknown code":   `{"betType":9,"amount":1}`,
		"zero amount":    `{"bets":{"PLAYER":0}}`,
		"negative":       `{"betType":"PLAYER","amount":-1}`,
		"missing target": `{"betType":"STRAIGHT","amount":1}`,
		"bad target":     `{"bets":{"STRAIGHT:x":1}}`,
		"item not obj":   `{"bets":[1]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := testTable.Normalize(NewMessage("x", body))
			assert.ErrorIs(t, err, ErrInvalidBet)
		})
	}
}

// The same request always normalizes and encodes to the same bytes.
func TestNormalizeDeterministicProperty(t *testing.T) {
	names := []string{"PLAYER", "BANKER", "RED"}
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.SampledFrom(names).Draw(t, "name")
		amount := rapid.Uint32Range(1, 1<<31).Draw(t, "amount")
		msg := NewMessage("x", `{"betType":"`+name+`","amount":`+strconv.FormatUint(uint64(amount), 10)+`}`)

		a, err := testTable.Normalize(msg)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		b, _ := testTable.Normalize(msg)
		pa, _ := EncodeAtomicBatch(3, a, false)
		pb, _ := EncodeAtomicBatch(3, b, false)
		if string(pa) != string(pb) {
			t.Fatal("non-deterministic payload")
		}
		if a[0].Amount != uint64(amount) || a[0].Type != testTable.Names[name] {
			t.Fatalf("got %+v", a[0])
		}
	})
}
