package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway/internal/commitment"
)

func TestDecodeCommitMessage(t *testing.T) {
	hash := commitment.Commit("x")

	t.Run("valid", func(t *testing.T) {
		data := []byte(`{"senderId":"A","commitment":"` + hash + `","timestamp":1700000000000}`)
		m, err := DecodeCommitMessage(data)
		require.NoError(t, err)
		assert.Equal(t, Commitment{SenderID: "A", CommitmentHash: hash, PublishedAt: 1700000000000}, m.ToCommitment())
	})

	cases := map[string]string{
		"not json":       `not json`,
		"empty sender":   `{"senderId":"","commitment":"` + hash + `","timestamp":1}`,
		"short digest":   `{"senderId":"A","commitment":"abc","timestamp":1}`,
		"wrong type":     `{"senderId":7,"commitment":"` + hash + `","timestamp":1}`,
		"missing fields": `{}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCommitMessage([]byte(payload))
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestDecodeRevealMessage(t *testing.T) {
	m, err := DecodeRevealMessage([]byte(`{"senderId":"B","secret":"y","timestamp":5}`))
	require.NoError(t, err)
	assert.Equal(t, Reveal{SenderID: "B", Secret: "y", PublishedAt: 5}, m.ToReveal())

	_, err = DecodeRevealMessage([]byte(`{"senderId":"B","secret":"","timestamp":5}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = DecodeRevealMessage([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestEncodeFieldNames(t *testing.T) {
	data, err := CommitMessage{SenderID: "A", Commitment: "c", Timestamp: 9}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"senderId":"A","commitment":"c","timestamp":9}`, string(data))

	data, err = RevealMessage{SenderID: "A", Secret: "s", Timestamp: 9}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"senderId":"A","secret":"s","timestamp":9}`, string(data))
}
