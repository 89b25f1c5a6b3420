package giveaway

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway/internal/commitment"
	"giveaway/internal/models"
)

func reveal(sender, secret string) models.Reveal {
	return models.Reveal{SenderID: sender, Secret: secret, PublishedAt: 1}
}

func commit(sender, secret string) models.Commitment {
	return models.Commitment{SenderID: sender, CommitmentHash: commitment.Commit(secret), PublishedAt: 1}
}

func TestSelectWinnerKnownScenario(t *testing.T) {
	participants := []models.Participant{"A", "B", "C"}
	reveals := []models.Reveal{reveal("node-y", "y"), reveal("node-x", "x")}

	sel, err := SelectWinner(participants, reveals)
	require.NoError(t, err)

	// seed = sha256("xy"); sha256("A|B|C|" + seed) starts with 5ae91d18,
	// 0x5ae91d18 = 1525226776 and 1525226776 mod 3 = 1.
	assert.Equal(t, "769a4e6d0003189c7e96c5d9b7e810a0d11c3a12832527ec94b0f86d277f51ca", sel.RandomSeed)
	assert.Equal(t, commitment.Commit("xy"), sel.RandomSeed)
	assert.Equal(t, 1, sel.WinnerIndex)
	assert.Equal(t, "B", sel.Winner)
}

func TestSelectWinnerDeterministic(t *testing.T) {
	participants := []models.Participant{"0xaaa", "0xbbb", "0xccc", "0xddd", "0xeee"}
	reveals := []models.Reveal{reveal("1", "alpha"), reveal("2", "beta"), reveal("3", "gamma"), reveal("4", "delta")}

	first, err := SelectWinner(participants, reveals)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.Reveal(nil), reveals...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := SelectWinner(participants, shuffled)
		require.NoError(t, err)
		assert.Equal(t, first, got, "arrival order must not matter")
	}
}

func TestWinnerIndexRange(t *testing.T) {
	for n := 1; n <= 50; n++ {
		participants := make([]models.Participant, n)
		for i := range participants {
			participants[i] = string(rune('a' + i%26))
		}
		for _, seed := range []string{"", "s1", commitment.Commit("s2")} {
			idx, err := WinnerIndex(participants, seed)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, n)
		}
	}
}

func TestSelectWinnerErrors(t *testing.T) {
	_, err := SelectWinner(nil, []models.Reveal{reveal("a", "x")})
	assert.ErrorIs(t, err, ErrEmptyParticipants)

	_, err = WinnerIndex([]models.Participant{}, "seed")
	assert.ErrorIs(t, err, ErrEmptyParticipants)

	_, err = SelectWinner([]models.Participant{"A"}, nil)
	assert.ErrorIs(t, err, ErrNoValidReveals)
}

func TestEntropy(t *testing.T) {
	assert.Equal(t, "xy", Entropy([]models.Reveal{reveal("b", "y"), reveal("a", "x")}))
	assert.Equal(t, "Zab", Entropy([]models.Reveal{reveal("1", "a"), reveal("2", "b"), reveal("3", "Z")}), "byte order, uppercase first")
	assert.Equal(t, "", Entropy(nil))
}

func newTestResult(t *testing.T) *models.GiveawayResult {
	t.Helper()
	participants := []models.Participant{"A", "B", "C"}
	commitments := []models.Commitment{commit("node-y", "y"), commit("node-x", "x"), commit("node-z", "z")}
	valid := VerifyReveals(commitments, []models.Reveal{reveal("node-x", "x"), reveal("node-y", "y")})

	r, err := NewResult(participants, commitments, valid, "org-1", 1700000000000)
	require.NoError(t, err)
	return r
}

func TestNewResult(t *testing.T) {
	r := newTestResult(t)

	assert.Equal(t, "B", r.Winner)
	assert.Equal(t, 1, r.WinnerIndex)
	assert.Equal(t, []models.Participant{"A", "B", "C"}, r.Participants)
	assert.Equal(t, []string{"node-x", "node-y", "node-z"}, []string{r.Commitments[0].SenderID, r.Commitments[1].SenderID, r.Commitments[2].SenderID})
	assert.Len(t, r.Reveals, 2)
	assert.True(t, commitment.IsDigest(r.VerificationHash))

	again, err := VerificationHash(r, "org-1")
	require.NoError(t, err)
	assert.Equal(t, r.VerificationHash, again, "verification hash is reproducible from the result")
}

func TestVerifyResult(t *testing.T) {
	t.Run("accepts untouched result", func(t *testing.T) {
		r := newTestResult(t)
		assert.True(t, VerifyResult(r, "org-1"))
		assert.True(t, VerifyWinner(r))
	})

	t.Run("rejects wrong organizer", func(t *testing.T) {
		r := newTestResult(t)
		assert.False(t, VerifyResult(r, "org-2"))
		assert.True(t, VerifyWinner(r))
	})

	tamper := map[string]func(r *models.GiveawayResult){
		"winner":      func(r *models.GiveawayResult) { r.Winner = "A" },
		"index":       func(r *models.GiveawayResult) { r.WinnerIndex = 2 },
		"seed":        func(r *models.GiveawayResult) { r.RandomSeed = commitment.Commit("other") },
		"timestamp":   func(r *models.GiveawayResult) { r.Timestamp++ },
		"participant": func(r *models.GiveawayResult) { r.Participants = append(r.Participants, "D") },
		"reveal":      func(r *models.GiveawayResult) { r.Reveals[0].Secret = "forged" },
		"dropped reveal": func(r *models.GiveawayResult) {
			r.Reveals = r.Reveals[:1]
		},
		"commitment": func(r *models.GiveawayResult) { r.Commitments[2].CommitmentHash = commitment.Commit("zz") },
	}
	for name, fn := range tamper {
		t.Run("rejects altered "+name, func(t *testing.T) {
			r := newTestResult(t)
			fn(r)
			assert.False(t, VerifyResult(r, "org-1"))
		})
	}

	t.Run("rejects nil and empty", func(t *testing.T) {
		assert.False(t, VerifyResult(nil, "org-1"))
		assert.False(t, VerifyResult(&models.GiveawayResult{}, "org-1"))
	})
}
