package giveaway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"giveaway/internal/models"
)

func TestVerifyReveals(t *testing.T) {
	commitments := []models.Commitment{commit("a", "x"), commit("b", "y"), commit("c", "w")}

	t.Run("honest reveals", func(t *testing.T) {
		got := VerifyReveals(commitments, []models.Reveal{reveal("b", "y"), reveal("a", "x")})
		assert.Equal(t, []models.Reveal{reveal("a", "x"), reveal("b", "y")}, got)
	})

	t.Run("reveal without commitment", func(t *testing.T) {
		got := VerifyReveals(commitments, []models.Reveal{reveal("a", "x"), reveal("stranger", "s")})
		assert.Equal(t, []models.Reveal{reveal("a", "x")}, got)
	})

	t.Run("tampered reveal", func(t *testing.T) {
		got := VerifyReveals(commitments, []models.Reveal{reveal("a", "x"), reveal("b", "not-y")})
		assert.Equal(t, []models.Reveal{reveal("a", "x")}, got)
	})

	t.Run("secret of another sender", func(t *testing.T) {
		got := VerifyReveals(commitments, []models.Reveal{reveal("c", "x")})
		assert.Empty(t, got)
	})

	t.Run("duplicate sender keeps first valid", func(t *testing.T) {
		got := VerifyReveals(commitments, []models.Reveal{reveal("a", "x"), reveal("a", "x")})
		assert.Len(t, got, 1)
	})

	t.Run("first commitment per sender binds", func(t *testing.T) {
		dup := append([]models.Commitment{commit("a", "x")}, commit("a", "other"))
		assert.Len(t, VerifyReveals(dup, []models.Reveal{reveal("a", "x")}), 1)
		assert.Empty(t, VerifyReveals(dup, []models.Reveal{reveal("a", "other")}))
	})

	t.Run("nothing in", func(t *testing.T) {
		assert.Empty(t, VerifyReveals(nil, nil))
	})
}
