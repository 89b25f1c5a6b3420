package giveaway

import (
	"sort"

	"giveaway/internal/commitment"
	"giveaway/internal/models"
)

// VerifyReveals returns the reveals whose secret opens the commitment of the
// same sender, sorted by sender. Reveals without a commitment or with a
// mismatching secret are left out silently.
func VerifyReveals(commitments []models.Commitment, reveals []models.Reveal) []models.Reveal {
	bySender := make(map[string]string, len(commitments))
	for _, c := range commitments {
		if _, ok := bySender[c.SenderID]; ok {
			continue
		}
		bySender[c.SenderID] = c.CommitmentHash
	}

	valid := make([]models.Reveal, 0, len(reveals))
	seen := make(map[string]bool, len(reveals))
	for _, r := range reveals {
		hash, ok := bySender[r.SenderID]
		if !ok || seen[r.SenderID] {
			continue
		}
		if !commitment.Verify(hash, r.Secret) {
			continue
		}
		seen[r.SenderID] = true
		valid = append(valid, r)
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].SenderID < valid[j].SenderID })
	return valid
}
