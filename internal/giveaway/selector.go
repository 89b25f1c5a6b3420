package giveaway

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"giveaway/internal/commitment"
	"giveaway/internal/models"
)

// Selection is the deterministic part of a result.
type Selection struct {
	WinnerIndex int
	Winner      models.Participant
	RandomSeed  string
}

// Entropy concatenates the secrets of reveals in byte-wise lexicographic
// order, so arrival order never matters.
func Entropy(reveals []models.Reveal) string {
	secrets := make([]string, len(reveals))
	for i, r := range reveals {
		secrets[i] = r.Secret
	}
	sort.Strings(secrets)
	return strings.Join(secrets, "")
}

// RandomSeed is the commitment of the entropy string.
func RandomSeed(reveals []models.Reveal) string {
	return commitment.Commit(Entropy(reveals))
}

// WinnerIndex maps a seed onto participants:
//
//	digest = sha256(join(participants, "|") + "|" + seed)
//	index  = bigEndianUint32(digest[0:4]) mod len(participants)
func WinnerIndex(participants []models.Participant, seed string) (int, error) {
	if len(participants) == 0 {
		return 0, ErrEmptyParticipants
	}
	digest := sha256.Sum256([]byte(strings.Join(participants, "|") + "|" + seed))
	n := binary.BigEndian.Uint32(digest[:4])
	return int(n % uint32(len(participants))), nil
}

// SelectWinner derives the winner of participants from the valid reveals.
func SelectWinner(participants []models.Participant, validReveals []models.Reveal) (Selection, error) {
	if len(participants) == 0 {
		return Selection{}, ErrEmptyParticipants
	}
	if len(validReveals) == 0 {
		return Selection{}, ErrNoValidReveals
	}
	seed := RandomSeed(validReveals)
	idx, err := WinnerIndex(participants, seed)
	if err != nil {
		return Selection{}, err
	}
	return Selection{WinnerIndex: idx, Winner: participants[idx], RandomSeed: seed}, nil
}

type auditRecord struct {
	Participants []models.Participant `json:"participants"`
	Winner       models.Participant   `json:"winner"`
	RandomSeed   string               `json:"randomSeed"`
	OrganizerID  string               `json:"organizerId"`
	Commitments  []models.Commitment  `json:"commitments"`
	Reveals      []models.Reveal      `json:"reveals"`
	Timestamp    int64                `json:"timestamp"`
}

// VerificationHash digests the canonical JSON encoding of everything that
// went into the decision. The timestamp is part of the published result.
func VerificationHash(r *models.GiveawayResult, organizerID string) (string, error) {
	rec := auditRecord{
		Participants: r.Participants,
		Winner:       r.Winner,
		RandomSeed:   r.RandomSeed,
		OrganizerID:  organizerID,
		Commitments:  slices.Clone(r.Commitments),
		Reveals:      slices.Clone(r.Reveals),
		Timestamp:    r.Timestamp,
	}
	sort.Slice(rec.Commitments, func(i, j int) bool { return rec.Commitments[i].SenderID < rec.Commitments[j].SenderID })
	sort.Slice(rec.Reveals, func(i, j int) bool { return rec.Reveals[i].SenderID < rec.Reveals[j].SenderID })
	if rec.Commitments == nil {
		rec.Commitments = []models.Commitment{}
	}
	if rec.Reveals == nil {
		rec.Reveals = []models.Reveal{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode audit record: %w", err)
	}
	return commitment.Digest(b), nil
}

// NewResult runs selection over verified inputs and assembles the result.
func NewResult(participants []models.Participant, commitments []models.Commitment, validReveals []models.Reveal, organizerID string, timestamp int64) (*models.GiveawayResult, error) {
	sel, err := SelectWinner(participants, validReveals)
	if err != nil {
		return nil, err
	}
	r := &models.GiveawayResult{
		Winner:       sel.Winner,
		WinnerIndex:  sel.WinnerIndex,
		Timestamp:    timestamp,
		Participants: slices.Clone(participants),
		RandomSeed:   sel.RandomSeed,
		Commitments:  slices.Clone(commitments),
		Reveals:      slices.Clone(validReveals),
	}
	sort.Slice(r.Commitments, func(i, j int) bool { return r.Commitments[i].SenderID < r.Commitments[j].SenderID })
	sort.Slice(r.Reveals, func(i, j int) bool { return r.Reveals[i].SenderID < r.Reveals[j].SenderID })
	if r.VerificationHash, err = VerificationHash(r, organizerID); err != nil {
		return nil, err
	}
	return r, nil
}

// VerifyWinner re-derives the winner from the published participants and
// seed only.
func VerifyWinner(r *models.GiveawayResult) bool {
	if r == nil {
		return false
	}
	idx, err := WinnerIndex(r.Participants, r.RandomSeed)
	if err != nil {
		return false
	}
	return r.Participants[idx] == r.Winner && idx == r.WinnerIndex
}

// VerifyResult checks a published result without network access: the winner
// re-derivation, every reveal against its published commitment, the seed
// against the reveals, and the verification hash for organizerID.
func VerifyResult(r *models.GiveawayResult, organizerID string) bool {
	if !VerifyWinner(r) {
		return false
	}
	if len(VerifyReveals(r.Commitments, r.Reveals)) != len(r.Reveals) {
		return false
	}
	if RandomSeed(r.Reveals) != r.RandomSeed {
		return false
	}
	hash, err := VerificationHash(r, organizerID)
	if err != nil {
		return false
	}
	return hash == r.VerificationHash
}
