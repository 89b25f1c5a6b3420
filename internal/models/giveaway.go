package models

// Participant is an opaque identifier (usually a chain address) of someone
// who can win the giveaway.
type Participant = string

// Commitment binds a sender to a secret without revealing it.
// PublishedAt is the sender's timestamp in Unix milliseconds.
type Commitment struct {
	SenderID       string `json:"senderId"`
	CommitmentHash string `json:"commitmentHash"`
	PublishedAt    int64  `json:"publishedAt"`
}

// Reveal discloses the secret behind an earlier Commitment.
type Reveal struct {
	SenderID    string `json:"senderId"`
	Secret      string `json:"secret"`
	PublishedAt int64  `json:"publishedAt"`
}

// GiveawayResult is the publishable audit record of a completed run.
// Everything needed to re-derive the winner and the verification hash is
// carried here, including the timestamp fed into the hash.
type GiveawayResult struct {
	GiveawayID       string        `json:"giveawayId,omitempty"`
	Winner           Participant   `json:"winner"`
	WinnerIndex      int           `json:"winnerIndex"`
	Timestamp        int64         `json:"timestamp"`
	Participants     []Participant `json:"participants"`
	RandomSeed       string        `json:"randomSeed"`
	VerificationHash string        `json:"verificationHash"`
	// Commitments holds every commitment recorded for the run, sorted by sender.
	Commitments []Commitment `json:"commitments"`
	// Reveals holds only the valid reveals, sorted by sender.
	Reveals []Reveal `json:"reveals"`
}
