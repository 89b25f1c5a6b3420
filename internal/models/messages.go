package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"giveaway/internal/commitment"
)

// ErrMalformedMessage is returned when a payload does not decode into the
// expected message shape.
var ErrMalformedMessage = errors.New("malformed message")

// CommitMessage is published on the commitment topic.
type CommitMessage struct {
	SenderID   string `json:"senderId"`
	Commitment string `json:"commitment"`
	Timestamp  int64  `json:"timestamp"`
}

// RevealMessage is published on the reveal topic.
type RevealMessage struct {
	SenderID  string `json:"senderId"`
	Secret    string `json:"secret"`
	Timestamp int64  `json:"timestamp"`
}

// Encode returns the wire form of m.
func (m CommitMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Encode returns the wire form of m.
func (m RevealMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ToCommitment converts m into the recorded form.
func (m CommitMessage) ToCommitment() Commitment {
	return Commitment{SenderID: m.SenderID, CommitmentHash: m.Commitment, PublishedAt: m.Timestamp}
}

// ToReveal converts m into the recorded form.
func (m RevealMessage) ToReveal() Reveal {
	return Reveal{SenderID: m.SenderID, Secret: m.Secret, PublishedAt: m.Timestamp}
}

// Validate checks the fields of a commitment message.
func (m CommitMessage) Validate() error {
	if m.SenderID == "" {
		return fmt.Errorf("%w: empty sender id", ErrMalformedMessage)
	}
	if !commitment.IsDigest(m.Commitment) {
		return fmt.Errorf("%w: commitment from %s is not a hex digest", ErrMalformedMessage, m.SenderID)
	}
	return nil
}

// Validate checks the fields of a reveal message.
func (m RevealMessage) Validate() error {
	if m.SenderID == "" {
		return fmt.Errorf("%w: empty sender id", ErrMalformedMessage)
	}
	if m.Secret == "" {
		return fmt.Errorf("%w: empty secret from %s", ErrMalformedMessage, m.SenderID)
	}
	return nil
}

// DecodeCommitMessage parses and validates a commitment payload.
func DecodeCommitMessage(data []byte) (CommitMessage, error) {
	var m CommitMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return CommitMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := m.Validate(); err != nil {
		return CommitMessage{}, err
	}
	return m, nil
}

// DecodeRevealMessage parses and validates a reveal payload.
func DecodeRevealMessage(data []byte) (RevealMessage, error) {
	var m RevealMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return RevealMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := m.Validate(); err != nil {
		return RevealMessage{}, err
	}
	return m, nil
}
