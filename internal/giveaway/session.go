package giveaway

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"giveaway/internal/models"
)

// Phase is the state of a giveaway run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCommitting
	PhaseRevealing
	PhaseComplete
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCommitting:
		return "committing"
	case PhaseRevealing:
		return "revealing"
	case PhaseComplete:
		return "complete"
	case PhaseCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseCancelled
}

// MarshalText renders the phase name in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for q := PhaseIdle; q <= PhaseCancelled; q++ {
		if q.String() == string(b) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// SessionConfig holds the caller-supplied parameters of one run.
// None of them has a default.
type SessionConfig struct {
	ID           string
	OrganizerID  string
	Participants []models.Participant
	CommitPhase  time.Duration
	RevealPhase  time.Duration
	// Namespace prefixes the commit and reveal topics.
	Namespace string
}

// Session is the run-scoped state of one giveaway. It is owned by exactly
// one Coordinator for its whole lifetime.
type Session struct {
	ID           string
	OrganizerID  string
	Participants []models.Participant
	CommitPhase  time.Duration
	RevealPhase  time.Duration
	Namespace    string

	CommitDeadline time.Time
	RevealDeadline time.Time

	phase       Phase
	commitments map[string]models.Commitment
	reveals     map[string]models.Reveal
	result      *models.GiveawayResult
	err         error
}

// NewSession validates cfg and returns an idle session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if len(cfg.Participants) == 0 {
		return nil, ErrEmptyParticipants
	}
	if cfg.CommitPhase <= 0 || cfg.RevealPhase <= 0 {
		return nil, fmt.Errorf("%w: phase durations must be positive", ErrInvalidConfig)
	}
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("%w: empty topic namespace", ErrInvalidConfig)
	}
	return &Session{
		ID:           cfg.ID,
		OrganizerID:  cfg.OrganizerID,
		Participants: slices.Clone(cfg.Participants),
		CommitPhase:  cfg.CommitPhase,
		RevealPhase:  cfg.RevealPhase,
		Namespace:    cfg.Namespace,
		commitments:  make(map[string]models.Commitment),
		reveals:      make(map[string]models.Reveal),
	}, nil
}

func (s *Session) schedule(start time.Time) {
	s.CommitDeadline = start.Add(s.CommitPhase)
	s.RevealDeadline = s.CommitDeadline.Add(s.RevealPhase)
}

// addCommitment records c unless its sender already has one.
func (s *Session) addCommitment(c models.Commitment) bool {
	if _, ok := s.commitments[c.SenderID]; ok {
		return false
	}
	s.commitments[c.SenderID] = c
	return true
}

// revealStatus tells why a reveal would or would not be recorded.
type revealStatus int

const (
	revealAccepted revealStatus = iota
	revealUnknownSender
	revealDuplicate
)

func (s *Session) addReveal(r models.Reveal) revealStatus {
	if _, ok := s.commitments[r.SenderID]; !ok {
		return revealUnknownSender
	}
	if _, ok := s.reveals[r.SenderID]; ok {
		return revealDuplicate
	}
	s.reveals[r.SenderID] = r
	return revealAccepted
}

// Commitments returns the recorded commitments sorted by sender.
func (s *Session) Commitments() []models.Commitment {
	out := make([]models.Commitment, 0, len(s.commitments))
	for _, c := range s.commitments {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out
}

// Reveals returns the recorded reveals sorted by sender. They have not been
// verified against their commitments.
func (s *Session) Reveals() []models.Reveal {
	out := make([]models.Reveal, 0, len(s.reveals))
	for _, r := range s.reveals {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out
}
