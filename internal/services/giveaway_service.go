package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"giveaway/internal/giveaway"
	"giveaway/internal/metrics"
	"giveaway/internal/models"
	"giveaway/internal/transport"
)

var (
	// ErrGiveawayNotFound is returned for unknown IDs or IDs of another tenant.
	ErrGiveawayNotFound = errors.New("giveaway not found")
	// ErrPhaseClosed is returned when a contribution is submitted outside its phase.
	ErrPhaseClosed = errors.New("phase closed")
)

// Config holds the service-level settings. The phase durations are the
// defaults for requests that do not name their own.
type Config struct {
	NodeID      string
	TopicPrefix string
	CommitPhase time.Duration
	RevealPhase time.Duration
	SessionTTL  time.Duration
}

// StartRequest describes a giveaway to run.
type StartRequest struct {
	Title        string   `json:"title"`
	Participants []string `json:"participants"`
	// CommitPhase and RevealPhase use time.ParseDuration syntax, e.g. "30s".
	CommitPhase string `json:"commitPhase,omitempty"`
	RevealPhase string `json:"revealPhase,omitempty"`
	// Secret is the local node's secret. Generated when empty.
	Secret string `json:"secret,omitempty"`
}

// GiveawayRun holds one run of a tenant.
type GiveawayRun struct {
	ID           string
	TenantID     string
	Title        string
	CreatedAt    time.Time
	LastActivity time.Time

	session     *giveaway.Session
	coordinator *giveaway.Coordinator
}

// GiveawayStatus is the externally visible state of a run.
type GiveawayStatus struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	NodeID       string                 `json:"nodeId"`
	Participants []string               `json:"participants"`
	Topics       transport.TopicSet     `json:"topics"`
	Progress     giveaway.Progress      `json:"progress"`
	Result       *models.GiveawayResult `json:"result,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// GiveawayService manages the giveaway runs of all tenants on one shared
// transport.
type GiveawayService struct {
	cfg       Config
	transport transport.Transport
	metrics   *metrics.GiveawayMetrics
	opts      []giveaway.Option

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	runs map[string]*GiveawayRun // Key: giveaway ID
}

// NewGiveawayService creates and initializes a new GiveawayService.
// opts are applied to every coordinator the service creates.
func NewGiveawayService(t transport.Transport, cfg Config, m *metrics.GiveawayMetrics, opts ...giveaway.Option) *GiveawayService {
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &GiveawayService{
		cfg:       cfg,
		transport: t,
		metrics:   m,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		runs:      make(map[string]*GiveawayRun),
	}
}

// NodeID returns the sender ID this service commits under.
func (s *GiveawayService) NodeID() string {
	return s.cfg.NodeID
}

func phaseOr(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", giveaway.ErrInvalidConfig, err)
	}
	return d, nil
}

func cleanParticipants(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// StartGiveaway creates a run for tenantID and starts its commit phase.
// The tenant is the organizer of the run.
func (s *GiveawayService) StartGiveaway(tenantID string, req StartRequest) (GiveawayStatus, error) {
	commitPhase, err := phaseOr(req.CommitPhase, s.cfg.CommitPhase)
	if err != nil {
		return GiveawayStatus{}, err
	}
	revealPhase, err := phaseOr(req.RevealPhase, s.cfg.RevealPhase)
	if err != nil {
		return GiveawayStatus{}, err
	}

	id := uuid.NewString()
	session, err := giveaway.NewSession(giveaway.SessionConfig{
		ID:           id,
		OrganizerID:  tenantID,
		Participants: cleanParticipants(req.Participants),
		CommitPhase:  commitPhase,
		RevealPhase:  revealPhase,
		Namespace:    s.cfg.TopicPrefix + "/" + id,
	})
	if err != nil {
		return GiveawayStatus{}, err
	}

	opts := append([]giveaway.Option{giveaway.WithMetrics(s.metrics)}, s.opts...)
	if req.Secret != "" {
		opts = append(opts, giveaway.WithSecret(req.Secret))
	}
	coord, err := giveaway.NewCoordinator(s.transport, session, s.cfg.NodeID, opts...)
	if err != nil {
		return GiveawayStatus{}, err
	}
	if err := coord.Start(s.ctx); err != nil {
		return GiveawayStatus{}, err
	}

	now := time.Now()
	run := &GiveawayRun{
		ID:           id,
		TenantID:     tenantID,
		Title:        req.Title,
		CreatedAt:    now,
		LastActivity: now,
		session:      session,
		coordinator:  coord,
	}
	s.mu.Lock()
	s.runs[id] = run
	s.mu.Unlock()

	logger.Infof("Started giveaway %s for tenant %s with %d participants", id, tenantID, len(session.Participants))
	return s.status(run), nil
}

// getRun returns the run of tenantID and marks it active.
func (s *GiveawayService) getRun(tenantID, id string) (*GiveawayRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok || run.TenantID != tenantID {
		return nil, ErrGiveawayNotFound
	}
	run.LastActivity = time.Now()
	return run, nil
}

func (s *GiveawayService) status(run *GiveawayRun) GiveawayStatus {
	st := GiveawayStatus{
		ID:           run.ID,
		Title:        run.Title,
		CreatedAt:    run.CreatedAt,
		NodeID:       s.cfg.NodeID,
		Participants: run.session.Participants,
		Topics:       run.coordinator.Topics(),
		Progress:     run.coordinator.Progress(),
	}
	res, err := run.coordinator.Result()
	st.Result = res
	if err != nil {
		st.Error = err.Error()
	}
	return st
}

// GetGiveaway returns the status of one run.
func (s *GiveawayService) GetGiveaway(tenantID, id string) (GiveawayStatus, error) {
	run, err := s.getRun(tenantID, id)
	if err != nil {
		return GiveawayStatus{}, err
	}
	return s.status(run), nil
}

// ListGiveaways returns the runs of a tenant, oldest first.
func (s *GiveawayService) ListGiveaways(tenantID string) []GiveawayStatus {
	s.mu.RLock()
	runs := make([]*GiveawayRun, 0)
	for _, run := range s.runs {
		if run.TenantID == tenantID {
			runs = append(runs, run)
		}
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	out := make([]GiveawayStatus, len(runs))
	for i, run := range runs {
		out[i] = s.status(run)
	}
	return out
}

// Results returns the completed results of a tenant, oldest first.
func (s *GiveawayService) Results(tenantID string) []*models.GiveawayResult {
	var out []*models.GiveawayResult
	for _, st := range s.ListGiveaways(tenantID) {
		if st.Result != nil {
			out = append(out, st.Result)
		}
	}
	return out
}

// CancelGiveaway aborts a run.
func (s *GiveawayService) CancelGiveaway(tenantID, id string) (GiveawayStatus, error) {
	run, err := s.getRun(tenantID, id)
	if err != nil {
		return GiveawayStatus{}, err
	}
	run.coordinator.Cancel()
	<-run.coordinator.Done()
	logger.Infof("Cancelled giveaway %s for tenant %s", id, tenantID)
	return s.status(run), nil
}

// Wait blocks until the run terminates or ctx is done.
func (s *GiveawayService) Wait(ctx context.Context, tenantID, id string) (*models.GiveawayResult, error) {
	run, err := s.getRun(tenantID, id)
	if err != nil {
		return nil, err
	}
	return run.coordinator.Wait(ctx)
}

// SubmitCommitment publishes a commitment on behalf of a remote sender.
func (s *GiveawayService) SubmitCommitment(ctx context.Context, tenantID, id string, msg models.CommitMessage) error {
	run, err := s.getRun(tenantID, id)
	if err != nil {
		return err
	}
	if run.coordinator.Progress().Phase != giveaway.PhaseCommitting {
		return fmt.Errorf("%w: giveaway %s is not accepting commitments", ErrPhaseClosed, id)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return s.transport.Publish(ctx, run.coordinator.Topics().Commits, data)
}

// SubmitReveal publishes a reveal on behalf of a remote sender.
func (s *GiveawayService) SubmitReveal(ctx context.Context, tenantID, id string, msg models.RevealMessage) error {
	run, err := s.getRun(tenantID, id)
	if err != nil {
		return err
	}
	if run.coordinator.Progress().Phase != giveaway.PhaseRevealing {
		return fmt.Errorf("%w: giveaway %s is not accepting reveals", ErrPhaseClosed, id)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return s.transport.Publish(ctx, run.coordinator.Topics().Reveals, data)
}

// Verify checks a published result for organizerID.
func (s *GiveawayService) Verify(result *models.GiveawayResult, organizerID string) bool {
	return giveaway.VerifyResult(result, organizerID)
}

// CleanUpInactiveSessions removes finished runs that have been inactive for
// longer than the configured TTL.
func (s *GiveawayService) CleanUpInactiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, run := range s.runs {
		if !run.coordinator.Progress().Phase.Terminal() {
			continue
		}
		if time.Since(run.LastActivity) > s.cfg.SessionTTL {
			logger.Infof("Removing inactive giveaway %s of tenant %s", id, run.TenantID)
			delete(s.runs, id)
			removed++
		}
	}
	return removed
}

// ClearSession cancels and removes all runs of a tenant.
func (s *GiveawayService) ClearSession(tenantID string) {
	s.mu.Lock()
	var cleared []*GiveawayRun
	for id, run := range s.runs {
		if run.TenantID == tenantID {
			cleared = append(cleared, run)
			delete(s.runs, id)
		}
	}
	s.mu.Unlock()

	for _, run := range cleared {
		run.coordinator.Cancel()
	}
	logger.Infof("Cleared session for tenant: %s (%d giveaways)", tenantID, len(cleared))
}

// Shutdown cancels every run still in progress.
func (s *GiveawayService) Shutdown() {
	s.cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		<-run.coordinator.Done()
	}
}
