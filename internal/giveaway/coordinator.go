package giveaway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/logger"

	"giveaway/internal/commitment"
	"giveaway/internal/metrics"
	"giveaway/internal/models"
	"giveaway/internal/transport"
)

const (
	kindCommit = "commit"
	kindReveal = "reveal"

	defaultUpdateBuffer = 16
)

// Progress is a snapshot of a run as seen by its coordinator.
type Progress struct {
	SessionID   string        `json:"sessionId"`
	Phase       Phase         `json:"phase"`
	Commitments int           `json:"commitments"`
	Reveals     int           `json:"reveals"`
	Dropped     int           `json:"dropped"`
	Deadline    time.Time     `json:"deadline,omitzero"`
	Remaining   time.Duration `json:"remaining"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithSecret makes the coordinator commit to secret instead of a generated one.
func WithSecret(secret string) Option {
	return func(c *Coordinator) { c.secret = secret }
}

// WithMetrics records message and run outcomes.
func WithMetrics(m *metrics.GiveawayMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithUpdateBuffer sets the capacity of the Updates channel.
func WithUpdateBuffer(n int) Option {
	return func(c *Coordinator) { c.updateBuffer = n }
}

// Coordinator drives one Session through commit, reveal and selection.
// A single goroutine mutates the session; mu only guards reads from
// other goroutines.
type Coordinator struct {
	transport    transport.Transport
	senderID     string
	topics       transport.TopicSet
	clock        Clock
	metrics      *metrics.GiveawayMetrics
	secret       string
	updateBuffer int

	mu      sync.Mutex
	session *Session
	dropped int
	closed  bool

	// Owned by Start and then by the loop.
	commitSub  transport.Subscription
	revealSub  transport.Subscription
	timer      Timer
	phaseStart time.Time

	cancelOnce sync.Once
	cancelCh   chan struct{}
	finishOnce sync.Once
	done       chan struct{}
	updates    chan Progress
}

// NewCoordinator binds session to a transport. senderID identifies the
// local node in published messages.
func NewCoordinator(t transport.Transport, session *Session, senderID string, opts ...Option) (*Coordinator, error) {
	if t == nil || session == nil {
		return nil, fmt.Errorf("%w: nil transport or session", ErrInvalidConfig)
	}
	if senderID == "" {
		return nil, fmt.Errorf("%w: empty sender id", ErrInvalidConfig)
	}
	c := &Coordinator{
		transport:    t,
		senderID:     senderID,
		topics:       transport.Topics(session.Namespace),
		clock:        SystemClock{},
		updateBuffer: defaultUpdateBuffer,
		session:      session,
		cancelCh:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.updateBuffer < 0 {
		c.updateBuffer = 0
	}
	c.updates = make(chan Progress, c.updateBuffer)
	return c, nil
}

// SenderID returns the local sender identifier.
func (c *Coordinator) SenderID() string { return c.senderID }

// Topics returns the topics the run publishes on.
func (c *Coordinator) Topics() transport.TopicSet { return c.topics }

// Done is closed once the run is Complete or Cancelled.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Updates delivers progress snapshots. Snapshots are dropped when the
// channel is full. It is closed when the run terminates.
func (c *Coordinator) Updates() <-chan Progress { return c.updates }

// Start moves the session from Idle to Committing: it records and publishes
// the local commitment, subscribes to the protocol topics and arms the
// commit deadline. ctx bounds the whole run.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.start(ctx); err != nil {
		return err
	}
	go c.loop(ctx)
	return nil
}

// start performs the Idle to Committing transition without launching the
// event loop.
func (c *Coordinator) start(ctx context.Context) error {
	c.mu.Lock()
	switch c.session.phase {
	case PhaseIdle:
	case PhaseCancelled:
		c.mu.Unlock()
		return ErrCancelled
	default:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if c.secret == "" {
		secret, err := commitment.NewSecret()
		if err != nil {
			c.mu.Unlock()
			c.finish(PhaseCancelled, nil, err)
			return err
		}
		c.secret = secret
	}
	now := c.clock.Now()
	c.phaseStart = now
	c.session.schedule(now)
	c.session.phase = PhaseCommitting
	local := models.CommitMessage{
		SenderID:   c.senderID,
		Commitment: commitment.Commit(c.secret),
		Timestamp:  now.UnixMilli(),
	}
	c.session.addCommitment(local.ToCommitment())
	c.mu.Unlock()

	if err := c.listen(ctx); err != nil {
		return c.abort(err)
	}
	data, err := local.Encode()
	if err != nil {
		return c.abort(fmt.Errorf("encode commitment: %w", err))
	}
	if err := c.transport.Publish(ctx, c.topics.Commits, data); err != nil {
		return c.abort(&TransportError{Op: "publish", Topic: c.topics.Commits, Err: err})
	}
	c.timer = c.clock.NewTimer(c.session.CommitDeadline.Sub(now))

	logger.Infof("giveaway %s: committing as %s until %s", c.session.ID, c.senderID, c.session.CommitDeadline.Format(time.RFC3339))
	c.emit()
	return nil
}

// Listen opens the commit and reveal subscriptions ahead of Start, so
// messages from peers that start earlier are queued instead of lost. Start
// calls it when needed. It must not be called concurrently with Start.
func (c *Coordinator) Listen(ctx context.Context) error {
	c.mu.Lock()
	phase := c.session.phase
	c.mu.Unlock()
	if phase != PhaseIdle {
		return ErrAlreadyStarted
	}
	return c.listen(ctx)
}

// listen subscribes to both topics. Reveals stay queued in their
// subscription until the reveal phase begins.
func (c *Coordinator) listen(ctx context.Context) error {
	if c.commitSub == nil {
		sub, err := c.transport.Subscribe(ctx, c.topics.Commits)
		if err != nil {
			return &TransportError{Op: "subscribe", Topic: c.topics.Commits, Err: err}
		}
		c.commitSub = sub
	}
	if c.revealSub == nil {
		sub, err := c.transport.Subscribe(ctx, c.topics.Reveals)
		if err != nil {
			return &TransportError{Op: "subscribe", Topic: c.topics.Reveals, Err: err}
		}
		c.revealSub = sub
	}
	return nil
}

// Run starts the session and waits for its outcome.
func (c *Coordinator) Run(ctx context.Context) (*models.GiveawayResult, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c.Wait(ctx)
}

// Wait blocks until the run terminates or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) (*models.GiveawayResult, error) {
	select {
	case <-c.done:
		return c.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the terminal outcome. Both values are nil while the run
// is in progress.
func (c *Coordinator) Result() (*models.GiveawayResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.result, c.session.err
}

// Cancel aborts the run. It is idempotent and a no-op on a finished run.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	idle := c.session.phase == PhaseIdle
	if idle {
		c.session.phase = PhaseCancelled
	}
	c.mu.Unlock()

	if idle {
		c.finish(PhaseCancelled, nil, ErrCancelled)
		return
	}
	c.cancelOnce.Do(func() { close(c.cancelCh) })
}

// Progress returns a snapshot of the run.
func (c *Coordinator) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

func (c *Coordinator) progressLocked() Progress {
	p := Progress{
		SessionID:   c.session.ID,
		Phase:       c.session.phase,
		Commitments: len(c.session.commitments),
		Reveals:     len(c.session.reveals),
		Dropped:     c.dropped,
	}
	switch c.session.phase {
	case PhaseCommitting:
		p.Deadline = c.session.CommitDeadline
	case PhaseRevealing:
		p.Deadline = c.session.RevealDeadline
	}
	if !p.Deadline.IsZero() {
		if p.Remaining = p.Deadline.Sub(c.clock.Now()); p.Remaining < 0 {
			p.Remaining = 0
		}
	}
	return p
}

func (c *Coordinator) emit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.updates <- c.progressLocked():
	default:
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	commits := c.commitSub.Messages()
	var reveals <-chan transport.Message
	for {
		select {
		case <-ctx.Done():
			c.finish(PhaseCancelled, nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
			return
		case <-c.cancelCh:
			c.finish(PhaseCancelled, nil, ErrCancelled)
			return
		case msg, ok := <-commits:
			if !ok {
				commits = nil
				continue
			}
			c.ingestCommit(msg)
		case msg, ok := <-reveals:
			if !ok {
				reveals = nil
				continue
			}
			c.ingestReveal(msg)
		case <-c.timer.C():
			c.mu.Lock()
			phase := c.session.phase
			c.mu.Unlock()
			if phase == PhaseCommitting {
				if err := c.endCommitPhase(ctx); err != nil {
					c.finish(PhaseCancelled, nil, err)
					return
				}
				commits = nil
				reveals = c.revealSub.Messages()
				continue
			}
			c.endRevealPhase()
			return
		}
	}
}

// endCommitPhase ingests the commitments still queued at the commit
// deadline, so they are counted as late, and begins the reveal phase.
func (c *Coordinator) endCommitPhase(ctx context.Context) error {
	c.drain(c.commitSub.Messages(), c.ingestCommit)
	return c.beginReveal(ctx)
}

// endRevealPhase ingests the reveals still queued at the reveal deadline
// and completes the run.
func (c *Coordinator) endRevealPhase() {
	c.drain(c.revealSub.Messages(), c.ingestReveal)
	c.complete()
}

// drain ingests the messages already queued on ch without blocking.
func (c *Coordinator) drain(ch <-chan transport.Message, ingest func(transport.Message)) {
	for n := len(ch); n > 0; n-- {
		msg, ok := <-ch
		if !ok {
			return
		}
		ingest(msg)
	}
}

func (c *Coordinator) ingestCommit(msg transport.Message) {
	m, err := models.DecodeCommitMessage(msg.Data)
	if err != nil {
		c.drop(kindCommit, metrics.MessageMalformed, "", err.Error())
		return
	}
	if m.SenderID == c.senderID {
		return
	}

	c.mu.Lock()
	late := c.session.phase != PhaseCommitting || !c.clock.Now().Before(c.session.CommitDeadline)
	added := !late && c.session.addCommitment(m.ToCommitment())
	c.mu.Unlock()

	switch {
	case late:
		c.drop(kindCommit, metrics.MessageLate, m.SenderID, "after commit deadline")
	case !added:
		c.drop(kindCommit, metrics.MessageDuplicate, m.SenderID, "already committed")
	default:
		c.metrics.Message(kindCommit, metrics.MessageAccepted)
		c.emit()
	}
}

func (c *Coordinator) ingestReveal(msg transport.Message) {
	m, err := models.DecodeRevealMessage(msg.Data)
	if err != nil {
		c.drop(kindReveal, metrics.MessageMalformed, "", err.Error())
		return
	}
	if m.SenderID == c.senderID {
		return
	}

	c.mu.Lock()
	late := c.session.phase != PhaseRevealing || !c.clock.Now().Before(c.session.RevealDeadline)
	status := revealAccepted
	if !late {
		status = c.session.addReveal(m.ToReveal())
	}
	c.mu.Unlock()

	switch {
	case late:
		c.drop(kindReveal, metrics.MessageLate, m.SenderID, "after reveal deadline")
	case status == revealUnknownSender:
		c.drop(kindReveal, metrics.MessageUnknownSender, m.SenderID, "no commitment")
	case status == revealDuplicate:
		c.drop(kindReveal, metrics.MessageDuplicate, m.SenderID, "already revealed")
	default:
		c.metrics.Message(kindReveal, metrics.MessageAccepted)
		c.emit()
	}
}

func (c *Coordinator) drop(kind string, outcome metrics.MessageOutcome, sender, reason string) {
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
	c.metrics.Message(kind, outcome)
	logger.Infof("giveaway %s: dropped %s from %q (%s): %s", c.session.ID, kind, sender, outcome, reason)
	c.emit()
}

func (c *Coordinator) beginReveal(ctx context.Context) error {
	_ = c.commitSub.Close()

	now := c.clock.Now()
	local := models.RevealMessage{
		SenderID:  c.senderID,
		Secret:    c.secret,
		Timestamp: now.UnixMilli(),
	}
	c.metrics.PhaseFinished(PhaseCommitting.String(), now.Sub(c.phaseStart))
	c.phaseStart = now

	c.mu.Lock()
	c.session.phase = PhaseRevealing
	c.session.addReveal(local.ToReveal())
	commits := len(c.session.commitments)
	c.mu.Unlock()

	data, err := local.Encode()
	if err != nil {
		return fmt.Errorf("encode reveal: %w", err)
	}
	if err := c.transport.Publish(ctx, c.topics.Reveals, data); err != nil {
		return &TransportError{Op: "publish", Topic: c.topics.Reveals, Err: err}
	}
	c.timer = c.clock.NewTimer(c.session.RevealDeadline.Sub(now))

	logger.Infof("giveaway %s: revealing with %d commitments until %s", c.session.ID, commits, c.session.RevealDeadline.Format(time.RFC3339))
	c.emit()
	return nil
}

func (c *Coordinator) complete() {
	c.mu.Lock()
	commitments := c.session.Commitments()
	reveals := c.session.Reveals()
	c.mu.Unlock()

	now := c.clock.Now()
	c.metrics.PhaseFinished(PhaseRevealing.String(), now.Sub(c.phaseStart))

	valid := VerifyReveals(commitments, reveals)
	c.metrics.Reveals(len(valid), len(reveals)-len(valid))

	res, err := NewResult(c.session.Participants, commitments, valid, c.session.OrganizerID, now.UnixMilli())
	if err != nil {
		logger.Errorf("giveaway %s: selection failed: %v", c.session.ID, err)
		c.finish(PhaseCancelled, nil, err)
		return
	}
	res.GiveawayID = c.session.ID
	logger.Infof("giveaway %s: winner %s (index %d, %d/%d reveals valid)", c.session.ID, res.Winner, res.WinnerIndex, len(valid), len(reveals))
	c.finish(PhaseComplete, res, nil)
}

func (c *Coordinator) abort(err error) error {
	logger.Errorf("giveaway %s: %v", c.session.ID, err)
	c.finish(PhaseCancelled, nil, err)
	return err
}

// finish moves the session to a terminal phase and releases its resources.
func (c *Coordinator) finish(phase Phase, res *models.GiveawayResult, err error) {
	c.finishOnce.Do(func() {
		if c.timer != nil {
			c.timer.Stop()
		}
		if c.commitSub != nil {
			_ = c.commitSub.Close()
		}
		if c.revealSub != nil {
			_ = c.revealSub.Close()
		}

		c.mu.Lock()
		c.session.phase = phase
		c.session.result = res
		c.session.err = err
		final := c.progressLocked()
		c.closed = true
		c.mu.Unlock()

		select {
		case c.updates <- final:
		default:
		}
		close(c.updates)
		c.metrics.RunFinished(phase.String())
		if phase == PhaseCancelled {
			logger.Infof("giveaway %s: cancelled: %v", c.session.ID, err)
		}
		close(c.done)
	})
}
