package dialer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dialer-platform/internal/call"
	"dialer-platform/internal/contacts"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/reporting"
)

// Placer is the call-manager surface the controller dials through.
// Satisfied by *call.Manager.
type Placer interface {
	Place(ctx context.Context, phoneNumber, subjectID string) (call.Session, error)
	Hangup(ctx context.Context, subjectID string) bool
	HangupNoAnswer(ctx context.Context, subjectID string) bool
}

// AttemptSink receives one record per finished dial. Satisfied by
// *reporting.Service; recording is best-effort.
type AttemptSink interface {
	Record(ctx context.Context, a reporting.Attempt) error
}

// QueueService is the queue surface the controller consumes.
// Satisfied by *queue.Service.
type QueueService interface {
	DequeueNext(ctx context.Context, agentID string) (queue.QueueEntry, bool, error)
	Requeue(ctx context.Context, entryID string) error
	Complete(ctx context.Context, entryID string) error
	SetAgentCall(ctx context.Context, agentID string, callID *string) (queue.Agent, error)
}

// Controller is the auto dialer: it pulls entries off the queue for an agent,
// places them, watches their lifecycle through the monitor's hooks, and
// advances to the next lead when a call ends.
type Controller struct {
	queue    QueueService
	contacts contacts.Store
	placer   Placer
	limiter  Limiter
	noAnswer time.Duration
	log      *slog.Logger
	reports  AttemptSink

	mu      sync.Mutex
	ctx     context.Context // base for hook-driven work; set by StartDialer
	enabled bool
	agentID string
	active  map[string]*pendingDial // keyed by subject (contact) id
}

type pendingDial struct {
	entryID   string
	callID    string
	phone     string
	startedAt time.Time
	timer     *time.Timer
}

func NewController(q QueueService, store contacts.Store, placer Placer, limiter Limiter, noAnswerTimeout time.Duration, log *slog.Logger) *Controller {
	if limiter == nil {
		limiter = NopLimiter{}
	}
	if log == nil {
		log = slog.Default()
	}
	if noAnswerTimeout <= 0 {
		noAnswerTimeout = 30 * time.Second
	}
	return &Controller{
		queue:    q,
		contacts: store,
		placer:   placer,
		limiter:  limiter,
		noAnswer: noAnswerTimeout,
		log:      log,
		ctx:      context.Background(),
		active:   make(map[string]*pendingDial),
	}
}

// SetAttemptSink enables dial-attempt recording. Must be called before
// StartDialer.
func (c *Controller) SetAttemptSink(sink AttemptSink) {
	c.reports = sink
}

// StartDialer enables auto dialing for agentID and immediately places up to
// maxConcurrent calls from the queue. Returns how many were placed.
func (c *Controller) StartDialer(ctx context.Context, agentID string, maxConcurrent int) (int, error) {
	if agentID == "" {
		return 0, errors.New("agent id is required")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	c.mu.Lock()
	c.ctx = ctx
	c.enabled = true
	c.agentID = agentID
	c.mu.Unlock()

	// The busy flag is set once after the batch: each dequeued entry is
	// already atomically assigned to the agent, and marking the agent busy
	// mid-batch would block the remaining dequeues.
	placed := 0
	var lastCallID string
	for i := 0; i < maxConcurrent; i++ {
		callID, ok, err := c.dialNext(ctx, agentID)
		if err != nil {
			if placed == 0 {
				return 0, err
			}
			// partial batch: keep what was placed
			c.log.Warn("batch placement stopped early", "agent_id", agentID, "placed", placed, "error", err)
			break
		}
		if !ok {
			break
		}
		placed++
		lastCallID = callID
	}
	if placed > 0 {
		if _, err := c.queue.SetAgentCall(ctx, agentID, &lastCallID); err != nil {
			c.log.Warn("agent state update failed", "agent_id", agentID, "error", err)
		}
	}
	return placed, nil
}

// StopDialer disables auto advance. Calls already in flight continue; their
// terminal handling still completes queue entries and frees the agent.
func (c *Controller) StopDialer() {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
	c.log.Info("auto dialer stopped")
}

// Enabled reports whether auto advance is on.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// dialNext pulls one entry and places it, returning the provider call id.
// Agent availability bookkeeping is the caller's business. Returns false with
// nil error when the queue is drained or the concurrency cap is reached.
func (c *Controller) dialNext(ctx context.Context, agentID string) (string, bool, error) {
	ok, err := c.limiter.Acquire(ctx, agentID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		c.log.Info("concurrency cap reached", "agent_id", agentID)
		return "", false, nil
	}

	entry, found, err := c.queue.DequeueNext(ctx, agentID)
	if err != nil || !found {
		c.releaseSlot(agentID)
		return "", false, err
	}

	contact, err := c.contacts.GetContact(ctx, entry.CallID)
	if err != nil {
		c.releaseSlot(agentID)
		if errors.Is(err, contacts.ErrNotFound) {
			// the lead vanished from the CRM; this entry can never dial
			c.log.Warn("dropping queue entry for missing contact", "entry_id", entry.ID, "contact_id", entry.CallID)
			return "", false, c.queue.Complete(ctx, entry.ID)
		}
		if reqErr := c.queue.Requeue(ctx, entry.ID); reqErr != nil {
			c.log.Warn("requeue failed", "entry_id", entry.ID, "error", reqErr)
		}
		return "", false, err
	}

	if err := c.contacts.UpdateDisposition(ctx, contact.ID, contacts.DispositionInProgress); err != nil {
		c.log.Warn("disposition update failed", "contact_id", contact.ID, "error", err)
	}

	session, err := c.placer.Place(ctx, contact.PhoneNumber, contact.ID)
	if err != nil {
		// the entry goes back unassigned; a failed placement never drops a lead
		c.releaseSlot(agentID)
		if reqErr := c.queue.Requeue(ctx, entry.ID); reqErr != nil {
			c.log.Warn("requeue failed", "entry_id", entry.ID, "error", reqErr)
		}
		if dispErr := c.contacts.UpdateDisposition(ctx, contact.ID, contacts.DispositionNotContacted); dispErr != nil {
			c.log.Warn("disposition rollback failed", "contact_id", contact.ID, "error", dispErr)
		}
		c.log.Warn("auto dial placement failed", "contact_id", contact.ID, "error", err)
		return "", false, nil
	}

	c.mu.Lock()
	p := &pendingDial{
		entryID:   entry.ID,
		callID:    session.ID,
		phone:     contact.PhoneNumber,
		startedAt: time.Now().UTC(),
	}
	p.timer = time.AfterFunc(c.noAnswer, func() { c.noAnswerTimeout(contact.ID) })
	c.active[contact.ID] = p
	c.mu.Unlock()

	c.log.Info("auto dial placed",
		"agent_id", agentID,
		"contact_id", contact.ID,
		"call_id", session.ID,
		"entry_id", entry.ID,
	)
	return session.ID, true, nil
}

// OnTransition is wired to the monitor's transition hook. It disarms the
// no-answer timeout once the call is answered or over, and on terminal states
// settles the queue entry and advances when auto dialing is enabled.
func (c *Controller) OnTransition(subjectID string, status call.Status) {
	c.mu.Lock()
	p, tracked := c.active[subjectID]
	c.mu.Unlock()
	if !tracked {
		return
	}

	if status == call.StatusInProgress || status.Terminal() {
		p.timer.Stop()
	}
	if status.Terminal() {
		c.settle(subjectID, status)
	}
}

// noAnswerTimeout fires when a call never reached in_progress in time:
// force the hangup and treat the outcome as no answer.
func (c *Controller) noAnswerTimeout(subjectID string) {
	c.mu.Lock()
	_, tracked := c.active[subjectID]
	ctx := c.ctx
	c.mu.Unlock()
	if !tracked {
		return
	}

	c.log.Info("no-answer timeout", "contact_id", subjectID)
	c.placer.HangupNoAnswer(ctx, subjectID)
	c.settle(subjectID, call.StatusNoAnswer)
}

// settle finishes one tracked dial exactly once: disposition, queue entry,
// agent availability, cap slot, and the auto-advance that dials the next lead
// in the same turn.
func (c *Controller) settle(subjectID string, status call.Status) {
	c.mu.Lock()
	p, tracked := c.active[subjectID]
	if !tracked {
		c.mu.Unlock()
		return
	}
	delete(c.active, subjectID)
	ctx := c.ctx
	enabled := c.enabled
	agentID := c.agentID
	c.mu.Unlock()

	p.timer.Stop()

	if err := c.contacts.UpdateDisposition(ctx, subjectID, dispositionFor(status)); err != nil {
		c.log.Warn("disposition update failed", "contact_id", subjectID, "error", err)
	}
	if err := c.queue.Complete(ctx, p.entryID); err != nil {
		c.log.Warn("queue completion failed", "entry_id", p.entryID, "error", err)
	}
	if _, err := c.queue.SetAgentCall(ctx, agentID, nil); err != nil {
		c.log.Warn("agent state update failed", "agent_id", agentID, "error", err)
	}
	c.releaseSlot(agentID)

	if c.reports != nil {
		err := c.reports.Record(ctx, reporting.Attempt{
			AgentID:     agentID,
			ContactID:   subjectID,
			CallID:      p.callID,
			PhoneNumber: p.phone,
			Status:      status,
			StartedAt:   p.startedAt,
		})
		if err != nil {
			c.log.Warn("attempt record failed", "contact_id", subjectID, "error", err)
		}
	}

	c.log.Info("auto dial settled", "contact_id", subjectID, "status", status)

	if enabled {
		callID, ok, err := c.dialNext(ctx, agentID)
		switch {
		case err != nil:
			c.log.Warn("auto advance failed", "agent_id", agentID, "error", err)
		case ok:
			if _, err := c.queue.SetAgentCall(ctx, agentID, &callID); err != nil {
				c.log.Warn("agent state update failed", "agent_id", agentID, "error", err)
			}
		}
	}
}

// Hangup ends a tracked auto-dialed call on user request and settles it as
// completed without waiting for the monitor.
func (c *Controller) Hangup(ctx context.Context, subjectID string) bool {
	if !c.placer.Hangup(ctx, subjectID) {
		return false
	}
	c.settle(subjectID, call.StatusCompleted)
	return true
}

func (c *Controller) releaseSlot(agentID string) {
	if err := c.limiter.Release(context.Background(), agentID); err != nil {
		c.log.Warn("cap release failed", "agent_id", agentID, "error", err)
	}
}

func dispositionFor(status call.Status) contacts.Disposition {
	switch status {
	case call.StatusCompleted:
		return contacts.DispositionContacted
	case call.StatusBusy, call.StatusNoAnswer:
		return contacts.DispositionNoAnswer
	default:
		return contacts.DispositionNotContacted
	}
}
