package marketplace

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpenDispute escalates a submitted task to the arbitration authority.
// Either direct party may open one; only a single open dispute per task
// is permitted.
func (e *Engine) OpenDispute(initiator Principal, taskID uint64, evidenceRef string, votingPeriod time.Duration) (Dispute, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Dispute{}, err
	}
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return Dispute{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if task.Status != TaskStatusSubmitted {
		return Dispute{}, fmt.Errorf("task %d is %s: %w", taskID, task.Status, ErrInvalidState)
	}
	if initiator != task.Creator && initiator != task.Worker {
		return Dispute{}, fmt.Errorf("only creator or worker may dispute: %w", ErrUnauthorized)
	}
	if strings.TrimSpace(evidenceRef) == "" {
		return Dispute{}, fmt.Errorf("evidence reference required: %w", ErrInvalidParameters)
	}
	if votingPeriod <= 0 {
		return Dispute{}, fmt.Errorf("voting period must be positive: %w", ErrInvalidParameters)
	}
	if open, exists := e.taskDispute[taskID]; exists {
		return Dispute{}, fmt.Errorf("dispute %s already open for task %d: %w", open, taskID, ErrAlreadyExists)
	}

	now := e.now()
	dispute := &Dispute{
		DisputeID:    uuid.NewString(),
		TaskID:       taskID,
		Initiator:    initiator,
		EvidenceRef:  evidenceRef,
		VotingEndsAt: now.Add(votingPeriod),
		CreatedAt:    now,
	}
	e.disputes[dispute.DisputeID] = dispute
	e.taskDispute[taskID] = dispute.DisputeID
	task.Status = TaskStatusDisputed

	log.Printf("dispute %s opened for task %d by %s", dispute.DisputeID, taskID, initiator)
	evt := newEvent(EventDisputeOpened, taskID, initiator, 0, "dispute opened", now)
	evt.DisputeID = dispute.DisputeID
	events = append(events, evt)
	return *dispute, nil
}

// CastDisputeVote records a weighted for/against vote from the configured
// arbitration authority. Votes accumulate until the voting deadline.
func (e *Engine) CastDisputeVote(authority Principal, disputeID string, supportWorker bool, weight int64) (Dispute, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Dispute{}, err
	}
	defer e.mu.Unlock()

	dispute, ok := e.disputes[disputeID]
	if !ok {
		return Dispute{}, fmt.Errorf("dispute %s: %w", disputeID, ErrNotFound)
	}
	if authority != e.cfg.Authority {
		return Dispute{}, fmt.Errorf("caller is not the arbitration authority: %w", ErrUnauthorized)
	}
	if dispute.Resolved {
		return Dispute{}, fmt.Errorf("dispute %s already resolved: %w", disputeID, ErrInvalidState)
	}
	now := e.now()
	if !now.Before(dispute.VotingEndsAt) {
		return Dispute{}, fmt.Errorf("dispute %s voting closed: %w", disputeID, ErrDeadlineExceeded)
	}
	if weight <= 0 {
		return Dispute{}, fmt.Errorf("vote weight must be positive: %w", ErrInvalidParameters)
	}

	if supportWorker {
		dispute.ForWeight += weight
	} else {
		dispute.AgainstWeight += weight
	}

	evt := newEvent(EventDisputeVote, dispute.TaskID, authority, weight,
		fmt.Sprintf("arbitration vote recorded (worker=%t weight=%d)", supportWorker, weight), now)
	evt.DisputeID = disputeID
	events = append(events, evt)
	return *dispute, nil
}

// ResolveDispute finalizes a dispute once its voting deadline has passed.
// The worker wins only with strictly greater for-weight; a tie favors the
// creator. Resolution is one-shot and triggers the matching settlement:
// full payout for a worker win, penalty plus bounty return for a creator
// win.
func (e *Engine) ResolveDispute(caller Principal, disputeID string) (Dispute, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Dispute{}, err
	}
	defer e.mu.Unlock()

	dispute, ok := e.disputes[disputeID]
	if !ok {
		return Dispute{}, fmt.Errorf("dispute %s: %w", disputeID, ErrNotFound)
	}
	if caller == ZeroPrincipal {
		return Dispute{}, fmt.Errorf("caller required: %w", ErrInvalidParameters)
	}
	if dispute.Resolved {
		return Dispute{}, fmt.Errorf("dispute %s already resolved: %w", disputeID, ErrInvalidState)
	}
	now := e.now()
	if now.Before(dispute.VotingEndsAt) {
		return Dispute{}, fmt.Errorf("dispute %s voting still open: %w", disputeID, ErrInvalidState)
	}
	task, ok := e.tasks[dispute.TaskID]
	if !ok {
		return Dispute{}, fmt.Errorf("task %d: %w", dispute.TaskID, ErrNotFound)
	}

	workerWon := dispute.ForWeight > dispute.AgainstWeight

	evt := newEvent(EventDisputeResolved, dispute.TaskID, caller, 0,
		fmt.Sprintf("dispute resolved (worker_won=%t for=%d against=%d)",
			workerWon, dispute.ForWeight, dispute.AgainstWeight), now)
	evt.DisputeID = disputeID
	events = append(events, evt)

	if workerWon {
		if err := e.settleFull(task, &events); err != nil {
			events = events[:0]
			return Dispute{}, err
		}
	} else {
		if err := e.settlePenalty(task, true, &events); err != nil {
			events = events[:0]
			return Dispute{}, err
		}
	}

	dispute.Resolved = true
	dispute.WorkerWon = workerWon
	dispute.ResolvedAt = &now
	delete(e.taskDispute, dispute.TaskID)

	log.Printf("dispute %s resolved: worker_won=%t", disputeID, workerWon)
	return *dispute, nil
}

// GetDispute returns a copy of the dispute record.
func (e *Engine) GetDispute(disputeID string) (Dispute, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dispute, ok := e.disputes[disputeID]
	if !ok {
		return Dispute{}, fmt.Errorf("dispute %s: %w", disputeID, ErrNotFound)
	}
	return *dispute, nil
}

// OpenDisputeOf returns the open dispute for a task, if one exists.
func (e *Engine) OpenDisputeOf(taskID uint64) (Dispute, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.taskDispute[taskID]
	if !ok {
		return Dispute{}, false
	}
	dispute, ok := e.disputes[id]
	if !ok {
		return Dispute{}, false
	}
	return *dispute, true
}
