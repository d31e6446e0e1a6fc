package marketplace

import (
	"fmt"
	"log"
)

// Settlement executes the terminal money movement for a task. Both paths
// run their ledger transfers before touching any state, so a failed
// transfer aborts the enclosing operation with nothing mutated. Clearing
// the worker's stake entry happens in the same critical section as the
// status change.

// settleFull pays the full bounty plus the entire stake to the worker and
// completes the task. Used on direct approval, verification quorum
// approval, and a worker-won dispute.
func (e *Engine) settleFull(task *Task, events *[]Event) error {
	worker := task.Worker
	stake := e.stakes.EntryOf(worker).StakeSats
	now := e.now()

	if err := e.ledger.TransferOut(worker, task.BountySats); err != nil {
		return fmt.Errorf("pay bounty: %w", err)
	}
	if err := e.ledger.TransferOut(worker, stake); err != nil {
		return fmt.Errorf("return stake: %w", err)
	}

	e.stakes.Clear(worker)
	task.Status = TaskStatusCompleted

	log.Printf("task %d settled in full: bounty %d and stake %d paid to %s", task.TaskID, task.BountySats, stake, worker)
	*events = append(*events,
		newEvent(EventStakeReleased, task.TaskID, worker, stake, "full stake returned", now),
		newEvent(EventTaskCompleted, task.TaskID, worker, task.BountySats, "bounty paid to worker", now))
	return nil
}

// settlePenalty forfeits a percentage of the worker's stake to the
// treasury and refunds the remainder. penalty + refund always equals the
// original stake exactly. On direct rejection the task returns to the
// claimable pool; on a creator-won dispute the bounty goes back to the
// creator and the task completes.
func (e *Engine) settlePenalty(task *Task, viaDispute bool, events *[]Event) error {
	worker := task.Worker
	stake := e.stakes.EntryOf(worker).StakeSats
	penalty := stake * e.cfg.ForfeitPercent / 100
	refund := stake - penalty
	now := e.now()

	if viaDispute {
		// Bounty disposition on a lost dispute is its own transfer.
		if err := e.ledger.TransferOut(task.Creator, task.BountySats); err != nil {
			return fmt.Errorf("return bounty: %w", err)
		}
	}
	if refund > 0 {
		if err := e.ledger.TransferOut(worker, refund); err != nil {
			return fmt.Errorf("refund stake: %w", err)
		}
	}

	// The former worker's entry is the one cleared, never an empty
	// principal.
	e.stakes.Clear(worker)
	e.treasury += penalty

	*events = append(*events,
		newEvent(EventStakeForfeited, task.TaskID, worker, penalty, "stake penalty forfeited to treasury", now),
		newEvent(EventStakeReleased, task.TaskID, worker, refund, "remaining stake refunded", now))

	if viaDispute {
		task.Status = TaskStatusCompleted
		*events = append(*events, newEvent(EventTaskCompleted, task.TaskID, task.Creator, task.BountySats,
			"bounty returned to creator", now))
	} else {
		task.Status = TaskStatusOpen
		task.Worker = ZeroPrincipal
		delete(e.submissions, task.TaskID)
		delete(e.verifications, task.TaskID)
	}

	log.Printf("task %d penalty settlement: %d forfeited, %d refunded to %s", task.TaskID, penalty, refund, worker)
	return nil
}
