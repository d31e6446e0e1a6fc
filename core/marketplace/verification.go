package marketplace

import (
	"fmt"
	"log"
)

// VerifyWork casts a verifier vote on a submitted task. Neither the
// creator nor the assigned worker may vote, and each principal votes at
// most once. The first side to reach the quorum threshold finalizes the
// task: approvals trigger full settlement, rejections the penalty path.
// Votes arriving after the outcome fail because the task has left the
// submitted status.
func (e *Engine) VerifyWork(verifier Principal, taskID uint64, approve bool, feedback string) (VerificationRecord, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return VerificationRecord{}, err
	}
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return VerificationRecord{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if task.Status != TaskStatusSubmitted {
		return VerificationRecord{}, fmt.Errorf("task %d is %s: %w", taskID, task.Status, ErrInvalidState)
	}
	if verifier == ZeroPrincipal {
		return VerificationRecord{}, fmt.Errorf("verifier required: %w", ErrInvalidParameters)
	}
	if verifier == task.Creator || verifier == task.Worker {
		return VerificationRecord{}, fmt.Errorf("creator and worker may not verify: %w", ErrUnauthorized)
	}

	rec, ok := e.verifications[taskID]
	if !ok {
		rec = &VerificationRecord{
			TaskID: taskID,
			Votes:  make(map[Principal]VerifierVote),
		}
		e.verifications[taskID] = rec
	}
	if _, voted := rec.Votes[verifier]; voted {
		return VerificationRecord{}, fmt.Errorf("verifier %s already voted: %w", verifier, ErrAlreadyExists)
	}
	if len(rec.Votes) >= e.cfg.MaxVerifiers {
		return VerificationRecord{}, fmt.Errorf("verifier cap %d reached: %w", e.cfg.MaxVerifiers, ErrInvalidState)
	}

	now := e.now()
	rec.Votes[verifier] = VerifierVote{
		Verifier: verifier,
		Approve:  approve,
		Feedback: feedback,
		VotedAt:  now,
	}
	if approve {
		rec.Approvals++
	} else {
		rec.Rejections++
	}
	events = append(events, newEvent(EventWorkVerified, taskID, verifier, 0,
		fmt.Sprintf("verifier vote recorded (approve=%t)", approve), now))

	undoVote := func() {
		delete(rec.Votes, verifier)
		if approve {
			rec.Approvals--
		} else {
			rec.Rejections--
		}
		events = events[:0]
	}

	// First side to reach quorum wins.
	switch {
	case rec.Approvals >= e.cfg.MinVerifiers:
		events = append(events, newEvent(EventTaskApproved, taskID, verifier, task.BountySats,
			fmt.Sprintf("approved by verifier quorum (%d votes)", rec.Approvals), now))
		if err := e.settleFull(task, &events); err != nil {
			undoVote()
			return VerificationRecord{}, err
		}
		rec.Finalized = true
		log.Printf("task %d approved by verifier quorum", taskID)

	case rec.Rejections >= e.cfg.MinVerifiers:
		events = append(events, newEvent(EventTaskRejected, taskID, verifier, 0,
			fmt.Sprintf("rejected by verifier quorum (%d votes)", rec.Rejections), now))
		rec.Finalized = true
		if err := e.settlePenalty(task, false, &events); err != nil {
			rec.Finalized = false
			undoVote()
			return VerificationRecord{}, err
		}
		log.Printf("task %d rejected by verifier quorum", taskID)
	}

	return cloneVerification(rec), nil
}

// GetVerification returns a copy of the verification record for a task.
func (e *Engine) GetVerification(taskID uint64) (VerificationRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.verifications[taskID]
	if !ok {
		return VerificationRecord{}, fmt.Errorf("verification for task %d: %w", taskID, ErrNotFound)
	}
	return cloneVerification(rec), nil
}

func cloneVerification(rec *VerificationRecord) VerificationRecord {
	out := *rec
	out.Votes = make(map[Principal]VerifierVote, len(rec.Votes))
	for p, v := range rec.Votes {
		out.Votes[p] = v
	}
	return out
}
