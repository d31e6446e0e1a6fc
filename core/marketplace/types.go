package marketplace

import "time"

// Principal identifies a pre-authenticated caller (creator, worker,
// verifier, or the arbitration authority).
type Principal string

// ZeroPrincipal is the unset principal value.
const ZeroPrincipal Principal = ""

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusClaimed   TaskStatus = "claimed"
	TaskStatusSubmitted TaskStatus = "submitted"
	TaskStatusDisputed  TaskStatus = "disputed"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// Task describes a funded unit of work a worker can claim.
type Task struct {
	TaskID        uint64     `json:"task_id"`
	Creator       Principal  `json:"creator"`
	Worker        Principal  `json:"worker,omitempty"`
	BountySats    int64      `json:"bounty_sats"`
	RequiredStake int64      `json:"required_stake_sats"`
	ContentRef    string     `json:"content_ref"`
	Status        TaskStatus `json:"status"`
	Deadline      time.Time  `json:"deadline"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Submission contains the single work submission reference for a task.
type Submission struct {
	TaskID         uint64    `json:"task_id"`
	Worker         Principal `json:"worker"`
	DeliverableRef string    `json:"deliverable_ref"`
	Summary        string    `json:"summary"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// VerifierVote is one verifier's vote on a submitted task.
type VerifierVote struct {
	Verifier Principal `json:"verifier"`
	Approve  bool      `json:"approve"`
	Feedback string    `json:"feedback,omitempty"`
	VotedAt  time.Time `json:"voted_at"`
}

// VerificationRecord accumulates per-task verifier votes until quorum.
type VerificationRecord struct {
	TaskID     uint64                     `json:"task_id"`
	Votes      map[Principal]VerifierVote `json:"votes"`
	Approvals  int                        `json:"approvals"`
	Rejections int                        `json:"rejections"`
	Finalized  bool                       `json:"finalized"`
}

// Dispute represents an escalation of a submitted task to the external
// arbitration authority.
type Dispute struct {
	DisputeID     string     `json:"dispute_id"`
	TaskID        uint64     `json:"task_id"`
	Initiator     Principal  `json:"initiator"`
	EvidenceRef   string     `json:"evidence_ref"`
	ForWeight     int64      `json:"for_weight"`
	AgainstWeight int64      `json:"against_weight"`
	VotingEndsAt  time.Time  `json:"voting_ends_at"`
	CreatedAt     time.Time  `json:"created_at"`
	Resolved      bool       `json:"resolved"`
	WorkerWon     bool       `json:"worker_won"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// StakeEntry tracks one principal's escrowed stake and active task.
type StakeEntry struct {
	StakeSats    int64  `json:"stake_sats"`
	HasActive    bool   `json:"has_active_task"`
	ActiveTaskID uint64 `json:"active_task_id,omitempty"`
}

// TaskFilter captures simple query params for listing tasks.
type TaskFilter struct {
	Status  TaskStatus
	Creator Principal
	Worker  Principal
	Limit   int
	Offset  int
}

// EventType enumerates observable marketplace transitions.
type EventType string

const (
	EventTaskCreated     EventType = "task_created"
	EventTaskClaimed     EventType = "task_claimed"
	EventWorkSubmitted   EventType = "work_submitted"
	EventWorkVerified    EventType = "work_verified"
	EventTaskApproved    EventType = "task_approved"
	EventTaskRejected    EventType = "task_rejected"
	EventTaskCompleted   EventType = "task_completed"
	EventTaskCancelled   EventType = "task_cancelled"
	EventDisputeOpened   EventType = "dispute_opened"
	EventDisputeVote     EventType = "dispute_vote"
	EventDisputeResolved EventType = "dispute_resolved"
	EventStakeDeposited  EventType = "stake_deposited"
	EventStakeReleased   EventType = "stake_released"
	EventStakeForfeited  EventType = "stake_forfeited"
)

// Event is a lightweight audit entry emitted once per state transition.
// The sequence of events for a task is sufficient to reconstruct its
// history without querying live state.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	TaskID     uint64    `json:"task_id"`
	DisputeID  string    `json:"dispute_id,omitempty"`
	Actor      Principal `json:"actor"`
	AmountSats int64     `json:"amount_sats,omitempty"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
