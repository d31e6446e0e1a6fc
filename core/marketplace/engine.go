package marketplace

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Config carries the administrator-settable parameters the engine reads at
// transition time.
type Config struct {
	StakePercent   int64     // percentage of bounty required as stake
	StakeCapSats   int64     // hard cap on the required stake
	ForfeitPercent int64     // percentage of stake forfeited on rejection
	MinVerifiers   int       // quorum threshold for the verification path
	MaxVerifiers   int       // cap on votes per task
	MaxSummaryLen  int       // bound on submission summary length
	Authority      Principal // the external arbitration authority
}

// DefaultConfig returns the stock marketplace parameters.
func DefaultConfig() Config {
	return Config{
		StakePercent:   5,
		StakeCapSats:   100_000,
		ForfeitPercent: 20,
		MinVerifiers:   3,
		MaxVerifiers:   7,
		MaxSummaryLen:  2000,
		Authority:      "arbiter",
	}
}

// Engine is the authoritative task registry and state machine. Every
// mutating operation is a single atomic unit: guards run first, external
// ledger transfers second, and in-memory mutation last, so a failed
// operation leaves no partial state. Operations never block; a call that
// arrives while another is in flight, including a re-entrant call from a
// ledger callback, fails fast with ErrBusy.
type Engine struct {
	mu     sync.Mutex
	ledger Ledger
	cfg    Config
	now    func() time.Time

	paused     bool
	nextTaskID uint64

	tasks         map[uint64]*Task
	submissions   map[uint64]*Submission
	verifications map[uint64]*VerificationRecord
	disputes      map[string]*Dispute
	taskDispute   map[uint64]string // open dispute per task

	stakes   *StakeBook
	treasury int64

	hub eventHub
}

// NewEngine creates an engine backed by the given ledger.
func NewEngine(ledger Ledger, cfg Config) *Engine {
	if cfg.StakePercent <= 0 {
		cfg.StakePercent = 5
	}
	if cfg.ForfeitPercent < 0 || cfg.ForfeitPercent > 100 {
		cfg.ForfeitPercent = 20
	}
	if cfg.MinVerifiers <= 0 {
		cfg.MinVerifiers = 3
	}
	if cfg.MaxVerifiers < cfg.MinVerifiers {
		cfg.MaxVerifiers = cfg.MinVerifiers
	}
	if cfg.MaxSummaryLen <= 0 {
		cfg.MaxSummaryLen = 2000
	}
	return &Engine{
		ledger:        ledger,
		cfg:           cfg,
		now:           time.Now,
		nextTaskID:    1,
		tasks:         make(map[uint64]*Task),
		submissions:   make(map[uint64]*Submission),
		verifications: make(map[uint64]*VerificationRecord),
		disputes:      make(map[string]*Dispute),
		taskDispute:   make(map[uint64]string),
		stakes:        NewStakeBook(),
	}
}

// SetClock overrides the engine's time source. Deadlines are evaluated
// against this clock at call time; there are no timer-driven transitions.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now != nil {
		e.now = now
	}
}

// RegisterEventSink adds a callback to receive marketplace events.
func (e *Engine) RegisterEventSink(sink EventSink) {
	e.hub.register(sink)
}

// begin acquires the operation slot and checks the global pause gate.
// Pause is a hard gate checked before any other guard.
func (e *Engine) begin() error {
	if !e.mu.TryLock() {
		return ErrBusy
	}
	if e.paused {
		e.mu.Unlock()
		return ErrPaused
	}
	return nil
}

// requiredStake computes the stake a worker must post, a capped
// percentage of the bounty.
func (e *Engine) requiredStake(bountySats int64) int64 {
	stake := bountySats * e.cfg.StakePercent / 100
	if e.cfg.StakeCapSats > 0 && stake > e.cfg.StakeCapSats {
		stake = e.cfg.StakeCapSats
	}
	return stake
}

// CreateTask escrows the full bounty from the creator and registers a new
// open task. Task IDs are assigned monotonically.
func (e *Engine) CreateTask(creator Principal, contentRef string, bountySats int64, deadline time.Time) (Task, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Task{}, err
	}
	defer e.mu.Unlock()

	if creator == ZeroPrincipal || strings.TrimSpace(contentRef) == "" {
		return Task{}, fmt.Errorf("creator and content reference required: %w", ErrInvalidParameters)
	}
	if bountySats <= 0 {
		return Task{}, fmt.Errorf("bounty must be positive: %w", ErrInvalidParameters)
	}
	now := e.now()
	if !deadline.After(now) {
		return Task{}, fmt.Errorf("deadline must be in the future: %w", ErrInvalidParameters)
	}

	if err := e.ledger.TransferIn(creator, bountySats); err != nil {
		return Task{}, fmt.Errorf("escrow bounty: %w", err)
	}

	task := &Task{
		TaskID:        e.nextTaskID,
		Creator:       creator,
		BountySats:    bountySats,
		RequiredStake: e.requiredStake(bountySats),
		ContentRef:    contentRef,
		Status:        TaskStatusOpen,
		Deadline:      deadline,
		CreatedAt:     now,
	}
	e.nextTaskID++
	e.tasks[task.TaskID] = task

	log.Printf("task %d created by %s (bounty=%d stake=%d)", task.TaskID, creator, bountySats, task.RequiredStake)
	events = append(events, newEvent(EventTaskCreated, task.TaskID, creator, bountySats,
		fmt.Sprintf("task created with bounty %d", bountySats), now))
	return *task, nil
}

// ClaimTask escrows the required stake from the worker and assigns the
// task. A worker may hold at most one active task at a time; a claim while
// another is active fails with HasActiveTaskError and mutates nothing.
func (e *Engine) ClaimTask(worker Principal, taskID uint64) (Task, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Task{}, err
	}
	defer e.mu.Unlock()

	if worker == ZeroPrincipal {
		return Task{}, fmt.Errorf("worker required: %w", ErrInvalidParameters)
	}
	task, ok := e.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if task.Status != TaskStatusOpen {
		return Task{}, fmt.Errorf("task %d is %s: %w", taskID, task.Status, ErrInvalidState)
	}
	if worker == task.Creator {
		return Task{}, fmt.Errorf("creator may not claim own task: %w", ErrUnauthorized)
	}
	now := e.now()
	if !now.Before(task.Deadline) {
		return Task{}, fmt.Errorf("task %d: %w", taskID, ErrDeadlineExceeded)
	}
	if blocking, active := e.stakes.ActiveTask(worker); active {
		return Task{}, &HasActiveTaskError{TaskID: blocking}
	}
	if e.ledger.BalanceOf(worker) < task.RequiredStake {
		return Task{}, fmt.Errorf("stake %d: %w: %w", task.RequiredStake, ErrInsufficientStake, ErrInsufficientBalance)
	}
	if e.ledger.AllowanceOf(worker) < task.RequiredStake {
		return Task{}, fmt.Errorf("stake %d: %w: %w", task.RequiredStake, ErrInsufficientStake, ErrInsufficientAllowance)
	}

	// Very small bounties can round the required stake down to zero.
	if task.RequiredStake > 0 {
		if err := e.ledger.TransferIn(worker, task.RequiredStake); err != nil {
			return Task{}, fmt.Errorf("escrow stake: %w", err)
		}
	}

	task.Worker = worker
	task.Status = TaskStatusClaimed
	e.stakes.Deposit(worker, taskID, task.RequiredStake)

	log.Printf("task %d claimed by %s (stake=%d)", taskID, worker, task.RequiredStake)
	events = append(events,
		newEvent(EventStakeDeposited, taskID, worker, task.RequiredStake,
			fmt.Sprintf("stake %d escrowed", task.RequiredStake), now),
		newEvent(EventTaskClaimed, taskID, worker, task.RequiredStake,
			"task claimed", now))
	return *task, nil
}

// SubmitWork records the single submission for a claimed task. A second
// submission is rejected, never overwritten.
func (e *Engine) SubmitWork(worker Principal, taskID uint64, deliverableRef, summary string) (Submission, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Submission{}, err
	}
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return Submission{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if task.Status != TaskStatusClaimed {
		return Submission{}, fmt.Errorf("task %d is %s: %w", taskID, task.Status, ErrInvalidState)
	}
	if worker != task.Worker {
		return Submission{}, fmt.Errorf("caller is not the assigned worker: %w", ErrUnauthorized)
	}
	now := e.now()
	if !now.Before(task.Deadline) {
		return Submission{}, fmt.Errorf("task %d: %w", taskID, ErrDeadlineExceeded)
	}
	if strings.TrimSpace(deliverableRef) == "" {
		return Submission{}, fmt.Errorf("deliverable reference required: %w", ErrInvalidParameters)
	}
	if len(summary) > e.cfg.MaxSummaryLen {
		return Submission{}, fmt.Errorf("summary exceeds %d bytes: %w", e.cfg.MaxSummaryLen, ErrInvalidParameters)
	}
	if _, exists := e.submissions[taskID]; exists {
		return Submission{}, fmt.Errorf("task %d already has a submission: %w", taskID, ErrAlreadyExists)
	}

	sub := &Submission{
		TaskID:         taskID,
		Worker:         worker,
		DeliverableRef: deliverableRef,
		Summary:        summary,
		SubmittedAt:    now,
	}
	e.submissions[taskID] = sub
	task.Status = TaskStatusSubmitted

	log.Printf("task %d work submitted by %s", taskID, worker)
	events = append(events, newEvent(EventWorkSubmitted, taskID, worker, 0, "work submitted", now))
	return *sub, nil
}

// Approve is the creator's direct acceptance of submitted work. It runs
// full settlement and completes the task.
func (e *Engine) Approve(creator Principal, taskID uint64) (Task, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Task{}, err
	}
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if task.Status != TaskStatusSubmitted {
		return Task{}, fmt.Errorf("task %d is %s: %w", taskID, task.Status, ErrInvalidState)
	}
	if creator != task.Creator {
		return Task{}, fmt.Errorf("caller is not the task creator: %w", ErrUnauthorized)
	}

	now := e.now()
	events = append(events, newEvent(EventTaskApproved, taskID, creator, task.BountySats, "work approved by creator", now))
	if err := e.settleFull(task, &events); err != nil {
		events = events[:0]
		return Task{}, err
	}
	return *task, nil
}

// Reject is the creator's direct refusal of submitted work. The worker
// forfeits part of the stake and the task returns to the claimable pool.
func (e *Engine) Reject(creator Principal, taskID uint64) (Task, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Task{}, err
	}
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if task.Status != TaskStatusSubmitted {
		return Task{}, fmt.Errorf("task %d is %s: %w", taskID, task.Status, ErrInvalidState)
	}
	if creator != task.Creator {
		return Task{}, fmt.Errorf("caller is not the task creator: %w", ErrUnauthorized)
	}

	now := e.now()
	events = append(events, newEvent(EventTaskRejected, taskID, creator, 0, "work rejected by creator", now))
	if err := e.settlePenalty(task, false, &events); err != nil {
		events = events[:0]
		return Task{}, err
	}
	return *task, nil
}

// CancelTask withdraws an unclaimed task and refunds the bounty. A task
// with an assigned worker cannot be cancelled; refusing cancellation after
// claim is what makes orphaned stake impossible.
func (e *Engine) CancelTask(creator Principal, taskID uint64) (Task, error) {
	var events []Event
	defer func() { e.hub.publish(events) }()

	if err := e.begin(); err != nil {
		return Task{}, err
	}
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if creator != task.Creator {
		return Task{}, fmt.Errorf("caller is not the task creator: %w", ErrUnauthorized)
	}
	if task.Status != TaskStatusOpen {
		return Task{}, fmt.Errorf("task %d is %s: %w", taskID, task.Status, ErrInvalidState)
	}

	if err := e.ledger.TransferOut(task.Creator, task.BountySats); err != nil {
		return Task{}, fmt.Errorf("refund bounty: %w", err)
	}

	now := e.now()
	task.Status = TaskStatusCancelled
	log.Printf("task %d cancelled by %s (bounty %d refunded)", taskID, creator, task.BountySats)
	events = append(events, newEvent(EventTaskCancelled, taskID, creator, task.BountySats,
		"task cancelled, bounty refunded", now))
	return *task, nil
}

// Pause blocks all mutating operations until Unpause.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	log.Printf("marketplace paused")
}

// Unpause re-enables mutating operations.
func (e *Engine) Unpause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	log.Printf("marketplace unpaused")
}

// Paused reports the global pause gate.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// SetQuorum updates the verification thresholds read at transition time.
func (e *Engine) SetQuorum(minVerifiers, maxVerifiers int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if minVerifiers <= 0 || maxVerifiers < minVerifiers {
		return fmt.Errorf("quorum %d/%d: %w", minVerifiers, maxVerifiers, ErrInvalidParameters)
	}
	e.cfg.MinVerifiers = minVerifiers
	e.cfg.MaxVerifiers = maxVerifiers
	return nil
}

// SetForfeitPercent updates the stake forfeiture percentage.
func (e *Engine) SetForfeitPercent(pct int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pct < 0 || pct > 100 {
		return fmt.Errorf("forfeit percent %d: %w", pct, ErrInvalidParameters)
	}
	e.cfg.ForfeitPercent = pct
	return nil
}

// GetTask returns a copy of the task record.
func (e *Engine) GetTask(taskID uint64) (Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	return *task, nil
}

// GetSubmission returns the submission recorded for a task.
func (e *Engine) GetSubmission(taskID uint64) (Submission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, ok := e.submissions[taskID]
	if !ok {
		return Submission{}, fmt.Errorf("submission for task %d: %w", taskID, ErrNotFound)
	}
	return *sub, nil
}

// ListTasks returns tasks matching the filter, ordered by ID.
func (e *Engine) ListTasks(filter TaskFilter) ([]Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Task, 0, len(e.tasks))
	for _, task := range e.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Creator != ZeroPrincipal && task.Creator != filter.Creator {
			continue
		}
		if filter.Worker != ZeroPrincipal && task.Worker != filter.Worker {
			continue
		}
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Task{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// StakeOf returns a copy of the worker's stake entry.
func (e *Engine) StakeOf(worker Principal) StakeEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stakes.EntryOf(worker)
}

// ActiveTaskOf reports the task currently blocking the worker, if any.
func (e *Engine) ActiveTaskOf(worker Principal) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stakes.ActiveTask(worker)
}

// TreasuryBalance returns the accumulated forfeited stake.
func (e *Engine) TreasuryBalance() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.treasury
}
