package marketplace

import (
	"testing"
	"time"
)

// submittedTask drives a fresh engine through create/claim/submit with the
// canonical scenario: bounty 1000, stake 50, deadline now+1000s.
func submittedTask(t *testing.T) (*Engine, *MockLedger, *testClock, Task) {
	t.Helper()
	engine, ledger, clock := newTestEngine()
	task := mustCreate(t, engine, clock, "alice", 1000)
	if _, err := engine.ClaimTask("bob", task.TaskID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := engine.SubmitWork("bob", task.TaskID, "ipfs://work", "done"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return engine, ledger, clock, task
}

func TestApproveFullSettlement(t *testing.T) {
	engine, ledger, _, task := submittedTask(t)

	approved, err := engine.Approve("alice", task.TaskID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != TaskStatusCompleted {
		t.Errorf("Expected status 'completed' but got '%s'", approved.Status)
	}

	// Worker receives bounty 1000 plus full stake 50 back.
	if got := ledger.BalanceOf("bob"); got != 10_000-50+1000+50 {
		t.Errorf("Expected worker balance 11000 but got %d", got)
	}
	entry := engine.StakeOf("bob")
	if entry.HasActive || entry.StakeSats != 0 {
		t.Errorf("Expected cleared stake entry but got %+v", entry)
	}
	if engine.TreasuryBalance() != 0 {
		t.Errorf("Expected treasury 0 but got %d", engine.TreasuryBalance())
	}
	if ledger.Escrowed() != 0 {
		t.Errorf("Expected nothing left in escrow but got %d", ledger.Escrowed())
	}
}

func TestRejectPenaltySettlement(t *testing.T) {
	engine, ledger, _, task := submittedTask(t)

	rejected, err := engine.Reject("alice", task.TaskID)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != TaskStatusOpen {
		t.Errorf("Expected status back to 'open' but got '%s'", rejected.Status)
	}
	if rejected.Worker != ZeroPrincipal {
		t.Errorf("Expected worker cleared but got '%s'", rejected.Worker)
	}

	// Worker gets 80% of the 50 stake back; treasury takes exactly 10.
	if got := ledger.BalanceOf("bob"); got != 10_000-50+40 {
		t.Errorf("Expected worker balance 9990 but got %d", got)
	}
	if engine.TreasuryBalance() != 10 {
		t.Errorf("Expected treasury 10 but got %d", engine.TreasuryBalance())
	}
	entry := engine.StakeOf("bob")
	if entry.HasActive || entry.StakeSats != 0 {
		t.Errorf("Expected cleared stake entry but got %+v", entry)
	}

	// The task re-enters the claimable pool with the old submission gone.
	if _, err := engine.GetSubmission(task.TaskID); err == nil {
		t.Error("Expected submission cleared after rejection")
	}
	if _, err := engine.ClaimTask("carol", task.TaskID); err != nil {
		t.Errorf("Expected task reclaimable after rejection but got %v", err)
	}
}

func TestPenaltyExactness(t *testing.T) {
	// penalty + refund must equal the original stake exactly for odd
	// stakes too: floor(51*20/100) = 10, refund 41.
	ledger := NewMockLedger()
	ledger.Seed("alice", 100_000)
	ledger.Seed("bob", 100_000)
	engine := NewEngine(ledger, DefaultConfig())
	clock := newTestClock()
	engine.SetClock(clock.Now)

	task, err := engine.CreateTask("alice", "ipfs://task-brief", 1020, clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.RequiredStake != 51 {
		t.Fatalf("Expected stake 51 but got %d", task.RequiredStake)
	}
	if _, err := engine.ClaimTask("bob", task.TaskID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := engine.SubmitWork("bob", task.TaskID, "ipfs://work", ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	workerBefore := ledger.BalanceOf("bob")
	if _, err := engine.Reject("alice", task.TaskID); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	refund := ledger.BalanceOf("bob") - workerBefore
	penalty := engine.TreasuryBalance()
	if penalty != 10 {
		t.Errorf("Expected penalty 10 but got %d", penalty)
	}
	if refund != 41 {
		t.Errorf("Expected refund 41 but got %d", refund)
	}
	if penalty+refund != 51 {
		t.Errorf("Expected penalty+refund == 51 but got %d", penalty+refund)
	}
}

func TestSettlementAbortsOnTransferFailure(t *testing.T) {
	engine, ledger, _, task := submittedTask(t)

	ledger.FailTransferOut = true
	if _, err := engine.Approve("alice", task.TaskID); err == nil {
		t.Fatal("Expected Approve to fail when payout fails")
	}

	// Nothing mutated: task still submitted, stake still held.
	got, _ := engine.GetTask(task.TaskID)
	if got.Status != TaskStatusSubmitted {
		t.Errorf("Expected status still 'submitted' but got '%s'", got.Status)
	}
	entry := engine.StakeOf("bob")
	if !entry.HasActive || entry.StakeSats != 50 {
		t.Errorf("Expected stake entry intact but got %+v", entry)
	}

	// Retry succeeds once the ledger recovers.
	ledger.FailTransferOut = false
	if _, err := engine.Approve("alice", task.TaskID); err != nil {
		t.Errorf("Expected retry to succeed but got %v", err)
	}
}

func TestActiveFlagInvariant(t *testing.T) {
	// The active-task flag must be set exactly while the worker holds a
	// task in a non-terminal worker-assigned status.
	engine, _, clock := newTestEngine()
	task := mustCreate(t, engine, clock, "alice", 1000)

	if _, active := engine.ActiveTaskOf("bob"); active {
		t.Error("Expected no active task before claim")
	}
	if _, err := engine.ClaimTask("bob", task.TaskID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if id, active := engine.ActiveTaskOf("bob"); !active || id != task.TaskID {
		t.Errorf("Expected active task %d after claim but got (%d, %t)", task.TaskID, id, active)
	}
	if _, err := engine.SubmitWork("bob", task.TaskID, "ipfs://work", ""); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, active := engine.ActiveTaskOf("bob"); !active {
		t.Error("Expected active flag through submitted status")
	}
	if _, err := engine.Approve("alice", task.TaskID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, active := engine.ActiveTaskOf("bob"); active {
		t.Error("Expected active flag cleared after settlement")
	}
}
