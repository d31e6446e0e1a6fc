package marketplace

import (
	"errors"
	"testing"
	"time"
)

func openDispute(t *testing.T, engine *Engine, initiator Principal, taskID uint64) Dispute {
	t.Helper()
	dispute, err := engine.OpenDispute(initiator, taskID, "ipfs://evidence", time.Hour)
	if err != nil {
		t.Fatalf("OpenDispute failed: %v", err)
	}
	return dispute
}

func TestOpenDispute(t *testing.T) {
	t.Run("Worker escalates submitted task", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)

		if dispute.DisputeID == "" {
			t.Error("Expected dispute ID to be set")
		}
		got, _ := engine.GetTask(task.TaskID)
		if got.Status != TaskStatusDisputed {
			t.Errorf("Expected status 'disputed' but got '%s'", got.Status)
		}
		open, ok := engine.OpenDisputeOf(task.TaskID)
		if !ok || open.DisputeID != dispute.DisputeID {
			t.Errorf("Expected open dispute %s but got %+v", dispute.DisputeID, open)
		}
	})

	t.Run("Second open dispute rejected", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		openDispute(t, engine, "bob", task.TaskID)
		_, err := engine.OpenDispute("alice", task.TaskID, "ipfs://more", time.Hour)
		// A second dispute is impossible while one is open: the task has
		// left the submitted status.
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Expected ErrInvalidState but got %v", err)
		}
	})

	t.Run("Third party cannot dispute", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		_, err := engine.OpenDispute("carol", task.TaskID, "ipfs://evidence", time.Hour)
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized but got %v", err)
		}
	})

	t.Run("Empty evidence", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		_, err := engine.OpenDispute("bob", task.TaskID, "", time.Hour)
		if !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("Expected ErrInvalidParameters but got %v", err)
		}
	})
}

func TestCastDisputeVote(t *testing.T) {
	t.Run("Authority accumulates weight", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)

		if _, err := engine.CastDisputeVote("arbiter", dispute.DisputeID, true, 3); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		updated, err := engine.CastDisputeVote("arbiter", dispute.DisputeID, false, 2)
		if err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		if updated.ForWeight != 3 || updated.AgainstWeight != 2 {
			t.Errorf("Expected weights 3/2 but got %d/%d", updated.ForWeight, updated.AgainstWeight)
		}
	})

	t.Run("Non-authority rejected", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)
		_, err := engine.CastDisputeVote("carol", dispute.DisputeID, true, 1)
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized but got %v", err)
		}
	})

	t.Run("Vote after deadline", func(t *testing.T) {
		engine, _, clock, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)
		clock.Advance(2 * time.Hour)
		_, err := engine.CastDisputeVote("arbiter", dispute.DisputeID, true, 1)
		if !errors.Is(err, ErrDeadlineExceeded) {
			t.Errorf("Expected ErrDeadlineExceeded but got %v", err)
		}
	})

	t.Run("Zero weight", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)
		_, err := engine.CastDisputeVote("arbiter", dispute.DisputeID, true, 0)
		if !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("Expected ErrInvalidParameters but got %v", err)
		}
	})
}

func TestResolveDispute(t *testing.T) {
	t.Run("Worker wins with strictly greater weight", func(t *testing.T) {
		engine, ledger, clock, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)

		if _, err := engine.CastDisputeVote("arbiter", dispute.DisputeID, true, 5); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		if _, err := engine.CastDisputeVote("arbiter", dispute.DisputeID, false, 4); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		clock.Advance(2 * time.Hour)

		resolved, err := engine.ResolveDispute("bob", dispute.DisputeID)
		if err != nil {
			t.Fatalf("ResolveDispute failed: %v", err)
		}
		if !resolved.WorkerWon {
			t.Error("Expected worker to win")
		}
		got, _ := engine.GetTask(task.TaskID)
		if got.Status != TaskStatusCompleted {
			t.Errorf("Expected status 'completed' but got '%s'", got.Status)
		}
		if balance := ledger.BalanceOf("bob"); balance != 10_000-50+1000+50 {
			t.Errorf("Expected worker balance 11000 but got %d", balance)
		}
	})

	t.Run("Tie favors the creator", func(t *testing.T) {
		engine, ledger, clock, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)

		if _, err := engine.CastDisputeVote("arbiter", dispute.DisputeID, true, 3); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		if _, err := engine.CastDisputeVote("arbiter", dispute.DisputeID, false, 3); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		clock.Advance(2 * time.Hour)

		resolved, err := engine.ResolveDispute("alice", dispute.DisputeID)
		if err != nil {
			t.Fatalf("ResolveDispute failed: %v", err)
		}
		if resolved.WorkerWon {
			t.Error("Expected creator to win on a tie")
		}

		// Creator gets the bounty back, worker gets 80% of the stake,
		// treasury takes the rest, task completes.
		if balance := ledger.BalanceOf("alice"); balance != 10_000 {
			t.Errorf("Expected creator balance restored to 10000 but got %d", balance)
		}
		if balance := ledger.BalanceOf("bob"); balance != 10_000-50+40 {
			t.Errorf("Expected worker balance 9990 but got %d", balance)
		}
		if engine.TreasuryBalance() != 10 {
			t.Errorf("Expected treasury 10 but got %d", engine.TreasuryBalance())
		}
		got, _ := engine.GetTask(task.TaskID)
		if got.Status != TaskStatusCompleted {
			t.Errorf("Expected status 'completed' but got '%s'", got.Status)
		}
	})

	t.Run("Resolve before deadline", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)
		_, err := engine.ResolveDispute("bob", dispute.DisputeID)
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Expected ErrInvalidState but got %v", err)
		}
	})

	t.Run("Re-resolution rejected", func(t *testing.T) {
		engine, _, clock, task := submittedTask(t)
		dispute := openDispute(t, engine, "bob", task.TaskID)
		clock.Advance(2 * time.Hour)
		if _, err := engine.ResolveDispute("bob", dispute.DisputeID); err != nil {
			t.Fatalf("first resolution failed: %v", err)
		}
		_, err := engine.ResolveDispute("bob", dispute.DisputeID)
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Expected ErrInvalidState on re-resolution but got %v", err)
		}
	})

	t.Run("Unknown dispute", func(t *testing.T) {
		engine, _, _ := newTestEngine()
		_, err := engine.ResolveDispute("bob", "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound but got %v", err)
		}
	})
}
