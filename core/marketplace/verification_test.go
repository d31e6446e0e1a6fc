package marketplace

import (
	"errors"
	"fmt"
	"testing"
)

func TestVerifyWork(t *testing.T) {
	t.Run("Quorum approval settles in full", func(t *testing.T) {
		engine, ledger, _, task := submittedTask(t)

		for i, verifier := range []Principal{"v1", "v2"} {
			rec, err := engine.VerifyWork(verifier, task.TaskID, true, "looks good")
			if err != nil {
				t.Fatalf("vote %d failed: %v", i, err)
			}
			if rec.Finalized {
				t.Errorf("Expected record not finalized at %d approvals", rec.Approvals)
			}
			got, _ := engine.GetTask(task.TaskID)
			if got.Status != TaskStatusSubmitted {
				t.Errorf("Expected status 'submitted' before quorum but got '%s'", got.Status)
			}
		}

		rec, err := engine.VerifyWork("v3", task.TaskID, true, "ship it")
		if err != nil {
			t.Fatalf("quorum vote failed: %v", err)
		}
		if !rec.Finalized {
			t.Error("Expected record finalized at quorum")
		}
		got, _ := engine.GetTask(task.TaskID)
		if got.Status != TaskStatusCompleted {
			t.Errorf("Expected status 'completed' but got '%s'", got.Status)
		}
		if balance := ledger.BalanceOf("bob"); balance != 10_000-50+1000+50 {
			t.Errorf("Expected worker balance 11000 but got %d", balance)
		}
	})

	t.Run("Quorum rejection runs penalty path", func(t *testing.T) {
		engine, ledger, _, task := submittedTask(t)

		for _, verifier := range []Principal{"v1", "v2", "v3"} {
			if _, err := engine.VerifyWork(verifier, task.TaskID, false, "not acceptable"); err != nil {
				t.Fatalf("vote by %s failed: %v", verifier, err)
			}
		}

		got, _ := engine.GetTask(task.TaskID)
		if got.Status != TaskStatusOpen {
			t.Errorf("Expected status 'open' after quorum rejection but got '%s'", got.Status)
		}
		if got.Worker != ZeroPrincipal {
			t.Errorf("Expected worker cleared but got '%s'", got.Worker)
		}
		if engine.TreasuryBalance() != 10 {
			t.Errorf("Expected treasury 10 but got %d", engine.TreasuryBalance())
		}
		if balance := ledger.BalanceOf("bob"); balance != 10_000-50+40 {
			t.Errorf("Expected worker balance 9990 but got %d", balance)
		}
	})

	t.Run("Vote after outcome fails", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		for _, verifier := range []Principal{"v1", "v2", "v3"} {
			if _, err := engine.VerifyWork(verifier, task.TaskID, true, ""); err != nil {
				t.Fatalf("vote by %s failed: %v", verifier, err)
			}
		}
		_, err := engine.VerifyWork("v4", task.TaskID, true, "late")
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Expected ErrInvalidState after outcome but got %v", err)
		}
	})

	t.Run("Duplicate vote rejected", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		if _, err := engine.VerifyWork("v1", task.TaskID, true, "first"); err != nil {
			t.Fatalf("first vote failed: %v", err)
		}
		_, err := engine.VerifyWork("v1", task.TaskID, false, "changed my mind")
		if !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("Expected ErrAlreadyExists but got %v", err)
		}
		rec, err := engine.GetVerification(task.TaskID)
		if err != nil {
			t.Fatalf("GetVerification failed: %v", err)
		}
		if !rec.Votes["v1"].Approve {
			t.Error("Expected original vote preserved")
		}
		if rec.Approvals != 1 || rec.Rejections != 0 {
			t.Errorf("Expected counts 1/0 but got %d/%d", rec.Approvals, rec.Rejections)
		}
	})

	t.Run("Creator and worker may not vote", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		if _, err := engine.VerifyWork("alice", task.TaskID, true, ""); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized for creator but got %v", err)
		}
		if _, err := engine.VerifyWork("bob", task.TaskID, true, ""); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized for worker but got %v", err)
		}
	})

	t.Run("Verifier cap reached", func(t *testing.T) {
		engine, _, _, task := submittedTask(t)
		if err := engine.SetQuorum(5, 4); !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("Expected ErrInvalidParameters for max < min but got %v", err)
		}
		if err := engine.SetQuorum(4, 4); err != nil {
			t.Fatalf("SetQuorum failed: %v", err)
		}
		// Alternate votes so neither side reaches the quorum of 4.
		for i := 0; i < 4; i++ {
			verifier := Principal(fmt.Sprintf("v%d", i))
			if _, err := engine.VerifyWork(verifier, task.TaskID, i%2 == 0, ""); err != nil {
				t.Fatalf("vote %d failed: %v", i, err)
			}
		}
		_, err := engine.VerifyWork("v9", task.TaskID, true, "")
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Expected ErrInvalidState at cap but got %v", err)
		}
	})

	t.Run("Vote on non-submitted task", func(t *testing.T) {
		engine, _, clock := newTestEngine()
		task := mustCreate(t, engine, clock, "alice", 1000)
		_, err := engine.VerifyWork("v1", task.TaskID, true, "")
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Expected ErrInvalidState but got %v", err)
		}
	})
}
