package marketplace

import "testing"

func TestStakeBook(t *testing.T) {
	book := NewStakeBook()

	if _, active := book.ActiveTask("w1"); active {
		t.Error("Expected empty book to report no active task")
	}
	if entry := book.EntryOf("w1"); entry.StakeSats != 0 || entry.HasActive {
		t.Errorf("Expected zero entry but got %+v", entry)
	}

	book.Deposit("w1", 7, 50)
	id, active := book.ActiveTask("w1")
	if !active || id != 7 {
		t.Errorf("Expected active task 7 but got (%d, %t)", id, active)
	}
	if entry := book.EntryOf("w1"); entry.StakeSats != 50 {
		t.Errorf("Expected stake 50 but got %d", entry.StakeSats)
	}

	held := book.Clear("w1")
	if held != 50 {
		t.Errorf("Expected 50 returned on clear but got %d", held)
	}
	if _, active := book.ActiveTask("w1"); active {
		t.Error("Expected no active task after clear")
	}
	if again := book.Clear("w1"); again != 0 {
		t.Errorf("Expected second clear to return 0 but got %d", again)
	}
}
