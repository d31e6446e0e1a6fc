package marketplace

// StakeBook tracks per-principal escrowed stake and the single-active-task
// constraint. It is owned by the Engine and mutated only inside serialized
// operations, so it carries no lock of its own.
type StakeBook struct {
	entries map[Principal]*StakeEntry
}

// NewStakeBook returns an empty stake book.
func NewStakeBook() *StakeBook {
	return &StakeBook{entries: make(map[Principal]*StakeEntry)}
}

// Deposit records an escrowed stake and marks the worker's active task.
// The caller must have verified the worker holds no active task.
func (b *StakeBook) Deposit(worker Principal, taskID uint64, amountSats int64) {
	b.entries[worker] = &StakeEntry{
		StakeSats:    amountSats,
		HasActive:    true,
		ActiveTaskID: taskID,
	}
}

// Clear zeroes the worker's stake and drops the active-task flag,
// returning the stake that was held. Settlement calls this atomically
// with every terminal transition for the worker.
func (b *StakeBook) Clear(worker Principal) int64 {
	entry, ok := b.entries[worker]
	if !ok {
		return 0
	}
	held := entry.StakeSats
	delete(b.entries, worker)
	return held
}

// EntryOf returns a copy of the worker's stake entry.
func (b *StakeBook) EntryOf(worker Principal) StakeEntry {
	if entry, ok := b.entries[worker]; ok {
		return *entry
	}
	return StakeEntry{}
}

// ActiveTask reports the task currently blocking the worker, if any.
func (b *StakeBook) ActiveTask(worker Principal) (uint64, bool) {
	entry, ok := b.entries[worker]
	if !ok || !entry.HasActive {
		return 0, false
	}
	return entry.ActiveTaskID, true
}
