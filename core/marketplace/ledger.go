package marketplace

import (
	"fmt"
	"sync"
)

// Ledger is the external value-transfer collaborator. TransferIn escrows
// funds from a principal into the marketplace; TransferOut pays escrowed
// funds back out. A TransferOut failure is fatal to the enclosing
// operation; settlement never silently skips a payout.
type Ledger interface {
	TransferIn(payer Principal, amountSats int64) error
	TransferOut(payee Principal, amountSats int64) error
	BalanceOf(principal Principal) int64
	AllowanceOf(principal Principal) int64
}

// MockLedger is an in-memory Ledger for tests and the memory store driver.
// Balances and per-principal allowances are seeded up front; escrowed value
// is held on an internal account until paid back out.
type MockLedger struct {
	mu         sync.Mutex
	balances   map[Principal]int64
	allowances map[Principal]int64
	escrowed   int64

	// FailTransferOut forces the next TransferOut to fail, for testing
	// settlement abort paths.
	FailTransferOut bool
}

// NewMockLedger returns an empty mock ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{
		balances:   make(map[Principal]int64),
		allowances: make(map[Principal]int64),
	}
}

// Seed credits a principal with a spendable balance and matching allowance.
func (l *MockLedger) Seed(p Principal, amountSats int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[p] += amountSats
	l.allowances[p] += amountSats
}

// SetAllowance overrides the allowance for a principal.
func (l *MockLedger) SetAllowance(p Principal, amountSats int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[p] = amountSats
}

// TransferIn moves amountSats from payer into escrow.
func (l *MockLedger) TransferIn(payer Principal, amountSats int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amountSats <= 0 {
		return fmt.Errorf("transfer in: %w", ErrInvalidParameters)
	}
	if l.balances[payer] < amountSats {
		return ErrInsufficientBalance
	}
	if l.allowances[payer] < amountSats {
		return ErrInsufficientAllowance
	}
	l.balances[payer] -= amountSats
	l.allowances[payer] -= amountSats
	l.escrowed += amountSats
	return nil
}

// TransferOut pays amountSats from escrow to payee.
func (l *MockLedger) TransferOut(payee Principal, amountSats int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailTransferOut {
		return fmt.Errorf("transfer out to %s failed", payee)
	}
	if amountSats < 0 {
		return fmt.Errorf("transfer out: %w", ErrInvalidParameters)
	}
	if amountSats > l.escrowed {
		return fmt.Errorf("transfer out %d exceeds escrowed %d", amountSats, l.escrowed)
	}
	l.escrowed -= amountSats
	l.balances[payee] += amountSats
	return nil
}

// BalanceOf returns the principal's spendable balance.
func (l *MockLedger) BalanceOf(principal Principal) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[principal]
}

// AllowanceOf returns how much the marketplace may pull from the principal.
func (l *MockLedger) AllowanceOf(principal Principal) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[principal]
}

// Escrowed returns the total value currently held in escrow.
func (l *MockLedger) Escrowed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrowed
}
