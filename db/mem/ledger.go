package mem

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	dbt "splitledger/db/db"
	"splitledger/ledger"
)

// inMemoryLedgerDBWrapper is an in-memory implementation of dbt.LedgerDBWrapper.
// It backs the service tests and the dev mode; maps keyed by ID, a single
// RWMutex for thread-safety.
type inMemoryLedgerDBWrapper struct {
	groups       map[uuid.UUID]*dbt.Group
	expenses     map[uuid.UUID]*dbt.Expense
	transactions map[uuid.UUID]*ledger.Transaction

	mu sync.RWMutex
}

// NewInMemoryLedgerDBWrapper creates and returns a new instance of inMemoryLedgerDBWrapper.
func NewInMemoryLedgerDBWrapper() dbt.LedgerDBWrapper {
	return &inMemoryLedgerDBWrapper{
		groups:       make(map[uuid.UUID]*dbt.Group),
		expenses:     make(map[uuid.UUID]*dbt.Expense),
		transactions: make(map[uuid.UUID]*ledger.Transaction),
	}
}

// CreateGroup creates a new group entry in memory.
func (db *inMemoryLedgerDBWrapper) CreateGroup(info *dbt.GroupInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if info.ID == uuid.Nil {
		info.ID = uuid.New()
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}
	if _, exists := db.groups[info.ID]; exists {
		return fmt.Errorf("%w: group with ID %s already exists", ledger.ErrConflict, info.ID)
	}

	// Store a copy to prevent external modification of the original pointer.
	// The creator is always a member.
	db.groups[info.ID] = &dbt.Group{
		GroupInfo: *info,
		GroupData: dbt.GroupData{MemberIDs: []string{info.CreatedBy}},
	}
	return nil
}

// AddGroupMember adds a user to an existing group.
func (db *inMemoryLedgerDBWrapper) AddGroupMember(groupID uuid.UUID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	group, exists := db.groups[groupID]
	if !exists {
		return fmt.Errorf("%w: group with ID %s", ledger.ErrNotFound, groupID)
	}
	for _, id := range group.MemberIDs {
		if id == userID {
			return fmt.Errorf("%w: user %s already in group %s", ledger.ErrConflict, userID, groupID)
		}
	}
	group.MemberIDs = append(group.MemberIDs, userID)
	return nil
}

// GetGroup retrieves a group with its member list by ID.
func (db *inMemoryLedgerDBWrapper) GetGroup(id uuid.UUID) (*dbt.Group, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	group, exists := db.groups[id]
	if !exists {
		return nil, fmt.Errorf("%w: group with ID %s", ledger.ErrNotFound, id)
	}

	// Return a copy to prevent external modification
	groupCopy := dbt.Group{GroupInfo: group.GroupInfo}
	groupCopy.MemberIDs = make([]string, len(group.MemberIDs))
	copy(groupCopy.MemberIDs, group.MemberIDs)
	return &groupCopy, nil
}

// CreateExpense stores an expense together with its derived transactions.
func (db *inMemoryLedgerDBWrapper) CreateExpense(expense *dbt.Expense, transactions []ledger.Transaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}
	if _, exists := db.expenses[expense.ID]; exists {
		return fmt.Errorf("%w: expense with ID %s already exists", ledger.ErrConflict, expense.ID)
	}

	db.expenses[expense.ID] = copyExpense(expense)
	db.insertTransactions(expense.ID.String(), transactions)
	return nil
}

// GetExpense retrieves an expense with its payers and splits by ID.
func (db *inMemoryLedgerDBWrapper) GetExpense(id uuid.UUID) (*dbt.Expense, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	expense, exists := db.expenses[id]
	if !exists {
		return nil, fmt.Errorf("%w: expense with ID %s", ledger.ErrNotFound, id)
	}
	return copyExpense(expense), nil
}

// UpdateExpense replaces the stored expense and regenerates its transactions.
// The prior transactions of the expense are dropped first so there is no
// window where stale debts coexist with the new ones.
func (db *inMemoryLedgerDBWrapper) UpdateExpense(expense *dbt.Expense, transactions []ledger.Transaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, exists := db.expenses[expense.ID]
	if !exists {
		return fmt.Errorf("%w: expense with ID %s", ledger.ErrNotFound, expense.ID)
	}
	expense.CreatedAt = stored.CreatedAt

	db.deleteTransactionsByExpense(expense.ID.String())
	db.expenses[expense.ID] = copyExpense(expense)
	db.insertTransactions(expense.ID.String(), transactions)
	return nil
}

// DeleteExpense removes an expense and every transaction derived from it.
func (db *inMemoryLedgerDBWrapper) DeleteExpense(id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.expenses[id]; !exists {
		return fmt.Errorf("%w: expense with ID %s", ledger.ErrNotFound, id)
	}
	delete(db.expenses, id)
	db.deleteTransactionsByExpense(id.String())
	return nil
}

// CreateTransaction stores a single transaction.
func (db *inMemoryLedgerDBWrapper) CreateTransaction(transaction *ledger.Transaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.insertTransactions(transaction.ExpenseID, []ledger.Transaction{*transaction})
	return nil
}

// GetUnsettledByUser retrieves the unsettled transactions a user takes part
// in, on either side, oldest first.
func (db *inMemoryLedgerDBWrapper) GetUnsettledByUser(userID string) ([]ledger.Transaction, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.collect(func(t *ledger.Transaction) bool {
		return !t.IsSettled && (t.FromUserID == userID || t.ToUserID == userID)
	}, oldestFirst), nil
}

// GetUnsettledByGroup retrieves the unsettled transactions of a group, oldest first.
func (db *inMemoryLedgerDBWrapper) GetUnsettledByGroup(groupID uuid.UUID) ([]ledger.Transaction, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.collect(func(t *ledger.Transaction) bool {
		return !t.IsSettled && t.GroupID == groupID
	}, oldestFirst), nil
}

// GetUnsettledBetween retrieves the unsettled debts of one user toward
// another, oldest first. Direction matters: from is the debtor.
func (db *inMemoryLedgerDBWrapper) GetUnsettledBetween(fromUserID, toUserID string) ([]ledger.Transaction, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.collect(func(t *ledger.Transaction) bool {
		return !t.IsSettled && t.FromUserID == fromUserID && t.ToUserID == toUserID
	}, oldestFirst), nil
}

// CountTransactionsByUser counts every transaction touching a user, settled or not.
func (db *inMemoryLedgerDBWrapper) CountTransactionsByUser(userID string) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var count int64
	for _, t := range db.transactions {
		if t.FromUserID == userID || t.ToUserID == userID {
			count++
		}
	}
	return count, nil
}

// GetSettlementHistory retrieves the settlement records touching a user, newest first.
func (db *inMemoryLedgerDBWrapper) GetSettlementHistory(userID string) ([]ledger.Transaction, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.collect(func(t *ledger.Transaction) bool {
		return t.IsSettled && t.ExpenseID == ledger.SettlementExpenseID &&
			(t.FromUserID == userID || t.ToUserID == userID)
	}, newestFirst), nil
}

// SettleDebts records the settlement transaction and applies the allocation
// atomically. Every debt in the allocation is re-checked against the stored
// state first; any mismatch means another payment won the race and the whole
// batch fails with ledger.ErrConflict.
func (db *inMemoryLedgerDBWrapper) SettleDebts(settlement *ledger.Transaction, ops []ledger.SettlementOp) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, op := range ops {
		stored, exists := db.transactions[op.Debt.ID]
		if !exists || stored.IsSettled || !stored.Amount.Equal(op.Debt.Amount) {
			return fmt.Errorf("%w: debt %s changed since allocation", ledger.ErrConflict, op.Debt.ID)
		}
	}

	now := time.Now()
	settlement.ID = uuid.New()
	settlement.CreatedAt = now
	settlement.IsSettled = true
	settlement.SettledAt = &now
	stored := *settlement
	db.transactions[stored.ID] = &stored

	for _, op := range ops {
		debt := db.transactions[op.Debt.ID]
		debt.IsSettled = true
		debt.SettledAt = &now

		if op.Remainder.IsPositive() {
			paid := ledger.Transaction{
				ID:         uuid.New(),
				ExpenseID:  debt.ExpenseID,
				GroupID:    debt.GroupID,
				FromUserID: debt.FromUserID,
				ToUserID:   debt.ToUserID,
				Amount:     op.Paid,
				IsSettled:  true,
				CreatedAt:  debt.CreatedAt,
				SettledAt:  &now,
			}
			db.transactions[paid.ID] = &paid

			remainder := ledger.Transaction{
				ID:         uuid.New(),
				ExpenseID:  debt.ExpenseID,
				GroupID:    debt.GroupID,
				FromUserID: debt.FromUserID,
				ToUserID:   debt.ToUserID,
				Amount:     op.Remainder,
				IsSettled:  false,
				// The remainder keeps its place in the oldest-first queue.
				CreatedAt: debt.CreatedAt,
			}
			db.transactions[remainder.ID] = &remainder
		}
	}
	return nil
}

func (db *inMemoryLedgerDBWrapper) insertTransactions(expenseID string, transactions []ledger.Transaction) {
	now := time.Now()
	for _, t := range transactions {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.ExpenseID == "" {
			t.ExpenseID = expenseID
		}
		stored := t
		db.transactions[stored.ID] = &stored
	}
}

func (db *inMemoryLedgerDBWrapper) deleteTransactionsByExpense(expenseID string) {
	for id, t := range db.transactions {
		if t.ExpenseID == expenseID {
			delete(db.transactions, id)
		}
	}
}

type txnOrder func(a, b *ledger.Transaction) bool

func oldestFirst(a, b *ledger.Transaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func newestFirst(a, b *ledger.Transaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func (db *inMemoryLedgerDBWrapper) collect(match func(*ledger.Transaction) bool, order txnOrder) []ledger.Transaction {
	var out []ledger.Transaction
	for _, t := range db.transactions {
		if match(t) {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return order(&out[i], &out[j]) })
	return out
}

func copyExpense(e *dbt.Expense) *dbt.Expense {
	expenseCopy := dbt.Expense{ExpenseInfo: e.ExpenseInfo}
	expenseCopy.Payers = make([]ledger.PayerContribution, len(e.Payers))
	copy(expenseCopy.Payers, e.Payers)
	expenseCopy.Splits = make([]ledger.Split, len(e.Splits))
	copy(expenseCopy.Splits, e.Splits)
	return &expenseCopy
}
