package db

import (
	"github.com/google/uuid"

	"splitledger/ledger"
)

type LedgerDBWrapper interface {
	// Group
	CreateGroup(info *GroupInfo) error
	AddGroupMember(groupID uuid.UUID, userID string) error
	GetGroup(id uuid.UUID) (*Group, error)
	// Expense
	CreateExpense(expense *Expense, transactions []ledger.Transaction) error
	GetExpense(id uuid.UUID) (*Expense, error)
	UpdateExpense(expense *Expense, transactions []ledger.Transaction) error
	DeleteExpense(id uuid.UUID) error
	// Transaction
	CreateTransaction(transaction *ledger.Transaction) error
	GetUnsettledByUser(userID string) ([]ledger.Transaction, error)
	GetUnsettledByGroup(groupID uuid.UUID) ([]ledger.Transaction, error)
	GetUnsettledBetween(fromUserID, toUserID string) ([]ledger.Transaction, error)
	CountTransactionsByUser(userID string) (int64, error)
	GetSettlementHistory(userID string) ([]ledger.Transaction, error)
	// SettleDebts records the payment and applies the allocation in one
	// store transaction. A debt changed since the allocation was computed
	// fails the whole batch with ledger.ErrConflict.
	SettleDebts(settlement *ledger.Transaction, ops []ledger.SettlementOp) error
}
