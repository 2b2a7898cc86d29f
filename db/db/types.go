package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"splitledger/ledger"
)

type GroupInfo struct {
	ID        uuid.UUID
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

type GroupData struct {
	MemberIDs []string
}

type Group struct {
	GroupInfo
	GroupData
}

type ExpenseInfo struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	Description string
	Amount      decimal.Decimal
	Policy      ledger.SplitPolicy
	CreatedBy   string
	CreatedAt   time.Time
}

type ExpenseData struct {
	Payers []ledger.PayerContribution
	Splits []ledger.Split
}

type Expense struct {
	ExpenseInfo
	ExpenseData
}
