package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementExpenseID is the sentinel expense reference used for manual
// settlement transactions that are not backed by any expense.
const SettlementExpenseID = "SETTLEMENT"

// SplitPolicy selects how an expense amount is divided among participants.
type SplitPolicy int

const (
	SplitEqual SplitPolicy = iota
	SplitExact
	SplitPercentage
	SplitShares
	SplitPolicyCnt
)

func (p SplitPolicy) String() string {
	switch p {
	case SplitEqual:
		return "EQUAL"
	case SplitExact:
		return "EXACT"
	case SplitPercentage:
		return "PERCENTAGE"
	case SplitShares:
		return "SHARES"
	}
	return "UNKNOWN"
}

// ParseSplitPolicy converts the wire representation of a split policy.
func ParseSplitPolicy(s string) (SplitPolicy, error) {
	switch s {
	case "EQUAL":
		return SplitEqual, nil
	case "EXACT":
		return SplitExact, nil
	case "PERCENTAGE":
		return SplitPercentage, nil
	case "SHARES":
		return SplitShares, nil
	}
	return SplitEqual, fmt.Errorf("%w: unknown split policy %q", ErrInvalidArgument, s)
}

// UserAmount is an explicit amount owed by one user (EXACT policy).
type UserAmount struct {
	UserID string
	Amount decimal.Decimal
}

// UserPercentage is the percentage of the total owed by one user (PERCENTAGE policy).
type UserPercentage struct {
	UserID     string
	Percentage decimal.Decimal
}

// UserShares is the integer weight of one user (SHARES policy).
type UserShares struct {
	UserID string
	Shares int
}

// SplitDetails carries the per-policy input. Entries are ordered slices, so
// "first entry" (the rounding-residual target) is always the caller's first
// element rather than an accident of map iteration.
type SplitDetails struct {
	Amounts     []UserAmount
	Percentages []UserPercentage
	Shares      []UserShares
}

// Split is one participant's owed share of an expense.
type Split struct {
	UserID     string
	Amount     decimal.Decimal
	Percentage decimal.Decimal // set for PERCENTAGE splits
	Shares     int             // set for SHARES splits
}

// PayerContribution records who funded an expense and how much.
type PayerContribution struct {
	UserID string
	Amount decimal.Decimal
}

// Transaction is the atomic ledger entry: a single debt from one user to
// another, created by deriving an expense or by recording a payment.
// Amount is always positive; a zero-amount transaction is never persisted.
type Transaction struct {
	ID         uuid.UUID
	ExpenseID  string // expense UUID string, or SettlementExpenseID
	GroupID    uuid.UUID
	FromUserID string // debtor
	ToUserID   string // creditor
	Amount     decimal.Decimal
	IsSettled  bool
	CreatedAt  time.Time
	SettledAt  *time.Time
}

// OverallBalance is a user's net position across all groups.
type OverallBalance struct {
	NetBalance     decimal.Decimal
	TotalOwedToYou decimal.Decimal
	TotalYouOwe    decimal.Decimal
}

// PaymentInstruction is one step of a settlement plan.
type PaymentInstruction struct {
	FromUserID string
	ToUserID   string
	Amount     decimal.Decimal
}
