package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SettlementOp describes how one outstanding debt absorbs part of a payment.
// Paid is the covered portion; Remainder is what stays owed (zero when the
// debt is covered in full).
type SettlementOp struct {
	Debt      Transaction
	Paid      decimal.Decimal
	Remainder decimal.Decimal
}

// AllocatePayment walks the given debts in order (callers supply them
// oldest-created first) and spends the payment amount against them as a
// running budget. Each fully covered debt yields an op with a zero remainder;
// the first debt the budget cannot cover yields a partial op and ends the
// walk. A payment larger than all outstanding debt simply covers everything:
// the excess is absorbed by the standalone settlement record and never
// produces a reverse credit.
//
// The allocation never drives a debt negative and never produces a
// zero-amount op.
func AllocatePayment(amount decimal.Decimal, debts []Transaction) ([]SettlementOp, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount must be positive, got %s", ErrInvalidArgument, amount)
	}

	var ops []SettlementOp
	remaining := amount
	for _, debt := range debts {
		if remaining.IsZero() {
			break
		}
		if remaining.GreaterThanOrEqual(debt.Amount) {
			ops = append(ops, SettlementOp{Debt: debt, Paid: debt.Amount, Remainder: decimal.Zero})
			remaining = remaining.Sub(debt.Amount)
			continue
		}
		ops = append(ops, SettlementOp{Debt: debt, Paid: remaining, Remainder: debt.Amount.Sub(remaining)})
		remaining = decimal.Zero
	}
	return ops, nil
}
