package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeriveTransactions converts an expense's payer contributions and computed
// splits into pairwise debt transactions. For each split owner owing amount A
// and each payer p contributing c_p out of total paid T, the owner owes
// round(A * c_p / T, 2) to p. Owners never owe themselves, and zero-amount
// results are dropped.
//
// The sum of payer contributions must equal totalAmount exactly; allowing the
// two to drift would make the proportional allocation settle against a basis
// different from what the splits were computed on.
func DeriveTransactions(expenseID string, groupID uuid.UUID, totalAmount decimal.Decimal, paidBy []PayerContribution, splits []Split) ([]Transaction, error) {
	totalPaid := decimal.Zero
	for _, p := range paidBy {
		totalPaid = totalPaid.Add(p.Amount)
	}
	if totalPaid.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: total paid must be positive, got %s", ErrInvalidArgument, totalPaid)
	}
	if !totalPaid.Equal(totalAmount) {
		return nil, fmt.Errorf("%w: payer contributions (%s) do not equal expense amount (%s)",
			ErrInvalidArgument, totalPaid, totalAmount)
	}

	var transactions []Transaction
	for _, split := range splits {
		for _, payer := range paidBy {
			if payer.UserID == split.UserID {
				continue
			}
			proportion := payer.Amount.DivRound(totalPaid, 4)
			owed := split.Amount.Mul(proportion).Round(2)
			if owed.LessThanOrEqual(decimal.Zero) {
				continue
			}
			transactions = append(transactions, Transaction{
				ExpenseID:  expenseID,
				GroupID:    groupID,
				FromUserID: split.UserID,
				ToUserID:   payer.UserID,
				Amount:     owed,
			})
		}
	}
	return transactions, nil
}
