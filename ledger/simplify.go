package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

type userBalance struct {
	userID string
	amount decimal.Decimal
}

// SimplifyDebts reduces a group balance snapshot to a short list of payment
// instructions that zeroes every balance. Users are partitioned into
// creditors and debtors, both sorted by descending magnitude (user id breaks
// ties, keeping the result deterministic), then matched greedily: each step
// settles min(debtor remaining, creditor remaining) and advances whichever
// side reached zero. The plan is bounded by creditors+debtors-1 instructions
// and its amounts sum to the total positive balance.
//
// The input snapshot is not modified; the function has no shared state and is
// safe to run concurrently across groups.
func SimplifyDebts(balances map[string]decimal.Decimal) []PaymentInstruction {
	var creditors []userBalance
	var debtors []userBalance

	for userID, balance := range balances {
		switch {
		case balance.IsPositive():
			creditors = append(creditors, userBalance{userID: userID, amount: balance})
		case balance.IsNegative():
			debtors = append(debtors, userBalance{userID: userID, amount: balance.Neg()})
		}
		// Zero balances need no instruction.
	}

	sortByAmountDesc(creditors)
	sortByAmountDesc(debtors)

	var payments []PaymentInstruction
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		amount := decimal.Min(debtor.amount, creditor.amount)
		payments = append(payments, PaymentInstruction{
			FromUserID: debtor.userID,
			ToUserID:   creditor.userID,
			Amount:     amount,
		})

		debtor.amount = debtor.amount.Sub(amount)
		creditor.amount = creditor.amount.Sub(amount)

		if debtor.amount.IsZero() {
			i++
		}
		if creditor.amount.IsZero() {
			j++
		}
	}

	return payments
}

func sortByAmountDesc(list []userBalance) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].amount.Equal(list[j].amount) {
			return list[i].userID < list[j].userID
		}
		return list[i].amount.GreaterThan(list[j].amount)
	})
}
