package ledger

import "github.com/shopspring/decimal"

// CalculateOverallBalance sums a user's unsettled transactions into their net
// position: positive net means others owe the user.
func CalculateOverallBalance(userID string, unsettled []Transaction) OverallBalance {
	owedToUser := decimal.Zero
	userOwes := decimal.Zero

	for _, t := range unsettled {
		if t.ToUserID == userID {
			owedToUser = owedToUser.Add(t.Amount)
		} else if t.FromUserID == userID {
			userOwes = userOwes.Add(t.Amount)
		}
	}

	return OverallBalance{
		NetBalance:     owedToUser.Sub(userOwes),
		TotalOwedToYou: owedToUser,
		TotalYouOwe:    userOwes,
	}
}

// CalculateGroupBalances nets a group's unsettled transactions into one
// signed balance per user. Every user appearing on either side of a
// transaction gets an entry, and the balances sum to exactly zero: each
// amount is subtracted from its debtor and added to its creditor.
func CalculateGroupBalances(unsettled []Transaction) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)

	for _, t := range unsettled {
		if _, ok := balances[t.FromUserID]; !ok {
			balances[t.FromUserID] = decimal.Zero
		}
		if _, ok := balances[t.ToUserID]; !ok {
			balances[t.ToUserID] = decimal.Zero
		}
	}

	for _, t := range unsettled {
		balances[t.FromUserID] = balances[t.FromUserID].Sub(t.Amount)
		balances[t.ToUserID] = balances[t.ToUserID].Add(t.Amount)
	}

	return balances
}
