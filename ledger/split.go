package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// CalculateSplits divides totalAmount among participants according to the
// split policy. Every policy guarantees that the returned split amounts sum
// to totalAmount exactly: per-share rounding is half-up to 2 decimals and the
// cumulative rounding residual is assigned to the first entry.
func CalculateSplits(totalAmount decimal.Decimal, policy SplitPolicy, details SplitDetails, memberIDs []string) ([]Split, error) {
	switch policy {
	case SplitEqual:
		return equalSplits(totalAmount, memberIDs)
	case SplitExact:
		return exactSplits(totalAmount, details.Amounts)
	case SplitPercentage:
		return percentageSplits(totalAmount, details.Percentages)
	case SplitShares:
		return shareSplits(totalAmount, details.Shares)
	}
	return nil, fmt.Errorf("%w: unknown split policy %d", ErrInvalidArgument, policy)
}

func equalSplits(totalAmount decimal.Decimal, memberIDs []string) ([]Split, error) {
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: member list cannot be empty for equal split", ErrInvalidArgument)
	}

	memberCount := decimal.NewFromInt(int64(len(memberIDs)))
	share := totalAmount.DivRound(memberCount, 2)
	remainder := totalAmount.Sub(share.Mul(memberCount))

	splits := make([]Split, 0, len(memberIDs))
	for i, userID := range memberIDs {
		amount := share
		if i == 0 {
			amount = amount.Add(remainder)
		}
		splits = append(splits, Split{UserID: userID, Amount: amount})
	}
	return splits, nil
}

func exactSplits(totalAmount decimal.Decimal, amounts []UserAmount) ([]Split, error) {
	if len(amounts) == 0 {
		return nil, fmt.Errorf("%w: exact split requires per-user amounts", ErrInvalidArgument)
	}

	splits := make([]Split, 0, len(amounts))
	totalSpecified := decimal.Zero
	for _, ua := range amounts {
		totalSpecified = totalSpecified.Add(ua.Amount)
		splits = append(splits, Split{UserID: ua.UserID, Amount: ua.Amount})
	}

	if !totalSpecified.Equal(totalAmount) {
		return nil, fmt.Errorf("%w: specified amounts (%s) do not equal total amount (%s)",
			ErrInvalidArgument, totalSpecified, totalAmount)
	}
	return splits, nil
}

func percentageSplits(totalAmount decimal.Decimal, percentages []UserPercentage) ([]Split, error) {
	if len(percentages) == 0 {
		return nil, fmt.Errorf("%w: percentage split requires per-user percentages", ErrInvalidArgument)
	}

	splits := make([]Split, 0, len(percentages))
	totalPercentage := decimal.Zero
	totalAssigned := decimal.Zero
	for _, up := range percentages {
		totalPercentage = totalPercentage.Add(up.Percentage)
		amount := totalAmount.Mul(up.Percentage.DivRound(oneHundred, 4)).Round(2)
		totalAssigned = totalAssigned.Add(amount)
		splits = append(splits, Split{UserID: up.UserID, Amount: amount, Percentage: up.Percentage})
	}

	if !totalPercentage.Equal(oneHundred) {
		return nil, fmt.Errorf("%w: percentages must total 100, got %s", ErrInvalidArgument, totalPercentage)
	}

	// Rounding residual goes to the first entry.
	if diff := totalAmount.Sub(totalAssigned); !diff.IsZero() {
		splits[0].Amount = splits[0].Amount.Add(diff)
	}
	return splits, nil
}

func shareSplits(totalAmount decimal.Decimal, shares []UserShares) ([]Split, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: share split requires per-user share counts", ErrInvalidArgument)
	}

	totalShares := 0
	for _, us := range shares {
		totalShares += us.Shares
	}
	if totalShares <= 0 {
		return nil, fmt.Errorf("%w: total shares must be greater than zero, got %d", ErrInvalidArgument, totalShares)
	}

	totalWeight := decimal.NewFromInt(int64(totalShares))
	splits := make([]Split, 0, len(shares))
	totalAssigned := decimal.Zero
	for _, us := range shares {
		ratio := decimal.NewFromInt(int64(us.Shares)).DivRound(totalWeight, 4)
		amount := totalAmount.Mul(ratio).Round(2)
		totalAssigned = totalAssigned.Add(amount)
		splits = append(splits, Split{UserID: us.UserID, Amount: amount, Shares: us.Shares})
	}

	if diff := totalAmount.Sub(totalAssigned); !diff.IsZero() {
		splits[0].Amount = splits[0].Amount.Add(diff)
	}
	return splits, nil
}
