package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// assertSplitsTotal checks the core numeric invariant: split amounts sum to
// the expense total exactly.
func assertSplitsTotal(t *testing.T, splits []Split, total decimal.Decimal) {
	t.Helper()
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Amount)
	}
	if !sum.Equal(total) {
		t.Errorf("splits sum to %s, want %s", sum, total)
	}
}

func TestCalculateSplits_Equal(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		members  []string
		expected []string
	}{
		{
			name:     "evenly divisible",
			total:    "90.00",
			members:  []string{"alice", "bob", "carol"},
			expected: []string{"30", "30", "30"},
		},
		{
			name:     "residual cent to first member",
			total:    "100.00",
			members:  []string{"alice", "bob", "carol"},
			expected: []string{"33.34", "33.33", "33.33"},
		},
		{
			name:     "negative residual to first member",
			total:    "100.01",
			members:  []string{"alice", "bob", "carol"},
			expected: []string{"33.35", "33.33", "33.33"},
		},
		{
			name:     "single member takes everything",
			total:    "42.37",
			members:  []string{"alice"},
			expected: []string{"42.37"},
		},
		{
			name:     "sub-cent shares",
			total:    "0.05",
			members:  []string{"a", "b", "c", "d"},
			expected: []string{"0.02", "0.01", "0.01", "0.01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := dec(tt.total)
			splits, err := CalculateSplits(total, SplitEqual, SplitDetails{}, tt.members)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(splits) != len(tt.members) {
				t.Fatalf("got %d splits, want %d", len(splits), len(tt.members))
			}
			for i, s := range splits {
				if s.UserID != tt.members[i] {
					t.Errorf("split %d user %s, want %s (caller order must be preserved)", i, s.UserID, tt.members[i])
				}
				if !s.Amount.Equal(dec(tt.expected[i])) {
					t.Errorf("split %d amount %s, want %s", i, s.Amount, tt.expected[i])
				}
			}
			assertSplitsTotal(t, splits, total)
		})
	}
}

func TestCalculateSplits_EqualEmptyMembers(t *testing.T) {
	_, err := CalculateSplits(dec("10.00"), SplitEqual, SplitDetails{}, nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCalculateSplits_Exact(t *testing.T) {
	total := dec("75.50")
	details := SplitDetails{Amounts: []UserAmount{
		{UserID: "alice", Amount: dec("50.00")},
		{UserID: "bob", Amount: dec("25.50")},
	}}

	splits, err := CalculateSplits(total, SplitExact, details, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSplitsTotal(t, splits, total)

	// Mismatched totals must be rejected, naming the mismatch.
	details.Amounts[1].Amount = dec("25.49")
	_, err = CalculateSplits(total, SplitExact, details, nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for amount mismatch, got %v", err)
	}
}

func TestCalculateSplits_Percentage(t *testing.T) {
	total := dec("100.00")

	for _, badTotal := range []string{"99", "101"} {
		details := SplitDetails{Percentages: []UserPercentage{
			{UserID: "alice", Percentage: dec("50")},
			{UserID: "bob", Percentage: dec(badTotal).Sub(dec("50"))},
		}}
		if _, err := CalculateSplits(total, SplitPercentage, details, nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("percentages summing to %s: expected ErrInvalidArgument, got %v", badTotal, err)
		}
	}

	details := SplitDetails{Percentages: []UserPercentage{
		{UserID: "alice", Percentage: dec("33.33")},
		{UserID: "bob", Percentage: dec("33.33")},
		{UserID: "carol", Percentage: dec("33.34")},
	}}
	splits, err := CalculateSplits(total, SplitPercentage, details, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSplitsTotal(t, splits, total)
	if splits[0].Percentage.IsZero() {
		t.Error("percentage should be recorded on the split")
	}
}

func TestCalculateSplits_PercentageResidualToFirst(t *testing.T) {
	// Three times 1/3 of 0.10 rounds to 0.03 each; the missing cent lands on
	// the first entry in caller order.
	total := dec("0.10")
	details := SplitDetails{Percentages: []UserPercentage{
		{UserID: "alice", Percentage: dec("33.34")},
		{UserID: "bob", Percentage: dec("33.33")},
		{UserID: "carol", Percentage: dec("33.33")},
	}}
	splits, err := CalculateSplits(total, SplitPercentage, details, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSplitsTotal(t, splits, total)
	if !splits[0].Amount.GreaterThanOrEqual(splits[1].Amount) {
		t.Errorf("residual must land on the first entry, got %s vs %s", splits[0].Amount, splits[1].Amount)
	}
}

func TestCalculateSplits_Shares(t *testing.T) {
	total := dec("100.00")
	details := SplitDetails{Shares: []UserShares{
		{UserID: "alice", Shares: 2},
		{UserID: "bob", Shares: 1},
	}}

	splits, err := CalculateSplits(total, SplitShares, details, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSplitsTotal(t, splits, total)
	if !splits[0].Amount.Equal(dec("66.67")) || !splits[1].Amount.Equal(dec("33.33")) {
		t.Errorf("got %s/%s, want 66.67/33.33", splits[0].Amount, splits[1].Amount)
	}
	if splits[0].Shares != 2 {
		t.Errorf("share count should be recorded, got %d", splits[0].Shares)
	}

	// Zero total weight is invalid.
	details.Shares = []UserShares{{UserID: "alice", Shares: 0}}
	if _, err := CalculateSplits(total, SplitShares, details, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero shares, got %v", err)
	}
}

func TestCalculateSplits_SharesResidual(t *testing.T) {
	// 100 into 3 equal shares: 33.33 each assigned, residual cent to first.
	total := dec("100.00")
	details := SplitDetails{Shares: []UserShares{
		{UserID: "alice", Shares: 1},
		{UserID: "bob", Shares: 1},
		{UserID: "carol", Shares: 1},
	}}
	splits, err := CalculateSplits(total, SplitShares, details, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSplitsTotal(t, splits, total)
	if !splits[0].Amount.Equal(dec("33.34")) {
		t.Errorf("first split %s, want 33.34", splits[0].Amount)
	}
}

func TestParseSplitPolicy(t *testing.T) {
	for _, s := range []string{"EQUAL", "EXACT", "PERCENTAGE", "SHARES"} {
		p, err := ParseSplitPolicy(s)
		if err != nil {
			t.Fatalf("ParseSplitPolicy(%s): %v", s, err)
		}
		if p.String() != s {
			t.Errorf("round trip %s -> %s", s, p.String())
		}
	}
	if _, err := ParseSplitPolicy("HALVSIES"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown policy, got %v", err)
	}
}
