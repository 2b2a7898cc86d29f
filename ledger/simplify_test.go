package ledger

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSimplifyDebts(t *testing.T) {
	tests := []struct {
		name     string
		balances map[string]string
		expected []PaymentInstruction
	}{
		{
			name:     "no balances",
			balances: map[string]string{},
			expected: nil,
		},
		{
			name:     "all square",
			balances: map[string]string{"alice": "0", "bob": "0"},
			expected: nil,
		},
		{
			name:     "single pair",
			balances: map[string]string{"alice": "-25.00", "bob": "25.00"},
			expected: []PaymentInstruction{
				{FromUserID: "alice", ToUserID: "bob", Amount: dec("25.00")},
			},
		},
		{
			name: "one debtor two creditors",
			balances: map[string]string{
				"alice": "-100.00",
				"bob":   "70.00",
				"carol": "30.00",
			},
			expected: []PaymentInstruction{
				{FromUserID: "alice", ToUserID: "bob", Amount: dec("70.00")},
				{FromUserID: "alice", ToUserID: "carol", Amount: dec("30.00")},
			},
		},
		{
			name: "largest matched first, ties broken by user id",
			balances: map[string]string{
				"dave":  "-50.00",
				"erin":  "-50.00",
				"frank": "60.00",
				"grace": "40.00",
			},
			expected: []PaymentInstruction{
				{FromUserID: "dave", ToUserID: "frank", Amount: dec("50.00")},
				{FromUserID: "erin", ToUserID: "frank", Amount: dec("10.00")},
				{FromUserID: "erin", ToUserID: "grace", Amount: dec("40.00")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balances := make(map[string]decimal.Decimal, len(tt.balances))
			for userID, b := range tt.balances {
				balances[userID] = dec(b)
			}

			got := SimplifyDebts(balances)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSimplifyDebts_Invariants(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"a": dec("-12.34"),
		"b": dec("-0.66"),
		"c": dec("-87.00"),
		"d": dec("50.00"),
		"e": dec("49.99"),
		"f": dec("0.01"),
		"g": dec("0"),
	}

	payments := SimplifyDebts(balances)

	// Instruction amounts must sum to the total positive balance.
	positive := decimal.Zero
	for _, b := range balances {
		if b.IsPositive() {
			positive = positive.Add(b)
		}
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
		if !p.Amount.IsPositive() {
			t.Errorf("non-positive instruction: %+v", p)
		}
	}
	if !paid.Equal(positive) {
		t.Errorf("instructions total %s, want %s", paid, positive)
	}

	// Greedy bound: creditors + debtors - 1.
	creditors, debtors := 3, 3
	if len(payments) > creditors+debtors-1 {
		t.Errorf("%d instructions exceeds greedy bound %d", len(payments), creditors+debtors-1)
	}

	// Zero-balance users never appear.
	for _, p := range payments {
		if p.FromUserID == "g" || p.ToUserID == "g" {
			t.Errorf("zero-balance user in plan: %+v", p)
		}
	}
}

func TestSimplifyDebts_Deterministic(t *testing.T) {
	balances := map[string]decimal.Decimal{
		"u1": dec("-10.00"), "u2": dec("-20.00"), "u3": dec("-30.00"),
		"u4": dec("15.00"), "u5": dec("15.00"), "u6": dec("30.00"),
	}

	first := SimplifyDebts(balances)
	for i := 0; i < 10; i++ {
		if got := SimplifyDebts(balances); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}
