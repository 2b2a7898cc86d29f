package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func txn(from, to, amount string) Transaction {
	return Transaction{
		ID:         uuid.New(),
		ExpenseID:  uuid.New().String(),
		FromUserID: from,
		ToUserID:   to,
		Amount:     dec(amount),
	}
}

func TestCalculateOverallBalance(t *testing.T) {
	unsettled := []Transaction{
		txn("alice", "bob", "50.00"),
		txn("carol", "alice", "20.00"),
		txn("alice", "carol", "5.00"),
		txn("bob", "carol", "100.00"), // does not touch alice
	}

	bal := CalculateOverallBalance("alice", unsettled)
	if !bal.TotalOwedToYou.Equal(dec("20.00")) {
		t.Errorf("TotalOwedToYou = %s, want 20.00", bal.TotalOwedToYou)
	}
	if !bal.TotalYouOwe.Equal(dec("55.00")) {
		t.Errorf("TotalYouOwe = %s, want 55.00", bal.TotalYouOwe)
	}
	if !bal.NetBalance.Equal(dec("-35.00")) {
		t.Errorf("NetBalance = %s, want -35.00", bal.NetBalance)
	}
}

func TestCalculateOverallBalance_NoActivity(t *testing.T) {
	bal := CalculateOverallBalance("ghost", nil)
	if !bal.NetBalance.IsZero() || !bal.TotalOwedToYou.IsZero() || !bal.TotalYouOwe.IsZero() {
		t.Errorf("expected zero balance, got %+v", bal)
	}
}

func TestCalculateGroupBalances(t *testing.T) {
	unsettled := []Transaction{
		txn("alice", "bob", "60.00"),
		txn("alice", "bob", "40.00"),
		txn("bob", "carol", "30.00"),
		txn("carol", "alice", "10.00"),
	}

	balances := CalculateGroupBalances(unsettled)
	want := map[string]string{
		"alice": "-90.00",
		"bob":   "70.00",
		"carol": "20.00",
	}
	if len(balances) != len(want) {
		t.Fatalf("got %d users, want %d", len(balances), len(want))
	}
	for userID, amount := range want {
		if !balances[userID].Equal(dec(amount)) {
			t.Errorf("%s balance %s, want %s", userID, balances[userID], amount)
		}
	}
}

// Balances must sum to exactly zero for any transaction set: every amount is
// debited from one side and credited to the other.
func TestCalculateGroupBalances_Conservation(t *testing.T) {
	sets := [][]Transaction{
		nil,
		{txn("a", "b", "0.01")},
		{
			txn("a", "b", "33.34"), txn("b", "c", "12.99"), txn("c", "a", "7.77"),
			txn("d", "a", "0.03"), txn("b", "d", "100.00"), txn("c", "d", "55.55"),
		},
	}

	for i, set := range sets {
		balances := CalculateGroupBalances(set)
		sum := decimal.Zero
		for _, b := range balances {
			sum = sum.Add(b)
		}
		if !sum.IsZero() {
			t.Errorf("set %d: balances sum to %s, want 0", i, sum)
		}
	}
}
