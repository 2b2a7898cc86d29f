package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "splitledger/db/db"
	"splitledger/db/mem"
	"splitledger/ledger"
	"splitledger/mq/goch"
	"splitledger/mq/mq"
	"splitledger/service"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func setupService() *service.LedgerService {
	return service.NewLedgerService(mem.NewInMemoryLedgerDBWrapper(), goch.NewGoChanLedgerMessageQueueWrapper())
}

// newTestGroup creates a group owned by the first member and adds the rest.
func newTestGroup(t *testing.T, svc *service.LedgerService, members ...string) *dbt.Group {
	t.Helper()
	group, err := svc.CreateGroup(members[0], "trip")
	require.NoError(t, err)
	for _, m := range members[1:] {
		group, err = svc.AddGroupMember(members[0], group.ID, m)
		require.NoError(t, err)
	}
	return group
}

func TestGroupAuthorization(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	_, err := svc.GetGroup("mallory", group.ID)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = svc.AddGroupMember("mallory", group.ID, "mallory")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = svc.CreateGroup("alice", "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.GetGroup("alice", uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateExpenseEqualSplit(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob", "carol")

	expense, err := svc.CreateExpense("alice", group.ID, service.ExpenseInput{
		Description:  "dinner",
		Amount:       dec("100.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob", "carol"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("100.00")}},
	})
	require.NoError(t, err)
	require.Len(t, expense.Splits, 3)

	// alice paid, so only bob and carol owe her
	balances, err := svc.GroupBalances("alice", group.ID)
	require.NoError(t, err)
	assert.True(t, balances["alice"].Equal(dec("66.66")))
	assert.True(t, balances["bob"].Equal(dec("-33.33")))
	assert.True(t, balances["carol"].Equal(dec("-33.33")))

	overall, err := svc.OverallBalance("bob")
	require.NoError(t, err)
	assert.True(t, overall.NetBalance.Equal(dec("-33.33")))
	assert.True(t, overall.TotalYouOwe.Equal(dec("33.33")))
}

func TestCreateExpenseValidation(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	// Actor outside the group
	_, err := svc.CreateExpense("mallory", group.ID, service.ExpenseInput{
		Amount:       dec("10.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("10.00")}},
	})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	// Participant outside the group
	_, err = svc.CreateExpense("alice", group.ID, service.ExpenseInput{
		Amount:       dec("10.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "stranger"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("10.00")}},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	// Payer outside the group
	_, err = svc.CreateExpense("alice", group.ID, service.ExpenseInput{
		Amount:       dec("10.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob"},
		PaidBy:       []ledger.PayerContribution{{UserID: "stranger", Amount: dec("10.00")}},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	// Payer total drifting from the expense amount
	_, err = svc.CreateExpense("alice", group.ID, service.ExpenseInput{
		Amount:       dec("10.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("9.00")}},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
}

func TestCreateExpensePublishesTransactions(t *testing.T) {
	queue := goch.NewGoChanLedgerMessageQueueWrapper()
	svc := service.NewLedgerService(mem.NewInMemoryLedgerDBWrapper(), queue)
	group := newTestGroup(t, svc, "alice", "bob")

	_, msgChan, err := queue.GetTransactionMessageQueue(mq.ActionCreate).Subscribe(group.ID)
	require.NoError(t, err)

	_, err = svc.CreateExpense("alice", group.ID, service.ExpenseInput{
		Description:  "taxi",
		Amount:       dec("20.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("20.00")}},
	})
	require.NoError(t, err)

	select {
	case msg := <-msgChan:
		assert.Equal(t, group.ID, msg.GroupID)
		assert.Equal(t, "bob", msg.FromUserID)
		assert.Equal(t, "alice", msg.ToUserID)
		assert.True(t, msg.Amount.Equal(dec("10.00")))
	case <-time.After(time.Second):
		t.Fatal("expected a transaction event")
	}
}

func TestUpdateExpenseShortCircuit(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	in := service.ExpenseInput{
		Description:  "groceries",
		Amount:       dec("50.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("50.00")}},
	}
	created, err := svc.CreateExpense("alice", group.ID, in)
	require.NoError(t, err)

	// Same content again: nothing changes, the stored expense comes back
	same, err := svc.UpdateExpense("bob", created.ID, in)
	require.NoError(t, err)
	assert.True(t, same.CreatedAt.Equal(created.CreatedAt))

	// A real change regenerates the derived transactions
	in.Amount = dec("80.00")
	in.PaidBy = []ledger.PayerContribution{{UserID: "alice", Amount: dec("80.00")}}
	updated, err := svc.UpdateExpense("bob", created.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(dec("80.00")))

	balances, err := svc.GroupBalances("alice", group.ID)
	require.NoError(t, err)
	assert.True(t, balances["bob"].Equal(dec("-40.00")))
}

func TestDeleteExpenseRemovesDebts(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	expense, err := svc.CreateExpense("alice", group.ID, service.ExpenseInput{
		Description:  "hotel",
		Amount:       dec("200.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("200.00")}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteExpense("alice", expense.ID))
	_, err = svc.GetExpense("alice", expense.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	balances, err := svc.GroupBalances("alice", group.ID)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestRecordPaymentPartialCover(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	// Two expenses leave bob owing alice 60 then 40
	for _, amount := range []string{"120.00", "80.00"} {
		_, err := svc.CreateExpense("alice", group.ID, service.ExpenseInput{
			Description:  "expense",
			Amount:       dec(amount),
			Policy:       ledger.SplitEqual,
			Participants: []string{"alice", "bob"},
			PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec(amount)}},
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	settlement, err := svc.RecordPayment("bob", group.ID, "bob", "alice", dec("70.00"), "")
	require.NoError(t, err)
	assert.True(t, settlement.IsSettled)
	assert.Equal(t, ledger.SettlementExpenseID, settlement.ExpenseID)
	assert.NotEqual(t, uuid.Nil, settlement.ID)

	// The oldest debt (60) is settled in full; the newer 40 shrinks to 30
	balances, err := svc.GroupBalances("bob", group.ID)
	require.NoError(t, err)
	assert.True(t, balances["bob"].Equal(dec("-30.00")))
	assert.True(t, balances["alice"].Equal(dec("30.00")))

	history, err := svc.SettlementHistory("bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Amount.Equal(dec("70.00")))
}

func TestRecordPaymentOverpayment(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	_, err := svc.CreateExpense("alice", group.ID, service.ExpenseInput{
		Description:  "lunch",
		Amount:       dec("30.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("30.00")}},
	})
	require.NoError(t, err)

	// Paying more than owed clears everything without creating a reverse debt
	_, err = svc.RecordPayment("bob", group.ID, "bob", "alice", dec("100.00"), "")
	require.NoError(t, err)

	balances, err := svc.GroupBalances("bob", group.ID)
	require.NoError(t, err)
	for user, balance := range balances {
		assert.True(t, balance.IsZero(), "user %s should be settled", user)
	}
}

func TestRecordPaymentNoDebt(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	// A payment with no outstanding debt is still recorded as history
	_, err := svc.RecordPayment("bob", group.ID, "bob", "alice", dec("15.00"), "")
	require.NoError(t, err)

	history, err := svc.SettlementHistory("alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Amount.Equal(dec("15.00")))
}

func TestRecordPaymentValidation(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	_, err := svc.RecordPayment("mallory", group.ID, "bob", "alice", dec("10.00"), "")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = svc.RecordPayment("bob", group.ID, "bob", "bob", dec("10.00"), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.RecordPayment("bob", group.ID, "bob", "stranger", dec("10.00"), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.RecordPayment("bob", group.ID, "bob", "alice", dec("0"), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = svc.RecordPayment("bob", group.ID, "bob", "alice", dec("-5.00"), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
}

func TestConcurrentPaymentsNeverOverSettle(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob")

	_, err := svc.CreateExpense("alice", group.ID, service.ExpenseInput{
		Description:  "rent",
		Amount:       dec("100.00"),
		Policy:       ledger.SplitEqual,
		Participants: []string{"alice", "bob"},
		PaidBy:       []ledger.PayerContribution{{UserID: "alice", Amount: dec("100.00")}},
	})
	require.NoError(t, err)

	// Two racing 50.00 payments: both settlements are recorded, but the
	// 50.00 debt is consumed exactly once.
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment("bob", group.ID, "bob", "alice", dec("50.00"), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	overall, err := svc.OverallBalance("bob")
	require.NoError(t, err)
	assert.True(t, overall.NetBalance.IsZero(), "got %s", overall.NetBalance)

	history, err := svc.SettlementHistory("bob")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSimplifiedDebts(t *testing.T) {
	svc := setupService()
	group := newTestGroup(t, svc, "alice", "bob", "carol")

	// bob owes alice 40, carol owes alice 20, carol owes bob 10
	for _, c := range []struct {
		from, to, amount string
	}{
		{"bob", "alice", "40.00"},
		{"carol", "alice", "20.00"},
		{"carol", "bob", "10.00"},
	} {
		_, err := svc.CreateExpense("alice", group.ID, service.ExpenseInput{
			Description: "expense",
			Amount:      dec(c.amount),
			Policy:      ledger.SplitExact,
			Details: ledger.SplitDetails{
				Amounts: []ledger.UserAmount{{UserID: c.from, Amount: dec(c.amount)}},
			},
			PaidBy: []ledger.PayerContribution{{UserID: c.to, Amount: dec(c.amount)}},
		})
		require.NoError(t, err)
	}

	plan, err := svc.SimplifiedDebts("alice", group.ID)
	require.NoError(t, err)

	// alice is owed 60, bob nets -30, carol nets -30: two instructions
	require.Len(t, plan, 2)
	total := decimal.Zero
	for _, p := range plan {
		assert.Equal(t, "alice", p.ToUserID)
		total = total.Add(p.Amount)
	}
	assert.True(t, total.Equal(dec("60.00")))
}
