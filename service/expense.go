package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbt "splitledger/db/db"
	"splitledger/ledger"
	"splitledger/mq/mq"
)

// ExpenseInput carries everything needed to build an expense: the total, the
// split policy with its details, who participated and who paid what.
type ExpenseInput struct {
	Description  string
	Amount       decimal.Decimal
	Policy       ledger.SplitPolicy
	Participants []string
	Details      ledger.SplitDetails
	PaidBy       []ledger.PayerContribution
}

// CreateExpense validates the input against the group membership, runs the
// split calculator and the transaction deriver, and persists everything in
// one store transaction. Derived transactions are announced on the queue.
func (s *LedgerService) CreateExpense(actorID string, groupID uuid.UUID, in ExpenseInput) (*dbt.Expense, error) {
	group, err := s.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !isMember(group, actorID) {
		return nil, fmt.Errorf("%w: user %s is not a member of group %s", ledger.ErrUnauthorized, actorID, groupID)
	}

	splits, err := ledger.CalculateSplits(in.Amount, in.Policy, in.Details, in.Participants)
	if err != nil {
		return nil, err
	}
	if err := checkExpenseUsers(group, splits, in.PaidBy); err != nil {
		return nil, err
	}

	expenseID := uuid.New()
	transactions, err := ledger.DeriveTransactions(expenseID.String(), groupID, in.Amount, in.PaidBy, splits)
	if err != nil {
		return nil, err
	}

	expense := &dbt.Expense{
		ExpenseInfo: dbt.ExpenseInfo{
			ID:          expenseID,
			GroupID:     groupID,
			Description: in.Description,
			Amount:      in.Amount,
			Policy:      in.Policy,
			CreatedBy:   actorID,
		},
		ExpenseData: dbt.ExpenseData{
			Payers: in.PaidBy,
			Splits: splits,
		},
	}
	if err := s.store.CreateExpense(expense, transactions); err != nil {
		return nil, err
	}

	s.publishTransactions(mq.ActionCreate, transactions)
	return expense, nil
}

// UpdateExpense recomputes splits and transactions for an existing expense.
// When the incoming expense equals the stored one the update short-circuits
// and nothing is written or published.
func (s *LedgerService) UpdateExpense(actorID string, expenseID uuid.UUID, in ExpenseInput) (*dbt.Expense, error) {
	stored, err := s.store.GetExpense(expenseID)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(stored.GroupID)
	if err != nil {
		return nil, err
	}
	if !isMember(group, actorID) {
		return nil, fmt.Errorf("%w: user %s is not a member of group %s", ledger.ErrUnauthorized, actorID, stored.GroupID)
	}

	splits, err := ledger.CalculateSplits(in.Amount, in.Policy, in.Details, in.Participants)
	if err != nil {
		return nil, err
	}
	if err := checkExpenseUsers(group, splits, in.PaidBy); err != nil {
		return nil, err
	}

	updated := &dbt.Expense{
		ExpenseInfo: dbt.ExpenseInfo{
			ID:          stored.ID,
			GroupID:     stored.GroupID,
			Description: in.Description,
			Amount:      in.Amount,
			Policy:      in.Policy,
			CreatedBy:   stored.CreatedBy,
			CreatedAt:   stored.CreatedAt,
		},
		ExpenseData: dbt.ExpenseData{
			Payers: in.PaidBy,
			Splits: splits,
		},
	}

	changelog, err := s.differ.Diff(stored, updated)
	if err != nil {
		return nil, fmt.Errorf("failed to diff expense %s: %w", expenseID, err)
	}
	if len(changelog) == 0 {
		return stored, nil
	}

	transactions, err := ledger.DeriveTransactions(stored.ID.String(), stored.GroupID, in.Amount, in.PaidBy, splits)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateExpense(updated, transactions); err != nil {
		return nil, err
	}

	s.publishTransactions(mq.ActionUpdate, transactions)
	return updated, nil
}

// DeleteExpense removes an expense and its derived transactions.
func (s *LedgerService) DeleteExpense(actorID string, expenseID uuid.UUID) error {
	stored, err := s.store.GetExpense(expenseID)
	if err != nil {
		return err
	}
	group, err := s.store.GetGroup(stored.GroupID)
	if err != nil {
		return err
	}
	if !isMember(group, actorID) {
		return fmt.Errorf("%w: user %s is not a member of group %s", ledger.ErrUnauthorized, actorID, stored.GroupID)
	}

	// Snapshot the debts being removed so their deletion can be announced.
	unsettled, err := s.store.GetUnsettledByGroup(stored.GroupID)
	if err != nil {
		return err
	}
	var removed []ledger.Transaction
	for _, t := range unsettled {
		if t.ExpenseID == expenseID.String() {
			removed = append(removed, t)
		}
	}

	if err := s.store.DeleteExpense(expenseID); err != nil {
		return err
	}

	s.publishTransactions(mq.ActionDelete, removed)
	return nil
}

// GetExpense returns an expense visible to the acting user.
func (s *LedgerService) GetExpense(actorID string, expenseID uuid.UUID) (*dbt.Expense, error) {
	stored, err := s.store.GetExpense(expenseID)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(stored.GroupID)
	if err != nil {
		return nil, err
	}
	if !isMember(group, actorID) {
		return nil, fmt.Errorf("%w: user %s is not a member of group %s", ledger.ErrUnauthorized, actorID, stored.GroupID)
	}
	return stored, nil
}

func (s *LedgerService) publishTransactions(action mq.Action, transactions []ledger.Transaction) {
	queue := s.queue.GetTransactionMessageQueue(action)
	if queue == nil {
		return
	}
	for _, t := range transactions {
		logPublishError("transaction."+action.String(), queue.Publish(mq.TransactionMessage{
			ExpenseID:  t.ExpenseID,
			GroupID:    t.GroupID,
			FromUserID: t.FromUserID,
			ToUserID:   t.ToUserID,
			Amount:     t.Amount,
		}))
	}
}

// checkExpenseUsers rejects splits or payers naming someone outside the group.
func checkExpenseUsers(group *dbt.Group, splits []ledger.Split, paidBy []ledger.PayerContribution) error {
	for _, split := range splits {
		if !isMember(group, split.UserID) {
			return fmt.Errorf("%w: split user %s is not a member of group %s", ledger.ErrInvalidArgument, split.UserID, group.ID)
		}
	}
	for _, payer := range paidBy {
		if !isMember(group, payer.UserID) {
			return fmt.Errorf("%w: payer %s is not a member of group %s", ledger.ErrInvalidArgument, payer.UserID, group.ID)
		}
	}
	return nil
}
