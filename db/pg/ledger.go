package pg

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbt "splitledger/db/db"
	"splitledger/ledger"
)

// GORMLedgerDBWrapper is a GORM-based PostgreSQL implementation of dbt.LedgerDBWrapper.
type GORMLedgerDBWrapper struct {
	db *gorm.DB
}

// NewGORMLedgerDBWrapper creates and returns a new instance of GORMLedgerDBWrapper.
func NewGORMLedgerDBWrapper(db *gorm.DB) dbt.LedgerDBWrapper {
	return &GORMLedgerDBWrapper{
		db: db,
	}
}

// CreateGroup creates a new group; the creator is inserted as its first member.
func (pgdb *GORMLedgerDBWrapper) CreateGroup(info *dbt.GroupInfo) error {
	if info.ID == uuid.Nil {
		info.ID = uuid.New()
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}

	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		groupModel := GroupModel{
			ID:        info.ID,
			Name:      info.Name,
			CreatedBy: info.CreatedBy,
			CreatedAt: info.CreatedAt,
		}
		if result := tx.Create(&groupModel); result.Error != nil {
			return result.Error
		}
		memberModel := GroupMemberModel{GroupID: info.ID, UserID: info.CreatedBy}
		if result := tx.Create(&memberModel); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return fmt.Errorf("%w: group with ID %s already exists", ledger.ErrConflict, info.ID)
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// AddGroupMember adds a user to an existing group.
func (pgdb *GORMLedgerDBWrapper) AddGroupMember(groupID uuid.UUID, userID string) error {
	memberModel := GroupMemberModel{
		GroupID: groupID,
		UserID:  userID,
	}
	result := pgdb.db.Create(&memberModel)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "duplicate key value violates unique constraint") {
			return fmt.Errorf("%w: user %s already in group %s", ledger.ErrConflict, userID, groupID)
		}
		if strings.Contains(result.Error.Error(), "violates foreign key constraint") {
			return fmt.Errorf("%w: group with ID %s", ledger.ErrNotFound, groupID)
		}
		return fmt.Errorf("failed to add member %s to group %s: %w", userID, groupID, result.Error)
	}
	return nil
}

// GetGroup retrieves a group with its member list by ID.
func (pgdb *GORMLedgerDBWrapper) GetGroup(id uuid.UUID) (*dbt.Group, error) {
	var groupModel GroupModel
	result := pgdb.db.First(&groupModel, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: group with ID %s", ledger.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get group %s: %w", id, result.Error)
	}

	var memberModels []GroupMemberModel
	result = pgdb.db.Where("group_id = ?", id).Order("created_at ASC, user_id ASC").Find(&memberModels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get members of group %s: %w", id, result.Error)
	}

	group := dbt.Group{
		GroupInfo: dbt.GroupInfo{
			ID:        groupModel.ID,
			Name:      groupModel.Name,
			CreatedBy: groupModel.CreatedBy,
			CreatedAt: groupModel.CreatedAt,
		},
	}
	for _, m := range memberModels {
		group.MemberIDs = append(group.MemberIDs, m.UserID)
	}
	return &group, nil
}

// CreateExpense stores an expense with its payers, splits and derived
// transactions in one database transaction.
func (pgdb *GORMLedgerDBWrapper) CreateExpense(expense *dbt.Expense, transactions []ledger.Transaction) error {
	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}

	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(expenseToModel(expense)); result.Error != nil {
			return result.Error
		}
		return insertExpenseChildren(tx, expense, transactions)
	})
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return fmt.Errorf("%w: expense with ID %s already exists", ledger.ErrConflict, expense.ID)
		}
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense with its payers and splits by ID.
func (pgdb *GORMLedgerDBWrapper) GetExpense(id uuid.UUID) (*dbt.Expense, error) {
	var expenseModel ExpenseModel
	result := pgdb.db.First(&expenseModel, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: expense with ID %s", ledger.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get expense %s: %w", id, result.Error)
	}

	var payerModels []ExpensePayerModel
	if result := pgdb.db.Where("expense_id = ?", id).Order("user_id ASC").Find(&payerModels); result.Error != nil {
		return nil, fmt.Errorf("failed to get payers of expense %s: %w", id, result.Error)
	}
	var splitModels []ExpenseSplitModel
	if result := pgdb.db.Where("expense_id = ?", id).Order("user_id ASC").Find(&splitModels); result.Error != nil {
		return nil, fmt.Errorf("failed to get splits of expense %s: %w", id, result.Error)
	}

	expense := dbt.Expense{
		ExpenseInfo: dbt.ExpenseInfo{
			ID:          expenseModel.ID,
			GroupID:     expenseModel.GroupID,
			Description: expenseModel.Description,
			Amount:      expenseModel.Amount,
			Policy:      ledger.SplitPolicy(expenseModel.Policy),
			CreatedBy:   expenseModel.CreatedBy,
			CreatedAt:   expenseModel.CreatedAt,
		},
	}
	for _, p := range payerModels {
		expense.Payers = append(expense.Payers, ledger.PayerContribution{UserID: p.UserID, Amount: p.Amount})
	}
	for _, s := range splitModels {
		expense.Splits = append(expense.Splits, ledger.Split{
			UserID:     s.UserID,
			Amount:     s.Amount,
			Percentage: s.Percentage,
			Shares:     s.Shares,
		})
	}
	return &expense, nil
}

// UpdateExpense replaces the stored expense and regenerates its transactions.
// The prior payers, splits and transactions of the expense are dropped in the
// same database transaction so no stale debt survives the update.
func (pgdb *GORMLedgerDBWrapper) UpdateExpense(expense *dbt.Expense, transactions []ledger.Transaction) error {
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		model := expenseToModel(expense)
		result := tx.Model(&ExpenseModel{}).Where("id = ?", expense.ID).
			Select("group_id", "description", "amount", "policy").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: expense with ID %s", ledger.ErrNotFound, expense.ID)
		}

		if err := deleteExpenseChildren(tx, expense.ID); err != nil {
			return err
		}
		return insertExpenseChildren(tx, expense, transactions)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update expense %s: %w", expense.ID, err)
	}
	return nil
}

// DeleteExpense removes an expense and every row derived from it.
func (pgdb *GORMLedgerDBWrapper) DeleteExpense(id uuid.UUID) error {
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&ExpenseModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: expense with ID %s", ledger.ErrNotFound, id)
		}
		return deleteExpenseChildren(tx, id)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete expense %s: %w", id, err)
	}
	return nil
}

// CreateTransaction stores a single transaction.
func (pgdb *GORMLedgerDBWrapper) CreateTransaction(transaction *ledger.Transaction) error {
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = time.Now()
	}
	result := pgdb.db.Create(transactionToModel(*transaction))
	if result.Error != nil {
		return fmt.Errorf("failed to create transaction %s: %w", transaction.ID, result.Error)
	}
	return nil
}

// GetUnsettledByUser retrieves the unsettled transactions a user takes part
// in, on either side, oldest first.
func (pgdb *GORMLedgerDBWrapper) GetUnsettledByUser(userID string) ([]ledger.Transaction, error) {
	var models []TransactionModel
	result := pgdb.db.
		Where("is_settled = false AND (from_user_id = ? OR to_user_id = ?)", userID, userID).
		Order("created_at ASC, id ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get unsettled transactions for user %s: %w", userID, result.Error)
	}
	return modelsToTransactions(models), nil
}

// GetUnsettledByGroup retrieves the unsettled transactions of a group, oldest first.
func (pgdb *GORMLedgerDBWrapper) GetUnsettledByGroup(groupID uuid.UUID) ([]ledger.Transaction, error) {
	var models []TransactionModel
	result := pgdb.db.
		Where("is_settled = false AND group_id = ?", groupID).
		Order("created_at ASC, id ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get unsettled transactions for group %s: %w", groupID, result.Error)
	}
	return modelsToTransactions(models), nil
}

// GetUnsettledBetween retrieves the unsettled debts of one user toward
// another, oldest first. Direction matters: fromUserID is the debtor.
func (pgdb *GORMLedgerDBWrapper) GetUnsettledBetween(fromUserID, toUserID string) ([]ledger.Transaction, error) {
	var models []TransactionModel
	result := pgdb.db.
		Where("is_settled = false AND from_user_id = ? AND to_user_id = ?", fromUserID, toUserID).
		Order("created_at ASC, id ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get unsettled debts from %s to %s: %w", fromUserID, toUserID, result.Error)
	}
	return modelsToTransactions(models), nil
}

// CountTransactionsByUser counts every transaction touching a user, settled or not.
func (pgdb *GORMLedgerDBWrapper) CountTransactionsByUser(userID string) (int64, error) {
	var count int64
	result := pgdb.db.Model(&TransactionModel{}).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count transactions for user %s: %w", userID, result.Error)
	}
	return count, nil
}

// GetSettlementHistory retrieves the settlement records touching a user, newest first.
func (pgdb *GORMLedgerDBWrapper) GetSettlementHistory(userID string) ([]ledger.Transaction, error) {
	var models []TransactionModel
	result := pgdb.db.
		Where("is_settled = true AND expense_id = ? AND (from_user_id = ? OR to_user_id = ?)",
			ledger.SettlementExpenseID, userID, userID).
		Order("created_at DESC, id ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get settlement history for user %s: %w", userID, result.Error)
	}
	return modelsToTransactions(models), nil
}

// SettleDebts records the settlement transaction and applies the allocation
// in one database transaction. Each debt row is locked with FOR UPDATE and
// re-checked against the allocation; any mismatch means a concurrent payment
// intervened and the whole batch is rolled back with ledger.ErrConflict.
func (pgdb *GORMLedgerDBWrapper) SettleDebts(settlement *ledger.Transaction, ops []ledger.SettlementOp) error {
	now := time.Now()
	err := pgdb.db.Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			var debtModel TransactionModel
			result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&debtModel, "id = ?", op.Debt.ID)
			if result.Error != nil {
				if errors.Is(result.Error, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: debt %s no longer exists", ledger.ErrConflict, op.Debt.ID)
				}
				return result.Error
			}
			if debtModel.IsSettled || !debtModel.Amount.Equal(op.Debt.Amount) {
				return fmt.Errorf("%w: debt %s changed since allocation", ledger.ErrConflict, op.Debt.ID)
			}
		}

		settlement.ID = uuid.New()
		settlement.CreatedAt = now
		settlement.IsSettled = true
		settlement.SettledAt = &now
		if result := tx.Create(transactionToModel(*settlement)); result.Error != nil {
			return result.Error
		}

		for _, op := range ops {
			result := tx.Model(&TransactionModel{}).Where("id = ?", op.Debt.ID).
				Updates(map[string]any{"is_settled": true, "settled_at": now})
			if result.Error != nil {
				return result.Error
			}

			if op.Remainder.IsPositive() {
				paid := op.Debt
				paid.ID = uuid.New()
				paid.Amount = op.Paid
				paid.IsSettled = true
				paid.SettledAt = &now
				if result := tx.Create(transactionToModel(paid)); result.Error != nil {
					return result.Error
				}

				// The remainder keeps the original creation time so it holds
				// its place in the oldest-first queue.
				remainder := op.Debt
				remainder.ID = uuid.New()
				remainder.Amount = op.Remainder
				remainder.IsSettled = false
				remainder.SettledAt = nil
				if result := tx.Create(transactionToModel(remainder)); result.Error != nil {
					return result.Error
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return err
		}
		return fmt.Errorf("failed to settle debts: %w", err)
	}
	return nil
}

func expenseToModel(expense *dbt.Expense) *ExpenseModel {
	return &ExpenseModel{
		ID:          expense.ID,
		GroupID:     expense.GroupID,
		Description: expense.Description,
		Amount:      expense.Amount,
		Policy:      int(expense.Policy),
		CreatedBy:   expense.CreatedBy,
		CreatedAt:   expense.CreatedAt,
	}
}

func transactionToModel(t ledger.Transaction) *TransactionModel {
	return &TransactionModel{
		ID:         t.ID,
		ExpenseID:  t.ExpenseID,
		GroupID:    t.GroupID,
		FromUserID: t.FromUserID,
		ToUserID:   t.ToUserID,
		Amount:     t.Amount,
		IsSettled:  t.IsSettled,
		SettledAt:  t.SettledAt,
		CreatedAt:  t.CreatedAt,
	}
}

func modelsToTransactions(models []TransactionModel) []ledger.Transaction {
	var out []ledger.Transaction
	for _, m := range models {
		out = append(out, ledger.Transaction{
			ID:         m.ID,
			ExpenseID:  m.ExpenseID,
			GroupID:    m.GroupID,
			FromUserID: m.FromUserID,
			ToUserID:   m.ToUserID,
			Amount:     m.Amount,
			IsSettled:  m.IsSettled,
			CreatedAt:  m.CreatedAt,
			SettledAt:  m.SettledAt,
		})
	}
	return out
}

func insertExpenseChildren(tx *gorm.DB, expense *dbt.Expense, transactions []ledger.Transaction) error {
	if len(expense.Payers) > 0 {
		var payerModels []ExpensePayerModel
		for _, p := range expense.Payers {
			payerModels = append(payerModels, ExpensePayerModel{
				ExpenseID: expense.ID,
				UserID:    p.UserID,
				Amount:    p.Amount,
			})
		}
		if result := tx.Create(&payerModels); result.Error != nil {
			return result.Error
		}
	}

	if len(expense.Splits) > 0 {
		var splitModels []ExpenseSplitModel
		for _, s := range expense.Splits {
			splitModels = append(splitModels, ExpenseSplitModel{
				ExpenseID:  expense.ID,
				UserID:     s.UserID,
				Amount:     s.Amount,
				Percentage: s.Percentage,
				Shares:     s.Shares,
			})
		}
		if result := tx.Create(&splitModels); result.Error != nil {
			return result.Error
		}
	}

	if len(transactions) > 0 {
		now := time.Now()
		var txnModels []TransactionModel
		for _, t := range transactions {
			if t.ID == uuid.Nil {
				t.ID = uuid.New()
			}
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			if t.ExpenseID == "" {
				t.ExpenseID = expense.ID.String()
			}
			txnModels = append(txnModels, *transactionToModel(t))
		}
		if result := tx.Create(&txnModels); result.Error != nil {
			return result.Error
		}
	}
	return nil
}

func deleteExpenseChildren(tx *gorm.DB, expenseID uuid.UUID) error {
	if result := tx.Delete(&ExpensePayerModel{}, "expense_id = ?", expenseID); result.Error != nil {
		return result.Error
	}
	if result := tx.Delete(&ExpenseSplitModel{}, "expense_id = ?", expenseID); result.Error != nil {
		return result.Error
	}
	if result := tx.Delete(&TransactionModel{}, "expense_id = ?", expenseID.String()); result.Error != nil {
		return result.Error
	}
	return nil
}
