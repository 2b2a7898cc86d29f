package pg

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GroupModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	CreatedBy string    `gorm:"size:255;not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GroupModel.
func (GroupModel) TableName() string {
	return "groups"
}

type GroupMemberModel struct {
	GroupID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID  string    `gorm:"size:255;primaryKey"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GroupMemberModel.
func (GroupMemberModel) TableName() string {
	return "group_members"
}

type ExpenseModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	GroupID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description string          `gorm:"size:255;not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(19,2);not null"`
	Policy      int             `gorm:"not null"`
	CreatedBy   string          `gorm:"size:255;not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for ExpenseModel.
func (ExpenseModel) TableName() string {
	return "expenses"
}

type ExpensePayerModel struct {
	ExpenseID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID    string          `gorm:"size:255;primaryKey"`
	Amount    decimal.Decimal `gorm:"type:numeric(19,2);not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for ExpensePayerModel.
func (ExpensePayerModel) TableName() string {
	return "expense_payers"
}

type ExpenseSplitModel struct {
	ExpenseID  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID     string          `gorm:"size:255;primaryKey"`
	Amount     decimal.Decimal `gorm:"type:numeric(19,2);not null"`
	Percentage decimal.Decimal `gorm:"type:numeric(7,4)"`
	Shares     int
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for ExpenseSplitModel.
func (ExpenseSplitModel) TableName() string {
	return "expense_splits"
}

// TransactionModel stores derived debts and settlement records. ExpenseID is
// text rather than uuid so the settlement sentinel can live in the same
// column as expense-derived rows.
type TransactionModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ExpenseID  string          `gorm:"size:64;not null;index"`
	GroupID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	FromUserID string          `gorm:"size:255;not null;index"`
	ToUserID   string          `gorm:"size:255;not null;index"`
	Amount     decimal.Decimal `gorm:"type:numeric(19,2);not null"`
	IsSettled  bool            `gorm:"not null;default:false"`
	SettledAt  *time.Time
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for TransactionModel.
func (TransactionModel) TableName() string {
	return "transactions"
}
