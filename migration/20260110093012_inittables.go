package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInitTables, downInitTables)
}

func upInitTables(ctx context.Context, tx *sql.Tx) error {
	// Create groups table
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE groups (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	// Create group_members table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE group_members (
			group_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (group_id, user_id),
			CONSTRAINT fk_group_members_group
				FOREIGN KEY(group_id)
				REFERENCES groups(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	// Create expenses table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expenses (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL,
			description VARCHAR(255) NOT NULL,
			amount NUMERIC(19,2) NOT NULL,
			policy INT NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_expenses_group
				FOREIGN KEY(group_id)
				REFERENCES groups(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_expenses_group_id ON expenses(group_id);`)
	if err != nil {
		return err
	}

	// Create expense_payers table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expense_payers (
			expense_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			amount NUMERIC(19,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (expense_id, user_id),
			CONSTRAINT fk_expense_payers_expense
				FOREIGN KEY(expense_id)
				REFERENCES expenses(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	// Create expense_splits table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expense_splits (
			expense_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			amount NUMERIC(19,2) NOT NULL,
			percentage NUMERIC(7,4) NOT NULL DEFAULT 0,
			shares INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (expense_id, user_id),
			CONSTRAINT fk_expense_splits_expense
				FOREIGN KEY(expense_id)
				REFERENCES expenses(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	// Create transactions table. expense_id is text, not a foreign key: it
	// holds either an expense UUID or the settlement sentinel, and settled
	// rows must survive the deletion of their expense.
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE transactions (
			id UUID PRIMARY KEY,
			expense_id VARCHAR(64) NOT NULL,
			group_id UUID NOT NULL,
			from_user_id VARCHAR(255) NOT NULL,
			to_user_id VARCHAR(255) NOT NULL,
			amount NUMERIC(19,2) NOT NULL,
			is_settled BOOLEAN NOT NULL DEFAULT FALSE,
			settled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	for _, stmt := range []string{
		`CREATE INDEX idx_transactions_expense_id ON transactions(expense_id);`,
		`CREATE INDEX idx_transactions_group_id ON transactions(group_id);`,
		`CREATE INDEX idx_transactions_from_user_id ON transactions(from_user_id);`,
		`CREATE INDEX idx_transactions_to_user_id ON transactions(to_user_id);`,
		`CREATE INDEX idx_transactions_pair_unsettled ON transactions(from_user_id, to_user_id, created_at) WHERE is_settled = FALSE;`,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func downInitTables(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS transactions;`,
		`DROP TABLE IF EXISTS expense_splits;`,
		`DROP TABLE IF EXISTS expense_payers;`,
		`DROP TABLE IF EXISTS expenses;`,
		`DROP TABLE IF EXISTS group_members;`,
		`DROP TABLE IF EXISTS groups;`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
