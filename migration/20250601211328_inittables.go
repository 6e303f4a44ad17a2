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
			emoji VARCHAR(16) NOT NULL DEFAULT '',
			currency VARCHAR(3) NOT NULL,
			invite_code VARCHAR(32),
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE UNIQUE INDEX idx_groups_invite_code ON groups(invite_code) WHERE invite_code <> '';`)
	if err != nil {
		return err
	}

	// Create group_members table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE group_members (
			group_id UUID NOT NULL,
			user_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			color_index INTEGER NOT NULL DEFAULT 0,
			joined_at TIMESTAMPTZ NOT NULL,
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

	// Create bills table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE bills (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL,
			payer_id UUID NOT NULL,
			title VARCHAR(255) NOT NULL,
			bill_date TIMESTAMPTZ NOT NULL,
			tax BIGINT NOT NULL DEFAULT 0,
			tip BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_bills_group
				FOREIGN KEY(group_id)
				REFERENCES groups(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_bills_group_id ON bills(group_id);`)
	if err != nil {
		return err
	}

	// Create bill_items table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE bill_items (
			id UUID PRIMARY KEY,
			bill_id UUID NOT NULL,
			group_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			mode INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_bill_items_bill
				FOREIGN KEY(bill_id)
				REFERENCES bills(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_bill_items_bill_id ON bill_items(bill_id);`)
	if err != nil {
		return err
	}

	// Create item_splits table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE item_splits (
			item_id UUID NOT NULL,
			user_id UUID NOT NULL,
			bill_id UUID NOT NULL,
			percentage NUMERIC(7,4),
			amount BIGINT,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (item_id, user_id),
			CONSTRAINT fk_item_splits_item
				FOREIGN KEY(item_id)
				REFERENCES bill_items(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_item_splits_bill_id ON item_splits(bill_id);`)
	if err != nil {
		return err
	}

	// Create payments table. No updated_at: payments are append-only.
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE payments (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL,
			from_user_id UUID NOT NULL,
			to_user_id UUID NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			note VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_payments_group
				FOREIGN KEY(group_id)
				REFERENCES groups(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_payments_group_id ON payments(group_id);`)
	if err != nil {
		return err
	}

	return nil
}

func downInitTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS payments;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS item_splits;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS bill_items;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS bills;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS group_members;`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS groups;`)
	if err != nil {
		return err
	}

	return nil
}
