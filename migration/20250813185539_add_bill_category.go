package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddBillCategory, downAddBillCategory)
}

func upAddBillCategory(ctx context.Context, tx *sql.Tx) error {
	// Add 'category' column to 'bills' table. Add it nullable first,
	// backfill existing rows, then tighten to NOT NULL.
	_, err := tx.ExecContext(ctx, `
		ALTER TABLE bills
		ADD COLUMN category INTEGER;
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bills
		SET category = 0;
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		ALTER TABLE bills
		ALTER COLUMN category SET NOT NULL;
	`)
	if err != nil {
		return err
	}

	return nil
}

func downAddBillCategory(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		ALTER TABLE bills
		DROP COLUMN IF EXISTS category;
	`)
	if err != nil {
		return err
	}

	return nil
}
