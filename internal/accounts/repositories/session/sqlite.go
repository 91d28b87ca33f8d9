package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daybookhq/accounts-go/internal/accounts/models"
	"github.com/daybookhq/accounts-go/internal/dbx"
)

// SQLiteRepository stores the session in a single-row table. Save is a
// delete+insert inside one transaction so readers always observe a whole
// session.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, sess models.Session) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM account_session`); err != nil {
			return fmt.Errorf("failed to clear previous session: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO account_session (id, access_token, refresh_token, account_id)
			VALUES (1, ?, ?, ?)
		`, sess.AccessToken, sess.RefreshToken, sess.AccountID)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Get(ctx context.Context) (*models.Session, error) {
	var sess models.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, account_id FROM account_session WHERE id = 1
	`).Scan(&sess.AccessToken, &sess.RefreshToken, &sess.AccountID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM account_session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
