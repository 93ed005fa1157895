package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/aussiebroadwan/twofa/pkg/cryptox"
)

const accountColumns = `id, email, first_name, last_name, kind, password_hash, oauth_provider,
	oauth_subject, two_factor_enabled, two_factor_secret, two_factor_updated_at,
	version, created_at, updated_at`

type accountsRepo struct {
	db dbtx

	// begin is set outside a transaction so multi-statement writes can open one.
	begin func(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	now   func() time.Time
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.TrimSpace(email))
}

func (r *accountsRepo) GetAccountByOAuthSubject(ctx context.Context, provider, subject string) (domain.Account, error) {
	return r.getOne(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE kind = 'oauth' AND oauth_provider = ? AND oauth_subject = ?`,
		provider, subject,
	)
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	if !a.Kind.Valid() {
		return fmt.Errorf("sqlite: create account: unknown kind %q", a.Kind)
	}
	now := r.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	return r.withinTx(ctx, func(q dbtx) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO accounts (`+accountColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			a.ID,
			strings.TrimSpace(a.Email),
			a.FirstName,
			a.LastName,
			string(a.Kind),
			mapStringNull(a.PasswordHash),
			mapStringNull(a.OAuthProvider),
			mapStringNull(a.OAuthSubject),
			a.Security.TwoFactorEnabled,
			mapStringNull(a.Security.TwoFactorSecret),
			mapOptionalTime(a.Security.TwoFactorUpdatedAt),
			a.CreatedAt.UTC(),
			a.UpdatedAt.UTC(),
		)
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		if err != nil {
			return err
		}
		return replaceBackupCodes(ctx, q, a.ID, a.Security.TwoFactorBackupCodes)
	})
}

func (r *accountsRepo) SaveSecurity(ctx context.Context, a *domain.Account) error {
	now := r.now()
	err := r.withinTx(ctx, func(q dbtx) error {
		res, err := q.ExecContext(ctx, `
			UPDATE accounts
			SET two_factor_enabled = ?,
			    two_factor_secret = ?,
			    two_factor_updated_at = ?,
			    version = version + 1,
			    updated_at = ?
			WHERE id = ? AND version = ?`,
			a.Security.TwoFactorEnabled,
			mapStringNull(a.Security.TwoFactorSecret),
			mapOptionalTime(a.Security.TwoFactorUpdatedAt),
			now,
			a.ID,
			a.Version,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			err := q.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, a.ID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			if err != nil {
				return err
			}
			return store.ErrConflict
		}
		return replaceBackupCodes(ctx, q, a.ID, a.Security.TwoFactorBackupCodes)
	})
	if err != nil {
		return err
	}

	a.Version++
	a.UpdatedAt = now
	return nil
}

func (r *accountsRepo) ComparePassword(_ context.Context, a domain.Account, plaintext string) (bool, error) {
	if a.Kind != domain.KindLocal || a.PasswordHash == "" {
		return false, nil
	}
	err := cryptox.VerifyPassword(plaintext, a.PasswordHash)
	if errors.Is(err, cryptox.ErrPasswordMismatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *accountsRepo) getOne(ctx context.Context, query string, args ...any) (domain.Account, error) {
	var (
		a            domain.Account
		kind         string
		passwordHash sql.NullString
		provider     sql.NullString
		subject      sql.NullString
		secret       sql.NullString
		changedAt    sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID,
		&a.Email,
		&a.FirstName,
		&a.LastName,
		&kind,
		&passwordHash,
		&provider,
		&subject,
		&a.Security.TwoFactorEnabled,
		&secret,
		&changedAt,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Kind = domain.AccountKind(kind)
	a.PasswordHash = mapNullString(passwordHash)
	a.OAuthProvider = mapNullString(provider)
	a.OAuthSubject = mapNullString(subject)
	a.Security.TwoFactorSecret = mapNullString(secret)
	a.Security.TwoFactorUpdatedAt = mapNullTimePtr(changedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()

	codes, err := listBackupCodes(ctx, r.db, a.ID)
	if err != nil {
		return domain.Account{}, err
	}
	a.Security.TwoFactorBackupCodes = codes
	return a, nil
}

// withinTx runs fn in the surrounding transaction, or in a new one when the
// repo was handed out by the root Store.
func (r *accountsRepo) withinTx(ctx context.Context, fn func(q dbtx) error) error {
	if r.begin == nil {
		return fn(r.db)
	}

	tx, err := r.begin(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func listBackupCodes(ctx context.Context, q dbtx, accountID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT code_hash FROM backup_codes WHERE account_id = ? ORDER BY position`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var codes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		codes = append(codes, h)
	}
	return codes, rows.Err()
}

func replaceBackupCodes(ctx context.Context, q dbtx, accountID string, hashes []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM backup_codes WHERE account_id = ?`, accountID); err != nil {
		return err
	}
	for i, h := range hashes {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO backup_codes (account_id, position, code_hash) VALUES (?, ?, ?)`,
			accountID, i, h,
		); err != nil {
			return err
		}
	}
	return nil
}
