package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict means the account changed since it was read.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so transactions can't be nested by accident.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. It commits when fn returns
	// nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Accounts is the account persistence contract the 2FA flows depend on.
// General account CRUD lives elsewhere; only what sign-in and 2FA need is here.
type Accounts interface {
	// GetAccountByID returns the account with its 2FA state and backup code hashes.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail matches case-insensitively.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetAccountByOAuthSubject finds an oauth account by provider identity.
	GetAccountByOAuthSubject(ctx context.Context, provider, subject string) (domain.Account, error)

	// CreateAccount inserts a new account (id is provided by the caller via ULID).
	CreateAccount(ctx context.Context, a domain.Account) error

	// SaveSecurity writes a.Security, including the full backup code list,
	// if a.Version still matches the stored row. On success a.Version and
	// a.UpdatedAt are advanced; on a stale version it returns ErrConflict.
	SaveSecurity(ctx context.Context, a *domain.Account) error

	// ComparePassword reports whether plaintext matches a local account's
	// password. A wrong password is (false, nil).
	ComparePassword(ctx context.Context, a domain.Account, plaintext string) (bool, error)
}
