// Package accounts provides database operations for CMS accounts plus
// credential handling.
//
// Password hashes never leave this package: accounts returned from
// read operations carry an empty hash, and Authenticate does the
// comparison internally. Authenticate reports an unknown username and
// a wrong password identically (absent result, no error) so callers
// cannot be used to enumerate usernames.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"time"

	"github.com/mrlokans/chronicle/internal/auth"
	"github.com/mrlokans/chronicle/internal/database"
	"github.com/mrlokans/chronicle/internal/database/dberr"
	"github.com/mrlokans/chronicle/internal/entities"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrMissingID       = errors.New("account has no identity; save it first")
	ErrUsernameInvalid = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrEmailInvalid    = errors.New("invalid email format")
	ErrInvalidRole     = errors.New("invalid role")
)

// Repository handles all account database operations.
type Repository struct {
	pool *database.Pool
}

// NewRepository creates a new accounts repository on the injected pool.
func NewRepository(pool *database.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, username, display_name, email, password_hash, role, created_at, updated_at`

// GetAll returns every account, ordered by username. Password hashes
// are stripped.
func (r *Repository) GetAll(ctx context.Context) ([]entities.Account, error) {
	const op = "accounts.GetAll"

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY username`)
	if err != nil {
		return nil, dberr.Classify(op, err)
	}
	defer rows.Close()

	var accounts []entities.Account
	for rows.Next() {
		account, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, dberr.Classify(op, err)
		}
		account.PasswordHash = ""
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Classify(op, err)
	}
	return accounts, nil
}

// GetByID returns the account with the given id, or nil when no such
// account exists. The password hash is stripped.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entities.Account, error) {
	account, err := r.getOne(ctx, "accounts.GetByID", `id = ?`, id)
	if account != nil {
		account.PasswordHash = ""
	}
	return account, err
}

// GetByUsername returns the account with the given username, or nil
// when no such account exists. The password hash is stripped.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*entities.Account, error) {
	account, err := r.getOne(ctx, "accounts.GetByUsername", `username = ?`, username)
	if account != nil {
		account.PasswordHash = ""
	}
	return account, err
}

// Save inserts a new account row as-is (the hash must already be
// derived) and returns the assigned identity. Most callers want
// CreateAccount instead.
func (r *Repository) Save(ctx context.Context, account *entities.Account) (int64, error) {
	const op = "accounts.Save"

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	now := time.Now().UTC()
	res, err := conn.ExecContext(ctx, `
		INSERT INTO accounts (username, display_name, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.Username, account.DisplayName, account.Email,
		account.PasswordHash, string(account.Role), now, now,
	)
	if err != nil {
		return 0, dberr.Classify(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, dberr.Classify(op, err)
	}
	return id, nil
}

// Update replaces the account's profile columns. The password hash is
// not touched; use ChangePassword for that.
func (r *Repository) Update(ctx context.Context, account *entities.Account) error {
	const op = "accounts.Update"

	if account.ID == 0 {
		return dberr.New(dberr.Data, op, ErrMissingID)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx, `
		UPDATE accounts
		SET username = ?, display_name = ?, email = ?, role = ?, updated_at = ?
		WHERE id = ?`,
		account.Username, account.DisplayName, account.Email,
		string(account.Role), time.Now().UTC(), account.ID,
	); err != nil {
		return dberr.Classify(op, err)
	}
	return nil
}

// Delete removes an account.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	const op = "accounts.Delete"

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return dberr.Classify(op, err)
	}
	return nil
}

// CreateAccount validates the profile fields, hashes the password and
// inserts the account.
func (r *Repository) CreateAccount(ctx context.Context, username, displayName, email, password string, role entities.Role) (*entities.Account, error) {
	const op = "accounts.CreateAccount"

	if !usernamePattern.MatchString(username) {
		return nil, dberr.New(dberr.Data, op, ErrUsernameInvalid)
	}
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, dberr.New(dberr.Data, op, ErrEmailInvalid)
	}
	if !role.Valid() {
		return nil, dberr.New(dberr.Data, op, ErrInvalidRole)
	}

	hash, err := r.HashPassword(password)
	if err != nil {
		return nil, dberr.New(dberr.Data, op, err)
	}

	account := &entities.Account{
		Username:     username,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	id, err := r.Save(ctx, account)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// ChangePassword hashes the new password and stores it for the
// account.
func (r *Repository) ChangePassword(ctx context.Context, id int64, newPassword string) error {
	const op = "accounts.ChangePassword"

	hash, err := r.HashPassword(newPassword)
	if err != nil {
		return dberr.New(dberr.Data, op, err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id,
	); err != nil {
		return dberr.Classify(op, err)
	}
	return nil
}

// Authenticate looks up the account by username and verifies the
// password. It returns nil, nil both when the username is unknown and
// when the password is wrong; the two cases are intentionally
// indistinguishable to the caller.
func (r *Repository) Authenticate(ctx context.Context, username, password string) (*entities.Account, error) {
	account, err := r.getOne(ctx, "accounts.Authenticate", `username = ?`, username)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}

	ok, err := r.VerifyPassword(password, account.PasswordHash)
	if err != nil || !ok {
		return nil, err
	}
	account.PasswordHash = ""
	return account, nil
}

// HashPassword derives a salted argon2id hash for storage.
func (r *Repository) HashPassword(password string) (string, error) {
	return auth.HashPassword(password)
}

// VerifyPassword checks a candidate password against a stored hash in
// constant time.
func (r *Repository) VerifyPassword(password, hash string) (bool, error) {
	return auth.VerifyPassword(password, hash)
}

// getOne fetches a single account including its password hash. Callers
// on the public read surface strip the hash before returning.
func (r *Repository) getOne(ctx context.Context, op, where string, arg any) (*entities.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	row := conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	account, err := scanAccount(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dberr.Classify(op, err)
	}
	return account, nil
}

// scanAccount maps one row onto an Account, degrading an unrecognized
// stored role to the least-privileged non-viewer role instead of
// failing the read.
func scanAccount(scan func(...any) error) (*entities.Account, error) {
	var (
		account entities.Account
		role    string
	)
	if err := scan(
		&account.ID, &account.Username, &account.DisplayName, &account.Email,
		&account.PasswordHash, &role, &account.CreatedAt, &account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	account.Role = entities.ParseRole(role)
	return &account, nil
}
