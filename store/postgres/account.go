package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/santokhan/authkit"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const uniqueViolation = "23505"

const selectColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(username, ''),
	password_hash, role, verified, created_at, updated_at, last_login`

// sortColumns whitelists ORDER BY targets.
var sortColumns = map[authkit.SortField]string{
	authkit.SortCreatedAt: "created_at",
	authkit.SortUpdatedAt: "updated_at",
	authkit.SortEmail:     "email",
	authkit.SortName:      "name",
	authkit.SortPhone:     "phone",
}

type AccountRepository struct {
	db  DB
	now func() time.Time
}

var _ authkit.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

func (r *AccountRepository) FindByContact(ctx context.Context, c authkit.Contact) (authkit.Account, error) {
	var column, value string
	switch {
	case c.Email != "":
		column, value = "email", c.Email
	case c.Phone != "":
		column, value = "phone", c.Phone
	case c.Username != "":
		column, value = "username", c.Username
	default:
		return authkit.Account{}, authkit.ErrNotFound
	}
	return r.scanOne(ctx, r.db, `SELECT `+selectColumns+` FROM accounts WHERE `+column+` = $1`, value)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (authkit.Account, error) {
	return r.scanOne(ctx, r.db, `SELECT `+selectColumns+` FROM accounts WHERE id = $1`, id)
}

// Create inserts the account and reads the stored row back inside one
// transaction.
func (r *AccountRepository) Create(ctx context.Context, a authkit.Account) (authkit.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return authkit.Account{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (id, name, email, phone, username, password_hash, role, verified, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		a.ID, a.Name, a.Email, a.Phone, a.Username, a.PasswordHash, string(a.Role), a.Verified, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authkit.Account{}, authkit.ErrDuplicate
		}
		return authkit.Account{}, fmt.Errorf("insert account: %w", err)
	}

	stored, err := r.scanOne(ctx, tx, `SELECT `+selectColumns+` FROM accounts WHERE id = $1`, a.ID)
	if err != nil {
		return authkit.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return authkit.Account{}, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.update(ctx, "password hash", `UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, r.now().UTC(), id)
}

func (r *AccountRepository) UpdateVerified(ctx context.Context, id string, verified bool) error {
	return r.update(ctx, "verified", `UPDATE accounts SET verified = $1, updated_at = $2 WHERE id = $3`, verified, r.now().UTC(), id)
}

// UpdateLastLogin leaves updated_at alone.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "last login", `UPDATE accounts SET last_login = $1 WHERE id = $2`, at.UTC(), id)
}

func (r *AccountRepository) UpdateRole(ctx context.Context, id string, role authkit.Role) error {
	return r.update(ctx, "role", `UPDATE accounts SET role = $1, updated_at = $2 WHERE id = $3`, string(role), r.now().UTC(), id)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, "delete", `DELETE FROM accounts WHERE id = $1`, id)
}

// List returns one page and the total row count. opts must already be
// normalized by the engine; an unknown sort field falls back to created_at.
func (r *AccountRepository) List(ctx context.Context, opts authkit.ListOptions) ([]authkit.Account, int, error) {
	column, ok := sortColumns[opts.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if opts.Order > 0 {
		direction = "ASC"
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM accounts ORDER BY `+column+` `+direction+`, id OFFSET $1 LIMIT $2`,
		opts.Skip, opts.Limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]authkit.Account, 0, opts.Limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, total, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *AccountRepository) scanOne(ctx context.Context, q querier, query string, args ...any) (authkit.Account, error) {
	a, err := scanAccount(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authkit.Account{}, authkit.ErrNotFound
		}
		return authkit.Account{}, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) update(ctx context.Context, what, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (authkit.Account, error) {
	var (
		a    authkit.Account
		role string
	)
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Phone,
		&a.Username,
		&a.PasswordHash,
		&role,
		&a.Verified,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.LastLogin,
	)
	a.Role = authkit.Role(role)
	return a, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
