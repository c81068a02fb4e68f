// Package postgres implements authkit.AccountRepository on PostgreSQL via
// pgx.
//
// Empty email, phone and username values are stored as NULL so the unique
// indexes only constrain fields that are set. Unique violations map to
// authkit.ErrDuplicate and missing rows to authkit.ErrNotFound. Any other
// driver error is returned wrapped.
//
// [Migrate] applies the embedded goose migrations.
package postgres
