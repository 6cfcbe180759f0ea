package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
	ErrEmptyConnectionString    = errors.New("empty postgres connection string, use PG_CONN_URL env var")
	ErrHealthcheckFailed        = errors.New("healthcheck failed, connection is not available")
	ErrFailedToParseDBConfig    = errors.New("failed to parse db config")
	ErrFailedToApplyMigrations  = errors.New("failed to apply migrations")
	ErrMigrationsNotProvided    = errors.New("migrations filesystem not provided")
)

// IsNotFoundError detects pgx.ErrNoRows for consistent "not found" handling across queries.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// IsDuplicateKeyError detects PostgreSQL unique constraint violations (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, "23505")
}

// IsForeignKeyViolationError detects referential integrity violations (SQLSTATE 23503).
// Inserting a row for a tenant that does not exist ends up here.
func IsForeignKeyViolationError(err error) bool {
	return hasCode(err, "23503")
}

// IsInsufficientPrivilegeError detects SQLSTATE 42501, raised among others
// when a row violates a row-security policy on INSERT or UPDATE.
func IsInsufficientPrivilegeError(err error) bool {
	return hasCode(err, "42501")
}

// IsUndefinedObjectError detects SQLSTATE 42704, e.g. SHOW of a custom
// setting that was never set on the session.
func IsUndefinedObjectError(err error) bool {
	return hasCode(err, "42704")
}
