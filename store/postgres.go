package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/store/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
)

const (
	pgEmailConstraint = "users_email_key"
	pgCodeConstraint  = "users_verification_token_key"
	pgUniqueViolation = "23505"
)

const userColumns = `id, email, name, password, is_verified,
		verification_token, verification_token_expires_at,
		reset_password_token, reset_password_expires_at,
		last_login, created_at, updated_at`

// pgxPool is the subset of *pgxpool.Pool the store uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Postgres is an [authflow.UserStore] over the users table created by
// [Migrate].
type Postgres struct {
	pool pgxPool
}

// NewPostgres returns a store using pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func newPostgres(pool pgxPool) *Postgres {
	return &Postgres{pool: pool}
}

var _ authflow.UserStore = (*Postgres)(nil)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations through a database/sql handle
// borrowed from pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return runMigrations(ctx, db)
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").With("operation", "set goose dialect").Wrap(err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	return nil
}

// CreateUser assigns user.ID and inserts the row.
func (r *Postgres) CreateUser(ctx context.Context, user *authflow.User) error {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id.String(), user.Email, user.Name, user.PasswordHash, user.IsVerified,
		nullString(user.VerificationToken), nullTime(user.VerificationTokenExpiresAt),
		nullString(user.ResetPasswordToken), nullTime(user.ResetPasswordExpiresAt),
		nullTime(user.LastLogin), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			switch pgErr.ConstraintName {
			case pgEmailConstraint:
				return oops.With("email", user.Email).Wrap(authflow.ErrDuplicateEmail)
			case pgCodeConstraint:
				return authflow.ErrDuplicateCode
			}
		}
		return oops.Code("USER_CREATE_FAILED").With("operation", "insert user").Wrap(err)
	}

	user.ID = id.String()
	return nil
}

// GetUserByEmail finds one user by normalized email.
func (r *Postgres) GetUserByEmail(ctx context.Context, email string) (*authflow.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return r.getOne(row, "select user by email")
}

// GetUserByID finds one user. A malformed id matches nothing.
func (r *Postgres) GetUserByID(ctx context.Context, id string) (*authflow.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.getOne(row, "select user by id")
}

func (r *Postgres) getOne(row pgx.Row, operation string) (*authflow.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("operation", operation).Wrap(authflow.ErrRecordNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").With("operation", operation).Wrap(err)
	}
	return u, nil
}

// ListUsers returns every user ordered by creation time.
func (r *Postgres) ListUsers(ctx context.Context) ([]*authflow.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "select users").Wrap(err)
	}
	defer rows.Close()

	users := make([]*authflow.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").With("operation", "scan user").Wrap(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

// UpdateLastLogin stamps last_login and updated_at.
func (r *Postgres) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateByID(ctx, id, "update last login",
		`UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, at)
}

// SetResetToken stores a reset token on the user.
func (r *Postgres) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return r.updateByID(ctx, id, "set reset token",
		`UPDATE users SET reset_password_token = $2, reset_password_expires_at = $3 WHERE id = $1`,
		token, expiresAt)
}

func (r *Postgres) updateByID(ctx context.Context, id, operation, query string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(id)
	}
	result, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", operation).
			With("user_id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// ConsumeVerificationToken verifies the owner of a live code in one UPDATE.
func (r *Postgres) ConsumeVerificationToken(ctx context.Context, code string, now time.Time) (*authflow.User, error) {
	if code == "" {
		return nil, authflow.ErrRecordNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET is_verified = TRUE,
			verification_token = NULL,
			verification_token_expires_at = NULL,
			updated_at = $2
		WHERE verification_token = $1 AND verification_token_expires_at > $2
		RETURNING `+userColumns, code, now)
	return r.consumed(row, "consume verification token")
}

// ConsumeResetToken sets a new password for the owner of a live token.
func (r *Postgres) ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (*authflow.User, error) {
	if token == "" {
		return nil, authflow.ErrRecordNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET password = $3,
			reset_password_token = NULL,
			reset_password_expires_at = NULL,
			updated_at = $2
		WHERE reset_password_token = $1 AND reset_password_expires_at > $2
		RETURNING `+userColumns, token, now, newPasswordHash)
	return r.consumed(row, "consume reset token")
}

func (r *Postgres) consumed(row pgx.Row, operation string) (*authflow.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, authflow.ErrRecordNotFound
	}
	if err != nil {
		return nil, oops.Code("USER_UPDATE_FAILED").With("operation", operation).Wrap(err)
	}
	return u, nil
}

// DeleteUnverifiedExpired removes unverified users whose code expired
// before now.
func (r *Postgres) DeleteUnverifiedExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM users
		WHERE NOT is_verified AND verification_token_expires_at < $1
	`, now)
	if err != nil {
		return 0, oops.Code("USER_SWEEP_FAILED").
			With("operation", "delete unverified users").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Ping checks a pooled connection.
func (r *Postgres) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("operation", "ping postgres").Wrap(err)
	}
	return nil
}

// scanUser scans a single row in userColumns order.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*authflow.User, error) {
	var (
		u           authflow.User
		vToken      *string
		vExpires    *time.Time
		resetToken  *string
		resetExpiry *time.Time
		lastLogin   *time.Time
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsVerified,
		&vToken, &vExpires,
		&resetToken, &resetExpiry,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.VerificationToken = deref(vToken)
	u.VerificationTokenExpiresAt = utc(derefTime(vExpires))
	u.ResetPasswordToken = deref(resetToken)
	u.ResetPasswordExpiresAt = utc(derefTime(resetExpiry))
	u.LastLogin = utc(derefTime(lastLogin))
	u.CreatedAt = utc(u.CreatedAt)
	u.UpdatedAt = utc(u.UpdatedAt)
	return &u, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
