package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ayush/storefront/backend/internal/models"
)

// PgxQuerier is the subset of *pgxpool.Pool used by PostgresStore.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id::text, username, email, password, role, profile_image, phone, address,
	email_verified, password_changed_at, COALESCE(reset_password_token, ''), reset_password_expire,
	created_at, updated_at`

// PostgresStore handles account CRUD against PostgreSQL.
type PostgresStore struct {
	pool PgxQuerier
}

func NewPostgresStore(pool PgxQuerier) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the accounts table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username              VARCHAR(30)  UNIQUE NOT NULL,
			email                 VARCHAR(255) UNIQUE NOT NULL,
			password              VARCHAR(255) NOT NULL,
			role                  VARCHAR(10)  NOT NULL DEFAULT 'user',
			profile_image         TEXT         NOT NULL DEFAULT '',
			phone                 VARCHAR(10)  NOT NULL DEFAULT '',
			address               VARCHAR(200) NOT NULL DEFAULT '',
			email_verified        BOOLEAN      NOT NULL DEFAULT FALSE,
			password_changed_at   TIMESTAMPTZ,
			reset_password_token  CHAR(64),
			reset_password_expire TIMESTAMPTZ,
			created_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS accounts_reset_password_token_idx
			ON accounts (reset_password_token) WHERE reset_password_token IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, a *models.Account) error {
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (username, email, password, role, profile_image, phone, address, email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id::text, created_at, updated_at`,
		a.Username, a.Email, a.PasswordHash, string(a.Role), a.ProfileImage, a.Phone, a.Address, a.EmailVerified,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return postgresWriteError("insert account", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.queryOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (s *PostgresStore) FindByEmailOrUsername(ctx context.Context, email, username string) ([]models.Account, error) {
	return s.queryMany(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1 OR username = $2 LIMIT 2`,
		email, username)
}

func (s *PostgresStore) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET reset_password_token = $2, reset_password_expire = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	return s.queryOne(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE reset_password_token = $1 AND reset_password_expire > $2`,
		tokenHash, now)
}

func (s *PostgresStore) ConsumeResetToken(ctx context.Context, c ResetConsumption) error {
	if _, err := uuid.Parse(c.AccountID); err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET password = $3, password_changed_at = $4,
		     reset_password_token = NULL, reset_password_expire = NULL, updated_at = NOW()
		 WHERE id = $1 AND reset_password_token = $2 AND reset_password_expire > $4`,
		c.AccountID, c.TokenHash, c.PasswordHash, c.ChangedAt)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var role *string
	if upd.Role != nil {
		r := string(*upd.Role)
		role = &r
	}
	a, err := s.queryOne(ctx,
		`UPDATE accounts SET
			username      = COALESCE($2, username),
			phone         = COALESCE($3, phone),
			address       = COALESCE($4, address),
			profile_image = COALESCE($5, profile_image),
			role          = COALESCE($6, role),
			updated_at    = NOW()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		id, upd.Username, upd.Phone, upd.Address, upd.ProfileImage, role)
	if err != nil {
		return nil, postgresWriteError("update profile", err)
	}
	return a, nil
}

func (s *PostgresStore) UpdateEmail(ctx context.Context, id, email string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	a, err := s.queryOne(ctx,
		`UPDATE accounts SET email = $2, email_verified = FALSE, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		id, email)
	if err != nil {
		return nil, postgresWriteError("update email", err)
	}
	return a, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByRole(ctx context.Context, role models.Role) ([]models.Account, error) {
	return s.queryMany(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE role = $1 ORDER BY created_at DESC`,
		string(role))
}

func (s *PostgresStore) queryOne(ctx context.Context, sql string, args ...any) (*models.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) queryMany(ctx context.Context, sql string, args ...any) ([]models.Account, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	out := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		a    models.Account
		role string
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &role, &a.ProfileImage, &a.Phone, &a.Address,
		&a.EmailVerified, &a.PasswordChangedAt, &a.ResetPasswordTokenHash, &a.ResetPasswordExpiresAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	return &a, nil
}

// postgresWriteError turns unique constraint violations into *DuplicateError.
func postgresWriteError(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "username") {
			return &DuplicateError{Field: "username"}
		}
		return &DuplicateError{Field: "email"}
	}
	return fmt.Errorf("%s: %w", op, err)
}
