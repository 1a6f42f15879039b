package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samuvale95/swift-study-box-be/internal/domain/repository"
)

const userColumns = `
	id, email, name, avatar, password_hash,
	is_active, is_verified,
	oauth_provider, oauth_subject_id,
	preferences, subscription_type,
	last_login_at, created_at, updated_at`

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates the PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepo{pool: pool}
}

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var prefs []byte
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Avatar, &u.PasswordHash,
		&u.IsActive, &u.IsVerified,
		&u.OAuthProvider, &u.OAuthSubjectID,
		&prefs, &u.SubscriptionType,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *userRepo) GetByProviderSubject(ctx context.Context, provider, subject string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE oauth_provider = $1 AND oauth_subject_id = $2`,
		provider, subject)
	return scanUser(row)
}

func (r *userRepo) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	prefs, err := json.Marshal(repository.DefaultPreferences())
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, name, avatar, password_hash,
			is_active, is_verified,
			oauth_provider, oauth_subject_id,
			preferences, subscription_type,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'free', $11, $11)`,
		id, input.Email, input.Name, input.Avatar, input.PasswordHash,
		input.IsActive, input.IsVerified,
		input.OAuthProvider, input.OAuthSubjectID,
		prefs, now,
	)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *userRepo) LinkProvider(ctx context.Context, userID, provider, subject string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE users SET oauth_provider = $2, oauth_subject_id = $3, updated_at = NOW()
		WHERE id = $1`,
		userID, provider, subject,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, userID string, upd repository.ProfileUpdate) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE users SET
			name = COALESCE($2, name),
			avatar = COALESCE($3, avatar),
			updated_at = NOW()
		WHERE id = $1`,
		userID, upd.Name, upd.Avatar,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	return err
}
