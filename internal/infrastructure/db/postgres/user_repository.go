package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
	"github.com/ecommerce-app/ecommerce-api/internal/core/ports"
)

const uniqueViolation = "23505"

type UserRepository struct {
	db querier
}

var (
	_ ports.UserRepository = (*UserRepository)(nil)
	_ ports.SessionStore   = (*UserRepository)(nil)
)

func NewUserRepository(db querier) *UserRepository {
	return &UserRepository{db: db}
}

const selectUser = `SELECT id, username, email, password_hash, role, refresh_token, refresh_token_expiry_time, created_at, updated_at FROM users`

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	created := &domain.User{
		ID:           uuid.NewString(),
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		created.ID, created.Username, created.Email, created.PasswordHash, created.Role,
	).Scan(&created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE email = $1`, email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var (
		u      domain.User
		token  *string
		expiry *time.Time
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &token, &expiry, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if token != nil && expiry != nil {
		u.Session = &domain.RefreshSession{Token: *token, ExpiresAt: expiry.UTC()}
	}
	return &u, nil
}

func (r *UserRepository) ReplaceSession(ctx context.Context, userID string, session domain.RefreshSession) error {
	if _, err := uuid.Parse(userID); err != nil {
		return domain.ErrUserNotFound
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = $2, refresh_token_expiry_time = $3, updated_at = now() WHERE id = $1`,
		userID, session.Token, session.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RotateSession is a single conditional UPDATE; row-level locking makes the
// second of two concurrent rotations match zero rows.
func (r *UserRepository) RotateSession(ctx context.Context, userID, oldToken string, next domain.RefreshSession, now time.Time) error {
	if _, err := uuid.Parse(userID); err != nil {
		return domain.ErrSessionConflict
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = $3, refresh_token_expiry_time = $4, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2 AND refresh_token_expiry_time > $5`,
		userID, oldToken, next.Token, next.ExpiresAt.UTC(), now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionConflict
	}
	return nil
}

func (r *UserRepository) RevokeSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUserNotFound
	}

	var id string
	err := r.db.QueryRow(ctx,
		`UPDATE users SET refresh_token = NULL, refresh_token_expiry_time = NULL, updated_at = now()
		 WHERE refresh_token = $1 RETURNING id`,
		token,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("revoke session: %w", err)
	}
	return id, nil
}

func (r *UserRepository) ClearSession(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return domain.ErrUserNotFound
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET refresh_token = NULL, refresh_token_expiry_time = NULL, updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
