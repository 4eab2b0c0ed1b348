package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no profile exists for a user.
var ErrNotFound = errors.New("profile not found")

// Store persists profiles with merge-on-write semantics.
type Store interface {
	Upsert(ctx context.Context, userID string, fields Fields) error
	Get(ctx context.Context, userID string) (Profile, error)
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresStore builds a Postgres-backed profile store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Upsert creates the profile or merges the supplied fields into it.
func (s *PostgresStore) Upsert(ctx context.Context, userID string, fields Fields) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	now := s.now().UTC()
	var lastLogin *time.Time
	if fields.LastLogin != nil {
		lastLogin = Time(fields.LastLogin.UTC())
	}
	_, err := s.db.Exec(ctx, `INSERT INTO profiles (user_id, email, display_name, last_login, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (user_id) DO UPDATE SET
            email        = COALESCE(EXCLUDED.email, profiles.email),
            display_name = COALESCE(EXCLUDED.display_name, profiles.display_name),
            last_login   = COALESCE(EXCLUDED.last_login, profiles.last_login),
            updated_at   = EXCLUDED.updated_at`,
		userID, fields.Email, fields.DisplayName, lastLogin, now)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// Get fetches the profile for a user.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Profile, error) {
	row := s.db.QueryRow(ctx, `SELECT user_id, email, display_name, last_login, created_at, updated_at
        FROM profiles WHERE user_id = $1`, userID)
	var (
		p           Profile
		email, name *string
		lastLogin   *time.Time
	)
	if err := row.Scan(&p.UserID, &email, &name, &lastLogin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	if email != nil {
		p.Email = *email
	}
	if name != nil {
		p.DisplayName = *name
	}
	if lastLogin != nil {
		p.LastLogin = lastLogin.UTC()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
