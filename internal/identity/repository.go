package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository persists users and their federated identities.
type Repository interface {
	Create(ctx context.Context, user User) error
	CreateFederated(ctx context.Context, user User, provider, subject string) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByFederated(ctx context.Context, provider, subject string) (User, error)
	LinkFederated(ctx context.Context, userID, provider, subject string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, display_name, password_hash, created_at, last_login`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	return insertUser(ctx, r.db, user)
}

// CreateFederated inserts a user together with its federated identity in one transaction.
func (r *PostgresRepository) CreateFederated(ctx context.Context, user User, provider, subject string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}
	if err := insertIdentity(ctx, tx, user.ID, provider, subject); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindByEmail fetches a user by normalized email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindByFederated fetches the user bound to a provider subject.
func (r *PostgresRepository) FindByFederated(ctx context.Context, provider, subject string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT u.id, u.email, u.display_name, u.password_hash, u.created_at, u.last_login
        FROM user_identities i JOIN users u ON u.id = i.user_id
        WHERE i.provider = $1 AND i.subject = $2`, provider, subject))
}

// LinkFederated binds a provider subject to an existing user.
func (r *PostgresRepository) LinkFederated(ctx context.Context, userID, provider, subject string) error {
	return insertIdentity(ctx, r.db, userID, provider, subject)
}

// TouchLogin records the time of the latest successful sign-in.
func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at.UTC(), userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertUser(ctx context.Context, db execer, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO users (id, email, display_name, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5)`, userID, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt.UTC())
	return mapWriteError(err)
}

func insertIdentity(ctx context.Context, db execer, userID, provider, subject string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO user_identities (provider, subject, user_id) VALUES ($1, $2, $3)`, provider, subject, id)
	return mapWriteError(err)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		lastLogin *time.Time
		user      User
	)
	if err := row.Scan(&id, &user.Email, &user.DisplayName, &user.PasswordHash, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	if lastLogin != nil {
		user.LastLogin = lastLogin.UTC()
	}
	return user, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
