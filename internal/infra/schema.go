package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id            UUID PRIMARY KEY,
        email         TEXT NOT NULL DEFAULT '',
        display_name  TEXT NOT NULL DEFAULT '',
        password_hash BYTEA,
        created_at    TIMESTAMPTZ NOT NULL,
        last_login    TIMESTAMPTZ
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email) WHERE email <> ''`,
	`CREATE TABLE IF NOT EXISTS user_identities (
        provider TEXT NOT NULL,
        subject  TEXT NOT NULL,
        user_id  UUID NOT NULL REFERENCES users (id),
        PRIMARY KEY (provider, subject)
    )`,
	`CREATE TABLE IF NOT EXISTS profiles (
        user_id      TEXT PRIMARY KEY,
        email        TEXT,
        display_name TEXT,
        last_login   TIMESTAMPTZ,
        created_at   TIMESTAMPTZ NOT NULL,
        updated_at   TIMESTAMPTZ NOT NULL
    )`,
}

// ApplySchema creates the tables used by the identity and profile stores when
// they do not exist yet.
func ApplySchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
