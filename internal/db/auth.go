package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gym-crm/auth-backend/internal/model"
	"github.com/jackc/pgx/v5"
)

func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			role TEXT NOT NULL DEFAULT 'TRAINEE',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS tokens (
			id UUID PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			token_type TEXT NOT NULL DEFAULT 'BEARER',
			purpose TEXT NOT NULL,
			ttl_seconds BIGINT NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			expired BOOLEAN NOT NULL DEFAULT FALSE,
			user_id BIGINT NOT NULL REFERENCES users(id),
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS tokens_user_id_valid_idx ON tokens(user_id) WHERE NOT revoked AND NOT expired`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, username, passwordHash string, role model.Role) (*model.Principal, error) {
	query := `
		INSERT INTO users (username, password_hash, active, role, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, NOW(), NOW())
		RETURNING id, username, password_hash, active, role
	`
	return scanPrincipal(db.Pool.QueryRow(ctx, query, username, passwordHash, string(role)))
}

// FindByUsername implements the read-only user directory.
func (db *Postgres) FindByUsername(ctx context.Context, username string) (*model.Principal, error) {
	query := `
		SELECT id, username, password_hash, active, role
		FROM users
		WHERE username = $1
	`
	return scanPrincipal(db.Pool.QueryRow(ctx, query, username))
}

func scanPrincipal(row pgx.Row) (*model.Principal, error) {
	var (
		p    model.Principal
		role string
	)
	err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.Active, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Role = model.ParseRole(role)
	p.Permissions = model.CapabilitiesFor(p.Role)
	return &p, nil
}

const tokenColumns = `id, token, token_type, purpose, ttl_seconds, revoked, expired, user_id, expires_at, created_at`

func (db *Postgres) SaveToken(ctx context.Context, token *model.Token) error {
	_, err := db.Pool.Exec(ctx, upsertTokenQuery(), tokenArgs(token)...)
	return err
}

func (db *Postgres) FindAllValidTokens(ctx context.Context, principalID int64) ([]model.Token, error) {
	query := `SELECT ` + tokenColumns + `
		FROM tokens
		WHERE user_id = $1 AND NOT revoked AND NOT expired
		ORDER BY created_at
	`
	rows, err := db.Pool.Query(ctx, query, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, rows.Err()
}

func (db *Postgres) FindTokenByString(ctx context.Context, tokenStr string) (*model.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE token = $1`
	token, err := scanToken(db.Pool.QueryRow(ctx, query, tokenStr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return token, nil
}

// SaveAllTokens writes the batch in one transaction so a concurrent
// reader never sees part of a revocation.
func (db *Postgres) SaveAllTokens(ctx context.Context, tokens []model.Token) error {
	if len(tokens) == 0 {
		return nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for i := range tokens {
		batch.Queue(upsertTokenQuery(), tokenArgs(&tokens[i])...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save token batch: %w", err)
	}

	return tx.Commit(ctx)
}

func upsertTokenQuery() string {
	return `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET revoked = tokens.revoked OR EXCLUDED.revoked,
			expired = tokens.expired OR EXCLUDED.expired
	`
}

func tokenArgs(t *model.Token) []any {
	return []any{
		t.ID,
		t.Token,
		string(t.Kind),
		string(t.Purpose),
		int64(t.TTL / time.Second),
		t.Revoked,
		t.Expired,
		t.PrincipalID,
		t.ExpiresAt,
		t.CreatedAt,
	}
}

func scanToken(row pgx.Row) (*model.Token, error) {
	var (
		t          model.Token
		kind       string
		purpose    string
		ttlSeconds int64
	)
	err := row.Scan(
		&t.ID,
		&t.Token,
		&kind,
		&purpose,
		&ttlSeconds,
		&t.Revoked,
		&t.Expired,
		&t.PrincipalID,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Kind = model.TokenKind(kind)
	t.Purpose = model.TokenPurpose(purpose)
	t.TTL = time.Duration(ttlSeconds) * time.Second
	return &t, nil
}
