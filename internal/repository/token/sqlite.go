package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/ahmethakanbesel/nse-scanner/internal/token"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, t domain.Token) error {
	const query = `INSERT INTO tokens (provider, access_token, saved_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, t.Provider, t.AccessToken, t.SavedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *Repository) Latest(ctx context.Context, provider string) (*domain.Token, error) {
	const query = `SELECT provider, access_token, saved_at
		FROM tokens
		WHERE provider = ?
		ORDER BY id DESC
		LIMIT 1`

	var t domain.Token
	var savedStr string
	err := r.db.QueryRowContext(ctx, query, provider).Scan(&t.Provider, &t.AccessToken, &savedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest token: %w", err)
	}
	t.SavedAt, _ = time.Parse(time.RFC3339, savedStr)
	return &t, nil
}
