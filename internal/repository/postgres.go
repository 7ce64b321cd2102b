package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/appealrouter/internal/domain"
)

// PostgresStore keeps documents as jsonb rows in the documents table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	loadDocumentSQL = `SELECT body FROM documents WHERE name = $1`
	saveDocumentSQL = `
INSERT INTO documents (name, body, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
)

func (s *PostgresStore) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(ctx, loadDocumentSQL, name).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return body, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) Save(ctx context.Context, name string, data []byte) error {
	if _, err := s.db.Exec(ctx, saveDocumentSQL, name, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}
