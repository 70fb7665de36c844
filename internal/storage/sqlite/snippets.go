package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/readr/internal/core"
)

// SnippetRepo persists fetched snippets per normalized query key so a
// restart keeps a last-known-good copy for degraded mode.
type SnippetRepo struct {
	db *sql.DB
}

func NewSnippetRepo(db *sql.DB) *SnippetRepo {
	return &SnippetRepo{db: db}
}

func (r *SnippetRepo) SaveSnippets(ctx context.Context, key string, snippets []core.Snippet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snippets WHERE query_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear snippets for %q: %w", key, err)
	}

	for _, s := range snippets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snippets (query_key, source_id, query, title, text, url, fetched_at, relevance, token_size)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, s.SourceID, s.Query, s.Title, s.Text, s.URL, s.FetchedAt, s.Relevance, s.TokenSize,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snippet %q: %w", s.Title, err)
		}
	}

	return tx.Commit()
}

func (r *SnippetRepo) LoadSnippets(ctx context.Context, key string) ([]core.Snippet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source_id, query, title, text, url, fetched_at, relevance, token_size
		 FROM snippets WHERE query_key = ? ORDER BY relevance DESC`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load snippets: %w", err)
	}
	defer rows.Close()

	var snippets []core.Snippet
	for rows.Next() {
		var s core.Snippet
		if err := rows.Scan(&s.SourceID, &s.Query, &s.Title, &s.Text, &s.URL, &s.FetchedAt, &s.Relevance, &s.TokenSize); err != nil {
			return nil, err
		}
		snippets = append(snippets, s)
	}
	return snippets, rows.Err()
}
