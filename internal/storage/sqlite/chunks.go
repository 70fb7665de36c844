package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/readr/internal/core"
)

// ChunkRepo persists embedded chunks so the in-memory index can
// warm-start without re-embedding.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) SaveChunks(ctx context.Context, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range chunks {
		blob, err := serializeVector(c.Embedding)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, text, start_offset, end_offset, token_size, sequence_index, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   text = excluded.text,
			   start_offset = excluded.start_offset,
			   end_offset = excluded.end_offset,
			   token_size = excluded.token_size,
			   sequence_index = excluded.sequence_index,
			   embedding = excluded.embedding`,
			c.ID, c.DocumentID, c.Text, c.StartOffset, c.EndOffset, c.TokenSize, c.SequenceIndex, blob,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (r *ChunkRepo) LoadChunks(ctx context.Context, documentID string) ([]core.Chunk, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, document_id, text, start_offset, end_offset, token_size, sequence_index, embedding
		 FROM chunks WHERE document_id = ? ORDER BY sequence_index`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	var chunks []core.Chunk
	for rows.Next() {
		var c core.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Text, &c.StartOffset, &c.EndOffset, &c.TokenSize, &c.SequenceIndex, &blob); err != nil {
			return nil, err
		}
		if c.Embedding, err = deserializeVector(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
