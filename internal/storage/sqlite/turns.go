package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/readr/internal/core"
)

// TurnRepo is the append-only log of completed turns.
type TurnRepo struct {
	db *sql.DB
}

func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

func (r *TurnRepo) AppendTurn(ctx context.Context, turn core.Turn) error {
	agentResults, err := json.Marshal(turn.AgentResults)
	if err != nil {
		return fmt.Errorf("failed to encode agent results: %w", err)
	}
	degraded, err := json.Marshal(turn.DegradedAgents)
	if err != nil {
		return fmt.Errorf("failed to encode degraded agents: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, query, answer, agent_results, degraded_agents, external_degraded, created_at, token_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, turn.Query, turn.Answer,
		string(agentResults), string(degraded), turn.ExternalDegraded, turn.CreatedAt, turn.TokenSize,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

func (r *TurnRepo) RecentTurns(ctx context.Context, sessionID string, limit int) ([]core.Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, query, answer, agent_results, degraded_agents, external_degraded, created_at, token_size
		 FROM turns WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var t core.Turn
		var agentResults, degraded string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Query, &t.Answer, &agentResults, &degraded, &t.ExternalDegraded, &t.CreatedAt, &t.TokenSize); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(agentResults), &t.AgentResults); err != nil {
			return nil, fmt.Errorf("turn %s: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(degraded), &t.DegradedAgents); err != nil {
			return nil, fmt.Errorf("turn %s: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first, the order conversations replay in.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
